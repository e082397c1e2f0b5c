package modules

import (
	"context"

	"github.com/rs/xid"

	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// BlockList manages the server-side block list (XEP-0191, spec §6
// "load/block/unblock/clear block list").
type BlockList struct {
	rt    *runtime.Runtime
	store *repo.BlockListRepo

	onChanged func()
}

func NewBlockList(rt *runtime.Runtime, store *repo.BlockListRepo, onChanged func()) *BlockList {
	return &BlockList{rt: rt, store: store, onChanged: onChanged}
}

func (m *BlockList) Module() *runtime.Module {
	return &runtime.Module{Name: "blocklist", OnIQ: m.onIQ}
}

func (m *BlockList) onIQ(iq *stanza.IQ) {
	ctx := context.Background()
	switch {
	case iq.Block != nil && iq.Type == stanza.IQSet:
		for _, item := range iq.Block.Items {
			_ = m.store.Block(ctx, item.JID)
		}
	case iq.Unblock != nil && iq.Type == stanza.IQSet:
		if len(iq.Unblock.Items) == 0 {
			_ = m.store.Clear(ctx)
		}
		for _, item := range iq.Unblock.Items {
			_ = m.store.Unblock(ctx, item.JID)
		}
	default:
		return
	}
	if m.onChanged != nil {
		m.onChanged()
	}
}

// Load fetches the server's block list and mirrors it locally.
func (m *BlockList) Load(ctx context.Context) ([]string, error) {
	iq := &stanza.IQ{Id: xid.New().String(), Type: stanza.IQGet, Blocklist: &stanza.Blocklist{}}
	res, err := m.rt.SendIQ(ctx, iq)
	if err != nil {
		return nil, err
	}
	if res.Blocklist == nil {
		return nil, nil
	}
	var jids []string
	for _, item := range res.Blocklist.Items {
		jids = append(jids, item.JID)
		if err := m.store.Block(ctx, item.JID); err != nil {
			return nil, err
		}
	}
	return jids, nil
}

func (m *BlockList) Block(ctx context.Context, jidStr string) error {
	iq := &stanza.IQ{Id: xid.New().String(), Type: stanza.IQSet, Block: &stanza.BlockList{Items: []stanza.BlockItem{{JID: jidStr}}}}
	if _, err := m.rt.SendIQ(ctx, iq); err != nil {
		return err
	}
	return m.store.Block(ctx, jidStr)
}

func (m *BlockList) Unblock(ctx context.Context, jidStr string) error {
	iq := &stanza.IQ{Id: xid.New().String(), Type: stanza.IQSet, Unblock: &stanza.BlockList{Items: []stanza.BlockItem{{JID: jidStr}}}}
	if _, err := m.rt.SendIQ(ctx, iq); err != nil {
		return err
	}
	return m.store.Unblock(ctx, jidStr)
}

func (m *BlockList) Clear(ctx context.Context) error {
	iq := &stanza.IQ{Id: xid.New().String(), Type: stanza.IQSet, Unblock: &stanza.BlockList{}}
	if _, err := m.rt.SendIQ(ctx, iq); err != nil {
		return err
	}
	return m.store.Clear(ctx)
}
