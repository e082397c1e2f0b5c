package modules

import (
	"context"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// PubSub is the generic pub/sub module: publish, retract, and fetch items
// on arbitrary nodes, plus the inbound event dispatch that bookmarks,
// avatar, and OMEMO device/bundle modules build on (spec §4.2 "Pub/sub
// events: items published/retracted/purged/configured").
type PubSub struct {
	rt  *runtime.Runtime
	log zerolog.Logger

	onEvent func(from string, event *stanza.PubSubEvent)
}

func NewPubSub(rt *runtime.Runtime, log zerolog.Logger, onEvent func(from string, event *stanza.PubSubEvent)) *PubSub {
	return &PubSub{rt: rt, log: log.With().Str("module", "pubsub").Logger(), onEvent: onEvent}
}

func (m *PubSub) Module() *runtime.Module {
	return &runtime.Module{Name: "pubsub", OnPubSubEvent: m.onEvent}
}

// Publish pushes a single item onto node, optionally with publish
// options (access model, persistence), and returns the assigned item id.
func (m *PubSub) Publish(ctx context.Context, service, node, itemID string, payload []byte, options *stanza.DataForm) (string, error) {
	if itemID == "" {
		itemID = xid.New().String()
	}
	iq := &stanza.IQ{
		To: service, Id: xid.New().String(), Type: stanza.IQSet,
		PubSub: &stanza.PubSub{
			Publish:        &stanza.PubSubPublish{Node: node, Items: []stanza.PubSubItem{{ID: itemID, Payload: payload}}},
			PublishOptions: options,
		},
	}
	if _, err := m.rt.SendIQ(ctx, iq); err != nil {
		return "", err
	}
	return itemID, nil
}

// Retract removes an item from node.
func (m *PubSub) Retract(ctx context.Context, service, node, itemID string) error {
	iq := &stanza.IQ{
		To: service, Id: xid.New().String(), Type: stanza.IQSet,
		PubSub: &stanza.PubSub{Retract: &stanza.PubSubRetractRequest{Node: node, Notify: true, Items: []stanza.PubSubRetract{{ID: itemID}}}},
	}
	_, err := m.rt.SendIQ(ctx, iq)
	return err
}

// Items fetches items from node, optionally capped by maxItems (0 = server default).
func (m *PubSub) Items(ctx context.Context, service, node string, maxItems int) ([]stanza.PubSubItem, error) {
	iq := &stanza.IQ{
		To: service, Id: xid.New().String(), Type: stanza.IQGet,
		PubSub: &stanza.PubSub{Items: &stanza.PubSubItemsRequest{Node: node, MaxItems: maxItems}},
	}
	res, err := m.rt.SendIQ(ctx, iq)
	if err != nil {
		return nil, err
	}
	if res.PubSub == nil || res.PubSub.Items == nil {
		return nil, nil
	}
	return res.PubSub.Items.Items, nil
}

// Configure sets the node's access model and persistence via the owner namespace.
func (m *PubSub) Configure(ctx context.Context, service, node string, form *stanza.DataForm) error {
	iq := &stanza.IQ{
		To: service, Id: xid.New().String(), Type: stanza.IQSet,
		PubSubOwner: &stanza.PubSubOwner{Configure: &stanza.PubSubConfigure{Node: node, Form: form}},
	}
	_, err := m.rt.SendIQ(ctx, iq)
	return err
}

// Subscribe subscribes jidStr to node (defaults to self if jidStr is empty).
func (m *PubSub) Subscribe(ctx context.Context, service, node, jidStr string) error {
	iq := &stanza.IQ{
		To: service, Id: xid.New().String(), Type: stanza.IQSet,
		PubSub: &stanza.PubSub{Subscribe: &stanza.PubSubSubscribe{Node: node, JID: jidStr}},
	}
	_, err := m.rt.SendIQ(ctx, iq)
	return err
}
