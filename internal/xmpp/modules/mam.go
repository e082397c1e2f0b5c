package modules

import (
	"context"
	"sync"

	"github.com/rs/xid"

	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// Archive queries the message archive (XEP-0313 MAM), accumulating
// forwarded messages as a composite request until the terminal "fin" IQ
// (spec §4.1 "Composite requests", §4.2 "archived-message wrapper").
type Archive struct {
	rt       *runtime.Runtime
	messages *repo.MessageRepo
}

func NewArchive(rt *runtime.Runtime, messages *repo.MessageRepo) *Archive {
	return &Archive{rt: rt, messages: messages}
}

// Page runs a single MAM page query, appending every archived message it
// receives to the message repo, and returns the terminal fin marker.
func (m *Archive) Page(ctx context.Context, conversation string, form *stanza.DataForm, rsm *stanza.RSMSet) (*stanza.MAMFin, error) {
	queryID := xid.New().String()

	var mu sync.Mutex
	var collected []*stanza.Message

	reducer := func(element any) (accepted, done bool, result any, err error) {
		switch v := element.(type) {
		case *stanza.Message:
			if v.Archived == nil || v.Archived.QueryID != queryID {
				return false, false, nil, nil
			}
			mu.Lock()
			collected = append(collected, v.Archived.Forwarded.Message)
			mu.Unlock()
			return true, false, nil, nil
		case *stanza.IQ:
			if v.MAMFin == nil || v.Id != queryID {
				return false, false, nil, nil
			}
			return true, true, v.MAMFin, nil
		}
		return false, false, nil, nil
	}

	iq := &stanza.IQ{Id: queryID, Type: stanza.IQSet, MAMQuery: &stanza.MAMQuery{QueryID: queryID, Form: form, RSM: rsm}}
	result, err := m.rt.SendComposite(ctx, queryID, iq, reducer)
	if err != nil {
		return nil, err
	}

	for _, msg := range collected {
		if msg == nil {
			continue
		}
		delta, ok := deltaFromMessage(conversation, msg)
		if !ok {
			continue
		}
		if err := m.messages.Append(ctx, delta); err != nil {
			return nil, err
		}
	}

	fin, _ := result.(*stanza.MAMFin)
	return fin, nil
}
