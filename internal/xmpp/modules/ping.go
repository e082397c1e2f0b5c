package modules

import (
	"context"

	"github.com/rs/xid"

	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// Ping answers inbound urn:xmpp:ping requests; the runtime's own
// keep-alive ping is issued internally (spec §4.1 "Keep-alive") and does
// not go through this module.
type Ping struct {
	rt *runtime.Runtime
}

func NewPing(rt *runtime.Runtime) *Ping {
	return &Ping{rt: rt}
}

func (m *Ping) Module() *runtime.Module {
	return &runtime.Module{Name: "ping", OnIQ: m.onIQ}
}

func (m *Ping) onIQ(iq *stanza.IQ) {
	if iq.Ping == nil || iq.Type != stanza.IQGet {
		return
	}
	reply := &stanza.IQ{To: iq.From, Id: iq.Id, Type: stanza.IQResult}
	_ = m.rt.Send(context.Background(), reply)
}

// Send issues an explicit ping to jidStr and waits for the result.
func (m *Ping) Send(ctx context.Context, jidStr string) error {
	iq := &stanza.IQ{To: jidStr, Id: xid.New().String(), Type: stanza.IQGet, Ping: &stanza.Ping{}}
	_, err := m.rt.SendIQ(ctx, iq)
	return err
}
