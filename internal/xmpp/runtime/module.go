package runtime

import "github.com/prose-im/prose-core-go/internal/xmpp/stanza"

// Module is a handler bundle registered with the runtime. Each of the four
// handler funcs is optional; a module implements only the element kinds it
// cares about (spec §4.1 "Each module registers a handler for one or more
// of {presence, message, IQ, pub/sub event}"). Handlers must not block —
// anything that waits on IO should hand off to a goroutine.
type Module struct {
	Name string

	OnPresence func(p *stanza.Presence)
	OnMessage  func(m *stanza.Message)
	OnIQ       func(iq *stanza.IQ)
	OnPubSubEvent func(from string, event *stanza.PubSubEvent)
}
