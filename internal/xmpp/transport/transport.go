// Package transport abstracts the byte stream carrying XML stanzas so the
// protocol runtime never touches sockets directly.
package transport

import (
	"context"
	"errors"

	"github.com/prose-im/prose-core-go/internal/jid"
)

// ErrConnectionRefused is returned by Connect when the server actively
// rejects the connection attempt (as opposed to a timeout).
var ErrConnectionRefused = errors.New("transport: connection refused")

// Credential is whatever the transport needs besides the identifier to
// authenticate — a password today, but kept as its own type so a future
// token-based mechanism doesn't change the Transport signature.
type Credential struct {
	Password string
}

// Event is one of the four things a connected transport can hand upward:
// a parsed stanza, a disconnection (with optional cause), a ping tick, or
// a timeout-sweep tick (spec §4.1 "Transport contract").
type Event struct {
	Stanza       any
	Disconnected bool
	Cause        error
	PingTick     bool
	TimeoutTick  bool
}

func StanzaEvent(s any) Event { return Event{Stanza: s} }

func DisconnectedEvent(cause error) Event { return Event{Disconnected: true, Cause: cause} }

// Sink receives events off the transport's read loop. Implementations must
// not block for long — the runtime dispatches serially off this channel.
type Sink func(Event)

// Transport abstracts XMPP IO for the protocol runtime. Implementations:
// WebSocket (browser-side or any environment favoring HTTP-friendly
// framing) and native TCP/TLS.
type Transport interface {
	// Connect opens the stream for identifier and begins delivering events
	// to sink. It returns once the stream opening has been sent or a
	// connection error occurs. The WebSocket and TCP implementations do not
	// authenticate or bind a resource, and do not use credential.
	Connect(ctx context.Context, identifier jid.JID, credential Credential, sink Sink) error

	// Send serializes and writes a single stanza (*stanza.Message,
	// *stanza.Presence, or *stanza.IQ).
	Send(ctx context.Context, s any) error

	// Disconnect closes the stream. It is idempotent.
	Disconnect(ctx context.Context) error
}
