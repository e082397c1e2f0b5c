package transport

import (
	"context"
	"sync"

	"github.com/prose-im/prose-core-go/internal/jid"
)

// Memory is an in-process Transport for tests: Send appends to Sent
// instead of touching a socket, and tests drive inbound traffic by calling
// Deliver directly.
type Memory struct {
	mu   sync.Mutex
	sink Sink
	Sent []any

	ConnectErr error
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Connect(ctx context.Context, identifier jid.JID, credential Credential, sink Sink) error {
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.mu.Lock()
	m.sink = sink
	m.mu.Unlock()
	return nil
}

func (m *Memory) Send(ctx context.Context, s any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, s)
	return nil
}

func (m *Memory) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sink != nil {
		m.sink(DisconnectedEvent(nil))
		m.sink = nil
	}
	return nil
}

// Deliver injects an inbound event as if it arrived off the wire.
func (m *Memory) Deliver(e Event) {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	if sink != nil {
		sink(e)
	}
}

// DeliverStanza is shorthand for Deliver(StanzaEvent(s)).
func (m *Memory) DeliverStanza(s any) { m.Deliver(StanzaEvent(s)) }
