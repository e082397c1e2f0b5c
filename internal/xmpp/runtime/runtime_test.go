package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/jid"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
	"github.com/prose-im/prose-core-go/internal/xmpp/transport"
)

func TestSendIQRoundTrip(t *testing.T) {
	mem := transport.NewMemory()
	rt := New(mem, zerolog.Nop(), nil)
	ctx := context.Background()

	if err := rt.Connect(ctx, jid.MustParse("romeo@example.com"), transport.Credential{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer rt.Disconnect(ctx)

	go func() {
		for i := 0; i < 50; i++ {
			if len(mem.Sent) > 0 {
				sent := mem.Sent[len(mem.Sent)-1].(*stanza.IQ)
				mem.DeliverStanza(&stanza.IQ{Id: sent.Id, Type: stanza.IQResult, Roster: &stanza.RosterQuery{}})
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	req := &stanza.IQ{Type: stanza.IQGet, Roster: &stanza.RosterQuery{}}
	resp, err := rt.SendIQ(ctx, req)
	if err != nil {
		t.Fatalf("SendIQ: %v", err)
	}
	if resp.Type != stanza.IQResult {
		t.Fatalf("resp.Type = %v", resp.Type)
	}
}

func TestSendIQErrorCondition(t *testing.T) {
	mem := transport.NewMemory()
	rt := New(mem, zerolog.Nop(), nil)
	ctx := context.Background()
	if err := rt.Connect(ctx, jid.MustParse("romeo@example.com"), transport.Credential{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer rt.Disconnect(ctx)

	go func() {
		for i := 0; i < 50; i++ {
			if len(mem.Sent) > 0 {
				sent := mem.Sent[len(mem.Sent)-1].(*stanza.IQ)
				mem.DeliverStanza(&stanza.IQ{
					Id:   sent.Id,
					Type: stanza.IQError,
					Error: &stanza.StanzaError{Condition: stanza.CondItemNotFound},
				})
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	_, err := rt.SendIQ(ctx, &stanza.IQ{Type: stanza.IQGet, Ping: &stanza.Ping{}})
	failure, ok := err.(*IQFailure)
	if !ok {
		t.Fatalf("expected *IQFailure, got %T (%v)", err, err)
	}
	if failure.Condition != stanza.CondItemNotFound {
		t.Fatalf("Condition = %v", failure.Condition)
	}
}

func TestModuleDispatch(t *testing.T) {
	mem := transport.NewMemory()
	rt := New(mem, zerolog.Nop(), nil)
	ctx := context.Background()
	if err := rt.Connect(ctx, jid.MustParse("romeo@example.com"), transport.Credential{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer rt.Disconnect(ctx)

	received := make(chan *stanza.Message, 1)
	rt.Register(&Module{
		Name:      "test",
		OnMessage: func(m *stanza.Message) { received <- m },
	})

	mem.DeliverStanza(&stanza.Message{Body: "hello"})

	select {
	case m := <-received:
		if m.Body != "hello" {
			t.Fatalf("Body = %q", m.Body)
		}
	case <-time.After(time.Second):
		t.Fatal("module never received message")
	}
}
