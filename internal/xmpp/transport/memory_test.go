package transport

import (
	"context"
	"testing"

	"github.com/prose-im/prose-core-go/internal/jid"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

var (
	_ Transport = (*Memory)(nil)
	_ Transport = (*WebSocket)(nil)
	_ Transport = (*TCP)(nil)
)

func TestMemorySendAndDeliver(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	id := jid.MustParse("romeo@example.com")

	var got []Event
	if err := m.Connect(ctx, id, Credential{}, func(e Event) { got = append(got, e) }); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	msg := &stanza.Message{Body: "hi"}
	if err := m.Send(ctx, msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(m.Sent) != 1 || m.Sent[0] != any(msg) {
		t.Fatalf("Sent = %+v", m.Sent)
	}

	m.DeliverStanza(&stanza.Presence{From: "juliet@example.com"})
	if len(got) != 1 || got[0].Stanza == nil {
		t.Fatalf("got = %+v", got)
	}

	if err := m.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if len(got) != 2 || !got[1].Disconnected {
		t.Fatalf("got = %+v", got)
	}
}
