package room

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/jid"
	"github.com/prose-im/prose-core-go/internal/xmpp/modules"
	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
	"github.com/prose-im/prose-core-go/internal/xmpp/transport"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	mem := transport.NewMemory()
	rt := runtime.New(mem, zerolog.Nop(), nil)
	if err := rt.Connect(context.Background(), jid.MustParse("romeo@example.com"), transport.Credential{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	disco := modules.NewDisco(rt, nil, nil)
	return NewEngine(rt, disco, NewRegistry(), jid.MustParse("romeo@example.com"), zerolog.Nop())
}

func TestEngineSetComposingUpdatesConnectedRoomParticipant(t *testing.T) {
	e := newTestEngine(t)
	r := NewPendingRoom("room@conf.example.com", "nick")
	r.SetType(TypeGroup)
	e.Registry().Set(r.JID, r)

	if ok := e.SetComposing(r.JID, "room@conf.example.com/juliet", stanza.ChatStateComposing); !ok {
		t.Fatal("expected SetComposing to find the connected room")
	}

	snap := r.Snapshot()
	p, ok := snap.Participants["room@conf.example.com/juliet"]
	if !ok || !p.Composing || p.ComposingAt == 0 {
		t.Fatalf("Participants[juliet] = %+v, ok=%v", p, ok)
	}

	if ok := e.SetComposing(r.JID, "room@conf.example.com/juliet", stanza.ChatStateActive); !ok {
		t.Fatal("expected SetComposing to find the connected room")
	}
	snap = r.Snapshot()
	if snap.Participants["room@conf.example.com/juliet"].Composing {
		t.Fatal("expected the active state to clear Composing")
	}
}

func TestEngineSetComposingReportsFalseForUnknownRoom(t *testing.T) {
	e := newTestEngine(t)
	if ok := e.SetComposing("nobody@conf.example.com", "a@b.com/c", stanza.ChatStateComposing); ok {
		t.Fatal("expected SetComposing to report false for an unconnected room")
	}
}
