package modules

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/jid"
	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/store"
	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
	"github.com/prose-im/prose-core-go/internal/xmpp/transport"
)

func newTestChat(t *testing.T, onMessage func(string)) (*Chat, *transport.Memory, *repo.MessageRepo) {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:", repo.SchemaVersion, repo.CollectionSpecs(), zerolog.Nop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	messages := repo.NewMessageRepo(db)
	mem := transport.NewMemory()
	rt := runtime.New(mem, zerolog.Nop(), nil)
	ctx := context.Background()
	if err := rt.Connect(ctx, jid.MustParse("romeo@example.com"), transport.Credential{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	chat := NewChat(rt, messages, zerolog.Nop(), onMessage)
	rt.Register(chat.Module())
	return chat, mem, messages
}

func TestChatSendMessagePersistsOutboundDelta(t *testing.T) {
	chat, mem, messages := newTestChat(t, nil)
	ctx := context.Background()

	id, err := chat.SendMessage(ctx, "juliet@example.com", stanza.MessageChat, "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(mem.Sent) != 1 {
		t.Fatalf("Sent = %v, want 1 stanza", mem.Sent)
	}

	got, ok, err := messages.ByStanzaID(ctx, id)
	if err != nil || !ok {
		t.Fatalf("ByStanzaID: ok=%v err=%v", ok, err)
	}
	if got.Body != "hello" || got.Payload != repo.PayloadBody {
		t.Fatalf("ByStanzaID() = %+v", got)
	}
}

func TestChatHandleMessageAppendsInboundDeltaAndNotifies(t *testing.T) {
	var notified []string
	chat, mem, messages := newTestChat(t, func(conversation string) { notified = append(notified, conversation) })
	_ = chat

	mem.DeliverStanza(&stanza.Message{From: "juliet@example.com", Type: stanza.MessageChat, Id: "abc", Body: "hi there"})

	if len(notified) != 1 || notified[0] != "juliet@example.com" {
		t.Fatalf("notified = %v", notified)
	}
	got, ok, err := messages.ByStanzaID(context.Background(), "abc")
	if err != nil || !ok {
		t.Fatalf("ByStanzaID: ok=%v err=%v", ok, err)
	}
	if got.Body != "hi there" {
		t.Fatalf("ByStanzaID() = %+v", got)
	}
}

func TestChatHandleMessageIgnoresErrorType(t *testing.T) {
	chat, mem, _ := newTestChat(t, nil)
	_ = chat
	mem.DeliverStanza(&stanza.Message{From: "juliet@example.com", Type: stanza.MessageError, Body: "nope"})
	// No assertion beyond "does not panic": handleMessage's type guard
	// drops stanzas it doesn't recognize as conversational.
}

func TestChatHandleMessageAppendsPlaceholderOnDecryptFailure(t *testing.T) {
	var notified []string
	chat, mem, messages := newTestChat(t, func(conversation string) { notified = append(notified, conversation) })
	chat.SetDecrypt(func(ctx context.Context, fromBareJID string, env *stanza.OMEMOEnvelope) (string, error) {
		return "", errors.New("no matching session")
	})

	env := &stanza.OMEMOEnvelope{Header: stanza.OMEMOHeader{SID: 1, IV: "iv"}, Payload: "ciphertext"}
	mem.DeliverStanza(&stanza.Message{From: "juliet@example.com", Type: stanza.MessageChat, Id: "abc", Encrypted: env})

	if len(notified) != 1 || notified[0] != "juliet@example.com" {
		t.Fatalf("notified = %v", notified)
	}
	got, ok, err := messages.ByStanzaID(context.Background(), "abc")
	if err != nil || !ok {
		t.Fatalf("ByStanzaID: ok=%v err=%v", ok, err)
	}
	if got.Payload != repo.PayloadUndecryptable {
		t.Fatalf("Payload = %v, want %v", got.Payload, repo.PayloadUndecryptable)
	}
	if got.Body == "" {
		t.Fatal("expected a placeholder body")
	}
	if got.EncryptedPayload == "" {
		t.Fatal("expected the raw envelope to be retained for diagnostics")
	}
}

func TestChatHandleMessageInvokesOnChatStateForComposingStanza(t *testing.T) {
	chat, mem, _ := newTestChat(t, nil)
	type event struct {
		conversation, from string
		state              stanza.ChatStateKind
	}
	var got *event
	chat.SetOnChatState(func(conversation, from string, state stanza.ChatStateKind) {
		got = &event{conversation, from, state}
	})

	mem.DeliverStanza(&stanza.Message{From: "juliet@example.com", Type: stanza.MessageChat, ChatState: stanza.ChatStateComposing})

	if got == nil {
		t.Fatal("expected onChatState to be invoked")
	}
	if got.conversation != "juliet@example.com" || got.from != "juliet@example.com" || got.state != stanza.ChatStateComposing {
		t.Fatalf("onChatState call = %+v", got)
	}
}

func TestChatReactReplacesWholeSet(t *testing.T) {
	chat, mem, _ := newTestChat(t, nil)
	ctx := context.Background()
	if err := chat.React(ctx, "room@conf.example.com", "target-1", []string{"👍", "🎉"}); err != nil {
		t.Fatalf("React: %v", err)
	}
	if len(mem.Sent) != 1 {
		t.Fatalf("Sent = %v, want 1 stanza", mem.Sent)
	}
	sent := mem.Sent[0].(*stanza.Message)
	if sent.Reactions == nil || len(sent.Reactions.Reactions) != 2 {
		t.Fatalf("sent.Reactions = %+v", sent.Reactions)
	}
}
