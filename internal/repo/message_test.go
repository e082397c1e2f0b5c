package repo

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/store"
)

func testDB(t *testing.T) *store.Database {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:", SchemaVersion, CollectionSpecs(), zerolog.Nop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return db
}

func TestMessageRepoByStanzaIDUsesIndex(t *testing.T) {
	ctx := context.Background()
	r := NewMessageRepo(testDB(t))

	d := MessageDelta{ID: "m1", StanzaID: "stz-1", Conversation: "room@conf", TimestampMs: 1000, Payload: PayloadBody, Body: "hi"}
	if err := r.Append(ctx, d); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, ok, err := r.ByStanzaID(ctx, "stz-1")
	if err != nil {
		t.Fatalf("ByStanzaID: %v", err)
	}
	if !ok || got.Body != "hi" {
		t.Fatalf("ByStanzaID() = %+v, ok=%v", got, ok)
	}
}

func TestMessageRepoConversationOrdersByTimestamp(t *testing.T) {
	ctx := context.Background()
	r := NewMessageRepo(testDB(t))

	for i, ts := range []int64{3000, 1000, 2000} {
		d := MessageDelta{ID: idFor(i), StanzaID: idFor(i), Conversation: "room@conf", TimestampMs: ts, Payload: PayloadBody, Body: idFor(i)}
		if err := r.Append(ctx, d); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	deltas, err := r.Conversation(ctx, "room@conf", 0, 9999, false, 0)
	if err != nil {
		t.Fatalf("Conversation: %v", err)
	}
	if len(deltas) != 3 {
		t.Fatalf("Conversation() returned %d deltas, want 3", len(deltas))
	}
	for i := 1; i < len(deltas); i++ {
		if deltas[i].TimestampMs < deltas[i-1].TimestampMs {
			t.Fatalf("Conversation() not in ascending timestamp order: %+v", deltas)
		}
	}
}

func TestMaterializeFoldsCorrectionRetractionAndReactions(t *testing.T) {
	base := MessageDelta{ID: "base", StanzaID: "s1", Body: "hello", TimestampMs: 1000}

	corrected := Materialize(base, []MessageDelta{
		{Payload: PayloadCorrection, TargetID: "s1", Body: "hello, world"},
		{Payload: PayloadReactionSet, TargetID: "s1", Reactions: []string{"👍"}},
	})
	if corrected.Body != "hello, world" || !corrected.Edited {
		t.Fatalf("Materialize() = %+v, want corrected body and Edited=true", corrected)
	}
	if len(corrected.Reactions) != 1 || corrected.Reactions[0] != "👍" {
		t.Fatalf("Materialize() reactions = %v", corrected.Reactions)
	}

	retracted := Materialize(base, []MessageDelta{
		{Payload: PayloadRetraction, TargetID: "s1"},
	})
	if !retracted.Retracted || retracted.Body != "" {
		t.Fatalf("Materialize() = %+v, want Retracted=true and empty body", retracted)
	}
}

func TestMaterializeLastReactionSetWins(t *testing.T) {
	base := MessageDelta{ID: "base", StanzaID: "s1", Body: "hi"}
	m := Materialize(base, []MessageDelta{
		{Payload: PayloadReactionSet, TargetID: "s1", Reactions: []string{"👍"}},
		{Payload: PayloadReactionSet, TargetID: "s1", Reactions: []string{"😂", "🎉"}},
	})
	if len(m.Reactions) != 2 || m.Reactions[0] != "😂" {
		t.Fatalf("Materialize() reactions = %v, want the later set to win", m.Reactions)
	}
}

func idFor(i int) string {
	return string(rune('a' + i))
}
