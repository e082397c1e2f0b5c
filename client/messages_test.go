package client

import (
	"testing"

	"github.com/prose-im/prose-core-go/internal/repo"
)

func TestMaterializeConversationFoldsTargetingDeltasOntoBases(t *testing.T) {
	deltas := []repo.MessageDelta{
		{StanzaID: "s1", Payload: repo.PayloadBody, Body: "hi", TimestampMs: 1},
		{StanzaID: "s2", Payload: repo.PayloadBody, Body: "there", TimestampMs: 2},
		{TargetID: "s1", Payload: repo.PayloadCorrection, Body: "hi there", TimestampMs: 3},
		{TargetID: "s2", Payload: repo.PayloadRetraction, TimestampMs: 4},
	}

	got := materializeConversation(deltas)
	if len(got) != 2 {
		t.Fatalf("materializeConversation() returned %d messages, want 2", len(got))
	}

	byID := map[string]repo.MaterializedMessage{}
	for _, m := range got {
		byID[m.StanzaID] = m
	}

	if m := byID["s1"]; m.Body != "hi there" || !m.Edited {
		t.Fatalf("s1 = %+v, want corrected body and Edited=true", m)
	}
	if m := byID["s2"]; !m.Retracted || m.Body != "" {
		t.Fatalf("s2 = %+v, want Retracted=true and empty body", m)
	}
}

func TestMaterializeConversationIgnoresDeltasWithNoMatchingBase(t *testing.T) {
	deltas := []repo.MessageDelta{
		{TargetID: "missing", Payload: repo.PayloadCorrection, Body: "orphaned"},
	}
	if got := materializeConversation(deltas); len(got) != 0 {
		t.Fatalf("materializeConversation() = %v, want no messages", got)
	}
}

func TestToggleAddsMissingEmoji(t *testing.T) {
	got := toggle([]string{"👍"}, "🎉")
	want := []string{"👍", "🎉"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("toggle() = %v, want %v", got, want)
	}
}

func TestToggleRemovesPresentEmoji(t *testing.T) {
	got := toggle([]string{"👍", "🎉"}, "👍")
	if len(got) != 1 || got[0] != "🎉" {
		t.Fatalf("toggle() = %v, want [🎉]", got)
	}
}

func TestToggleOnEmptySetAdds(t *testing.T) {
	got := toggle(nil, "👍")
	if len(got) != 1 || got[0] != "👍" {
		t.Fatalf("toggle() = %v, want [👍]", got)
	}
}
