package stanza

import (
	"encoding/xml"
	"testing"
)

// TestMessageRoundTripChatState proves the chat-state marker, which has no
// fixed element name of its own, survives marshal/unmarshal (spec §8
// round-trip law: Parse(serialize(stanza)) = stanza for every stanza the
// core emits).
func TestMessageRoundTripChatState(t *testing.T) {
	in := Message{
		From:      "romeo@example.com/phone",
		To:        "juliet@example.com",
		Type:      MessageChat,
		ChatState: ChatStateComposing,
	}
	raw, err := xml.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out Message
	if err := xml.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v\nraw: %s", err, raw)
	}
	if out.ChatState != ChatStateComposing {
		t.Fatalf("ChatState = %q, want composing (raw: %s)", out.ChatState, raw)
	}
	if out.From != in.From || out.To != in.To || out.Type != in.Type {
		t.Fatalf("attrs mismatch: got %+v", out)
	}
}

func TestMessageRoundTripMarkerAndHints(t *testing.T) {
	in := Message{
		From:    "juliet@example.com",
		To:      "romeo@example.com",
		Type:    MessageChat,
		Markers: &ChatMarker{Kind: "displayed", ID: "stanza-1"},
		Hints:   []MessageHint{{Kind: "store"}},
	}
	raw, err := xml.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out Message
	if err := xml.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v\nraw: %s", err, raw)
	}
	if out.Markers == nil || out.Markers.Kind != "displayed" || out.Markers.ID != "stanza-1" {
		t.Fatalf("Markers = %+v, raw: %s", out.Markers, raw)
	}
	if len(out.Hints) != 1 || out.Hints[0].Kind != "store" {
		t.Fatalf("Hints = %+v, raw: %s", out.Hints, raw)
	}
}

func TestMessageRoundTripBodyAndCorrection(t *testing.T) {
	in := Message{
		From:       "juliet@example.com",
		Type:       MessageChat,
		Body:       "hello there",
		Correction: &Correction{ID: "orig-1"},
		StanzaID:   &StanzaID{ID: "sid-1", By: "example.com"},
	}
	raw, err := xml.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out Message
	if err := xml.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v\nraw: %s", err, raw)
	}
	if out.Body != "hello there" {
		t.Fatalf("Body = %q", out.Body)
	}
	if out.Correction == nil || out.Correction.ID != "orig-1" {
		t.Fatalf("Correction = %+v", out.Correction)
	}
	if out.StanzaID == nil || out.StanzaID.ID != "sid-1" {
		t.Fatalf("StanzaID = %+v", out.StanzaID)
	}
}

func TestIQErrorConditionRoundTrip(t *testing.T) {
	in := IQ{
		Id:   "iq-1",
		Type: IQError,
		Error: &StanzaError{
			Type:      "cancel",
			Condition: CondItemNotFound,
		},
	}
	raw, err := xml.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out IQ
	if err := xml.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v\nraw: %s", err, raw)
	}
	if out.Error == nil || out.Error.Condition != CondItemNotFound {
		t.Fatalf("Error = %+v, raw: %s", out.Error, raw)
	}
}

func TestPresenceRoundTripCapsAndShow(t *testing.T) {
	prio := 5
	in := Presence{
		From:   "romeo@example.com/phone",
		Show:   ShowAway,
		Status: "in a meeting",
		Priority: &prio,
		Caps: &CapsTag{
			Hash: "sha-1",
			Node: "https://prose.org",
			Ver:  "abc123",
		},
	}
	raw, err := xml.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out Presence
	if err := xml.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v\nraw: %s", err, raw)
	}
	if out.Show != ShowAway || out.Status != "in a meeting" {
		t.Fatalf("got %+v", out)
	}
	if out.Priority == nil || *out.Priority != 5 {
		t.Fatalf("Priority = %v", out.Priority)
	}
	if out.Caps == nil || out.Caps.Ver != "abc123" {
		t.Fatalf("Caps = %+v", out.Caps)
	}
}

func TestOMEMOEnvelopeRoundTrip(t *testing.T) {
	in := Message{
		From: "romeo@example.com",
		Type: MessageChat,
		Encrypted: &OMEMOEnvelope{
			Header: OMEMOHeader{
				SID: 1234,
				IV:  "deadbeef",
				Keys: []OMEMOKey{
					{RID: 5678, PreKey: true, Value: "c2Vzc2lvbg=="},
				},
			},
			Payload: "Y2lwaGVydGV4dA==",
		},
	}
	raw, err := xml.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out Message
	if err := xml.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v\nraw: %s", err, raw)
	}
	if out.Encrypted == nil || out.Encrypted.Header.SID != 1234 {
		t.Fatalf("Encrypted = %+v, raw: %s", out.Encrypted, raw)
	}
	if len(out.Encrypted.Header.Keys) != 1 || out.Encrypted.Header.Keys[0].RID != 5678 || !out.Encrypted.Header.Keys[0].PreKey {
		t.Fatalf("Keys = %+v", out.Encrypted.Header.Keys)
	}
}
