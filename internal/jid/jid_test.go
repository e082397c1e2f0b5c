package jid

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want JID
	}{
		{"a@host", JID{Node: "a", Domain: "host"}},
		{"A@Host/Resource", JID{Node: "a", Domain: "host", Resource: "Resource"}},
		{"host", JID{Domain: "host"}},
		{"room@chat.host/nick#1", JID{Node: "room", Domain: "chat.host", Resource: "nick#1"}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatal("expected error for empty string")
	}
}

func TestBareAndOccupant(t *testing.T) {
	full := MustParse("alice@host/phone")
	bare := full.Bare()
	if !bare.IsBare() || bare.String() != "alice@host" {
		t.Fatalf("Bare() = %v", bare)
	}

	room := MustParse("team@chat.host")
	occ := Occupant(room, "alice#1")
	if occ.String() != "team@chat.host/alice#1" {
		t.Fatalf("Occupant() = %v", occ)
	}
	if occ.Nickname() != "alice#1" {
		t.Fatalf("Nickname() = %v", occ.Nickname())
	}
}

func TestEqualCaseNormalization(t *testing.T) {
	a := MustParse("Alice@Host")
	b := MustParse("alice@host")
	if !a.Equal(b) {
		t.Fatalf("expected case-normalized equality, got %+v != %+v", a, b)
	}
}

func TestRoundTripText(t *testing.T) {
	j := MustParse("bob@example.com/res")
	text, err := j.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var j2 JID
	if err := j2.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if !j.Equal(j2) {
		t.Fatalf("round trip mismatch: %+v != %+v", j, j2)
	}
}
