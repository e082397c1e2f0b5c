package room

import "testing"

func TestRegistryInsertConflictAgainstLiveRoomReturnsExisting(t *testing.T) {
	reg := NewRegistry()
	live := &Room{JID: "room@conf.example.com", Type: TypeGroup, Participants: map[string]*Participant{}}
	reg.Set(live.JID, live)

	candidate := NewPendingRoom(live.JID, "nick")
	got, err := reg.Insert(live.JID, candidate)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got != live {
		t.Fatalf("Insert() = %v, want the existing live room", got)
	}
	if stored, _ := reg.Get(live.JID); stored != live {
		t.Fatal("expected the live room to remain in place, not be overwritten")
	}
}

func TestRegistryInsertConflictAgainstPendingRoomErrors(t *testing.T) {
	reg := NewRegistry()
	first := NewPendingRoom("room@conf.example.com", "nick")
	if _, err := reg.Insert(first.JID, first); err != nil {
		t.Fatalf("Insert (first): %v", err)
	}

	second := NewPendingRoom("room@conf.example.com", "nick")
	got, err := reg.Insert(second.JID, second)
	if got != nil {
		t.Fatalf("Insert() = %v, want nil on conflict", got)
	}
	var rerr *Error
	if !asRoomError(err, &rerr) || rerr.Kind != ErrRoomIsAlreadyConnected {
		t.Fatalf("Insert() err = %v, want ErrRoomIsAlreadyConnected", err)
	}
}

func TestRegistryInsertNoConflictStoresAndReturnsTheNewRoom(t *testing.T) {
	reg := NewRegistry()
	r := NewPendingRoom("room@conf.example.com", "nick")
	got, err := reg.Insert(r.JID, r)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got != r {
		t.Fatalf("Insert() = %v, want the inserted room", got)
	}
}
