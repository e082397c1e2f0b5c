package client

import (
	"testing"

	"github.com/prose-im/prose-core-go/internal/room"
)

func TestEnsureLiveRejectsPendingRoom(t *testing.T) {
	r := room.NewPendingRoom("room@conf.example.com", "nick")
	h := &RoomHandle{room: r}

	err := h.ensureLive()
	if err == nil {
		t.Fatal("expected ensureLive to reject a pending room")
	}
	re, ok := err.(*room.Error)
	if !ok || re.Kind != room.ErrRoomPending {
		t.Fatalf("ensureLive() err = %v, want *room.Error{Kind: ErrRoomPending}", err)
	}
}

func TestEnsureLiveAllowsLiveRoom(t *testing.T) {
	r := room.NewPendingRoom("room@conf.example.com", "nick")
	r.SetType(room.TypeGroup)
	h := &RoomHandle{room: r}

	if err := h.ensureLive(); err != nil {
		t.Fatalf("ensureLive() = %v, want nil for a live room", err)
	}
}

func TestComposingParticipantsFiltersByTTL(t *testing.T) {
	r := room.NewPendingRoom("room@conf.example.com", "nick")
	r.SetType(room.TypeGroup)
	r.SetComposing("room@conf.example.com/juliet", true)
	r.SetComposing("room@conf.example.com/romeo", false)
	h := &RoomHandle{room: r}

	got := h.ComposingParticipants()
	if len(got) != 1 || got[0] != "room@conf.example.com/juliet" {
		t.Fatalf("ComposingParticipants() = %v, want [room@conf.example.com/juliet]", got)
	}
}
