package sidebar

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/jid"
	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/room"
	"github.com/prose-im/prose-core-go/internal/store"
	"github.com/prose-im/prose-core-go/internal/xmpp/modules"
	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/transport"
)

func newTestCoordinator(t *testing.T, onChanged func()) (*Coordinator, *repo.SidebarRepo, *repo.BookmarkRepo, *room.Engine) {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:", repo.SchemaVersion, repo.CollectionSpecs(), zerolog.Nop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	sidebarRepo := repo.NewSidebarRepo(db)
	bookmarkRepo := repo.NewBookmarkRepo(db)

	mem := transport.NewMemory()
	rt := runtime.New(mem, zerolog.Nop(), nil)
	if err := rt.Connect(context.Background(), jid.MustParse("romeo@example.com"), transport.Credential{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	disco := modules.NewDisco(rt, nil, nil)
	registry := room.NewRegistry()
	engine := room.NewEngine(rt, disco, registry, jid.MustParse("romeo@example.com"), zerolog.Nop())

	c := New(sidebarRepo, bookmarkRepo, engine, onChanged, zerolog.Nop())
	return c, sidebarRepo, bookmarkRepo, engine
}

func TestInsertForReceivedMessageCreatesSidebarItemAndBookmark(t *testing.T) {
	var notified int
	c, sidebarRepo, bookmarkRepo, _ := newTestCoordinator(t, func() { notified++ })
	ctx := context.Background()

	if err := c.InsertForReceivedMessage(ctx, "team@conf.example.com", "Team", room.TypePublicChannel); err != nil {
		t.Fatalf("InsertForReceivedMessage: %v", err)
	}
	if notified != 1 {
		t.Fatalf("notified = %d, want 1", notified)
	}

	item, ok, err := sidebarRepo.Get(ctx, "team@conf.example.com")
	if err != nil || !ok {
		t.Fatalf("sidebar Get: ok=%v err=%v", ok, err)
	}
	if item.Name != "Team" || item.Type != repo.BookmarkPublicChannel {
		t.Fatalf("sidebar item = %+v", item)
	}

	b, ok, err := bookmarkRepo.Get(ctx, "team@conf.example.com")
	if err != nil || !ok {
		t.Fatalf("bookmark Get: ok=%v err=%v", ok, err)
	}
	if !b.InSidebar {
		t.Fatalf("bookmark = %+v, want InSidebar=true", b)
	}
}

func TestInsertForReceivedMessageIsIdempotent(t *testing.T) {
	c, sidebarRepo, _, _ := newTestCoordinator(t, nil)
	ctx := context.Background()

	if err := c.InsertForReceivedMessage(ctx, "team@conf.example.com", "Team", room.TypeGroup); err != nil {
		t.Fatalf("InsertForReceivedMessage (first): %v", err)
	}
	if err := c.InsertForReceivedMessage(ctx, "team@conf.example.com", "Renamed", room.TypeGroup); err != nil {
		t.Fatalf("InsertForReceivedMessage (second): %v", err)
	}

	item, ok, err := sidebarRepo.Get(ctx, "team@conf.example.com")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if item.Name != "Team" {
		t.Fatalf("item.Name = %q, want original name to be kept", item.Name)
	}
}

func TestToggleFavoriteFlipsBothSidebarAndBookmark(t *testing.T) {
	c, sidebarRepo, bookmarkRepo, _ := newTestCoordinator(t, nil)
	ctx := context.Background()
	if err := c.InsertForReceivedMessage(ctx, "team@conf.example.com", "Team", room.TypeGroup); err != nil {
		t.Fatalf("InsertForReceivedMessage: %v", err)
	}

	if err := c.ToggleFavorite(ctx, "team@conf.example.com"); err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}

	item, _, err := sidebarRepo.Get(ctx, "team@conf.example.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !item.IsFavorite {
		t.Fatal("expected sidebar item to become a favorite")
	}
	b, _, err := bookmarkRepo.Get(ctx, "team@conf.example.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !b.IsFavorite {
		t.Fatal("expected bookmark to become a favorite")
	}
}

func TestRemoveItemsRetainsBookmarkForGroupsAndPrivateChannels(t *testing.T) {
	c, sidebarRepo, bookmarkRepo, _ := newTestCoordinator(t, nil)
	ctx := context.Background()
	if err := c.InsertForReceivedMessage(ctx, "group@conf.example.com", "Group", room.TypeGroup); err != nil {
		t.Fatalf("InsertForReceivedMessage: %v", err)
	}

	if err := c.RemoveItems(ctx, []string{"group@conf.example.com"}); err != nil {
		t.Fatalf("RemoveItems: %v", err)
	}

	if _, ok, _ := sidebarRepo.Get(ctx, "group@conf.example.com"); ok {
		t.Fatal("expected sidebar item to be removed")
	}
	b, ok, err := bookmarkRepo.Get(ctx, "group@conf.example.com")
	if err != nil || !ok {
		t.Fatalf("expected bookmark to be retained: ok=%v err=%v", ok, err)
	}
	if b.InSidebar {
		t.Fatal("expected retained bookmark to have InSidebar=false")
	}
}

func TestRemoveItemsDeletesBookmarkForDirectMessages(t *testing.T) {
	c, sidebarRepo, bookmarkRepo, _ := newTestCoordinator(t, nil)
	ctx := context.Background()
	if err := c.InsertForReceivedMessage(ctx, "juliet@example.com", "Juliet", room.TypeDirectMessage); err != nil {
		t.Fatalf("InsertForReceivedMessage: %v", err)
	}

	if err := c.RemoveItems(ctx, []string{"juliet@example.com"}); err != nil {
		t.Fatalf("RemoveItems: %v", err)
	}

	if _, ok, _ := sidebarRepo.Get(ctx, "juliet@example.com"); ok {
		t.Fatal("expected sidebar item to be removed")
	}
	if _, ok, _ := bookmarkRepo.Get(ctx, "juliet@example.com"); ok {
		t.Fatal("expected bookmark to be deleted outright for a direct message")
	}
}

func TestHandleRemovalFromRoomNonPermanentKeepsSidebarEntry(t *testing.T) {
	c, sidebarRepo, _, engine := newTestCoordinator(t, nil)
	ctx := context.Background()
	if err := c.InsertForReceivedMessage(ctx, "group@conf.example.com", "Group", room.TypeGroup); err != nil {
		t.Fatalf("InsertForReceivedMessage: %v", err)
	}
	engine.Registry().Set("group@conf.example.com", room.NewPendingRoom("group@conf.example.com", "nick"))

	if err := c.HandleRemovalFromRoom(ctx, "group@conf.example.com", false); err != nil {
		t.Fatalf("HandleRemovalFromRoom: %v", err)
	}

	if _, ok := engine.Registry().Get("group@conf.example.com"); ok {
		t.Fatal("expected connected-room entry to be dropped")
	}
	if _, ok, _ := sidebarRepo.Get(ctx, "group@conf.example.com"); !ok {
		t.Fatal("expected sidebar item to survive a non-permanent removal")
	}
}

func TestHandleRemovalFromRoomPermanentDeletesEverything(t *testing.T) {
	c, sidebarRepo, bookmarkRepo, engine := newTestCoordinator(t, nil)
	ctx := context.Background()
	if err := c.InsertForReceivedMessage(ctx, "group@conf.example.com", "Group", room.TypeGroup); err != nil {
		t.Fatalf("InsertForReceivedMessage: %v", err)
	}
	engine.Registry().Set("group@conf.example.com", room.NewPendingRoom("group@conf.example.com", "nick"))

	if err := c.HandleRemovalFromRoom(ctx, "group@conf.example.com", true); err != nil {
		t.Fatalf("HandleRemovalFromRoom: %v", err)
	}

	if _, ok, _ := sidebarRepo.Get(ctx, "group@conf.example.com"); ok {
		t.Fatal("expected sidebar item to be deleted on a permanent removal")
	}
	if _, ok, _ := bookmarkRepo.Get(ctx, "group@conf.example.com"); ok {
		t.Fatal("expected bookmark to be deleted on a permanent removal")
	}
}

func TestHandleDestroyedRoomWithoutAlternateCleansUpOnly(t *testing.T) {
	c, sidebarRepo, bookmarkRepo, engine := newTestCoordinator(t, nil)
	ctx := context.Background()
	if err := c.InsertForReceivedMessage(ctx, "group@conf.example.com", "Group", room.TypeGroup); err != nil {
		t.Fatalf("InsertForReceivedMessage: %v", err)
	}
	engine.Registry().Set("group@conf.example.com", room.NewPendingRoom("group@conf.example.com", "nick"))

	if err := c.HandleDestroyedRoom(ctx, "group@conf.example.com", ""); err != nil {
		t.Fatalf("HandleDestroyedRoom: %v", err)
	}

	if _, ok := engine.Registry().Get("group@conf.example.com"); ok {
		t.Fatal("expected connected-room entry to be dropped")
	}
	if _, ok, _ := sidebarRepo.Get(ctx, "group@conf.example.com"); ok {
		t.Fatal("expected sidebar item to be deleted")
	}
	if _, ok, _ := bookmarkRepo.Get(ctx, "group@conf.example.com"); ok {
		t.Fatal("expected bookmark to be deleted")
	}
}
