package repo

import (
	"context"
	"testing"
)

func TestSidebarRepoSaveGetDelete(t *testing.T) {
	ctx := context.Background()
	r := NewSidebarRepo(testDB(t))

	item := SidebarItem{RoomJID: "team@conf.example.com", Name: "Team", Type: BookmarkPublicChannel}
	if err := r.Save(ctx, item); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := r.Get(ctx, item.RoomJID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || got.Name != "Team" {
		t.Fatalf("Get() = %+v, ok=%v", got, ok)
	}

	if err := r.Delete(ctx, item.RoomJID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := r.Get(ctx, item.RoomJID); err != nil || ok {
		t.Fatalf("Get() after delete: ok=%v err=%v", ok, err)
	}
}

func TestSidebarRepoAllReturnsEveryItem(t *testing.T) {
	ctx := context.Background()
	r := NewSidebarRepo(testDB(t))

	items := []SidebarItem{
		{RoomJID: "a@conf.example.com", Name: "A"},
		{RoomJID: "b@conf.example.com", Name: "B", IsFavorite: true},
	}
	for _, item := range items {
		if err := r.Save(ctx, item); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	all, err := r.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != len(items) {
		t.Fatalf("All() returned %d items, want %d", len(all), len(items))
	}
}
