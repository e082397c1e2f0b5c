package repo

import (
	"context"
	"testing"
)

func TestBookmarkRepoSaveGetDelete(t *testing.T) {
	ctx := context.Background()
	r := NewBookmarkRepo(testDB(t))

	b := Bookmark{JID: "team@conf.example.com", Name: "Team", Type: BookmarkPublicChannel, InSidebar: true}
	if err := r.Save(ctx, b); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := r.Get(ctx, b.JID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || got.Name != "Team" || got.Type != BookmarkPublicChannel {
		t.Fatalf("Get() = %+v, ok=%v", got, ok)
	}

	all, err := r.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("All() = %v, want 1 entry", all)
	}

	if err := r.Delete(ctx, b.JID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := r.Get(ctx, b.JID); err != nil || ok {
		t.Fatalf("Get() after delete: ok=%v err=%v", ok, err)
	}
}

func TestBookmarkRepoGetMissingReturnsNotOK(t *testing.T) {
	ctx := context.Background()
	r := NewBookmarkRepo(testDB(t))
	if _, ok, err := r.Get(ctx, "nobody@example.com"); err != nil || ok {
		t.Fatalf("Get() = ok=%v err=%v, want not found", ok, err)
	}
}

func TestBookmarkRepoSaveOverwritesExisting(t *testing.T) {
	ctx := context.Background()
	r := NewBookmarkRepo(testDB(t))

	jid := "alice@example.com"
	if err := r.Save(ctx, Bookmark{JID: jid, Name: "Alice"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := r.Save(ctx, Bookmark{JID: jid, Name: "Alice Renamed", IsFavorite: true}); err != nil {
		t.Fatalf("Save (overwrite): %v", err)
	}

	got, ok, err := r.Get(ctx, jid)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Name != "Alice Renamed" || !got.IsFavorite {
		t.Fatalf("Get() = %+v, want overwritten record", got)
	}
}
