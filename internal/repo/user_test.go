package repo

import (
	"context"
	"testing"
)

func TestUserRepoSaveGetDelete(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepo(testDB(t))

	u := UserInfo{JID: "bob@example.com", Name: "Bob", Subscription: "both", Available: true, Show: "chat"}
	if err := r.Save(ctx, u); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := r.Get(ctx, u.JID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || got.Name != "Bob" || !got.Available {
		t.Fatalf("Get() = %+v, ok=%v", got, ok)
	}

	all, err := r.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("All() = %v, want 1 entry", all)
	}

	if err := r.Delete(ctx, u.JID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := r.Get(ctx, u.JID); err != nil || ok {
		t.Fatalf("Get() after delete: ok=%v err=%v", ok, err)
	}
}

func TestUserRepoGetMissingReturnsNotOK(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepo(testDB(t))
	if _, ok, err := r.Get(ctx, "nobody@example.com"); err != nil || ok {
		t.Fatalf("Get() = ok=%v err=%v, want not found", ok, err)
	}
}
