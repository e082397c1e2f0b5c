package repo

import (
	"context"
	"encoding/json"

	"github.com/prose-im/prose-core-go/internal/store"
)

// BookmarkType mirrors a room's classified type (spec §3 "Bookmark").
type BookmarkType string

const (
	BookmarkDirectMessage   BookmarkType = "direct-message"
	BookmarkGroup           BookmarkType = "group"
	BookmarkPrivateChannel  BookmarkType = "private-channel"
	BookmarkPublicChannel   BookmarkType = "public-channel"
	BookmarkGeneric         BookmarkType = "generic"
)

// Bookmark is the persistent server-side sidebar record. It is read from
// either a native urn:xmpp:bookmarks:1 item or a legacy storage:bookmarks
// entry, and always published as a native item.
type Bookmark struct {
	JID        string       `json:"jid"`
	Name       string       `json:"name"`
	Type       BookmarkType `json:"type"`
	IsFavorite bool         `json:"is_favorite"`
	InSidebar  bool         `json:"in_sidebar"`
}

type BookmarkRepo struct {
	db *store.Database
}

func NewBookmarkRepo(db *store.Database) *BookmarkRepo {
	return &BookmarkRepo{db: db}
}

func (r *BookmarkRepo) All(ctx context.Context) ([]Bookmark, error) {
	var out []Bookmark
	err := r.db.View(ctx, []string{CollectionBookmarks}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionBookmarks)
		if err != nil {
			return err
		}
		values, err := c.GetAll(store.All(), store.Forward, 0)
		if err != nil {
			return err
		}
		for _, v := range values {
			var b Bookmark
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			out = append(out, b)
		}
		return nil
	})
	return out, err
}

func (r *BookmarkRepo) Get(ctx context.Context, jid string) (*Bookmark, bool, error) {
	var out *Bookmark
	err := r.db.View(ctx, []string{CollectionBookmarks}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionBookmarks)
		if err != nil {
			return err
		}
		raw, ok, err := c.Get(jid)
		if err != nil || !ok {
			return err
		}
		var b Bookmark
		if err := json.Unmarshal(raw, &b); err != nil {
			return err
		}
		out = &b
		return nil
	})
	return out, out != nil, err
}

func (r *BookmarkRepo) Save(ctx context.Context, b Bookmark) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return r.db.Update(ctx, []string{CollectionBookmarks}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionBookmarks)
		if err != nil {
			return err
		}
		return c.Put(b.JID, raw)
	})
}

func (r *BookmarkRepo) Delete(ctx context.Context, jid string) error {
	return r.db.Update(ctx, []string{CollectionBookmarks}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionBookmarks)
		if err != nil {
			return err
		}
		return c.Delete(jid)
	})
}
