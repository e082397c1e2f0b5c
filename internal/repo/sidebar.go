package repo

import (
	"context"
	"encoding/json"

	"github.com/prose-im/prose-core-go/internal/store"
)

// SidebarItem is a single entry in the user-visible conversation list
// (spec §3 "Sidebar items").
type SidebarItem struct {
	RoomJID    string       `json:"room_jid"`
	Name       string       `json:"name"`
	Type       BookmarkType `json:"type"`
	IsFavorite bool         `json:"is_favorite"`
}

type SidebarRepo struct {
	db *store.Database
}

func NewSidebarRepo(db *store.Database) *SidebarRepo {
	return &SidebarRepo{db: db}
}

func (r *SidebarRepo) All(ctx context.Context) ([]SidebarItem, error) {
	var out []SidebarItem
	err := r.db.View(ctx, []string{CollectionSidebar}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionSidebar)
		if err != nil {
			return err
		}
		values, err := c.GetAll(store.All(), store.Forward, 0)
		if err != nil {
			return err
		}
		for _, v := range values {
			var item SidebarItem
			if err := json.Unmarshal(v, &item); err != nil {
				return err
			}
			out = append(out, item)
		}
		return nil
	})
	return out, err
}

func (r *SidebarRepo) Get(ctx context.Context, roomJID string) (*SidebarItem, bool, error) {
	var out *SidebarItem
	err := r.db.View(ctx, []string{CollectionSidebar}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionSidebar)
		if err != nil {
			return err
		}
		raw, ok, err := c.Get(roomJID)
		if err != nil || !ok {
			return err
		}
		var item SidebarItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return err
		}
		out = &item
		return nil
	})
	return out, out != nil, err
}

func (r *SidebarRepo) Save(ctx context.Context, item SidebarItem) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return r.db.Update(ctx, []string{CollectionSidebar}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionSidebar)
		if err != nil {
			return err
		}
		return c.Put(item.RoomJID, raw)
	})
}

func (r *SidebarRepo) Delete(ctx context.Context, roomJID string) error {
	return r.db.Update(ctx, []string{CollectionSidebar}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionSidebar)
		if err != nil {
			return err
		}
		return c.Delete(roomJID)
	})
}
