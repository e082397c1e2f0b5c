// Package sidebar implements the sidebar coordinator: the single
// authority keeping the connected-rooms registry, the local sidebar-item
// cache, and the server-side bookmark list consistent with one another
// (spec §4.4).
package sidebar

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/room"
)

// Coordinator owns extend-from-bookmarks, item insertion/removal,
// renaming, favoriting, and the room-lifecycle event handlers listed in
// spec §4.4's "Core operations".
type Coordinator struct {
	sidebar   *repo.SidebarRepo
	bookmarks *repo.BookmarkRepo
	rooms     *room.Engine
	log       zerolog.Logger

	onChanged func()
}

func New(sidebarRepo *repo.SidebarRepo, bookmarkRepo *repo.BookmarkRepo, rooms *room.Engine, onChanged func(), log zerolog.Logger) *Coordinator {
	return &Coordinator{
		sidebar: sidebarRepo, bookmarks: bookmarkRepo, rooms: rooms,
		onChanged: onChanged, log: log.With().Str("component", "sidebar").Logger(),
	}
}

func bookmarkTypeOf(t room.Type) repo.BookmarkType {
	switch t {
	case room.TypeDirectMessage:
		return repo.BookmarkDirectMessage
	case room.TypeGroup:
		return repo.BookmarkGroup
	case room.TypePrivateChannel:
		return repo.BookmarkPrivateChannel
	case room.TypePublicChannel:
		return repo.BookmarkPublicChannel
	default:
		return repo.BookmarkGeneric
	}
}

// leavesBookmarkOnRemoval reports whether removing a sidebar item of this
// type keeps a bookmark around with in_sidebar = false (spec §4.4 "remove
// items" type rules: direct messages and public channels delete the
// bookmark outright; groups and private channels retain it).
func leavesBookmarkOnRemoval(t repo.BookmarkType) bool {
	return t == repo.BookmarkGroup || t == repo.BookmarkPrivateChannel
}

// exitsServerRoomOnRemoval reports whether removal should also leave the
// server-side MUC (public/private channels only; direct messages and
// groups are never exited per spec §4.4).
func exitsServerRoomOnRemoval(t repo.BookmarkType) bool {
	return t == repo.BookmarkPublicChannel || t == repo.BookmarkPrivateChannel
}

func (c *Coordinator) notify() {
	if c.onChanged != nil {
		c.onChanged()
	}
}

// ExtendFromBookmarks reconciles the sidebar against a freshly-fetched
// bookmark list: join+insert every in_sidebar bookmark not yet connected,
// drop sidebar items for bookmarks that have gone in_sidebar = false
// (spec §4.4 "extend from bookmarks").
func (c *Coordinator) ExtendFromBookmarks(ctx context.Context, bookmarks []repo.Bookmark) error {
	changed := false
	for _, b := range bookmarks {
		if !b.InSidebar {
			if _, ok, _ := c.sidebar.Get(ctx, b.JID); ok {
				if err := c.sidebar.Delete(ctx, b.JID); err != nil {
					return err
				}
				changed = true
			}
			continue
		}

		if _, ok := c.rooms.Registry().Get(b.JID); !ok {
			if _, err := c.rooms.JoinRoom(ctx, b.JID, ""); err != nil {
				c.log.Warn().Err(err).Str("room", b.JID).Msg("failed to join bookmarked room")
				continue
			}
		}
		item := repo.SidebarItem{RoomJID: b.JID, Name: b.Name, Type: b.Type, IsFavorite: b.IsFavorite}
		if err := c.sidebar.Save(ctx, item); err != nil {
			return err
		}
		changed = true
	}
	if changed {
		c.notify()
	}
	return nil
}

// InsertForReceivedMessage creates a sidebar item and an in_sidebar
// bookmark for roomJID if none exists yet (spec §4.4 "insert for received
// message").
func (c *Coordinator) InsertForReceivedMessage(ctx context.Context, roomJID, name string, roomType room.Type) error {
	return c.insertIfAbsent(ctx, roomJID, name, roomType)
}

// InsertForReceivedInvitation is functionally identical to
// InsertForReceivedMessage, kept distinct because spec §4.4 names it as a
// separately-triggered operation (an invite stanza, not a message).
func (c *Coordinator) InsertForReceivedInvitation(ctx context.Context, roomJID, name string, roomType room.Type) error {
	return c.insertIfAbsent(ctx, roomJID, name, roomType)
}

func (c *Coordinator) insertIfAbsent(ctx context.Context, roomJID, name string, roomType room.Type) error {
	if _, ok, _ := c.sidebar.Get(ctx, roomJID); ok {
		return nil
	}
	bt := bookmarkTypeOf(roomType)
	if err := c.sidebar.Save(ctx, repo.SidebarItem{RoomJID: roomJID, Name: name, Type: bt}); err != nil {
		return err
	}
	if err := c.bookmarks.Save(ctx, repo.Bookmark{JID: roomJID, Name: name, Type: bt, InSidebar: true}); err != nil {
		return err
	}
	c.notify()
	return nil
}

// RemoveItems deletes the sidebar items for ids, adjusting or deleting
// each bookmark per the type rules, and exits the server-side room for
// public/private channels (spec §4.4 "remove items").
func (c *Coordinator) RemoveItems(ctx context.Context, ids []string) error {
	for _, roomJID := range ids {
		item, ok, err := c.sidebar.Get(ctx, roomJID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := c.sidebar.Delete(ctx, roomJID); err != nil {
			return err
		}

		if leavesBookmarkOnRemoval(item.Type) {
			if b, ok, err := c.bookmarks.Get(ctx, roomJID); err == nil && ok {
				b.InSidebar = false
				b.IsFavorite = false
				if err := c.bookmarks.Save(ctx, *b); err != nil {
					return err
				}
			}
		} else {
			if err := c.bookmarks.Delete(ctx, roomJID); err != nil {
				return err
			}
		}

		if exitsServerRoomOnRemoval(item.Type) {
			if err := c.rooms.Destroy(ctx, roomJID, ""); err != nil {
				c.log.Warn().Err(err).Str("room", roomJID).Msg("failed to exit room on sidebar removal")
			}
		}
	}
	c.notify()
	return nil
}

// RenameItem delegates to the room lifecycle engine for reconfiguration,
// then mirrors the new name into the bookmark and sidebar item (spec §4.4
// "rename item").
func (c *Coordinator) RenameItem(ctx context.Context, roomJID, name, service string) error {
	r, err := c.rooms.Rename(ctx, roomJID, name, service)
	if err != nil {
		return err
	}
	if item, ok, err := c.sidebar.Get(ctx, roomJID); err == nil && ok {
		item.Name = name
		item.Type = bookmarkTypeOf(r.GetType())
		if err := c.sidebar.Save(ctx, *item); err != nil {
			return err
		}
	}
	if b, ok, err := c.bookmarks.Get(ctx, roomJID); err == nil && ok {
		b.Name = name
		if err := c.bookmarks.Save(ctx, *b); err != nil {
			return err
		}
	}
	c.notify()
	return nil
}

// ToggleFavorite flips is_favorite in both the sidebar item and the
// bookmark (spec §4.4 "toggle favorite").
func (c *Coordinator) ToggleFavorite(ctx context.Context, roomJID string) error {
	item, ok, err := c.sidebar.Get(ctx, roomJID)
	if err != nil || !ok {
		return err
	}
	item.IsFavorite = !item.IsFavorite
	if err := c.sidebar.Save(ctx, *item); err != nil {
		return err
	}
	if b, ok, err := c.bookmarks.Get(ctx, roomJID); err == nil && ok {
		b.IsFavorite = item.IsFavorite
		if err := c.bookmarks.Save(ctx, *b); err != nil {
			return err
		}
	}
	c.notify()
	return nil
}

// HandleDestroyedRoom deletes the sidebar item, connected-room entry, and
// bookmark for roomJID; if alternateJID is non-empty, joins and inserts
// it as the room's replacement (spec §4.4 "handle destroyed room").
func (c *Coordinator) HandleDestroyedRoom(ctx context.Context, roomJID, alternateJID string) error {
	_ = c.sidebar.Delete(ctx, roomJID)
	_ = c.bookmarks.Delete(ctx, roomJID)
	c.rooms.Registry().Delete(roomJID)

	if alternateJID != "" {
		r, err := c.rooms.JoinRoom(ctx, alternateJID, "")
		if err != nil {
			c.log.Warn().Err(err).Str("room", alternateJID).Msg("failed to join alternate room")
		} else {
			if err := c.insertIfAbsent(ctx, alternateJID, r.GetName(), r.GetType()); err != nil {
				return err
			}
		}
	}
	c.notify()
	return nil
}

// HandleRemovalFromRoom drops the connected-room entry; when permanent,
// also deletes the bookmark and sidebar item (spec §4.4 "handle removal
// from room").
func (c *Coordinator) HandleRemovalFromRoom(ctx context.Context, roomJID string, permanent bool) error {
	c.rooms.Registry().Delete(roomJID)
	if permanent {
		_ = c.sidebar.Delete(ctx, roomJID)
		_ = c.bookmarks.Delete(ctx, roomJID)
	}
	c.notify()
	return nil
}

// HandleChangedRoomConfig re-evaluates the room's type via the room
// lifecycle engine and mirrors the new type/name into the sidebar item
// and bookmark (spec §4.4 "handle changed room config").
func (c *Coordinator) HandleChangedRoomConfig(ctx context.Context, roomJID string) error {
	r, err := c.rooms.Reevaluate(ctx, roomJID)
	if err != nil {
		return err
	}
	bt := bookmarkTypeOf(r.GetType())
	if item, ok, err := c.sidebar.Get(ctx, roomJID); err == nil && ok {
		item.Type = bt
		item.Name = r.GetName()
		if err := c.sidebar.Save(ctx, *item); err != nil {
			return err
		}
	}
	if b, ok, err := c.bookmarks.Get(ctx, roomJID); err == nil && ok {
		b.Type = bt
		b.Name = r.GetName()
		if err := c.bookmarks.Save(ctx, *b); err != nil {
			return err
		}
	}
	c.notify()
	return nil
}
