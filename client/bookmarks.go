package client

import (
	"context"
	"encoding/xml"

	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// loadBookmarks fetches the sidebar's server-side backing store: the
// native urn:xmpp:bookmarks:1 node if the account has any items there,
// falling back to the legacy storage:bookmarks single item otherwise
// (native/legacy coexistence, since plenty of deployed servers still only
// support the legacy node).
func (c *Client) loadBookmarks(ctx context.Context) ([]repo.Bookmark, error) {
	items, err := c.pubsub.Items(ctx, "", stanza.NSBookmarks, 0)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		return decodeNativeBookmarks(items)
	}

	legacy, err := c.pubsub.Items(ctx, "", stanza.NSBookmarksLegacy, 1)
	if err != nil {
		return nil, err
	}
	if len(legacy) == 0 {
		return nil, nil
	}
	bookmarks, err := decodeLegacyBookmarks(legacy[0])
	if err != nil {
		return nil, err
	}

	// Migrate up: publish every legacy entry as a native item so future
	// reads and pushes only ever need the native node.
	for _, b := range bookmarks {
		if err := c.publishNativeBookmark(ctx, b); err != nil {
			c.log.Warn().Err(err).Str("jid", b.JID).Msg("failed to migrate legacy bookmark to native node")
		}
	}
	return bookmarks, nil
}

func decodeNativeBookmarks(items []stanza.PubSubItem) ([]repo.Bookmark, error) {
	bookmarks := make([]repo.Bookmark, 0, len(items))
	for _, item := range items {
		var conf stanza.BookmarkConference
		if err := xml.Unmarshal(item.Payload, &conf); err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, repo.Bookmark{
			JID: item.ID, Name: conf.Name, Type: repo.BookmarkGeneric,
			InSidebar: true, IsFavorite: conf.Autojoin,
		})
	}
	return bookmarks, nil
}

func decodeLegacyBookmarks(item stanza.PubSubItem) ([]repo.Bookmark, error) {
	var storage stanza.BookmarkStorage
	if err := xml.Unmarshal(item.Payload, &storage); err != nil {
		return nil, err
	}
	bookmarks := make([]repo.Bookmark, 0, len(storage.Conferences))
	for _, conf := range storage.Conferences {
		bookmarks = append(bookmarks, repo.Bookmark{
			JID: conf.JID, Name: conf.Name, Type: repo.BookmarkGeneric,
			InSidebar: true, IsFavorite: conf.Autojoin,
		})
	}
	return bookmarks, nil
}

// publishNativeBookmark always writes through to the native node (spec's
// "always publish native" rule), regardless of which node the account
// was read from.
func (c *Client) publishNativeBookmark(ctx context.Context, b repo.Bookmark) error {
	payload, err := xml.Marshal(stanza.BookmarkConference{Name: b.Name, Autojoin: b.IsFavorite})
	if err != nil {
		return err
	}
	_, err = c.pubsub.Publish(ctx, "", stanza.NSBookmarks, b.JID, payload, nil)
	return err
}

// handleBookmarkPush reconciles an inbound native bookmarks#event
// notification into the sidebar.
func (c *Client) handleBookmarkPush(ctx context.Context, items []stanza.PubSubItem) {
	bookmarks, err := decodeNativeBookmarks(items)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to decode bookmark push")
		return
	}
	if err := c.sidebar.ExtendFromBookmarks(ctx, bookmarks); err != nil {
		c.log.Warn().Err(err).Msg("failed to apply bookmark push to sidebar")
	}
}
