package client

import (
	"context"

	"github.com/prose-im/prose-core-go/internal/repo"
)

// Profile fetches and caches a peer's (or, with the self bare JID, the
// local account's) vCard4 profile.
func (c *Client) Profile(ctx context.Context, jidStr string) (*repo.Profile, error) {
	return c.profile.Fetch(ctx, jidStr)
}

// SaveProfile publishes and caches the self vCard4 profile.
func (c *Client) SaveProfile(ctx context.Context, p repo.Profile) error {
	return c.profile.Save(ctx, p)
}

// Avatar returns the cached avatar for jidStr, fetching it from the
// server if checksum doesn't match what is already cached.
func (c *Client) Avatar(ctx context.Context, jidStr, checksum string) (*repo.Avatar, error) {
	if cached, ok, err := c.avatars.Get(ctx, jidStr); err != nil {
		return nil, err
	} else if ok && cached.Checksum == checksum {
		return cached, nil
	}
	if err := c.avatar.Fetch(ctx, jidStr, checksum); err != nil {
		return nil, newErr(ErrRequestError, err)
	}
	cached, _, err := c.avatars.Get(ctx, jidStr)
	return cached, err
}

// SaveAvatar publishes a new self avatar.
func (c *Client) SaveAvatar(ctx context.Context, data []byte, mimeType string) error {
	if err := c.avatar.Publish(ctx, data, mimeType); err != nil {
		return newErr(ErrRequestError, err)
	}
	c.emit(Event{Kind: EventAvatarChanged, ID: c.self.Bare().String()})
	return nil
}
