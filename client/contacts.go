package client

import (
	"context"

	"github.com/prose-im/prose-core-go/internal/repo"
)

// Contacts returns every cached roster entry.
func (c *Client) Contacts(ctx context.Context) ([]repo.UserInfo, error) {
	return c.users.All(ctx)
}

// Contact returns a single cached roster entry.
func (c *Client) Contact(ctx context.Context, jidStr string) (*repo.UserInfo, bool, error) {
	return c.users.Get(ctx, jidStr)
}

// AddContact adds or updates a roster item and sends a presence
// subscription request, mirroring the two-step add-then-subscribe flow a
// user expects from "add contact".
func (c *Client) AddContact(ctx context.Context, jidStr, name string, groups []string) error {
	if err := c.roster.Add(ctx, jidStr, name, groups); err != nil {
		return newErr(ErrRequestError, err)
	}
	return c.presence.Subscribe(ctx, jidStr)
}

// RemoveContact deletes a roster item.
func (c *Client) RemoveContact(ctx context.Context, jidStr string) error {
	if err := c.roster.Remove(ctx, jidStr); err != nil {
		return newErr(ErrRequestError, err)
	}
	return nil
}

// ApproveSubscription answers an inbound presence-subscription request
// affirmatively.
func (c *Client) ApproveSubscription(ctx context.Context, jidStr string) error {
	return c.presence.Approve(ctx, jidStr)
}

// DenySubscription answers an inbound presence-subscription request
// negatively.
func (c *Client) DenySubscription(ctx context.Context, jidStr string) error {
	return c.presence.Deny(ctx, jidStr)
}

// BlockedJIDs returns the cached block list.
func (c *Client) BlockedJIDs(ctx context.Context) ([]string, error) {
	return c.blocked.All(ctx)
}

// Block adds jidStr to the server-side block list.
func (c *Client) Block(ctx context.Context, jidStr string) error {
	return c.blocklist.Block(ctx, jidStr)
}

// Unblock removes jidStr from the server-side block list.
func (c *Client) Unblock(ctx context.Context, jidStr string) error {
	return c.blocklist.Unblock(ctx, jidStr)
}

// UnblockAll clears the server-side block list.
func (c *Client) UnblockAll(ctx context.Context) error {
	return c.blocklist.Clear(ctx)
}
