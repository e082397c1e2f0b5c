package client

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/xid"

	"github.com/prose-im/prose-core-go/internal/linkpreview"
	"github.com/prose-im/prose-core-go/internal/markdown"
	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/room"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// StartConversation materializes (or returns the existing) one-to-one
// room for peerJID and mirrors it into the sidebar.
func (c *Client) StartConversation(ctx context.Context, peerJID, displayName string) (*room.Room, error) {
	r, err := c.rooms.JoinDirectMessage(peerJID, displayName)
	if err != nil {
		return nil, wrapRoomErr(err)
	}
	if err := c.sidebar.InsertForReceivedMessage(ctx, r.JID, r.GetName(), r.GetType()); err != nil {
		return nil, err
	}
	return r, nil
}

// CreateGroup creates a group room with participants and mirrors it into
// the sidebar.
func (c *Client) CreateGroup(ctx context.Context, service string, participants, displayNames []string) (*room.Room, error) {
	r, err := c.rooms.CreateGroup(ctx, service, participants, displayNames)
	if err != nil {
		return nil, wrapRoomErr(err)
	}
	return r, c.insertRoomIntoSidebar(ctx, r)
}

// CreatePrivateChannel creates a members-only channel and mirrors it into
// the sidebar.
func (c *Client) CreatePrivateChannel(ctx context.Context, service, name string) (*room.Room, error) {
	r, err := c.rooms.CreatePrivateChannel(ctx, service, name)
	if err != nil {
		return nil, wrapRoomErr(err)
	}
	return r, c.insertRoomIntoSidebar(ctx, r)
}

// CreatePublicChannel creates an open channel and mirrors it into the
// sidebar.
func (c *Client) CreatePublicChannel(ctx context.Context, service, name string) (*room.Room, error) {
	r, err := c.rooms.CreatePublicChannel(ctx, service, name)
	if err != nil {
		return nil, wrapRoomErr(err)
	}
	return r, c.insertRoomIntoSidebar(ctx, r)
}

// JoinRoom joins an existing room and mirrors it into the sidebar.
func (c *Client) JoinRoom(ctx context.Context, roomBareJID, password string) (*room.Room, error) {
	r, err := c.rooms.JoinRoom(ctx, roomBareJID, password)
	if err != nil {
		return nil, wrapRoomErr(err)
	}
	return r, c.insertRoomIntoSidebar(ctx, r)
}

func (c *Client) insertRoomIntoSidebar(ctx context.Context, r *room.Room) error {
	return c.sidebar.InsertForReceivedMessage(ctx, r.JID, r.GetName(), r.GetType())
}

// DestroyRoom issues the server-side destroy (with an optional alternate
// room hint) then removes the sidebar/bookmark entries, joining the
// alternate if given.
func (c *Client) DestroyRoom(ctx context.Context, roomBareJID, alternateJID string) error {
	if err := c.rooms.Destroy(ctx, roomBareJID, alternateJID); err != nil {
		return wrapRoomErr(err)
	}
	return c.sidebar.HandleDestroyedRoom(ctx, roomBareJID, alternateJID)
}

func wrapRoomErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*room.Error); ok {
		return err
	}
	return newErr(ErrRequestError, err)
}

// SidebarItems lists every sidebar entry.
func (c *Client) SidebarItems(ctx context.Context) ([]repo.SidebarItem, error) {
	return c.sidebars.All(ctx)
}

// HandleReceivedInvitation mirrors an inbound room invitation into the
// sidebar (spec §6 "handle received invitation (driven by server event)").
func (c *Client) HandleReceivedInvitation(ctx context.Context, roomJID, name string, roomType room.Type) error {
	return c.sidebar.InsertForReceivedInvitation(ctx, roomJID, name, roomType)
}

// RemoveSidebarItems removes the given sidebar entries, exiting
// public/private channels server-side as appropriate.
func (c *Client) RemoveSidebarItems(ctx context.Context, roomJIDs []string) error {
	return c.sidebar.RemoveItems(ctx, roomJIDs)
}

// RenameSidebarItem renames a room and mirrors the new name into the
// sidebar item and bookmark.
func (c *Client) RenameSidebarItem(ctx context.Context, roomJID, name, service string) error {
	return c.sidebar.RenameItem(ctx, roomJID, name, service)
}

// ToggleSidebarFavorite flips a room's favorite flag.
func (c *Client) ToggleSidebarFavorite(ctx context.Context, roomJID string) error {
	return c.sidebar.ToggleFavorite(ctx, roomJID)
}

// RoomHandle is the per-conversation facade spec §6 calls "room
// operations (via room handle)": every method targets the room the
// handle was obtained for.
type RoomHandle struct {
	c    *Client
	room *room.Room
}

// Room returns a handle for an already-connected room JID.
func (c *Client) Room(roomJID string) (*RoomHandle, error) {
	r, ok := c.rooms.Registry().Get(roomJID)
	if !ok {
		return nil, &room.Error{Kind: room.ErrRoomNotFound, RoomJID: roomJID}
	}
	return &RoomHandle{c: c, room: r}, nil
}

// Snapshot returns a consistent copy of the room's current state.
func (h *RoomHandle) Snapshot() room.Room { return h.room.Snapshot() }

// ComposingParticipants returns the occupant JIDs currently flagged as
// composing within the last composingTTL (spec §9 "Composing indicator
// TTL": the flag is applied at read time, not on a timer).
func (h *RoomHandle) ComposingParticipants() []string {
	snap := h.room.Snapshot()
	composing := make([]string, 0, len(snap.Participants))
	for occupantJID, p := range snap.Participants {
		if p.Composing && DurationSince(p.ComposingAt) < composingTTL {
			composing = append(composing, occupantJID)
		}
	}
	return composing
}

func (h *RoomHandle) messageType() stanza.MessageType {
	switch h.room.GetType() {
	case room.TypeDirectMessage:
		return stanza.MessageChat
	default:
		return stanza.MessageGroupchat
	}
}

// ensureLive rejects user-initiated send operations on a room still
// mid-join (spec §3/§9 "Pending vs. live rooms").
func (h *RoomHandle) ensureLive() error {
	if h.room.GetType() == room.TypePending {
		return &room.Error{Kind: room.ErrRoomPending, RoomJID: h.room.JID}
	}
	return nil
}

func (h *RoomHandle) encryptionEnabled(ctx context.Context) (bool, error) {
	s, err := h.c.settings.Get(ctx)
	if err != nil {
		return false, err
	}
	return s.EncryptionEnabled[h.room.JID], nil
}

// SendMessage sends body, routing through OMEMO when the room has
// encryption enabled and the facade was built with it on.
func (h *RoomHandle) SendMessage(ctx context.Context, body string) (string, error) {
	if err := h.ensureLive(); err != nil {
		return "", err
	}
	enabled, err := h.encryptionEnabled(ctx)
	if err != nil {
		return "", err
	}
	if enabled {
		if h.c.omemo == nil {
			return "", newErr(ErrNoDevices, fmt.Errorf("encryption requested but OMEMO is disabled"))
		}
		env, err := h.c.omemo.Encrypt(ctx, h.recipients(), body)
		if err != nil {
			return "", newErr(ErrNoDevices, err)
		}
		return h.c.chat.SendEncrypted(ctx, h.room.JID, h.messageType(), env, body)
	}
	return h.c.chat.SendMessage(ctx, h.room.JID, h.messageType(), body)
}

func (h *RoomHandle) recipients() []string {
	snap := h.room.Snapshot()
	if snap.Type == room.TypeDirectMessage {
		return []string{snap.JID}
	}
	recipients := make([]string, 0, len(snap.Members))
	for _, m := range snap.Members {
		recipients = append(recipients, m.JID)
	}
	return recipients
}

// UpdateMessage publishes a replacement body for a previously-sent
// message.
func (h *RoomHandle) UpdateMessage(ctx context.Context, targetID, body string) error {
	if err := h.ensureLive(); err != nil {
		return err
	}
	return h.c.chat.Correct(ctx, h.room.JID, targetID, body)
}

// RetractMessage retracts a previously-sent message.
func (h *RoomHandle) RetractMessage(ctx context.Context, targetID string) error {
	if err := h.ensureLive(); err != nil {
		return err
	}
	return h.c.chat.Retract(ctx, h.room.JID, targetID)
}

// ToggleReaction flips emoji in or out of the caller's current reaction
// set on targetID.
func (h *RoomHandle) ToggleReaction(ctx context.Context, targetID, emoji string) error {
	if err := h.ensureLive(); err != nil {
		return err
	}
	current, err := h.c.reactionsFor(ctx, h.room.JID, targetID)
	if err != nil {
		return err
	}
	return h.c.chat.React(ctx, h.room.JID, targetID, toggle(current, emoji))
}

// LoadLatestMessages returns materialized messages since sinceMs (0 for
// the full local log), optionally paging the server archive first.
func (h *RoomHandle) LoadLatestMessages(ctx context.Context, sinceMs int64, fromServer bool, limit int) ([]repo.MaterializedMessage, error) {
	if fromServer {
		rsm := &stanza.RSMSet{Max: limit}
		if _, err := h.c.archive.Page(ctx, h.room.JID, mamFilterForm(h.room.JID), rsm); err != nil {
			return nil, newErr(ErrRequestError, err)
		}
	}
	deltas, err := h.c.messages.Conversation(ctx, h.room.JID, sinceMs, math.MaxInt64, true, limit)
	if err != nil {
		return nil, err
	}
	return materializeConversation(deltas), nil
}

func mamFilterForm(conversation string) *stanza.DataForm {
	return &stanza.DataForm{Type: "submit", Fields: []stanza.FormField{
		{Var: "FORM_TYPE", Values: []string{"urn:xmpp:mam:2"}},
		{Var: "with", Values: []string{conversation}},
	}}
}

// LoadMessagesWithIDs returns the materialized view of each named
// message (by stanza id), skipping any not found locally.
func (h *RoomHandle) LoadMessagesWithIDs(ctx context.Context, stanzaIDs []string) ([]repo.MaterializedMessage, error) {
	deltas, err := h.c.messages.Conversation(ctx, h.room.JID, 0, math.MaxInt64, false, 0)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(stanzaIDs))
	for _, id := range stanzaIDs {
		wanted[id] = true
	}
	targeting := map[string][]repo.MessageDelta{}
	bases := map[string]repo.MessageDelta{}
	for _, d := range deltas {
		if d.Payload == repo.PayloadBody || d.Payload == repo.PayloadUndecryptable {
			if wanted[d.StanzaID] {
				bases[d.StanzaID] = d
			}
			continue
		}
		if d.TargetID != "" {
			targeting[d.TargetID] = append(targeting[d.TargetID], d)
		}
	}
	out := make([]repo.MaterializedMessage, 0, len(stanzaIDs))
	for _, id := range stanzaIDs {
		base, ok := bases[id]
		if !ok {
			continue
		}
		out = append(out, repo.Materialize(base, targeting[id]))
	}
	return out, nil
}

// SetComposingState publishes a composing-indicator update.
func (h *RoomHandle) SetComposingState(ctx context.Context, composing bool) error {
	if err := h.ensureLive(); err != nil {
		return err
	}
	state := stanza.ChatStateActive
	if composing {
		state = stanza.ChatStateComposing
	}
	return h.c.chat.SetChatState(ctx, h.room.JID, h.messageType(), state)
}

// SaveDraft persists an unsent composition for this room.
func (h *RoomHandle) SaveDraft(ctx context.Context, body string) error {
	return h.c.drafts.Save(ctx, repo.Draft{Conversation: h.room.JID, Body: body})
}

// LoadDraft returns the saved composition for this room, if any.
func (h *RoomHandle) LoadDraft(ctx context.Context) (*repo.Draft, bool, error) {
	return h.c.drafts.Get(ctx, h.room.JID)
}

// SetSubject changes the room's MUC subject.
func (h *RoomHandle) SetSubject(ctx context.Context, subject string) error {
	if err := h.ensureLive(); err != nil {
		return err
	}
	return h.c.rt.Send(ctx, &stanza.Message{To: h.room.JID, Id: xid.New().String(), Type: stanza.MessageGroupchat, Subject: subject})
}

// SetEncryptionEnabled toggles OMEMO for this room's outbound messages.
func (h *RoomHandle) SetEncryptionEnabled(ctx context.Context, enabled bool) error {
	s, err := h.c.settings.Get(ctx)
	if err != nil {
		return err
	}
	if s.EncryptionEnabled == nil {
		s.EncryptionEnabled = map[string]bool{}
	}
	s.EncryptionEnabled[h.room.JID] = enabled
	return h.c.settings.Save(ctx, s)
}

// RequestUploadSlot requests an HTTP upload slot for an outbound
// attachment.
func (c *Client) RequestUploadSlot(ctx context.Context, filename string, size int64, contentType string) (*stanza.UploadSlot, error) {
	slot, err := c.upload.RequestSlot(ctx, filename, size, contentType)
	if err != nil {
		return nil, newErr(ErrRequestError, err)
	}
	return slot, nil
}

// RenderMarkdown converts a message body to HTML.
func (c *Client) RenderMarkdown(body string) (string, error) {
	return markdown.RenderHTML(body)
}

// PreviewLink fetches Open Graph metadata for a URL.
func (c *Client) PreviewLink(ctx context.Context, url string) (*linkpreview.Preview, error) {
	p, err := c.previewer.Fetch(ctx, url)
	if err != nil {
		return nil, newErr(ErrRequestError, err)
	}
	return p, nil
}
