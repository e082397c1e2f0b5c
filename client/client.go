// Package client is the embedding application's entire surface onto the
// core: a single Client constructed from a Config, exposing the operation
// families spec §6 names (connection, contacts, profile/avatar, rooms,
// sidebar, room-handle operations, uploads, preview) plus a typed event
// stream. It is the composition root wiring internal/config,
// internal/xmpp/{runtime,transport,modules}, internal/room,
// internal/sidebar, internal/omemo, internal/repo, internal/linkpreview,
// and internal/markdown together, the same role pkg/connector/connector.go
// plays for the teacher's bridge.
package client

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/config"
	"github.com/prose-im/prose-core-go/internal/jid"
	"github.com/prose-im/prose-core-go/internal/linkpreview"
	"github.com/prose-im/prose-core-go/internal/omemo"
	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/room"
	"github.com/prose-im/prose-core-go/internal/sidebar"
	"github.com/prose-im/prose-core-go/internal/store"
	"github.com/prose-im/prose-core-go/internal/xmpp/modules"
	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
	"github.com/prose-im/prose-core-go/internal/xmpp/transport"
)

// capabilityFeatures is the disco#info feature set this client advertises
// on every outbound presence's caps hash (spec §9 "Capability hash").
var capabilityFeatures = []string{
	stanza.NSDiscoInfo, stanza.NSMUC, stanza.NSMUCUser,
	stanza.NSChatStates, stanza.NSReceipts, stanza.NSMarkers,
	stanza.NSReactions, stanza.NSRetract, stanza.NSCorrect,
	stanza.NSMAM, stanza.NSCarbons, stanza.NSBlocking,
	stanza.NSHTTPUpload, stanza.NSPing,
}

// Client is the facade instance for one account. It is not safe to share
// across goroutines calling Connect/Disconnect concurrently, but every
// other operation may be called concurrently once connected, matching the
// runtime's own concurrency model.
type Client struct {
	cfg  *config.Config
	log  zerolog.Logger
	self jid.JID

	db *store.Database
	rt *runtime.Runtime

	disco     *modules.Disco
	roster    *modules.Roster
	presence  *modules.Presence
	profile   *modules.Profile
	avatar    *modules.Avatar
	blocklist *modules.BlockList
	chat      *modules.Chat
	archive   *modules.Archive
	pubsub    *modules.PubSub
	ping      *modules.Ping
	upload    *modules.Upload

	rooms   *room.Engine
	sidebar *sidebar.Coordinator
	omemo   *omemo.Engine

	previewer *linkpreview.Previewer

	users     *repo.UserRepo
	profiles  *repo.ProfileRepo
	avatars   *repo.AvatarRepo
	messages  *repo.MessageRepo
	drafts    *repo.DraftRepo
	sidebars  *repo.SidebarRepo
	bookmarks *repo.BookmarkRepo
	settings  *repo.SettingsRepo
	blocked   *repo.BlockListRepo

	events chan Event
}

// New opens the account's store and wires every module, but does not
// connect: call Connect to open the wire session.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Client, error) {
	self, err := jid.Parse(cfg.Account.JID)
	if err != nil {
		return nil, fmt.Errorf("client: invalid account jid: %w", err)
	}
	resource := cfg.Account.Resource
	if resource == "" {
		resource = "prose-core"
	}
	self = self.Bare().WithResource(resource)

	db, err := store.Open(ctx, cfg.Store.Path, repo.SchemaVersion, repo.CollectionSpecs(), log)
	if err != nil {
		return nil, fmt.Errorf("client: open store: %w", err)
	}

	c := &Client{
		cfg: cfg, log: log, self: self, db: db,
		users:     repo.NewUserRepo(db),
		profiles:  repo.NewProfileRepo(db),
		avatars:   repo.NewAvatarRepo(db),
		messages:  repo.NewMessageRepo(db),
		drafts:    repo.NewDraftRepo(db),
		sidebars:  repo.NewSidebarRepo(db),
		bookmarks: repo.NewBookmarkRepo(db),
		settings:  repo.NewSettingsRepo(db),
		blocked:   repo.NewBlockListRepo(db),
		events:    make(chan Event, eventBuffer),
	}

	t := newTransport(cfg, log)
	c.rt = runtime.New(t, log, &runtime.Options{
		SweepInterval: cfg.SweepInterval(),
		Timeout:       cfg.RequestTimeout(),
		PingInterval:  cfg.PingInterval(),
	})
	c.rt.OnDisconnect = func(cause error) {
		c.emit(Event{Kind: EventDisconnected, Cause: cause})
	}

	identities := []stanza.DiscoIdentity{{Category: "client", Type: "pc", Name: "prose-core-go"}}
	c.disco = modules.NewDisco(c.rt, identities, capabilityFeatures)
	c.roster = modules.NewRoster(c.rt, c.users, log, func(jidStr string) {
		c.emit(Event{Kind: EventContactChanged, ID: jidStr})
	})
	c.presence = modules.NewPresence(c.rt, c.users, c.settings, log,
		func(jidStr string) { c.emit(Event{Kind: EventContactChanged, ID: jidStr}) },
		func(jidStr string) { c.emit(Event{Kind: EventPresenceSubscriptionRequest, ID: jidStr}) },
	)
	c.profile = modules.NewProfile(c.rt, c.profiles)
	c.pubsub = modules.NewPubSub(c.rt, log, c.onPubSubEvent)
	c.avatar = modules.NewAvatar(c.pubsub, c.avatars, log)
	c.presence.SetVCardHint(func(from string, update *stanza.VCardUpdate) {
		c.avatar.HandleVCardUpdateHint(context.Background(), from, update)
		c.emit(Event{Kind: EventAvatarChanged, ID: from})
	})
	c.blocklist = modules.NewBlockList(c.rt, c.blocked, func() {
		c.emit(Event{Kind: EventBlockListChanged})
	})
	c.chat = modules.NewChat(c.rt, c.messages, log, func(conversation string) {
		c.emit(Event{Kind: EventRoomChanged, ID: conversation, RoomChange: RoomChangeMessagesAppended})
	})
	c.archive = modules.NewArchive(c.rt, c.messages)
	c.ping = modules.NewPing(c.rt)
	c.upload = modules.NewUpload(c.rt, self.Bare().String())

	c.rooms = room.NewEngine(c.rt, c.disco, room.NewRegistry(), self, log)
	c.chat.SetOnChatState(func(conversation, fromFull string, state stanza.ChatStateKind) {
		if c.rooms.SetComposing(conversation, fromFull, state) {
			c.emit(Event{Kind: EventRoomChanged, ID: conversation, RoomChange: RoomChangeComposingUsers})
		}
	})
	c.sidebar = sidebar.New(c.sidebars, c.bookmarks, c.rooms, func() {
		c.emit(Event{Kind: EventSidebarChanged})
	}, log)

	if cfg.OMEMO.Enabled {
		c.omemo = omemo.NewEngine(
			self.Bare().String(),
			repo.NewIdentityRepo(db), repo.NewSessionRepo(db), repo.NewPreKeyRepo(db),
			repo.NewSignedPreKeyRepo(db), repo.NewTrustRepo(db), repo.NewLocalIdentityRepo(db),
			c.pubsub, log,
		)
		c.chat.SetDecrypt(func(ctx context.Context, fromBareJID string, env *stanza.OMEMOEnvelope) (string, error) {
			body, err := c.omemo.Decrypt(ctx, fromBareJID, env)
			if err != nil {
				return "", newErr(ErrDecryptionFailed, err)
			}
			return body, nil
		})
	}

	c.previewer = linkpreview.New(linkpreview.Options{
		FetchTimeout:    cfg.LinkPreviewFetchTimeout(),
		MaxPageBytes:    linkpreview.DefaultOptions().MaxPageBytes,
		MaxContentChars: linkpreview.DefaultOptions().MaxContentChars,
		CacheTTL:        linkpreview.DefaultOptions().CacheTTL,
	})

	for _, m := range []interface{ Module() *runtime.Module }{
		c.disco, c.roster, c.presence, c.profile, c.pubsub, c.blocklist, c.chat, c.ping,
	} {
		c.rt.Register(m.Module())
	}

	return c, nil
}

func newTransport(cfg *config.Config, log zerolog.Logger) transport.Transport {
	switch cfg.Transport.Kind {
	case "tcp":
		return transport.NewTCP(cfg.Transport.URL, log)
	default:
		return transport.NewWebSocket(cfg.Transport.URL, log)
	}
}

// Connect opens the transport with password as its credential (the bundled
// WebSocket and TCP transports do not authenticate with it), then performs
// the post-connect
// bootstrap sequence: OMEMO identity (if enabled), roster fetch, and
// sidebar reconciliation from bookmarks (spec §6 "connect(bare id,
// credential, availability, capabilities)").
func (c *Client) Connect(ctx context.Context, password string, show stanza.Show) error {
	if err := c.rt.Connect(ctx, c.self, transport.Credential{Password: password}); err != nil {
		if ce, ok := err.(*runtime.ConnectError); ok {
			switch ce.Kind {
			case runtime.ConnectErrorInvalidCredentials:
				return newErr(ErrInvalidCredentials, err)
			case runtime.ConnectErrorTimedOut:
				return newErr(ErrTimedOut, err)
			}
		}
		return newErr(ErrRequestError, err)
	}

	caps := &stanza.CapsTag{Hash: "sha-1", Node: "https://github.com/prose-im/prose-core-go", Ver: c.disco.CapsHash()}
	if err := c.presence.SetAvailability(ctx, show, caps); err != nil {
		c.log.Warn().Err(err).Msg("failed to broadcast initial presence")
	}

	if c.omemo != nil {
		if err := c.omemo.Bootstrap(ctx); err != nil {
			c.log.Warn().Err(err).Msg("failed to bootstrap OMEMO identity")
		}
	}
	if err := c.roster.Fetch(ctx); err != nil {
		c.log.Warn().Err(err).Msg("failed to fetch roster")
	}
	if bms, err := c.loadBookmarks(ctx); err != nil {
		c.log.Warn().Err(err).Msg("failed to load bookmarks")
	} else if err := c.sidebar.ExtendFromBookmarks(ctx, bms); err != nil {
		c.log.Warn().Err(err).Msg("failed to extend sidebar from bookmarks")
	}
	if jids, err := c.blocklist.Load(ctx); err != nil {
		c.log.Warn().Err(err).Msg("failed to load block list")
	} else if len(jids) > 0 {
		c.emit(Event{Kind: EventBlockListChanged})
	}

	c.emit(Event{Kind: EventConnected})
	return nil
}

// Disconnect closes the session. No EventDisconnected is emitted for a
// caller-initiated disconnect, matching spec §6's "disconnected(cause?)"
// being reserved for unexpected transport loss.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.rt.Disconnect(ctx)
}

// SetAvailability rebroadcasts presence with a new show value.
func (c *Client) SetAvailability(ctx context.Context, show stanza.Show) error {
	caps := &stanza.CapsTag{Hash: "sha-1", Node: "https://github.com/prose-im/prose-core-go", Ver: c.disco.CapsHash()}
	return c.presence.SetAvailability(ctx, show, caps)
}

// SetUserActivity sets the self PEP-less activity status.
func (c *Client) SetUserActivity(ctx context.Context, emoji, text string) error {
	return c.presence.SetUserActivity(ctx, emoji, text)
}

// ChangePassword performs in-band password change (XEP-0077) against the
// account's own bare JID.
func (c *Client) ChangePassword(ctx context.Context, newPassword string) error {
	iq := &stanza.IQ{
		To: c.self.Bare().String(), Type: stanza.IQSet,
		Register: &stanza.RegisterQuery{Username: c.self.Bare().Node, Password: newPassword},
	}
	_, err := c.rt.SendIQ(ctx, iq)
	return err
}

func (c *Client) onPubSubEvent(from string, event *stanza.PubSubEvent) {
	if event == nil || event.Items == nil {
		return
	}
	ctx := context.Background()
	switch event.Items.Node {
	case stanza.NSOMEMODeviceList:
		if c.omemo == nil || len(event.Items.Items) == 0 {
			return
		}
		var list stanza.OMEMODeviceList
		if err := xml.Unmarshal(event.Items.Items[0].Payload, &list); err != nil {
			c.log.Warn().Err(err).Str("from", from).Msg("failed to decode device list push")
			return
		}
		if err := c.omemo.ReconcileDeviceList(ctx, bareJID(from), &list); err != nil {
			c.log.Warn().Err(err).Str("from", from).Msg("failed to reconcile device list")
		}
	case stanza.NSBookmarks:
		c.handleBookmarkPush(ctx, event.Items.Items)
	}
}

func bareJID(s string) string {
	parsed, err := jid.Parse(s)
	if err != nil {
		return s
	}
	return parsed.Bare().String()
}

// DurationSince is a small helper room-handle callers use to decide
// whether a cached composing indicator is still live (spec §9 "Composing
// indicator TTL").
func DurationSince(ms int64) time.Duration {
	return time.Since(time.UnixMilli(ms))
}

// composingTTL is how long a composing indicator is considered live once
// the participant entered the composing state (spec §9 "Composing
// indicator TTL").
const composingTTL = 30 * time.Second
