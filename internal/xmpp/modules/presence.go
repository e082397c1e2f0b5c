package modules

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// Presence is the status/activity module: it reflects inbound presence
// into the user-info repo, surfaces subscription requests, and lets the
// caller publish its own availability and activity (spec §6
// "set-availability", "set-user-activity(emoji?, text?)").
type Presence struct {
	rt       *runtime.Runtime
	users    *repo.UserRepo
	settings *repo.SettingsRepo
	log      zerolog.Logger

	onChanged  func(jid string)
	onSubReq   func(jid string)

	// onVCardHint, if set, is handed the vcard-temp:x:update avatar hint
	// riding on inbound presence (XEP-0153), so the caller's avatar module
	// can refetch without this package importing it directly.
	onVCardHint func(from string, update *stanza.VCardUpdate)
}

func NewPresence(rt *runtime.Runtime, users *repo.UserRepo, settings *repo.SettingsRepo, log zerolog.Logger, onChanged, onSubReq func(jid string)) *Presence {
	return &Presence{rt: rt, users: users, settings: settings, log: log.With().Str("module", "presence").Logger(), onChanged: onChanged, onSubReq: onSubReq}
}

// SetVCardHint installs the avatar-hint callback.
func (m *Presence) SetVCardHint(onVCardHint func(from string, update *stanza.VCardUpdate)) {
	m.onVCardHint = onVCardHint
}

func (m *Presence) Module() *runtime.Module {
	return &runtime.Module{Name: "presence", OnPresence: m.onPresence}
}

func (m *Presence) onPresence(p *stanza.Presence) {
	ctx := context.Background()
	switch p.Type {
	case stanza.PresenceSubscribe:
		if m.onSubReq != nil {
			m.onSubReq(p.From)
		}
		return
	case stanza.PresenceError, stanza.PresenceSubscribed, stanza.PresenceUnsubscribe, stanza.PresenceUnsubscribed:
		return
	}

	if p.VCardUpdate != nil && m.onVCardHint != nil {
		m.onVCardHint(p.From, p.VCardUpdate)
	}

	u, ok, err := m.users.Get(ctx, p.From)
	if err != nil {
		m.log.Warn().Err(err).Str("jid", p.From).Msg("failed to load user for presence update")
		return
	}
	if !ok {
		u = &repo.UserInfo{JID: p.From}
	}
	u.Available = p.Type != stanza.PresenceUnavailable
	u.Show = string(p.Show)
	u.Status = p.Status
	if err := m.users.Save(ctx, *u); err != nil {
		m.log.Warn().Err(err).Str("jid", p.From).Msg("failed to persist presence update")
		return
	}
	if m.onChanged != nil {
		m.onChanged(p.From)
	}
}

// SetAvailability broadcasts a new availability/show and persists it in
// settings so it survives reconnect.
func (m *Presence) SetAvailability(ctx context.Context, show stanza.Show, caps *stanza.CapsTag) error {
	p := &stanza.Presence{Show: show, Caps: caps}
	if err := m.rt.Send(ctx, p); err != nil {
		return err
	}
	s, err := m.settings.Get(ctx)
	if err != nil {
		return err
	}
	s.Availability = string(show)
	return m.settings.Save(ctx, s)
}

// SetUserActivity sets the self activity (an emoji plus free text,
// encoded into the presence <status/> since this runtime does not stand
// up a dedicated activity PEP node) and persists it in settings.
func (m *Presence) SetUserActivity(ctx context.Context, emoji, text string) error {
	status := text
	if emoji != "" {
		status = fmt.Sprintf("%s %s", emoji, text)
	}
	if err := m.rt.Send(ctx, &stanza.Presence{Status: status}); err != nil {
		return err
	}
	s, err := m.settings.Get(ctx)
	if err != nil {
		return err
	}
	s.ActivityEmoji = emoji
	s.ActivityText = text
	return m.settings.Save(ctx, s)
}

// Subscribe sends a subscription request to jidStr.
func (m *Presence) Subscribe(ctx context.Context, jidStr string) error {
	return m.rt.Send(ctx, &stanza.Presence{To: jidStr, Type: stanza.PresenceSubscribe})
}

// Approve approves an inbound subscription request.
func (m *Presence) Approve(ctx context.Context, jidStr string) error {
	return m.rt.Send(ctx, &stanza.Presence{To: jidStr, Type: stanza.PresenceSubscribed})
}

// Deny refuses an inbound subscription request.
func (m *Presence) Deny(ctx context.Context, jidStr string) error {
	return m.rt.Send(ctx, &stanza.Presence{To: jidStr, Type: stanza.PresenceUnsubscribed})
}
