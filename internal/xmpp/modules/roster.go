// Package modules holds the runtime's built-in module bundles (spec §4.1
// "Built-in modules"): one small struct per protocol concern, each
// exposing the operations a caller needs plus a *runtime.Module handler
// bundle to register. Every module follows the same shape the teacher's
// connector handlers use — a thin struct over the runtime and whatever
// repos it touches, with inbound events folded into the store through a
// single transaction per update.
package modules

import (
	"context"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// Roster tracks the contact list: fetching it on connect, reflecting
// pushes, and applying updates.
type Roster struct {
	rt    *runtime.Runtime
	users *repo.UserRepo
	log   zerolog.Logger

	onChanged func(jid string)
}

func NewRoster(rt *runtime.Runtime, users *repo.UserRepo, log zerolog.Logger, onChanged func(jid string)) *Roster {
	return &Roster{rt: rt, users: users, log: log.With().Str("module", "roster").Logger(), onChanged: onChanged}
}

func (m *Roster) Module() *runtime.Module {
	return &runtime.Module{Name: "roster", OnIQ: m.onIQ}
}

func (m *Roster) onIQ(iq *stanza.IQ) {
	if iq.Roster == nil || iq.Type != stanza.IQSet {
		return
	}
	ctx := context.Background()
	for _, item := range iq.Roster.Items {
		u := repo.UserInfo{JID: item.JID, Name: item.Name, Subscription: item.Subscription, Groups: item.Groups}
		if err := m.users.Save(ctx, u); err != nil {
			m.log.Warn().Err(err).Str("jid", item.JID).Msg("failed to persist roster push")
			continue
		}
		if m.onChanged != nil {
			m.onChanged(item.JID)
		}
	}
}

// Fetch requests the full roster and persists every item.
func (m *Roster) Fetch(ctx context.Context) error {
	iq := &stanza.IQ{Id: xid.New().String(), Type: stanza.IQGet, Roster: &stanza.RosterQuery{}}
	res, err := m.rt.SendIQ(ctx, iq)
	if err != nil {
		return err
	}
	if res.Roster == nil {
		return nil
	}
	for _, item := range res.Roster.Items {
		u := repo.UserInfo{JID: item.JID, Name: item.Name, Subscription: item.Subscription, Groups: item.Groups}
		if err := m.users.Save(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

// Add inserts or updates a roster item.
func (m *Roster) Add(ctx context.Context, jidStr, name string, groups []string) error {
	iq := &stanza.IQ{
		Id:   xid.New().String(),
		Type: stanza.IQSet,
		Roster: &stanza.RosterQuery{Items: []stanza.RosterItem{
			{JID: jidStr, Name: name, Groups: groups},
		}},
	}
	_, err := m.rt.SendIQ(ctx, iq)
	return err
}

// Remove deletes a roster item (subscription="remove").
func (m *Roster) Remove(ctx context.Context, jidStr string) error {
	iq := &stanza.IQ{
		Id:   xid.New().String(),
		Type: stanza.IQSet,
		Roster: &stanza.RosterQuery{Items: []stanza.RosterItem{
			{JID: jidStr, Subscription: "remove"},
		}},
	}
	_, err := m.rt.SendIQ(ctx, iq)
	if err == nil {
		_ = m.users.Delete(ctx, jidStr)
	}
	return err
}
