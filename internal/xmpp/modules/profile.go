package modules

import (
	"context"

	"github.com/rs/xid"

	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// Profile manages the self and peer vCard4 profile (spec §6 "Profile &
// avatar: load/save own profile").
type Profile struct {
	rt       *runtime.Runtime
	profiles *repo.ProfileRepo
}

func NewProfile(rt *runtime.Runtime, profiles *repo.ProfileRepo) *Profile {
	return &Profile{rt: rt, profiles: profiles}
}

func (m *Profile) Module() *runtime.Module {
	return &runtime.Module{Name: "profile", OnIQ: m.onIQ}
}

func (m *Profile) onIQ(iq *stanza.IQ) {
	if iq.VCard == nil || iq.Type != stanza.IQSet || iq.From == "" {
		return
	}
	p := repo.Profile{JID: iq.From, FullName: iq.VCard.FN, Nickname: iq.VCard.Nick, Note: iq.VCard.Note}
	_ = m.profiles.Save(context.Background(), p)
}

// Fetch requests jidStr's vCard and persists it.
func (m *Profile) Fetch(ctx context.Context, jidStr string) (*repo.Profile, error) {
	iq := &stanza.IQ{To: jidStr, Id: xid.New().String(), Type: stanza.IQGet, VCard: &stanza.VCard{}}
	res, err := m.rt.SendIQ(ctx, iq)
	if err != nil {
		return nil, err
	}
	p := repo.Profile{JID: jidStr}
	if res.VCard != nil {
		p.FullName = res.VCard.FN
		p.Nickname = res.VCard.Nick
		p.Note = res.VCard.Note
	}
	if err := m.profiles.Save(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Save publishes the self vCard and persists it locally.
func (m *Profile) Save(ctx context.Context, p repo.Profile) error {
	iq := &stanza.IQ{Id: xid.New().String(), Type: stanza.IQSet, VCard: &stanza.VCard{FN: p.FullName, Nick: p.Nickname, Note: p.Note}}
	if _, err := m.rt.SendIQ(ctx, iq); err != nil {
		return err
	}
	return m.profiles.Save(ctx, p)
}
