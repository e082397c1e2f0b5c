package modules

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/jid"
	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/store"
	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
	"github.com/prose-im/prose-core-go/internal/xmpp/transport"
)

func newTestPresence(t *testing.T, onChanged, onSubReq func(string)) (*Presence, *transport.Memory, *repo.UserRepo, *repo.SettingsRepo) {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:", repo.SchemaVersion, repo.CollectionSpecs(), zerolog.Nop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	users := repo.NewUserRepo(db)
	settings := repo.NewSettingsRepo(db)
	mem := transport.NewMemory()
	rt := runtime.New(mem, zerolog.Nop(), nil)
	if err := rt.Connect(context.Background(), jid.MustParse("romeo@example.com"), transport.Credential{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	p := NewPresence(rt, users, settings, zerolog.Nop(), onChanged, onSubReq)
	rt.Register(p.Module())
	return p, mem, users, settings
}

func TestPresenceUpdatesUserAvailability(t *testing.T) {
	var changed []string
	_, mem, users, _ := newTestPresence(t, func(j string) { changed = append(changed, j) }, nil)

	mem.DeliverStanza(&stanza.Presence{From: "juliet@example.com", Show: stanza.ShowChat, Status: "around"})

	if len(changed) != 1 || changed[0] != "juliet@example.com" {
		t.Fatalf("changed = %v", changed)
	}
	u, ok, err := users.Get(context.Background(), "juliet@example.com")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !u.Available || u.Status != "around" {
		t.Fatalf("Get() = %+v", u)
	}
}

func TestPresenceUnavailableMarksOffline(t *testing.T) {
	_, mem, users, _ := newTestPresence(t, nil, nil)

	mem.DeliverStanza(&stanza.Presence{From: "juliet@example.com", Type: stanza.PresenceUnavailable})

	u, ok, err := users.Get(context.Background(), "juliet@example.com")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if u.Available {
		t.Fatalf("Get() = %+v, want Available=false", u)
	}
}

func TestPresenceSubscribeRequestInvokesCallbackOnly(t *testing.T) {
	var reqs []string
	_, mem, users, _ := newTestPresence(t, nil, func(j string) { reqs = append(reqs, j) })

	mem.DeliverStanza(&stanza.Presence{From: "juliet@example.com", Type: stanza.PresenceSubscribe})

	if len(reqs) != 1 || reqs[0] != "juliet@example.com" {
		t.Fatalf("reqs = %v", reqs)
	}
	if _, ok, _ := users.Get(context.Background(), "juliet@example.com"); ok {
		t.Fatal("subscription request should not create a user-info record")
	}
}

func TestPresenceVCardHintInvokesCallback(t *testing.T) {
	p, mem, _, _ := newTestPresence(t, nil, nil)
	var hinted string
	p.SetVCardHint(func(from string, update *stanza.VCardUpdate) { hinted = from })

	photo := "abc"
	mem.DeliverStanza(&stanza.Presence{From: "juliet@example.com", VCardUpdate: &stanza.VCardUpdate{Photo: &photo}})

	if hinted != "juliet@example.com" {
		t.Fatalf("hinted = %q", hinted)
	}
}

func TestSetAvailabilityPersistsToSettings(t *testing.T) {
	p, mem, _, settings := newTestPresence(t, nil, nil)
	ctx := context.Background()

	if err := p.SetAvailability(ctx, stanza.ShowAway, nil); err != nil {
		t.Fatalf("SetAvailability: %v", err)
	}
	if len(mem.Sent) != 1 {
		t.Fatalf("Sent = %v, want 1 stanza", mem.Sent)
	}
	s, err := settings.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Availability != string(stanza.ShowAway) {
		t.Fatalf("Availability = %q", s.Availability)
	}
}

func TestSetUserActivityPersistsEmojiAndText(t *testing.T) {
	p, _, _, settings := newTestPresence(t, nil, nil)
	ctx := context.Background()

	if err := p.SetUserActivity(ctx, "🌴", "on vacation"); err != nil {
		t.Fatalf("SetUserActivity: %v", err)
	}
	s, err := settings.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.ActivityEmoji != "🌴" || s.ActivityText != "on vacation" {
		t.Fatalf("Settings = %+v", s)
	}
}
