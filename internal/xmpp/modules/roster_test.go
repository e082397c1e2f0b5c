package modules

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/jid"
	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/store"
	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
	"github.com/prose-im/prose-core-go/internal/xmpp/transport"
)

func newTestRoster(t *testing.T, onChanged func(string)) (*Roster, *transport.Memory, *repo.UserRepo) {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:", repo.SchemaVersion, repo.CollectionSpecs(), zerolog.Nop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	users := repo.NewUserRepo(db)
	mem := transport.NewMemory()
	rt := runtime.New(mem, zerolog.Nop(), nil)
	if err := rt.Connect(context.Background(), jid.MustParse("romeo@example.com"), transport.Credential{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	r := NewRoster(rt, users, zerolog.Nop(), onChanged)
	rt.Register(r.Module())
	return r, mem, users
}

// awaitAndReply waits for the next sent IQ and delivers the IQ that build
// returns for the sent stanza's Id.
func awaitAndReply(mem *transport.Memory, build func(id string) *stanza.IQ) {
	go func() {
		for i := 0; i < 200; i++ {
			if len(mem.Sent) > 0 {
				sent := mem.Sent[len(mem.Sent)-1].(*stanza.IQ)
				mem.DeliverStanza(build(sent.Id))
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()
}

func TestRosterFetchPersistsItems(t *testing.T) {
	roster, mem, users := newTestRoster(t, nil)
	ctx := context.Background()

	awaitAndReply(mem, func(id string) *stanza.IQ {
		return &stanza.IQ{Id: id, Type: stanza.IQResult, Roster: &stanza.RosterQuery{
			Items: []stanza.RosterItem{{JID: "juliet@example.com", Name: "Juliet", Subscription: "both"}},
		}}
	})

	if err := roster.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	u, ok, err := users.Get(ctx, "juliet@example.com")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if u.Name != "Juliet" || u.Subscription != "both" {
		t.Fatalf("Get() = %+v", u)
	}
}

func TestRosterOnIQPushUpdatesAndNotifies(t *testing.T) {
	var changed []string
	_, mem, users := newTestRoster(t, func(j string) { changed = append(changed, j) })

	mem.DeliverStanza(&stanza.IQ{Type: stanza.IQSet, Roster: &stanza.RosterQuery{
		Items: []stanza.RosterItem{{JID: "juliet@example.com", Name: "Juliet"}},
	}})

	if len(changed) != 1 || changed[0] != "juliet@example.com" {
		t.Fatalf("changed = %v", changed)
	}
	if _, ok, _ := users.Get(context.Background(), "juliet@example.com"); !ok {
		t.Fatal("expected roster push to persist the item")
	}
}

func TestRosterRemoveDeletesLocalUser(t *testing.T) {
	roster, mem, users := newTestRoster(t, nil)
	ctx := context.Background()
	if err := users.Save(ctx, repo.UserInfo{JID: "juliet@example.com", Name: "Juliet"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	awaitAndReply(mem, func(id string) *stanza.IQ {
		return &stanza.IQ{Id: id, Type: stanza.IQResult}
	})

	if err := roster.Remove(ctx, "juliet@example.com"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := users.Get(ctx, "juliet@example.com"); ok {
		t.Fatal("expected user to be deleted after Remove")
	}
}
