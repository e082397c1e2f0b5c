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

func newTestBlockList(t *testing.T, onChanged func()) (*BlockList, *transport.Memory, *repo.BlockListRepo) {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:", repo.SchemaVersion, repo.CollectionSpecs(), zerolog.Nop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	blocklist := repo.NewBlockListRepo(db)
	mem := transport.NewMemory()
	rt := runtime.New(mem, zerolog.Nop(), nil)
	if err := rt.Connect(context.Background(), jid.MustParse("romeo@example.com"), transport.Credential{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	bl := NewBlockList(rt, blocklist, onChanged)
	rt.Register(bl.Module())
	return bl, mem, blocklist
}

func TestBlockListBlockPersistsLocally(t *testing.T) {
	bl, mem, blocklist := newTestBlockList(t, nil)
	ctx := context.Background()

	awaitAndReply(mem, func(id string) *stanza.IQ {
		return &stanza.IQ{Id: id, Type: stanza.IQResult}
	})

	if err := bl.Block(ctx, "troll@example.com"); err != nil {
		t.Fatalf("Block: %v", err)
	}
	all, err := blocklist.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 || all[0] != "troll@example.com" {
		t.Fatalf("All() = %v", all)
	}
}

func TestBlockListOnIQPushNotifies(t *testing.T) {
	var notified int
	_, mem, blocklist := newTestBlockList(t, func() { notified++ })

	mem.DeliverStanza(&stanza.IQ{Type: stanza.IQSet, Block: &stanza.BlockList{Items: []stanza.BlockItem{{JID: "troll@example.com"}}}})

	if notified != 1 {
		t.Fatalf("notified = %d, want 1", notified)
	}
	all, err := blocklist.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 || all[0] != "troll@example.com" {
		t.Fatalf("All() = %v", all)
	}
}

func TestBlockListClearRemovesEverything(t *testing.T) {
	bl, mem, blocklist := newTestBlockList(t, nil)
	ctx := context.Background()
	if err := blocklist.Block(ctx, "troll@example.com"); err != nil {
		t.Fatalf("Block (seed): %v", err)
	}

	awaitAndReply(mem, func(id string) *stanza.IQ {
		return &stanza.IQ{Id: id, Type: stanza.IQResult}
	})

	if err := bl.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	all, err := blocklist.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("All() = %v, want empty", all)
	}
}
