package repo

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/prose-im/prose-core-go/internal/store"
)

// Avatar is the persisted avatar metadata plus a cached copy of the image
// bytes, keyed by the owning JID. Checksum is the XEP-0084 SHA-1 id so the
// repo can tell whether an advertised hash already matches what's cached.
type Avatar struct {
	JID      string `json:"jid"`
	Checksum string `json:"checksum"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// AvatarRepo fronts the avatars collection with an in-memory cache: avatar
// bytes are fetched once per checksum and reused across every room the
// JID appears in, rather than re-querying the store on every render.
type AvatarRepo struct {
	db *store.Database

	mu    sync.RWMutex
	cache map[string]Avatar
}

func NewAvatarRepo(db *store.Database) *AvatarRepo {
	return &AvatarRepo{db: db, cache: make(map[string]Avatar)}
}

func (r *AvatarRepo) Get(ctx context.Context, jid string) (*Avatar, bool, error) {
	r.mu.RLock()
	if a, ok := r.cache[jid]; ok {
		r.mu.RUnlock()
		return &a, true, nil
	}
	r.mu.RUnlock()

	var out *Avatar
	err := r.db.View(ctx, []string{CollectionAvatars}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionAvatars)
		if err != nil {
			return err
		}
		raw, ok, err := c.Get(jid)
		if err != nil || !ok {
			return err
		}
		var a Avatar
		if err := json.Unmarshal(raw, &a); err != nil {
			return err
		}
		out = &a
		return nil
	})
	if err != nil || out == nil {
		return out, out != nil, err
	}
	r.mu.Lock()
	r.cache[jid] = *out
	r.mu.Unlock()
	return out, true, nil
}

func (r *AvatarRepo) Save(ctx context.Context, a Avatar) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	err = r.db.Update(ctx, []string{CollectionAvatars}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionAvatars)
		if err != nil {
			return err
		}
		return c.Put(a.JID, raw)
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.cache[a.JID] = a
	r.mu.Unlock()
	return nil
}

// CurrentChecksum returns the cached checksum for jid without touching the
// store, or "" if nothing is cached yet — used to decide whether an
// incoming metadata hint actually changed anything.
func (r *AvatarRepo) CurrentChecksum(jid string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache[jid].Checksum
}
