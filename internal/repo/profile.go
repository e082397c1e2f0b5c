package repo

import (
	"context"
	"encoding/json"

	"github.com/prose-im/prose-core-go/internal/store"
)

// Profile is the persisted form of a user's profile fields (spec §3
// mentions profile load/save in the facade; the record shape itself is
// left to the repo layer since the spec only names the operation).
type Profile struct {
	JID         string `json:"jid"`
	Nickname    string `json:"nickname,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	Note        string `json:"note,omitempty"`
}

type ProfileRepo struct {
	db *store.Database
}

func NewProfileRepo(db *store.Database) *ProfileRepo {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) Get(ctx context.Context, jid string) (*Profile, bool, error) {
	var out *Profile
	err := r.db.View(ctx, []string{CollectionProfiles}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionProfiles)
		if err != nil {
			return err
		}
		raw, ok, err := c.Get(jid)
		if err != nil || !ok {
			return err
		}
		var p Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		out = &p
		return nil
	})
	return out, out != nil, err
}

func (r *ProfileRepo) Save(ctx context.Context, p Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.db.Update(ctx, []string{CollectionProfiles}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionProfiles)
		if err != nil {
			return err
		}
		return c.Put(p.JID, raw)
	})
}
