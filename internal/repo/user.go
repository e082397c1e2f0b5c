package repo

import (
	"context"
	"encoding/json"

	"github.com/prose-im/prose-core-go/internal/store"
)

// UserInfo is the roster-adjacent cache of what the client knows about a
// contact beyond the bare roster entry: presence, subscription, and the
// last observed nickname.
type UserInfo struct {
	JID          string `json:"jid"`
	Name         string `json:"name,omitempty"`
	Subscription string `json:"subscription,omitempty"`
	Groups       []string `json:"groups,omitempty"`
	Available    bool   `json:"available"`
	Show         string `json:"show,omitempty"`
	Status       string `json:"status,omitempty"`
}

type UserRepo struct {
	db *store.Database
}

func NewUserRepo(db *store.Database) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Get(ctx context.Context, jid string) (*UserInfo, bool, error) {
	var out *UserInfo
	err := r.db.View(ctx, []string{CollectionUsers}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionUsers)
		if err != nil {
			return err
		}
		raw, ok, err := c.Get(jid)
		if err != nil || !ok {
			return err
		}
		var u UserInfo
		if err := json.Unmarshal(raw, &u); err != nil {
			return err
		}
		out = &u
		return nil
	})
	return out, out != nil, err
}

func (r *UserRepo) Save(ctx context.Context, u UserInfo) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return r.db.Update(ctx, []string{CollectionUsers}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionUsers)
		if err != nil {
			return err
		}
		return c.Put(u.JID, raw)
	})
}

func (r *UserRepo) All(ctx context.Context) ([]UserInfo, error) {
	var out []UserInfo
	err := r.db.View(ctx, []string{CollectionUsers}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionUsers)
		if err != nil {
			return err
		}
		values, err := c.GetAll(store.All(), store.Forward, 0)
		if err != nil {
			return err
		}
		for _, v := range values {
			var u UserInfo
			if err := json.Unmarshal(v, &u); err != nil {
				return err
			}
			out = append(out, u)
		}
		return nil
	})
	return out, err
}

func (r *UserRepo) Delete(ctx context.Context, jid string) error {
	return r.db.Update(ctx, []string{CollectionUsers}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionUsers)
		if err != nil {
			return err
		}
		return c.Delete(jid)
	})
}
