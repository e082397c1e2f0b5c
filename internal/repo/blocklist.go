package repo

import (
	"context"

	"github.com/prose-im/prose-core-go/internal/store"
)

type BlockedUser struct {
	JID string `json:"jid"`
}

type BlockListRepo struct {
	db *store.Database
}

func NewBlockListRepo(db *store.Database) *BlockListRepo {
	return &BlockListRepo{db: db}
}

func (r *BlockListRepo) All(ctx context.Context) ([]string, error) {
	var out []string
	err := r.db.View(ctx, []string{CollectionBlockList}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionBlockList)
		if err != nil {
			return err
		}
		keys, err := c.AllKeys()
		if err != nil {
			return err
		}
		out = keys
		return nil
	})
	return out, err
}

func (r *BlockListRepo) Block(ctx context.Context, jid string) error {
	return r.db.Update(ctx, []string{CollectionBlockList}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionBlockList)
		if err != nil {
			return err
		}
		return c.Put(jid, []byte(`{}`))
	})
}

func (r *BlockListRepo) Unblock(ctx context.Context, jid string) error {
	return r.db.Update(ctx, []string{CollectionBlockList}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionBlockList)
		if err != nil {
			return err
		}
		return c.Delete(jid)
	})
}

func (r *BlockListRepo) Clear(ctx context.Context) error {
	return r.db.Update(ctx, []string{CollectionBlockList}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionBlockList)
		if err != nil {
			return err
		}
		return c.Truncate()
	})
}
