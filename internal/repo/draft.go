package repo

import (
	"context"
	"encoding/json"

	"github.com/prose-im/prose-core-go/internal/store"
)

// Draft is an unsent composition saved per conversation (spec §6 "Room
// operations ... save/load draft").
type Draft struct {
	Conversation string `json:"conversation"`
	Body         string `json:"body"`
}

type DraftRepo struct {
	db *store.Database
}

func NewDraftRepo(db *store.Database) *DraftRepo {
	return &DraftRepo{db: db}
}

func (r *DraftRepo) Get(ctx context.Context, conversation string) (*Draft, bool, error) {
	var out *Draft
	err := r.db.View(ctx, []string{CollectionDrafts}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionDrafts)
		if err != nil {
			return err
		}
		raw, ok, err := c.Get(conversation)
		if err != nil || !ok {
			return err
		}
		var d Draft
		if err := json.Unmarshal(raw, &d); err != nil {
			return err
		}
		out = &d
		return nil
	})
	return out, out != nil, err
}

func (r *DraftRepo) Save(ctx context.Context, d Draft) error {
	return r.db.Update(ctx, []string{CollectionDrafts}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionDrafts)
		if err != nil {
			return err
		}
		if d.Body == "" {
			return c.Delete(d.Conversation)
		}
		raw, err := json.Marshal(d)
		if err != nil {
			return err
		}
		return c.Put(d.Conversation, raw)
	})
}
