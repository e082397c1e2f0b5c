package repo

import (
	"context"
	"encoding/json"

	"github.com/prose-im/prose-core-go/internal/store"
)

// settingsKey is the single row the settings collection ever holds; the
// collection exists mainly so the schema-version reservation (spec §4.6
// "a stable schema version is stored in a reserved settings collection")
// and user preferences share one transactional home.
const settingsKey = "settings"

type Settings struct {
	SchemaVersion     int    `json:"schema_version"`
	Availability      string `json:"availability,omitempty"`
	ActivityEmoji     string `json:"activity_emoji,omitempty"`
	ActivityText      string `json:"activity_text,omitempty"`
	EncryptionEnabled map[string]bool `json:"encryption_enabled,omitempty"`
}

type SettingsRepo struct {
	db *store.Database
}

func NewSettingsRepo(db *store.Database) *SettingsRepo {
	return &SettingsRepo{db: db}
}

func (r *SettingsRepo) Get(ctx context.Context) (Settings, error) {
	var out Settings
	err := r.db.View(ctx, []string{CollectionSettings}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionSettings)
		if err != nil {
			return err
		}
		raw, ok, err := c.Get(settingsKey)
		if err != nil || !ok {
			return err
		}
		return json.Unmarshal(raw, &out)
	})
	return out, err
}

func (r *SettingsRepo) Save(ctx context.Context, s Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.db.Update(ctx, []string{CollectionSettings}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionSettings)
		if err != nil {
			return err
		}
		return c.Put(settingsKey, raw)
	})
}
