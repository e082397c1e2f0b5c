package modules

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

const (
	avatarMetadataNode = "urn:xmpp:avatar:metadata"
	avatarDataNode     = "urn:xmpp:avatar:data"
)

// Avatar publishes and fetches PEP avatars (XEP-0084), mirrored into the
// avatar repo's write-through cache (spec §6 "Profile & avatar").
type Avatar struct {
	pubsub  *PubSub
	avatars *repo.AvatarRepo
	log     zerolog.Logger
}

func NewAvatar(pubsub *PubSub, avatars *repo.AvatarRepo, log zerolog.Logger) *Avatar {
	return &Avatar{pubsub: pubsub, avatars: avatars, log: log.With().Str("module", "avatar").Logger()}
}

// HandleVCardUpdateHint treats the presence vcard-update hint as the
// trigger to refetch a peer's avatar; the caller wires this in via the presence module's own
// handler since VCardUpdate rides on the presence stanza, not a pub/sub
// event.
func (m *Avatar) HandleVCardUpdateHint(ctx context.Context, from string, update *stanza.VCardUpdate) {
	if update == nil || update.Photo == nil {
		return
	}
	current := m.avatars.CurrentChecksum(from)
	if current == *update.Photo {
		return
	}
	if err := m.Fetch(ctx, from, *update.Photo); err != nil {
		m.log.Warn().Err(err).Str("jid", from).Msg("failed to refresh avatar")
	}
}

// Fetch downloads the latest avatar data item and caches it under
// checksum; the item's id is not compared with checksum.
func (m *Avatar) Fetch(ctx context.Context, jidStr, checksum string) error {
	items, err := m.pubsub.Items(ctx, jidStr, avatarDataNode, 1)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(string(items[0].Payload))
	if err != nil {
		return fmt.Errorf("decode avatar data: %w", err)
	}
	return m.avatars.Save(ctx, repo.Avatar{JID: jidStr, Checksum: checksum, Data: data})
}

// Publish uploads a new self avatar: the raw data item first, then the
// metadata item advertising its checksum (spec order: data precedes
// metadata so peers refetching on the metadata notification never race
// an unpublished blob).
func (m *Avatar) Publish(ctx context.Context, data []byte, mimeType string) error {
	sum := sha1.Sum(data)
	checksum := hex.EncodeToString(sum[:])

	encoded := []byte(base64.StdEncoding.EncodeToString(data))
	if _, err := m.pubsub.Publish(ctx, "", avatarDataNode, checksum, encoded, nil); err != nil {
		return err
	}

	meta := []byte(fmt.Sprintf(`<metadata xmlns="urn:xmpp:avatar:metadata"><info id=%q type=%q bytes="%d"/></metadata>`,
		checksum, mimeType, len(data)))
	if _, err := m.pubsub.Publish(ctx, "", avatarMetadataNode, checksum, meta, nil); err != nil {
		return err
	}

	return m.avatars.Save(ctx, repo.Avatar{JID: "", Checksum: checksum, MimeType: mimeType, Data: data})
}
