// Package repo frames internal/store collections with the semantic
// operations each domain entity needs (spec §4.7 "Repositories and
// caches"). Every repo here persists through the store; the
// connected-rooms registry is the one exception the spec calls out as
// in-memory-only, and lives in internal/room instead.
package repo

import "github.com/prose-im/prose-core-go/internal/store"

const (
	CollectionProfiles       = "profiles"
	CollectionAvatars        = "avatars"
	CollectionUsers          = "users"
	CollectionMessages       = "messages"
	CollectionDrafts         = "drafts"
	CollectionSidebar        = "sidebar"
	CollectionBookmarks      = "bookmarks"
	CollectionSettings       = "settings"
	CollectionBlockList      = "block_list"
	CollectionOMEMOIdentities  = "omemo_identities"
	CollectionOMEMOSessions    = "omemo_sessions"
	CollectionOMEMOPreKeys     = "omemo_pre_keys"
	CollectionOMEMOSignedPreKeys = "omemo_signed_pre_keys"
	CollectionOMEMOTrust       = "omemo_trust"
	CollectionOMEMOLocal       = "omemo_local"

	indexConversationTimestamp = "conversation_timestamp"
	indexStanzaID              = "stanza_id"
)

// SchemaVersion is the store's current schema version (spec §4.6 "Opening
// a database at a higher version than stored triggers an upgrade
// transaction").
const SchemaVersion = 1

// CollectionSpecs returns every collection the repo layer opens, with its
// secondary indexes, for passing to store.Open.
func CollectionSpecs() []store.CollectionSpec {
	return []store.CollectionSpec{
		{Name: CollectionProfiles},
		{Name: CollectionAvatars},
		{Name: CollectionUsers},
		{
			Name: CollectionMessages,
			Indexes: []store.Index{
				{Name: indexStanzaID, Path: "stanza_id"},
				{Name: indexConversationTimestamp, Path: "conversation_timestamp"},
			},
		},
		{Name: CollectionDrafts},
		{Name: CollectionSidebar},
		{Name: CollectionBookmarks},
		{Name: CollectionSettings},
		{Name: CollectionBlockList},
		{Name: CollectionOMEMOIdentities},
		{Name: CollectionOMEMOSessions},
		{Name: CollectionOMEMOPreKeys},
		{Name: CollectionOMEMOSignedPreKeys},
		{Name: CollectionOMEMOTrust},
		{Name: CollectionOMEMOLocal},
	}
}
