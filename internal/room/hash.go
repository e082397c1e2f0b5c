package room

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

const groupPrefix = "org.prose.group."

// GroupNode derives a group room's node part: sort participant bare
// identifiers (including self) lexicographically, join with ",", SHA-1
// hash, hex-encode, and prefix with the constant namespace (spec §4.3
// "Group name derivation"). The hash algorithm is protocol-mandated, not
// a design choice.
func GroupNode(participants []string) string {
	sorted := append([]string(nil), participants...)
	sort.Strings(sorted)
	sum := sha1.Sum([]byte(strings.Join(sorted, ",")))
	return groupPrefix + hex.EncodeToString(sum[:])
}

// IsGroupNode reports whether node carries the group-derivation prefix.
func IsGroupNode(node string) bool {
	return strings.HasPrefix(node, groupPrefix)
}

// DefaultNickname derives the stable per-account nickname: the bare
// identifier's node part, "#", and a URL-safe base64 encoding of the
// full bare identifier (spec §4.3 "Tie-breaks").
func DefaultNickname(nodePart, bareJID string) string {
	return nodePart + "#" + base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(bareJID))
}

// NicknameWithSuffix appends the "#N" conflict-retry suffix (spec §4.3
// "join(room id, password?) ... on conflict, retries with suffix #N").
func NicknameWithSuffix(nickname string, attempt int) string {
	if attempt <= 0 {
		return nickname
	}
	return nickname + "#" + strconv.Itoa(attempt)
}

// GroupDisplayName concatenates participant display names, the human
// name for a freshly-created group (spec §4.3 "picks a human name by
// concatenating participant display names").
func GroupDisplayName(displayNames []string) string {
	return strings.Join(displayNames, ", ")
}
