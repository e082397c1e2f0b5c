// Package jid implements the three identifier kinds used throughout the
// runtime: bare, full, and occupant JIDs.
package jid

import (
	"errors"
	"strings"
)

// ErrInvalid is returned when a string cannot be parsed as a JID.
var ErrInvalid = errors.New("jid: invalid identifier")

// JID is a bare or full XMPP identifier: node@domain[/resource].
//
// Comparison is case-normalized per the protocol's nodeprep/domainprep
// profile approximation: node and domain are lowercased, the resource is
// left case-sensitive.
type JID struct {
	Node     string
	Domain   string
	Resource string
}

// Parse splits s into its node, domain, and resource parts.
func Parse(s string) (JID, error) {
	if s == "" {
		return JID{}, ErrInvalid
	}
	var j JID
	rest := s
	if at := strings.IndexByte(rest, '@'); at >= 0 {
		j.Node = strings.ToLower(rest[:at])
		rest = rest[at+1:]
	}
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		j.Domain = strings.ToLower(rest[:slash])
		j.Resource = rest[slash+1:]
	} else {
		j.Domain = strings.ToLower(rest)
	}
	if j.Domain == "" {
		return JID{}, ErrInvalid
	}
	return j, nil
}

// MustParse parses s, panicking on error. Intended for constant-like JIDs.
func MustParse(s string) JID {
	j, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return j
}

// Bare returns the node@domain portion, dropping any resource.
func (j JID) Bare() JID {
	j.Resource = ""
	return j
}

// IsBare reports whether the JID carries no resource.
func (j JID) IsBare() bool {
	return j.Resource == ""
}

// IsFull reports whether the JID carries a resource.
func (j JID) IsFull() bool {
	return j.Resource != ""
}

// WithResource returns a copy of the bare JID with resource set.
func (j JID) WithResource(resource string) JID {
	j.Resource = resource
	return j
}

// Occupant constructs a room-occupant identifier: room-bare/nickname.
// The resource slot of an occupant JID carries the occupant's nickname.
func Occupant(room JID, nickname string) JID {
	return room.Bare().WithResource(nickname)
}

// Nickname returns the resource part, used as a convenience when the JID is
// known to be an occupant or full identifier.
func (j JID) Nickname() string {
	return j.Resource
}

// Equal reports whether two JIDs are identical, applying the node/domain
// case-fold already performed at Parse time.
func (j JID) Equal(other JID) bool {
	return j.Node == other.Node && j.Domain == other.Domain && j.Resource == other.Resource
}

// String renders the JID back to its wire form.
func (j JID) String() string {
	var b strings.Builder
	if j.Node != "" {
		b.WriteString(j.Node)
		b.WriteByte('@')
	}
	b.WriteString(j.Domain)
	if j.Resource != "" {
		b.WriteByte('/')
		b.WriteString(j.Resource)
	}
	return b.String()
}

// IsZero reports whether the JID was never populated.
func (j JID) IsZero() bool {
	return j.Domain == "" && j.Node == ""
}

// MarshalText implements encoding.TextMarshaler so a JID can be used
// directly as an XML attribute or JSON string.
func (j JID) MarshalText() ([]byte, error) {
	return []byte(j.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (j *JID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}
