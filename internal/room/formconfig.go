package room

import "github.com/prose-im/prose-core-go/internal/xmpp/stanza"

// Spec is the desired MUC configuration for a room about to be created
// or reconfigured (spec §4.3 "submits a typed configuration form").
type Spec struct {
	MembersOnly   bool
	NonAnonymous  bool
	Persistent    bool
	Moderated     bool
	Public        bool
	Hidden        bool
}

// RoomType returns the Type a room configured per this Spec will classify
// as (spec §4.3 "Classification").
func (s Spec) RoomType() Type {
	switch {
	case s.MembersOnly && s.NonAnonymous && s.Persistent && s.Hidden:
		return TypeGroup
	case s.Public && s.Persistent:
		return TypePublicChannel
	default:
		return TypeGeneric
	}
}

// GroupSpec is the configuration submitted when creating a group: members
// only, non-anonymous, persistent, moderated, hidden from disco#items.
var GroupSpec = Spec{MembersOnly: true, NonAnonymous: true, Persistent: true, Moderated: true, Hidden: true}

// PrivateChannelSpec is members-only with a public (non-hidden) name.
var PrivateChannelSpec = Spec{MembersOnly: true, NonAnonymous: true, Persistent: true}

// PublicChannelSpec is open membership, world-readable.
var PublicChannelSpec = Spec{Public: true, Persistent: true, NonAnonymous: true}

// Form renders spec into the jabber:x:data submit form the MUC owner
// namespace expects, using the XEP-0045 registrar's reserved field vars
// (protocol-mandated names, not a design choice).
func (s Spec) Form(roomName string) *stanza.DataForm {
	bools := func(v bool) []string {
		if v {
			return []string{"1"}
		}
		return []string{"0"}
	}
	return &stanza.DataForm{
		Type: "submit",
		Fields: []stanza.FormField{
			{Var: "FORM_TYPE", Values: []string{"http://jabber.org/protocol/muc#roomconfig"}},
			{Var: "muc#roomconfig_roomname", Values: []string{roomName}},
			{Var: "muc#roomconfig_membersonly", Values: bools(s.MembersOnly)},
			{Var: "muc#roomconfig_whois", Values: []string{whois(s.NonAnonymous)}},
			{Var: "muc#roomconfig_persistentroom", Values: bools(s.Persistent)},
			{Var: "muc#roomconfig_moderatedroom", Values: bools(s.Moderated)},
			{Var: "muc#roomconfig_publicroom", Values: bools(s.Public)},
			{Var: "muc#roomconfig_membersonlyinvite", Values: bools(s.MembersOnly)},
		},
	}
}

func whois(nonAnonymous bool) string {
	if nonAnonymous {
		return "anyone"
	}
	return "moderators"
}

// Classify derives a Type from a room's disco#info feature set and the node
// hash prefix (spec §4.3 "Classification").
func Classify(roomNode string, membersOnly, nonAnonymous, persistent, hidden, public bool) Type {
	switch {
	case membersOnly && nonAnonymous && persistent && hidden:
		if IsGroupNode(roomNode) {
			return TypeGroup
		}
		return TypePrivateChannel
	case public && persistent:
		return TypePublicChannel
	default:
		return TypeGeneric
	}
}
