package stanza

import "encoding/xml"

// PresenceType is the presence stanza's type attribute; the zero value
// means "available" per RFC 6121, absent from the wire.
type PresenceType string

const (
	PresenceUnavailable  PresenceType = "unavailable"
	PresenceSubscribe    PresenceType = "subscribe"
	PresenceSubscribed   PresenceType = "subscribed"
	PresenceUnsubscribe  PresenceType = "unsubscribe"
	PresenceUnsubscribed PresenceType = "unsubscribed"
	PresenceError        PresenceType = "error"
)

// Show is the <show/> element: present only while available and not plain
// "available" (spec §4.2 "availability/show").
type Show string

const (
	ShowAway Show = "away"
	ShowChat Show = "chat"
	ShowDND  Show = "dnd"
	ShowXA   Show = "xa"
)

// Presence is the presence stanza: availability, show, priority, the
// capabilities hash, MUC join/occupant metadata, and the vCard avatar
// update hint (spec §4.2).
type Presence struct {
	XMLName xml.Name     `xml:"jabber:client presence"`
	From    string       `xml:"from,attr,omitempty"`
	To      string       `xml:"to,attr,omitempty"`
	Id      string       `xml:"id,attr,omitempty"`
	Type    PresenceType `xml:"type,attr,omitempty"`

	Show     Show   `xml:"show,omitempty"`
	Status   string `xml:"status,omitempty"`
	Priority *int   `xml:"priority,omitempty"`

	Error *StanzaError `xml:"error,omitempty"`

	Caps        *CapsTag      `xml:"http://jabber.org/protocol/caps c,omitempty"`
	MUC         *MUCJoin      `xml:"http://jabber.org/protocol/muc x,omitempty"`
	MUCUser     *MUCUserX     `xml:"http://jabber.org/protocol/muc#user x,omitempty"`
	VCardUpdate *VCardUpdate  `xml:"vcard-temp:x:update x,omitempty"`
}

// CapsTag is the XEP-0115 entity capabilities hash, advertised on every
// outbound available presence.
type CapsTag struct {
	Hash string `xml:"hash,attr"`
	Node string `xml:"node,attr"`
	Ver  string `xml:"ver,attr"`
}

// MUCJoin is the join request's http://jabber.org/protocol/muc payload:
// optional password and a history-suppression hint.
type MUCJoin struct {
	Password string     `xml:"password,omitempty"`
	History  *MUCHistory `xml:"history,omitempty"`
}

// MUCHistory requests the server suppress or bound the room-history replay
// sent alongside the join (maxstanzas=0 to suppress entirely).
type MUCHistory struct {
	MaxStanzas *int `xml:"maxstanzas,attr,omitempty"`
	Since      string `xml:"since,attr,omitempty"`
}

// VCardUpdate is the XEP-0153 avatar-update hint: an empty element requests
// the current hash, a present Photo announces or clears it ("" clears).
type VCardUpdate struct {
	Photo *string `xml:"photo,omitempty"`
}
