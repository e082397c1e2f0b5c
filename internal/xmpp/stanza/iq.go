package stanza

import "encoding/xml"

// IQType is the info/query stanza's type attribute.
type IQType string

const (
	IQGet    IQType = "get"
	IQSet    IQType = "set"
	IQResult IQType = "result"
	IQError  IQType = "error"
)

// ErrorCondition enumerates the typed IQ error conditions spec §4.1
// "Failure semantics" requires the runtime to surface.
type ErrorCondition string

const (
	CondItemNotFound        ErrorCondition = "item-not-found"
	CondConflict            ErrorCondition = "conflict"
	CondGone                ErrorCondition = "gone"
	CondFeatureNotImplemented ErrorCondition = "feature-not-implemented"
	CondBadRequest          ErrorCondition = "bad-request"
	CondForbidden           ErrorCondition = "forbidden"
	CondServiceUnavailable  ErrorCondition = "service-unavailable"
	CondNotAuthorized       ErrorCondition = "not-authorized"
	CondOther               ErrorCondition = "other"
)

// StanzaError is the <error/> child of an error-type stanza.
type StanzaError struct {
	XMLName   xml.Name       `xml:"error"`
	Type      string         `xml:"type,attr,omitempty"`
	Condition ErrorCondition `xml:"-"`
	Text      string         `xml:"urn:ietf:params:xml:ns:xmpp-stanzas text,omitempty"`
	Raw       []byte         `xml:",innerxml"`
}

// IQ is the info/query stanza: request/response correlated by Id.
type IQ struct {
	XMLName xml.Name `xml:"jabber:client iq"`
	From    string   `xml:"from,attr,omitempty"`
	To      string   `xml:"to,attr,omitempty"`
	Id      string   `xml:"id,attr"`
	Type    IQType   `xml:"type,attr"`

	Error *StanzaError `xml:"error,omitempty"`

	Roster     *RosterQuery     `xml:"jabber:iq:roster query,omitempty"`
	VCard      *VCard           `xml:"urn:xmpp:vcard4 vcard,omitempty"`
	PubSub     *PubSub          `xml:"http://jabber.org/protocol/pubsub pubsub,omitempty"`
	PubSubOwner *PubSubOwner    `xml:"http://jabber.org/protocol/pubsub#owner pubsub,omitempty"`
	DiscoInfo  *DiscoInfoQuery  `xml:"http://jabber.org/protocol/disco#info query,omitempty"`
	DiscoItems *DiscoItemsQuery `xml:"http://jabber.org/protocol/disco#items query,omitempty"`
	MUCAdmin   *MUCAdmin        `xml:"http://jabber.org/protocol/muc#admin query,omitempty"`
	MUCOwner   *MUCOwner        `xml:"http://jabber.org/protocol/muc#owner query,omitempty"`
	Ping       *Ping            `xml:"urn:xmpp:ping ping,omitempty"`
	Upload     *UploadRequest   `xml:"urn:xmpp:http:upload:0 request,omitempty"`
	UploadSlot *UploadSlot      `xml:"urn:xmpp:http:upload:0 slot,omitempty"`
	MAMQuery   *MAMQuery        `xml:"urn:xmpp:mam:2 query,omitempty"`
	MAMFin     *MAMFin          `xml:"urn:xmpp:mam:2 fin,omitempty"`
	Blocklist  *Blocklist       `xml:"urn:xmpp:blocking blocklist,omitempty"`
	Block      *BlockList       `xml:"urn:xmpp:blocking block,omitempty"`
	Unblock    *BlockList       `xml:"urn:xmpp:blocking unblock,omitempty"`
	Register   *RegisterQuery   `xml:"jabber:iq:register query,omitempty"`
}

// RegisterQuery is the jabber:iq:register payload used here only for its
// in-band password change (set Username+Password on an existing account).
type RegisterQuery struct {
	XMLName  xml.Name `xml:"jabber:iq:register query"`
	Username string   `xml:"username,omitempty"`
	Password string   `xml:"password,omitempty"`
}

// RosterQuery is the jabber:iq:roster payload.
type RosterQuery struct {
	XMLName xml.Name     `xml:"jabber:iq:roster query"`
	Ver     string       `xml:"ver,attr,omitempty"`
	Items   []RosterItem `xml:"item"`
}

type RosterItem struct {
	JID          string   `xml:"jid,attr"`
	Name         string   `xml:"name,attr,omitempty"`
	Subscription string   `xml:"subscription,attr,omitempty"`
	Ask          string   `xml:"ask,attr,omitempty"`
	Groups       []string `xml:"group"`
}

// VCard is the minimum subset of urn:xmpp:vcard4 the core round-trips.
type VCard struct {
	XMLName xml.Name `xml:"urn:xmpp:vcard4 vcard"`
	FN      string   `xml:"fn>text,omitempty"`
	Nick    string   `xml:"nickname>text,omitempty"`
	Note    string   `xml:"note>text,omitempty"`
}

// Ping is the urn:xmpp:ping keep-alive payload.
type Ping struct {
	XMLName xml.Name `xml:"urn:xmpp:ping ping"`
}

// DiscoInfoQuery requests or returns feature/identity discovery.
type DiscoInfoQuery struct {
	XMLName    xml.Name         `xml:"http://jabber.org/protocol/disco#info query"`
	Node       string           `xml:"node,attr,omitempty"`
	Identities []DiscoIdentity  `xml:"identity"`
	Features   []DiscoFeature   `xml:"feature"`
}

type DiscoIdentity struct {
	Category string `xml:"category,attr"`
	Type     string `xml:"type,attr"`
	Name     string `xml:"name,attr,omitempty"`
}

type DiscoFeature struct {
	Var string `xml:"var,attr"`
}

// DiscoItemsQuery requests or returns the room/service item list.
type DiscoItemsQuery struct {
	XMLName xml.Name    `xml:"http://jabber.org/protocol/disco#items query"`
	Node    string      `xml:"node,attr,omitempty"`
	Items   []DiscoItem `xml:"item"`
}

type DiscoItem struct {
	JID  string `xml:"jid,attr"`
	Name string `xml:"name,attr,omitempty"`
}

// MUCAdmin carries the affiliation list for query or update.
type MUCAdmin struct {
	XMLName xml.Name    `xml:"http://jabber.org/protocol/muc#admin query"`
	Items   []MUCItem   `xml:"item"`
}

type MUCItem struct {
	JID         string `xml:"jid,attr,omitempty"`
	Nick        string `xml:"nick,attr,omitempty"`
	Affiliation string `xml:"affiliation,attr,omitempty"`
	Role        string `xml:"role,attr,omitempty"`
	Reason      string `xml:"reason,omitempty"`
}

// MUCOwner carries the room configuration form or a destroy request.
type MUCOwner struct {
	XMLName xml.Name      `xml:"http://jabber.org/protocol/muc#owner query"`
	Destroy *MUCDestroy   `xml:"destroy,omitempty"`
	Form    *DataForm     `xml:"jabber:x:data x,omitempty"`
}

type MUCDestroy struct {
	JID    string `xml:"jid,attr,omitempty"`
	Reason string `xml:"reason,omitempty"`
}

// DataForm is the jabber:x:data form carried by MUC owner IQs.
type DataForm struct {
	XMLName xml.Name    `xml:"jabber:x:data x"`
	Type    string      `xml:"type,attr"`
	Fields  []FormField `xml:"field"`
}

type FormField struct {
	Var    string   `xml:"var,attr,omitempty"`
	Type   string   `xml:"type,attr,omitempty"`
	Values []string `xml:"value"`
}

// Value returns the single value of a field, or "" if absent.
func (f FormField) Value() string {
	if len(f.Values) == 0 {
		return ""
	}
	return f.Values[0]
}

// UploadRequest is the urn:xmpp:http:upload:0 slot request.
type UploadRequest struct {
	XMLName  xml.Name `xml:"urn:xmpp:http:upload:0 request"`
	Filename string   `xml:"filename,attr"`
	Size     int64    `xml:"size,attr"`
	// ContentType is the upload's MIME type; the slot may be issued without
	// one when the caller omits it (spec §6 "request upload slot(file name,
	// file size, mime type?)").
	ContentType string `xml:"content-type,attr,omitempty"`
}

// UploadSlot is the server's response, carrying PUT/GET URLs and headers.
type UploadSlot struct {
	XMLName xml.Name       `xml:"urn:xmpp:http:upload:0 slot"`
	Put     UploadPutLink  `xml:"put"`
	Get     UploadGetLink  `xml:"get"`
}

type UploadPutLink struct {
	URL     string            `xml:"url,attr"`
	Headers []UploadHeader    `xml:"header"`
}

type UploadHeader struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type UploadGetLink struct {
	URL string `xml:"url,attr"`
}

// MAMQuery is an urn:xmpp:mam:2 archive query, optionally form-filtered and
// paged via RSM.
type MAMQuery struct {
	XMLName xml.Name  `xml:"urn:xmpp:mam:2 query"`
	QueryID string    `xml:"queryid,attr,omitempty"`
	Form    *DataForm `xml:"jabber:x:data x,omitempty"`
	RSM     *RSMSet   `xml:"http://jabber.org/protocol/rsm set,omitempty"`
}

// MAMFin is the terminal marker of an archive query's composite response.
type MAMFin struct {
	XMLName xml.Name `xml:"urn:xmpp:mam:2 fin"`
	Complete bool    `xml:"complete,attr,omitempty"`
	RSM      *RSMSet `xml:"http://jabber.org/protocol/rsm set,omitempty"`
}

// RSMSet is the Result Set Management paging descriptor.
type RSMSet struct {
	XMLName xml.Name `xml:"http://jabber.org/protocol/rsm set"`
	After   string   `xml:"after,omitempty"`
	Before  string   `xml:"before,omitempty"`
	Max     int      `xml:"max,omitempty"`
	Count   int      `xml:"count,omitempty"`
	First   string   `xml:"first,omitempty"`
	Last    string   `xml:"last,omitempty"`
}

// Blocklist is the urn:xmpp:blocking block-list query result.
type Blocklist struct {
	XMLName xml.Name `xml:"urn:xmpp:blocking blocklist"`
	Items   []BlockItem `xml:"item"`
}

// BlockList carries JIDs to block/unblock. Its element name (block or
// unblock) comes from the IQ field that holds it.
type BlockList struct {
	XMLName xml.Name
	Items   []BlockItem `xml:"item"`
}

type BlockItem struct {
	JID string `xml:"jid,attr"`
}
