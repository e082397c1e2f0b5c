package stanza

import (
	"bytes"
	"encoding/xml"
)

// messageWire mirrors Message's tag-addressable fields, plus a raw Extra
// slot that carries the chat-state marker, chat-marker, and processing
// hints as pre-rendered XML bytes. Those three are "is this element
// present" markers in distinct namespaces rather than structured payloads,
// so they don't map onto ordinary struct tags; rendering them to bytes
// ahead of time and splicing them in via innerxml keeps Message's own field
// set free of marshal-only plumbing.
type messageWire struct {
	XMLName xml.Name    `xml:"jabber:client message"`
	From    string      `xml:"from,attr,omitempty"`
	To      string      `xml:"to,attr,omitempty"`
	Id      string      `xml:"id,attr,omitempty"`
	Type    MessageType `xml:"type,attr,omitempty"`

	Body    string `xml:"body,omitempty"`
	Subject string `xml:"subject,omitempty"`

	StanzaID       *StanzaID       `xml:"urn:xmpp:sid:0 stanza-id,omitempty"`
	OriginID       *StanzaID       `xml:"urn:xmpp:sid:0 origin-id,omitempty"`
	OccupantID     *OccupantID     `xml:"urn:xmpp:occupant-id:0 occupant-id,omitempty"`
	Correction     *Correction     `xml:"urn:xmpp:message-correct:0 replace,omitempty"`
	Fastening      *Fastening      `xml:"urn:xmpp:fasten:0 apply-to,omitempty"`
	Reactions      *Reactions      `xml:"urn:xmpp:reactions:0 reactions,omitempty"`
	Receipt        *Receipt        `xml:"urn:xmpp:receipts received,omitempty"`
	RequestReceipt *ReceiptRequest `xml:"urn:xmpp:receipts request,omitempty"`
	Archived       *ArchivedWrap   `xml:"urn:xmpp:mam:2 result,omitempty"`
	Encrypted      *OMEMOEnvelope  `xml:"eu.siacs.conversations.axolotl encrypted,omitempty"`
	MUCUser        *MUCUserX       `xml:"http://jabber.org/protocol/muc#user x,omitempty"`
	PubSubEvent    *PubSubEvent    `xml:"http://jabber.org/protocol/pubsub#event event,omitempty"`

	Extra []byte `xml:",innerxml"`
}

// chatStateLocalNames maps each urn:xmpp:chatstates marker kind to its
// element name.
var chatStateLocalNames = map[ChatStateKind]string{
	ChatStateActive:    "active",
	ChatStateComposing: "composing",
	ChatStatePaused:    "paused",
	ChatStateInactive:  "inactive",
	ChatStateGone:      "gone",
}

var chatStateByLocal = func() map[string]ChatStateKind {
	m := make(map[string]ChatStateKind, len(chatStateLocalNames))
	for k, v := range chatStateLocalNames {
		m[v] = k
	}
	return m
}()

var markerLocalNames = map[string]bool{"received": true, "displayed": true, "acknowledged": true}

var hintLocalNames = map[string]bool{"store": true, "no-store": true, "no-copy": true, "no-permanent-store": true}

func toWire(m Message) messageWire {
	return messageWire{
		From: m.From, To: m.To, Id: m.Id, Type: m.Type,
		Body: m.Body, Subject: m.Subject,
		StanzaID: m.StanzaID, OriginID: m.OriginID, OccupantID: m.OccupantID,
		Correction: m.Correction, Fastening: m.Fastening, Reactions: m.Reactions,
		Receipt: m.Receipt, RequestReceipt: m.RequestReceipt, Archived: m.Archived,
		Encrypted: m.Encrypted, MUCUser: m.MUCUser, PubSubEvent: m.PubSubEvent,
		Extra: encodeExtra(m),
	}
}

func encodeExtra(m Message) []byte {
	var buf bytes.Buffer
	e := xml.NewEncoder(&buf)
	if local, ok := chatStateLocalNames[m.ChatState]; ok {
		writeEmptyElement(e, NSChatStates, local, nil)
	}
	if m.Markers != nil && markerLocalNames[m.Markers.Kind] {
		var attrs []xml.Attr
		if m.Markers.ID != "" {
			attrs = []xml.Attr{{Name: xml.Name{Local: "id"}, Value: m.Markers.ID}}
		}
		writeEmptyElement(e, NSMarkers, m.Markers.Kind, attrs)
	}
	for _, hint := range m.Hints {
		if hintLocalNames[hint.Kind] {
			writeEmptyElement(e, NSHints, hint.Kind, nil)
		}
	}
	e.Flush()
	return buf.Bytes()
}

func writeEmptyElement(e *xml.Encoder, space, local string, attrs []xml.Attr) {
	start := xml.StartElement{Name: xml.Name{Space: space, Local: local}, Attr: attrs}
	e.EncodeToken(start)
	e.EncodeToken(start.End())
}

// MarshalXML renders Message through messageWire so the chat-state,
// chat-marker, and hint fields (which have no single fixed element name)
// are spliced in as pre-rendered bytes alongside the tag-addressable ones.
// The element is always named <message xmlns="jabber:client">.
func (m Message) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Space: NSClient, Local: "message"}
	return e.EncodeElement(toWire(m), start)
}

func (m *Message) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type rawChild struct {
		XMLName xml.Name
		ID      string `xml:"id,attr,omitempty"`
	}
	// Embedded under an exported name: encoding/xml reflects on the embedded
	// value itself when resolving XMLName, which panics for an unexported one.
	type Wire messageWire
	var full struct {
		Wire
		Any []rawChild `xml:",any"`
	}
	if err := d.DecodeElement(&full, &start); err != nil {
		return err
	}

	*m = Message{
		From: full.From, To: full.To, Id: full.Id, Type: full.Type,
		Body: full.Body, Subject: full.Subject,
		StanzaID: full.StanzaID, OriginID: full.OriginID, OccupantID: full.OccupantID,
		Correction: full.Correction, Fastening: full.Fastening, Reactions: full.Reactions,
		Receipt: full.Receipt, RequestReceipt: full.RequestReceipt, Archived: full.Archived,
		Encrypted: full.Encrypted, MUCUser: full.MUCUser, PubSubEvent: full.PubSubEvent,
	}
	for _, child := range full.Any {
		switch child.XMLName.Space {
		case NSChatStates:
			if kind, ok := chatStateByLocal[child.XMLName.Local]; ok {
				m.ChatState = kind
			}
		case NSMarkers:
			if markerLocalNames[child.XMLName.Local] {
				m.Markers = &ChatMarker{Kind: child.XMLName.Local, ID: child.ID}
			}
		case NSHints:
			if hintLocalNames[child.XMLName.Local] {
				m.Hints = append(m.Hints, MessageHint{Kind: child.XMLName.Local})
			}
		}
	}
	return nil
}
