package stanza

import (
	"bytes"
	"encoding/xml"
)

// errorConditionNS is the namespace every RFC 6120 stanza error condition
// element lives in.
const errorConditionNS = "urn:ietf:params:xml:ns:xmpp-stanzas"

var errorConditionLocals = map[ErrorCondition]string{
	CondItemNotFound:          "item-not-found",
	CondConflict:              "conflict",
	CondGone:                  "gone",
	CondFeatureNotImplemented: "feature-not-implemented",
	CondBadRequest:            "bad-request",
	CondForbidden:             "forbidden",
	CondServiceUnavailable:    "service-unavailable",
	CondNotAuthorized:         "not-authorized",
	CondOther:                 "other",
}

var errorConditionByLocal = func() map[string]ErrorCondition {
	m := make(map[string]ErrorCondition, len(errorConditionLocals))
	for k, v := range errorConditionLocals {
		m[v] = k
	}
	return m
}()

type stanzaErrorWire struct {
	XMLName xml.Name `xml:"error"`
	Type    string   `xml:"type,attr,omitempty"`
	Text    string   `xml:"urn:ietf:params:xml:ns:xmpp-stanzas text,omitempty"`
	Raw     []byte   `xml:",innerxml"`
}

func (se StanzaError) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	wire := stanzaErrorWire{Type: se.Type, Text: se.Text}
	if local, ok := errorConditionLocals[se.Condition]; ok {
		condStart := xml.StartElement{Name: xml.Name{Space: errorConditionNS, Local: local}}
		var buf bytes.Buffer
		inner := xml.NewEncoder(&buf)
		inner.EncodeToken(condStart)
		inner.EncodeToken(condStart.End())
		inner.Flush()
		wire.Raw = append(buf.Bytes(), wire.Raw...)
	}
	return e.EncodeElement(wire, start)
}

func (se *StanzaError) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type rawChild struct {
		XMLName xml.Name
	}
	var full struct {
		Type string     `xml:"type,attr,omitempty"`
		Text string     `xml:"urn:ietf:params:xml:ns:xmpp-stanzas text,omitempty"`
		Any  []rawChild `xml:",any"`
	}
	if err := d.DecodeElement(&full, &start); err != nil {
		return err
	}
	se.Type = full.Type
	se.Text = full.Text
	se.Condition = CondOther
	for _, child := range full.Any {
		if child.XMLName.Space != errorConditionNS {
			continue
		}
		if cond, ok := errorConditionByLocal[child.XMLName.Local]; ok {
			se.Condition = cond
			break
		}
	}
	return nil
}
