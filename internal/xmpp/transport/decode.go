package transport

import (
	"encoding/xml"

	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// decodeElement finishes decoding the element whose opening tag the caller
// has already consumed as start, dispatching on its local name. It returns
// (nil, nil) for anything that isn't one of the three stanza kinds (stream
// features, whitespace, TLS/SASL bookkeeping), which the caller should
// silently skip.
func decodeElement(d *xml.Decoder, start xml.StartElement) (any, error) {
	switch start.Name.Local {
	case "message":
		var m stanza.Message
		if err := d.DecodeElement(&m, &start); err != nil {
			return nil, err
		}
		return &m, nil
	case "presence":
		var p stanza.Presence
		if err := d.DecodeElement(&p, &start); err != nil {
			return nil, err
		}
		return &p, nil
	case "iq":
		var iq stanza.IQ
		if err := d.DecodeElement(&iq, &start); err != nil {
			return nil, err
		}
		return &iq, nil
	default:
		return nil, d.Skip()
	}
}
