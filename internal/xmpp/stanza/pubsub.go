package stanza

import "encoding/xml"

// PubSub is the http://jabber.org/protocol/pubsub payload: publish, retract,
// items, and subscribe all share this envelope, distinguished by which child
// is populated (spec §4.2 "pub/sub publish/retract/items/subscribe with
// publish-options").
type PubSub struct {
	XMLName xml.Name        `xml:"http://jabber.org/protocol/pubsub pubsub"`
	Publish *PubSubPublish  `xml:"publish,omitempty"`
	Retract *PubSubRetractRequest `xml:"retract,omitempty"`
	Items   *PubSubItemsRequest   `xml:"items,omitempty"`
	Subscribe *PubSubSubscribe    `xml:"subscribe,omitempty"`
	PublishOptions *DataForm      `xml:"publish-options>x,omitempty"`
}

// PubSubOwner is the http://jabber.org/protocol/pubsub#owner payload, used
// for node configuration (e.g. bookmarks autocreate with access model).
type PubSubOwner struct {
	XMLName   xml.Name  `xml:"http://jabber.org/protocol/pubsub#owner pubsub"`
	Configure *PubSubConfigure `xml:"configure,omitempty"`
}

type PubSubConfigure struct {
	Node string    `xml:"node,attr,omitempty"`
	Form *DataForm `xml:"jabber:x:data x,omitempty"`
}

// PubSubPublish requests that Items be published to Node.
type PubSubPublish struct {
	Node  string       `xml:"node,attr"`
	Items []PubSubItem `xml:"item"`
}

// PubSubItem is a single published item: an opaque id plus its raw payload,
// since the pubsub envelope doesn't know the shape of what it's carrying
// (bookmark conference, avatar metadata, OMEMO device list, ...).
type PubSubItem struct {
	ID      string `xml:"id,attr,omitempty"`
	Payload []byte `xml:",innerxml"`
}

// PubSubRetractRequest asks the service to retract one or more published items.
type PubSubRetractRequest struct {
	Node  string          `xml:"node,attr"`
	Notify bool           `xml:"notify,attr,omitempty"`
	Items []PubSubRetract `xml:"item"`
}

// PubSubItemsRequest queries a node's current items, optionally bounded by
// MaxItems or restricted to the ids listed in Items.
type PubSubItemsRequest struct {
	Node     string       `xml:"node,attr"`
	MaxItems int          `xml:"max_items,attr,omitempty"`
	Items    []PubSubItem `xml:"item"`
}

// PubSubSubscribe subscribes JID to Node.
type PubSubSubscribe struct {
	Node string `xml:"node,attr"`
	JID  string `xml:"jid,attr"`
}
