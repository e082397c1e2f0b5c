package stanza

import "encoding/xml"

// BookmarkConference is a single urn:xmpp:bookmarks:1 pub/sub item payload
// (spec §9 "Legacy + modern bookmark coexistence"): one bookmarked room,
// keyed by the pub/sub item id (the room's bare JID).
type BookmarkConference struct {
	XMLName  xml.Name `xml:"urn:xmpp:bookmarks:1 conference"`
	Name     string   `xml:"name,attr,omitempty"`
	Autojoin bool     `xml:"autojoin,attr,omitempty"`
	Nick     string   `xml:"nick,omitempty"`
	Password string   `xml:"password,omitempty"`
}

// BookmarkStorage is the legacy storage:bookmarks single-item payload: the
// whole bookmark list lives in one PEP item rather than one item per room.
type BookmarkStorage struct {
	XMLName     xml.Name                   `xml:"storage:bookmarks storage"`
	Conferences []LegacyBookmarkConference `xml:"conference"`
}

type LegacyBookmarkConference struct {
	JID      string `xml:"jid,attr"`
	Name     string `xml:"name,attr,omitempty"`
	Autojoin bool   `xml:"autojoin,attr,omitempty"`
	Nick     string `xml:"nick,omitempty"`
	Password string `xml:"password,omitempty"`
}
