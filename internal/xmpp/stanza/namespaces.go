package stanza

// Namespace constants for every XML vocabulary the core consumes or emits
// (spec §6 "Server wire protocol"). Grouped and named the way
// mellium-xmpp's muc package groups its own NS/NSUser/NSOwner/NSAdmin block.
const (
	NSClient = "jabber:client"

	NSRoster   = "jabber:iq:roster"
	NSVersion  = "jabber:iq:version"
	NSRegister = "jabber:iq:register"

	NSDiscoInfo  = "http://jabber.org/protocol/disco#info"
	NSDiscoItems = "http://jabber.org/protocol/disco#items"
	NSCaps       = "http://jabber.org/protocol/caps"
	NSChatStates = "http://jabber.org/protocol/chatstates"
	NSRSM        = "http://jabber.org/protocol/rsm"

	NSMUC      = "http://jabber.org/protocol/muc"
	NSMUCUser  = "http://jabber.org/protocol/muc#user"
	NSMUCOwner = "http://jabber.org/protocol/muc#owner"
	NSMUCAdmin = "http://jabber.org/protocol/muc#admin"

	NSPubSub      = "http://jabber.org/protocol/pubsub"
	NSPubSubOwner = "http://jabber.org/protocol/pubsub#owner"
	NSPubSubEvent = "http://jabber.org/protocol/pubsub#event"

	NSMAM      = "urn:xmpp:mam:2"
	NSCarbons  = "urn:xmpp:carbons:2"
	NSReceipts = "urn:xmpp:receipts"
	NSMarkers  = "urn:xmpp:chat-markers:0"
	NSReactions = "urn:xmpp:reactions:0"
	NSRetract  = "urn:xmpp:message-retract:0"
	NSCorrect  = "urn:xmpp:message-correct:0"
	NSHints    = "urn:xmpp:hints"
	NSSID      = "urn:xmpp:sid:0"
	NSOccupantID = "urn:xmpp:occupant-id:0"
	NSPing     = "urn:xmpp:ping"
	NSTime     = "urn:xmpp:time"
	NSBlocking = "urn:xmpp:blocking"
	NSHTTPUpload = "urn:xmpp:http:upload:0"

	NSAvatarData     = "urn:xmpp:avatar:data"
	NSAvatarMetadata = "urn:xmpp:avatar:metadata"
	NSVCard4         = "urn:xmpp:vcard4"
	NSBookmarks      = "urn:xmpp:bookmarks:1"
	NSBookmarksLegacy = "storage:bookmarks"

	NSOMEMO           = "eu.siacs.conversations.axolotl"
	NSOMEMODeviceList = NSOMEMO + ":devicelist"
	NSOMEMOBundlesPrefix = NSOMEMO + ":bundles:"
)
