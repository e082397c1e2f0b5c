package client

// EventKind is the discriminant of the facade's event stream (spec §6
// "The facade also emits a stream of events").
type EventKind string

const (
	EventConnected                    EventKind = "connected"
	EventDisconnected                 EventKind = "disconnected"
	EventContactChanged               EventKind = "contact-changed"
	EventAvatarChanged                EventKind = "avatar-changed"
	EventSidebarChanged               EventKind = "sidebar-changed"
	EventRoomChanged                  EventKind = "room-changed"
	EventPresenceSubscriptionRequest  EventKind = "presence-subscription-request"
	EventBlockListChanged             EventKind = "block-list-changed"
)

// RoomChangeKind is the attribute of a room that changed, carried on a
// room-changed event (spec §6 "room-changed(id, attributes|participants|
// composing-users|messages-appended(ids)|messages-updated(ids)|
// messages-deleted(ids))").
type RoomChangeKind string

const (
	RoomChangeAttributes      RoomChangeKind = "attributes"
	RoomChangeParticipants    RoomChangeKind = "participants"
	RoomChangeComposingUsers  RoomChangeKind = "composing-users"
	RoomChangeMessagesAppended RoomChangeKind = "messages-appended"
	RoomChangeMessagesUpdated  RoomChangeKind = "messages-updated"
	RoomChangeMessagesDeleted  RoomChangeKind = "messages-deleted"
)

// Event is one item on the facade's event stream. Only the fields
// relevant to Kind are populated; the rest are left at their zero value.
type Event struct {
	Kind EventKind

	// ID is the contact, avatar owner, or room JID the event concerns.
	ID string

	// Cause is set on EventDisconnected; nil for a caller-initiated
	// disconnect.
	Cause error

	// Nickname is set on EventPresenceSubscriptionRequest.
	Nickname string

	// RoomChange and MessageIDs are set on EventRoomChanged.
	RoomChange RoomChangeKind
	MessageIDs []string
}

const eventBuffer = 256

// Events returns the facade's event stream. The Client never closes the
// channel; callers should range over it rather than assume one read per
// call.
func (c *Client) Events() <-chan Event { return c.events }

// emit delivers e without blocking the caller (always a protocol dispatch
// goroutine per runtime.Module's "handlers must not block" contract): a
// full buffer drops the event and logs a warning rather than stalling
// stanza dispatch.
func (c *Client) emit(e Event) {
	select {
	case c.events <- e:
	default:
		c.log.Warn().Str("kind", string(e.Kind)).Msg("event buffer full, dropping event")
	}
}
