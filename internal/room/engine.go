package room

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/jid"
	"github.com/prose-im/prose-core-go/internal/xmpp/modules"
	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// Engine is the room lifecycle engine: it owns the connected-rooms
// registry and every create/join/classify/reconfigure/destroy operation
// (spec §4.3).
type Engine struct {
	rt       *runtime.Runtime
	disco    *modules.Disco
	registry *Registry
	log      zerolog.Logger

	self jid.JID
}

func NewEngine(rt *runtime.Runtime, disco *modules.Disco, registry *Registry, self jid.JID, log zerolog.Logger) *Engine {
	return &Engine{rt: rt, disco: disco, registry: registry, self: self, log: log.With().Str("component", "room-engine").Logger()}
}

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) nickname() string {
	return DefaultNickname(e.self.Bare().Node, e.self.Bare().String())
}

// JoinDirectMessage materializes a one-to-one room for participant; no
// server-side room exists (spec §4.3 "join direct message(user id)").
func (e *Engine) JoinDirectMessage(participant, displayName string) (*Room, error) {
	if r, ok := e.registry.Get(participant); ok {
		return r, nil
	}
	r := &Room{JID: participant, Type: TypeDirectMessage, Name: displayName, Participants: map[string]*Participant{}}
	inserted, err := e.registry.Insert(participant, r)
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// joinResult is what the presence-handshake composite continuation
// accumulates (spec §4.3 "Presence handshake").
type joinResult struct {
	selfPresence *stanza.Presence
	occupants    []*stanza.Presence
	history      []*stanza.Message
	subject      *stanza.Message
}

// joinRoom sends the join presence and awaits the full handshake: other
// occupants, the self-presence, zero or more history messages, and the
// terminating subject message (spec §4.3 "Presence handshake").
func (e *Engine) joinRoom(ctx context.Context, roomBareJID, nickname, password string) (*joinResult, error) {
	full := roomBareJID + "/" + nickname
	maxStanzas := 0

	var mu sync.Mutex
	result := &joinResult{}

	reducer := func(element any) (accepted, done bool, out any, err error) {
		switch v := element.(type) {
		case *stanza.Presence:
			if !strings.HasPrefix(v.From, roomBareJID+"/") {
				return false, false, nil, nil
			}
			mu.Lock()
			defer mu.Unlock()
			if v.From == full {
				result.selfPresence = v
				return true, true, result, nil
			}
			result.occupants = append(result.occupants, v)
			return true, false, nil, nil
		case *stanza.Message:
			if !strings.HasPrefix(v.From, roomBareJID) {
				return false, false, nil, nil
			}
			mu.Lock()
			defer mu.Unlock()
			if v.From == roomBareJID {
				result.subject = v
				return true, true, result, nil
			}
			result.history = append(result.history, v)
			return true, false, nil, nil
		}
		return false, false, nil, nil
	}

	id := xid.New().String()
	p := &stanza.Presence{
		To: full, Id: id,
		MUC: &stanza.MUCJoin{Password: password, History: &stanza.MUCHistory{MaxStanzas: &maxStanzas}},
	}

	out, err := e.rt.SendComposite(ctx, id, p, reducer)
	if err != nil {
		return nil, err
	}
	jr := out.(*joinResult)
	if jr.selfPresence != nil && jr.selfPresence.Type == stanza.PresenceError {
		cond := stanza.CondOther
		if jr.selfPresence.Error != nil {
			cond = jr.selfPresence.Error.Condition
		}
		return nil, &Error{Kind: ErrRequestError, RoomJID: roomBareJID, Cause: fmt.Errorf("join refused: %s", cond)}
	}
	return jr, nil
}

func wasNewlyCreated(p *stanza.Presence) bool {
	if p == nil || p.MUCUser == nil {
		return false
	}
	for _, s := range p.MUCUser.Status {
		if s.Code == 201 {
			return true
		}
	}
	return false
}

// JoinRoom attempts to enter roomBareJID with the preferred nickname,
// retrying with a "#N" suffix on conflict (spec §4.3 "join(room id,
// password?)").
func (e *Engine) JoinRoom(ctx context.Context, roomBareJID, password string) (*Room, error) {
	nickname := e.nickname()

	pending := NewPendingRoom(roomBareJID, nickname)
	inserted, err := e.registry.Insert(roomBareJID, pending)
	if err != nil {
		return nil, err
	}
	if inserted != pending {
		return inserted, nil
	}

	var jr *joinResult
	for attempt := 0; attempt < 10; attempt++ {
		candidate := NicknameWithSuffix(nickname, attempt)
		jr, err = e.joinRoom(ctx, roomBareJID, candidate, password)
		if err == nil {
			pending.Nickname = candidate
			break
		}
		var rerr *Error
		if ok := asRoomError(err, &rerr); !ok || !strings.Contains(rerr.Error(), "conflict") {
			e.registry.Delete(roomBareJID)
			return nil, err
		}
	}
	if err != nil {
		e.registry.Delete(roomBareJID)
		return nil, err
	}

	return e.finalizePendingRoom(ctx, pending, jr)
}

func asRoomError(err error, target **Error) bool {
	re, ok := err.(*Error)
	if ok {
		*target = re
	}
	return ok
}

// finalizePendingRoom runs metadata discovery and classification, then
// promotes the pending room in place (spec §4.3 "Metadata discovery",
// "Classification").
func (e *Engine) finalizePendingRoom(ctx context.Context, pending *Room, jr *joinResult) (*Room, error) {
	for _, occ := range jr.occupants {
		pending.UpsertParticipant(participantFromPresence(occ))
	}
	if jr.selfPresence != nil {
		pending.UpsertParticipant(participantFromPresence(jr.selfPresence))
	}

	info, err := e.disco.Query(ctx, pending.JID, "")
	if err != nil {
		e.registry.Delete(pending.JID)
		return nil, wrapErr(pending.JID, err)
	}

	features := map[string]bool{}
	for _, f := range info.Features {
		features[f.Var] = true
	}
	t := Classify(pending.JID, features["muc_membersonly"], features["muc_nonanonymous"],
		features["muc_persistent"], features["muc_hidden"], features["muc_public"])

	name := pending.JID
	for _, id := range info.Identities {
		if id.Name != "" {
			name = id.Name
		}
	}

	pending.SetName(name)
	pending.SetType(t)

	if jr.subject != nil {
		// Subject body, if present, becomes the description.
		pending.SetDescription(jr.subject.Subject)
	}

	pending.SetMembers(e.queryMembers(ctx, pending.JID))

	return pending, nil
}

// queryMembers fetches the owner and member affiliation lists, building
// the registered-member roster a live occupant list alone can't give you
// (spec §4.3 "Metadata discovery"). Best-effort: a server that refuses or
// doesn't support muc#admin queries leaves the room without a member
// roster rather than failing the join.
func (e *Engine) queryMembers(ctx context.Context, roomBareJID string) []Member {
	var members []Member
	for _, affiliation := range []string{"owner", "member"} {
		iq := &stanza.IQ{
			To: roomBareJID, Id: xid.New().String(), Type: stanza.IQGet,
			MUCAdmin: &stanza.MUCAdmin{Items: []stanza.MUCItem{{Affiliation: affiliation}}},
		}
		res, err := e.rt.SendIQ(ctx, iq)
		if err != nil {
			e.log.Warn().Err(err).Str("room", roomBareJID).Str("affiliation", affiliation).Msg("failed to query affiliation list")
			continue
		}
		if res.MUCAdmin == nil {
			continue
		}
		for _, item := range res.MUCAdmin.Items {
			members = append(members, Member{JID: item.JID, Affiliation: affiliationFromString(item.Affiliation)})
		}
	}
	return members
}

// SetComposing applies an inbound chat-state stanza to the named room's
// participant list, reporting whether a connected room was found (spec
// §3/§9 "Composing indicator").
func (e *Engine) SetComposing(conversation, fromFull string, state stanza.ChatStateKind) bool {
	r, ok := e.registry.Get(conversation)
	if !ok {
		return false
	}
	r.SetComposing(fromFull, state == stanza.ChatStateComposing)
	return true
}

func participantFromPresence(p *stanza.Presence) Participant {
	part := Participant{OccupantJID: p.From, Available: p.Type != stanza.PresenceUnavailable}
	if idx := strings.IndexByte(p.From, '/'); idx >= 0 {
		part.Nickname = p.From[idx+1:]
	}
	if p.MUCUser != nil && len(p.MUCUser.Items) > 0 {
		item := p.MUCUser.Items[0]
		part.RealJID = item.JID
		part.Role = item.Role
		part.Affiliation = affiliationFromString(item.Affiliation)
	}
	return part
}

func affiliationFromString(s string) Affiliation {
	switch s {
	case "owner":
		return AffiliationOwner
	case "admin":
		return AffiliationAdmin
	case "member":
		return AffiliationMember
	case "outcast":
		return AffiliationOutcast
	default:
		return AffiliationNone
	}
}

// CreateGroup derives the deterministic node hash, submits the group
// configuration form, grants ownership to every participant, and sends
// mediated invites (spec §4.3 "create group(participants)").
func (e *Engine) CreateGroup(ctx context.Context, service string, participants []string, displayNames []string) (*Room, error) {
	if len(participants) < 2 {
		return nil, &Error{Kind: ErrInvalidNumberOfParticipants}
	}
	all := append([]string{e.self.Bare().String()}, participants...)
	node := GroupNode(all)
	roomBareJID := node + "@" + service
	name := GroupDisplayName(displayNames)

	room, err := e.createOrJoinWithSpec(ctx, roomBareJID, name, GroupSpec)
	if err != nil {
		return nil, err
	}
	room.SetType(TypeGroup)

	for _, participant := range participants {
		if err := e.grantAffiliation(ctx, roomBareJID, participant, "owner"); err != nil {
			e.log.Warn().Err(err).Str("jid", participant).Msg("failed to grant group ownership")
		}
		_ = e.sendMediatedInvite(ctx, roomBareJID, participant)
	}
	return room, nil
}

// CreatePrivateChannel uses a random node identifier, members-only with
// a public name (spec §4.3 "create private channel(name)").
func (e *Engine) CreatePrivateChannel(ctx context.Context, service, name string) (*Room, error) {
	node := "org.prose.channel." + uuid.NewString()
	room, err := e.createOrJoinWithSpec(ctx, node+"@"+service, name, PrivateChannelSpec)
	if err != nil {
		return nil, err
	}
	room.SetType(TypePrivateChannel)
	return room, nil
}

// CreatePublicChannel verifies name uniqueness across the service's
// public rooms before creating (spec §4.3 "create public channel(name)").
func (e *Engine) CreatePublicChannel(ctx context.Context, service, name string) (*Room, error) {
	unique, err := e.isPublicChannelNameUnique(ctx, service, name)
	if err != nil {
		return nil, err
	}
	if !unique {
		return nil, &Error{Kind: ErrPublicChannelNameConflict}
	}
	node := "org.prose.channel." + uuid.NewString()
	room, err := e.createOrJoinWithSpec(ctx, node+"@"+service, name, PublicChannelSpec)
	if err != nil {
		return nil, err
	}
	room.SetType(TypePublicChannel)
	return room, nil
}

func (e *Engine) isPublicChannelNameUnique(ctx context.Context, service, name string) (bool, error) {
	items, err := e.disco.QueryItems(ctx, service, "")
	if err != nil {
		return false, wrapErr(service, err)
	}
	lower := strings.ToLower(name)
	for _, item := range items.Items {
		if strings.ToLower(item.Name) == lower {
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) createOrJoinWithSpec(ctx context.Context, roomBareJID, name string, spec Spec) (*Room, error) {
	nickname := e.nickname()
	pending := NewPendingRoom(roomBareJID, nickname)
	inserted, err := e.registry.Insert(roomBareJID, pending)
	if err != nil {
		return nil, err
	}
	if inserted != pending {
		return inserted, nil
	}

	jr, err := e.joinRoom(ctx, roomBareJID, nickname, "")
	if err != nil {
		e.registry.Delete(roomBareJID)
		return nil, err
	}

	// Only a freshly-created room (self-presence status code 201) needs its
	// configuration form submitted; joining an existing room of the same
	// node leaves whatever configuration it already has.
	if wasNewlyCreated(jr.selfPresence) {
		form := spec.Form(name)
		iq := &stanza.IQ{To: roomBareJID, Id: xid.New().String(), Type: stanza.IQSet, MUCOwner: &stanza.MUCOwner{Form: form}}
		if _, err := e.rt.SendIQ(ctx, iq); err != nil {
			e.registry.Delete(roomBareJID)
			return nil, wrapErr(roomBareJID, err)
		}
	}

	room, err := e.finalizePendingRoom(ctx, pending, jr)
	if err != nil {
		return nil, err
	}
	room.SetName(name)
	return room, nil
}

func (e *Engine) grantAffiliation(ctx context.Context, roomBareJID, participantJID, affiliation string) error {
	iq := &stanza.IQ{
		To: roomBareJID, Id: xid.New().String(), Type: stanza.IQSet,
		MUCAdmin: &stanza.MUCAdmin{Items: []stanza.MUCItem{{JID: participantJID, Affiliation: affiliation}}},
	}
	_, err := e.rt.SendIQ(ctx, iq)
	return err
}

func (e *Engine) sendMediatedInvite(ctx context.Context, roomBareJID, participantJID string) error {
	msg := &stanza.Message{To: roomBareJID, Id: xid.New().String(), MUCUser: &stanza.MUCUserX{Invite: &stanza.MUCInvite{To: participantJID}}}
	return e.rt.Send(ctx, msg)
}

// Rename renames a public/private channel or generic room in place.
// Panics on group/direct-message/pending, per the original domain
// service's "Unsupported action" contract (spec §4.3 names these
// transitions as the only allowed ones).
func (e *Engine) Rename(ctx context.Context, roomBareJID, name, service string) (*Room, error) {
	r, ok := e.registry.Get(roomBareJID)
	if !ok {
		return nil, newErr(ErrRoomNotFound, roomBareJID)
	}
	switch r.GetType() {
	case TypePending, TypeDirectMessage, TypeGroup:
		panic("room: rename is not supported for this room type")
	case TypePublicChannel:
		unique, err := e.isPublicChannelNameUnique(ctx, service, name)
		if err != nil {
			return nil, err
		}
		if !unique {
			return nil, &Error{Kind: ErrPublicChannelNameConflict, RoomJID: roomBareJID}
		}
	}
	iq := &stanza.IQ{To: roomBareJID, Id: xid.New().String(), Type: stanza.IQSet,
		MUCOwner: &stanza.MUCOwner{Form: &stanza.DataForm{Type: "submit", Fields: []stanza.FormField{
			{Var: "FORM_TYPE", Values: []string{"http://jabber.org/protocol/muc#roomconfig"}},
			{Var: "muc#roomconfig_roomname", Values: []string{name}},
		}}}}
	if _, err := e.rt.SendIQ(ctx, iq); err != nil {
		return nil, wrapErr(roomBareJID, err)
	}
	r.SetName(name)
	return r, nil
}

// Reconfigure implements the two allowed transitions (spec §4.3
// "Reconfiguration"); any other (from, to) pair panics.
func (e *Engine) Reconfigure(ctx context.Context, roomBareJID string, to Type, newName string, copyMessages func(fromJID, toJID string) error) (*Room, error) {
	r, ok := e.registry.Get(roomBareJID)
	if !ok {
		return nil, newErr(ErrRoomNotFound, roomBareJID)
	}
	from := r.GetType()

	switch {
	case from == TypeGroup && to == TypePrivateChannel:
		return e.groupToPrivateChannel(ctx, r, newName, copyMessages)
	case from == TypePrivateChannel && to == TypePublicChannel:
		service := domainOf(roomBareJID)
		unique, err := e.isPublicChannelNameUnique(ctx, service, newName)
		if err != nil {
			return nil, err
		}
		if !unique {
			return nil, &Error{Kind: ErrPublicChannelNameConflict, RoomJID: roomBareJID}
		}
		if err := e.reconfigureInPlace(ctx, roomBareJID, PublicChannelSpec, newName); err != nil {
			return nil, err
		}
		r.SetType(TypePublicChannel)
		r.SetName(newName)
		return r, nil
	case from == TypePublicChannel && to == TypePrivateChannel:
		if err := e.reconfigureInPlace(ctx, roomBareJID, PrivateChannelSpec, newName); err != nil {
			return nil, err
		}
		r.SetType(TypePrivateChannel)
		r.SetName(newName)
		return r, nil
	default:
		panic(fmt.Sprintf("room: cannot convert room of type %s to type %s", from, to))
	}
}

func (e *Engine) reconfigureInPlace(ctx context.Context, roomBareJID string, spec Spec, name string) error {
	iq := &stanza.IQ{To: roomBareJID, Id: xid.New().String(), Type: stanza.IQSet, MUCOwner: &stanza.MUCOwner{Form: spec.Form(name)}}
	_, err := e.rt.SendIQ(ctx, iq)
	if err != nil {
		return wrapErr(roomBareJID, err)
	}
	return nil
}

// groupToPrivateChannel creates a new private channel, migrates messages,
// grants membership to every original member, and destroys the original
// group with an alternate-room hint (spec §4.3 "group → private channel").
func (e *Engine) groupToPrivateChannel(ctx context.Context, original *Room, newName string, copyMessages func(fromJID, toJID string) error) (*Room, error) {
	e.registry.Delete(original.JID)
	service := domainOf(original.JID)

	newRoom, err := e.CreatePrivateChannel(ctx, service, newName)
	if err != nil {
		e.registry.Set(original.JID, original)
		return nil, err
	}

	if copyMessages != nil {
		if err := copyMessages(original.JID, newRoom.JID); err != nil {
			e.registry.Set(original.JID, original)
			_ = e.Destroy(ctx, newRoom.JID, "")
			return nil, wrapErr(original.JID, err)
		}
	}

	snapshot := original.Snapshot()
	for _, member := range snapshot.Members {
		if member.Affiliation < AffiliationMember || member.JID == e.self.Bare().String() {
			continue
		}
		if err := e.grantAffiliation(ctx, newRoom.JID, member.JID, "member"); err != nil {
			e.log.Warn().Err(err).Str("jid", member.JID).Msg("failed to grant membership on converted channel")
		}
	}

	if err := e.Destroy(ctx, original.JID, newRoom.JID); err != nil {
		e.log.Warn().Err(err).Str("room", original.JID).Msg("failed to destroy original group after conversion")
	}

	return newRoom, nil
}

// Destroy issues a MUC owner destroy request, optionally with an
// alternate-room hint, and removes the registry entry.
func (e *Engine) Destroy(ctx context.Context, roomBareJID, alternateJID string) error {
	iq := &stanza.IQ{To: roomBareJID, Id: xid.New().String(), Type: stanza.IQSet,
		MUCOwner: &stanza.MUCOwner{Destroy: &stanza.MUCDestroy{JID: alternateJID}}}
	_, err := e.rt.SendIQ(ctx, iq)
	e.registry.Delete(roomBareJID)
	if err != nil {
		return wrapErr(roomBareJID, err)
	}
	return nil
}

// Reevaluate reloads a room's configuration and updates its classified
// type in place (spec §4.3's "handle changed room config" consumer).
func (e *Engine) Reevaluate(ctx context.Context, roomBareJID string) (*Room, error) {
	r, ok := e.registry.Get(roomBareJID)
	if !ok {
		return nil, newErr(ErrRoomNotFound, roomBareJID)
	}
	info, err := e.disco.Query(ctx, roomBareJID, "")
	if err != nil {
		return nil, wrapErr(roomBareJID, err)
	}
	features := map[string]bool{}
	for _, f := range info.Features {
		features[f.Var] = true
	}
	t := Classify(roomBareJID, features["muc_membersonly"], features["muc_nonanonymous"],
		features["muc_persistent"], features["muc_hidden"], features["muc_public"])
	r.SetType(t)
	return r, nil
}

func domainOf(bareJID string) string {
	if at := strings.IndexByte(bareJID, '@'); at >= 0 {
		return bareJID[at+1:]
	}
	return bareJID
}
