package modules

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// undecryptablePlaceholder is the Body a message is given when its OMEMO
// envelope could not be decrypted after the single repair attempt (spec
// §4.5 "Failure semantics": "surface as an unrecoverable message with a
// placeholder body; the original encrypted payload is retained for
// diagnostics").
const undecryptablePlaceholder = "⚠ This message could not be decrypted."

// Chat turns inbound one-to-one and groupchat messages into appended
// message deltas, and offers the send-side operations a conversation
// needs: body, correction, retraction, reaction, receipt, and marker.
type Chat struct {
	rt       *runtime.Runtime
	messages *repo.MessageRepo
	log      zerolog.Logger

	onMessage func(conversation string)

	// onChatState reports an inbound composing-indicator stanza: nil when
	// the facade doesn't track composing state.
	onChatState func(conversation, fromFull string, state stanza.ChatStateKind)

	// decrypt unwraps an inbound OMEMO envelope to its plaintext body; nil
	// when the facade has OMEMO disabled. Kept as a callback rather than an
	// *omemo.Engine field so this package never imports internal/omemo.
	decrypt func(ctx context.Context, fromBareJID string, env *stanza.OMEMOEnvelope) (string, error)
}

func NewChat(rt *runtime.Runtime, messages *repo.MessageRepo, log zerolog.Logger, onMessage func(conversation string)) *Chat {
	return &Chat{rt: rt, messages: messages, log: log.With().Str("module", "chat").Logger(), onMessage: onMessage}
}

// SetDecrypt installs the OMEMO unwrap callback used for inbound encrypted
// messages. Left unset, encrypted messages are dropped silently the way a
// client with encryption disabled would ignore them.
func (m *Chat) SetDecrypt(decrypt func(ctx context.Context, fromBareJID string, env *stanza.OMEMOEnvelope) (string, error)) {
	m.decrypt = decrypt
}

// SetOnChatState installs the composing-indicator callback.
func (m *Chat) SetOnChatState(onChatState func(conversation, fromFull string, state stanza.ChatStateKind)) {
	m.onChatState = onChatState
}

func (m *Chat) Module() *runtime.Module {
	return &runtime.Module{Name: "chat", OnMessage: m.handleMessage}
}

func (m *Chat) handleMessage(msg *stanza.Message) {
	if msg.Type != stanza.MessageChat && msg.Type != stanza.MessageGroupchat && msg.Type != stanza.MessageNormal {
		return
	}
	conversation := msg.From
	if msg.Type == stanza.MessageGroupchat {
		conversation = bareOf(msg.From)
	}
	ctx := context.Background()
	if msg.ChatState != "" && m.onChatState != nil {
		m.onChatState(conversation, msg.From, msg.ChatState)
	}
	if msg.Encrypted != nil {
		if m.decrypt == nil {
			return
		}
		body, err := m.decrypt(ctx, bareOf(msg.From), msg.Encrypted)
		if err != nil {
			m.log.Warn().Err(err).Str("from", msg.From).Msg("failed to decrypt OMEMO message")
			m.appendUndecryptable(ctx, conversation, msg)
			return
		}
		msg.Body = body
	}
	delta, ok := deltaFromMessage(conversation, msg)
	if !ok {
		return
	}
	if err := m.messages.Append(ctx, delta); err != nil {
		m.log.Warn().Err(err).Str("conversation", conversation).Msg("failed to append message delta")
		return
	}
	if m.onMessage != nil {
		m.onMessage(conversation)
	}
}

// appendUndecryptable persists a placeholder base record for an inbound
// message whose OMEMO envelope failed to decrypt, retaining the raw
// envelope for diagnostics (spec §4.5 "Failure semantics").
func (m *Chat) appendUndecryptable(ctx context.Context, conversation string, msg *stanza.Message) {
	id := msg.Id
	if id == "" && msg.StanzaID != nil {
		id = msg.StanzaID.ID
	}
	raw, err := json.Marshal(msg.Encrypted)
	if err != nil {
		m.log.Warn().Err(err).Str("from", msg.From).Msg("failed to serialize encrypted payload for diagnostics")
	}
	delta := repo.MessageDelta{
		ID: xid.New().String(), StanzaID: id, Conversation: conversation,
		From: msg.From, To: msg.To, TimestampMs: time.Now().UnixMilli(),
		Payload: repo.PayloadUndecryptable, Body: undecryptablePlaceholder,
		EncryptedPayload: string(raw),
	}
	if err := m.messages.Append(ctx, delta); err != nil {
		m.log.Warn().Err(err).Str("conversation", conversation).Msg("failed to append undecryptable message delta")
		return
	}
	if m.onMessage != nil {
		m.onMessage(conversation)
	}
}

func deltaFromMessage(conversation string, msg *stanza.Message) (repo.MessageDelta, bool) {
	now := time.Now().UnixMilli()
	id := msg.Id
	if id == "" && msg.StanzaID != nil {
		id = msg.StanzaID.ID
	}
	base := repo.MessageDelta{
		ID:           xid.New().String(),
		StanzaID:     id,
		Conversation: conversation,
		From:         msg.From,
		To:           msg.To,
		TimestampMs:  now,
	}

	switch {
	case msg.Correction != nil:
		base.Payload = repo.PayloadCorrection
		base.TargetID = msg.Correction.ID
		base.Body = msg.Body
	case msg.Fastening != nil && msg.Fastening.Retract != nil:
		base.Payload = repo.PayloadRetraction
		base.TargetID = msg.Fastening.ID
	case msg.Reactions != nil:
		base.Payload = repo.PayloadReactionSet
		base.TargetID = msg.Reactions.ID
		for _, r := range msg.Reactions.Reactions {
			base.Reactions = append(base.Reactions, r.Emoji)
		}
	case msg.Receipt != nil:
		base.Payload = repo.PayloadDeliveryReceipt
		base.TargetID = msg.Receipt.ID
	case msg.Markers != nil:
		base.Payload = repo.PayloadReadMarker
		base.TargetID = msg.Markers.ID
	case msg.Body != "":
		base.Payload = repo.PayloadBody
		base.Body = msg.Body
	default:
		return repo.MessageDelta{}, false
	}
	return base, true
}

func bareOf(full string) string {
	for i := 0; i < len(full); i++ {
		if full[i] == '/' {
			return full[:i]
		}
	}
	return full
}

// SendMessage sends a body to a one-to-one or groupchat peer and appends
// the outbound delta to the local message log.
func (m *Chat) SendMessage(ctx context.Context, to string, msgType stanza.MessageType, body string) (string, error) {
	id := xid.New().String()
	msg := &stanza.Message{To: to, Id: id, Type: msgType, Body: body, RequestReceipt: &stanza.ReceiptRequest{}}
	if err := m.rt.Send(ctx, msg); err != nil {
		return "", err
	}
	delta := repo.MessageDelta{
		ID: xid.New().String(), StanzaID: id, Conversation: to, To: to,
		TimestampMs: time.Now().UnixMilli(), Payload: repo.PayloadBody, Body: body,
	}
	if err := m.messages.Append(ctx, delta); err != nil {
		return "", err
	}
	return id, nil
}

// SendEncrypted sends env as the message body's OMEMO envelope (the wire
// <body/> is omitted per the OMEMO hint convention), persisting plaintext
// locally since the sender already holds it unencrypted.
func (m *Chat) SendEncrypted(ctx context.Context, to string, msgType stanza.MessageType, env *stanza.OMEMOEnvelope, plaintext string) (string, error) {
	id := xid.New().String()
	msg := &stanza.Message{To: to, Id: id, Type: msgType, Encrypted: env, RequestReceipt: &stanza.ReceiptRequest{}}
	if err := m.rt.Send(ctx, msg); err != nil {
		return "", err
	}
	delta := repo.MessageDelta{
		ID: xid.New().String(), StanzaID: id, Conversation: to, To: to,
		TimestampMs: time.Now().UnixMilli(), Payload: repo.PayloadBody, Body: plaintext,
	}
	if err := m.messages.Append(ctx, delta); err != nil {
		return "", err
	}
	return id, nil
}

// Correct publishes a replacement body for a previously-sent message.
func (m *Chat) Correct(ctx context.Context, to, targetID, body string) error {
	msg := &stanza.Message{To: to, Id: xid.New().String(), Type: stanza.MessageChat, Body: body, Correction: &stanza.Correction{ID: targetID}}
	return m.rt.Send(ctx, msg)
}

// Retract fastens a retraction onto a previously-sent message.
func (m *Chat) Retract(ctx context.Context, to, targetID string) error {
	msg := &stanza.Message{To: to, Id: xid.New().String(), Type: stanza.MessageChat, Fastening: &stanza.Fastening{ID: targetID, Retract: &struct{}{}}}
	return m.rt.Send(ctx, msg)
}

// React replaces the full reaction set on a message with emojis.
func (m *Chat) React(ctx context.Context, to, targetID string, emojis []string) error {
	reactions := make([]stanza.Reaction, len(emojis))
	for i, e := range emojis {
		reactions[i] = stanza.Reaction{Emoji: e}
	}
	msg := &stanza.Message{To: to, Id: xid.New().String(), Type: stanza.MessageChat, Reactions: &stanza.Reactions{ID: targetID, Reactions: reactions}}
	return m.rt.Send(ctx, msg)
}

// MarkDisplayed sends a "displayed" chat marker for targetID.
func (m *Chat) MarkDisplayed(ctx context.Context, to, targetID string) error {
	msg := &stanza.Message{To: to, Id: xid.New().String(), Type: stanza.MessageChat, Markers: &stanza.ChatMarker{Kind: "displayed", ID: targetID}}
	return m.rt.Send(ctx, msg)
}

// SetChatState publishes a composing-indicator state.
func (m *Chat) SetChatState(ctx context.Context, to string, msgType stanza.MessageType, state stanza.ChatStateKind) error {
	return m.rt.Send(ctx, &stanza.Message{To: to, Type: msgType, ChatState: state})
}
