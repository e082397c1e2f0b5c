package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/prose-im/prose-core-go/internal/store"
)

// MessagePayloadKind is the discriminant of a message delta's payload
// (spec §3 "Message delta (append form)").
type MessagePayloadKind string

const (
	PayloadBody            MessagePayloadKind = "body"
	PayloadCorrection      MessagePayloadKind = "correction"
	PayloadRetraction      MessagePayloadKind = "retraction"
	PayloadReactionSet     MessagePayloadKind = "reaction-set"
	PayloadDeliveryReceipt MessagePayloadKind = "delivery-receipt"
	PayloadReadMarker      MessagePayloadKind = "read-marker"

	// PayloadUndecryptable is a base record standing in for an inbound
	// OMEMO message that failed to decrypt after the single repair
	// attempt: Body carries a placeholder, EncryptedPayload the raw
	// envelope for diagnostics (spec §4.5 "Failure semantics").
	PayloadUndecryptable MessagePayloadKind = "undecryptable"
)

// MessageDelta is one persisted record in the append-only stream a
// conversation's materialized Message view is folded from.
type MessageDelta struct {
	ID                    string             `json:"id"`
	StanzaID              string             `json:"stanza_id,omitempty"`
	TargetID              string             `json:"target_id,omitempty"`
	Conversation          string             `json:"conversation"`
	From                  string             `json:"from"`
	To                    string             `json:"to"`
	TimestampMs           int64              `json:"timestamp_ms"`
	Payload               MessagePayloadKind `json:"payload"`
	Body                  string             `json:"body,omitempty"`
	Reactions             []string           `json:"reactions,omitempty"`
	FirstOfConversation   bool               `json:"first_of_conversation,omitempty"`

	// EncryptedPayload retains the raw OMEMO envelope (serialized) for a
	// PayloadUndecryptable base record, for diagnostics.
	EncryptedPayload string `json:"encrypted_payload,omitempty"`

	// ConversationTimestamp is the composite index value: the conversation
	// id and a zero-padded millisecond timestamp so lexical and
	// chronological order coincide (spec §4.7 "indexes on stanza id and
	// conversation + timestamp").
	ConversationTimestamp string `json:"conversation_timestamp"`
}

func conversationTimestampKey(conversation string, timestampMs int64) string {
	return fmt.Sprintf("%s|%019d", conversation, timestampMs)
}

type MessageRepo struct {
	db *store.Database
}

func NewMessageRepo(db *store.Database) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Append(ctx context.Context, d MessageDelta) error {
	d.ConversationTimestamp = conversationTimestampKey(d.Conversation, d.TimestampMs)
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return r.db.Update(ctx, []string{CollectionMessages}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionMessages)
		if err != nil {
			return err
		}
		return c.Set(d.ID, raw)
	})
}

func (r *MessageRepo) ByStanzaID(ctx context.Context, stanzaID string) (*MessageDelta, bool, error) {
	var out *MessageDelta
	err := r.db.View(ctx, []string{CollectionMessages}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionMessages)
		if err != nil {
			return err
		}
		values, err := c.GetAll(store.OnlyKey(stanzaID).OnIndex(indexStanzaID), store.Forward, 1)
		if err != nil {
			return err
		}
		if len(values) == 0 {
			return nil
		}
		var d MessageDelta
		if err := json.Unmarshal(values[0], &d); err != nil {
			return err
		}
		out = &d
		return nil
	})
	return out, out != nil, err
}

// Conversation returns deltas for conversation in the timestamp window
// [sinceMs, untilMs), newest-first when backward is true, bounded by
// limit (0 = unlimited).
func (r *MessageRepo) Conversation(ctx context.Context, conversation string, sinceMs, untilMs int64, backward bool, limit int) ([]MessageDelta, error) {
	lo := store.Included(conversationTimestampKey(conversation, sinceMs))
	hi := store.Excluded(conversationTimestampKey(conversation, untilMs))
	direction := store.Forward
	if backward {
		direction = store.Backward
	}

	var out []MessageDelta
	err := r.db.View(ctx, []string{CollectionMessages}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionMessages)
		if err != nil {
			return err
		}
		values, err := c.GetAll(store.Range(lo, hi).OnIndex(indexConversationTimestamp), direction, limit)
		if err != nil {
			return err
		}
		for _, v := range values {
			var d MessageDelta
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			out = append(out, d)
		}
		return nil
	})
	return out, err
}

// Materialize left-folds base and every delta targeting it, in timestamp
// order, into a single view (spec §3 "A materialized Message is the
// left-fold of the base record and all records targeting it").
func Materialize(base MessageDelta, targeting []MessageDelta) MaterializedMessage {
	m := MaterializedMessage{
		ID:               base.ID,
		StanzaID:         base.StanzaID,
		From:             base.From,
		To:               base.To,
		TimestampMs:      base.TimestampMs,
		Body:             base.Body,
		Undecryptable:    base.Payload == PayloadUndecryptable,
		EncryptedPayload: base.EncryptedPayload,
	}
	ordered := append([]MessageDelta(nil), targeting...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].TimestampMs < ordered[j].TimestampMs })
	for _, d := range ordered {
		switch d.Payload {
		case PayloadCorrection:
			m.Body = d.Body
			m.Edited = true
		case PayloadRetraction:
			m.Retracted = true
			m.Body = ""
		case PayloadReactionSet:
			m.Reactions = d.Reactions
		case PayloadDeliveryReceipt:
			m.Delivered = true
		case PayloadReadMarker:
			m.Read = true
		}
	}
	return m
}

// MaterializedMessage is the Message entity the client observes (spec §3
// "Message (archived form)").
type MaterializedMessage struct {
	ID          string
	StanzaID    string
	From        string
	To          string
	TimestampMs int64
	Body        string
	Reactions   []string
	Edited      bool
	Retracted   bool
	Delivered   bool
	Read        bool

	// Undecryptable reports a base record whose OMEMO envelope could not
	// be decrypted; Body holds a placeholder and EncryptedPayload the raw
	// envelope, retained for diagnostics.
	Undecryptable    bool
	EncryptedPayload string
}
