package client

import (
	"context"
	"math"

	"github.com/prose-im/prose-core-go/internal/repo"
)

// materializeConversation groups a conversation's raw deltas into their
// materialized view: every PayloadBody delta is a base, folded with every
// other delta whose TargetID names that base's StanzaID (spec §3 "A
// materialized Message is the left-fold of the base record and all
// records targeting it").
func materializeConversation(deltas []repo.MessageDelta) []repo.MaterializedMessage {
	bases := make([]repo.MessageDelta, 0, len(deltas))
	targeting := map[string][]repo.MessageDelta{}
	for _, d := range deltas {
		if d.Payload == repo.PayloadBody || d.Payload == repo.PayloadUndecryptable {
			bases = append(bases, d)
			continue
		}
		if d.TargetID != "" {
			targeting[d.TargetID] = append(targeting[d.TargetID], d)
		}
	}

	out := make([]repo.MaterializedMessage, 0, len(bases))
	for _, base := range bases {
		out = append(out, repo.Materialize(base, targeting[base.StanzaID]))
	}
	return out
}

// reactionsFor returns the most recently published reaction set for
// targetID within conversation, by scanning every reaction-set delta
// targeting it in timestamp order.
func (c *Client) reactionsFor(ctx context.Context, conversation, targetID string) ([]string, error) {
	deltas, err := c.messages.Conversation(ctx, conversation, 0, math.MaxInt64, false, 0)
	if err != nil {
		return nil, err
	}
	var current []string
	for _, d := range deltas {
		if d.Payload == repo.PayloadReactionSet && d.TargetID == targetID {
			current = d.Reactions
		}
	}
	return current, nil
}

func toggle(set []string, emoji string) []string {
	for i, e := range set {
		if e == emoji {
			return append(append([]string{}, set[:i]...), set[i+1:]...)
		}
	}
	return append(append([]string{}, set...), emoji)
}
