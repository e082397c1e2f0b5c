package runtime

import (
	"fmt"

	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// IQFailure wraps a typed stanza error condition so callers can switch on
// Condition rather than parsing strings (spec §4.1 "Failure semantics").
type IQFailure struct {
	Condition stanza.ErrorCondition
	Text      string
}

func (f *IQFailure) Error() string {
	if f.Text != "" {
		return fmt.Sprintf("iq error: %s (%s)", f.Condition, f.Text)
	}
	return fmt.Sprintf("iq error: %s", f.Condition)
}

// SingleIQReducer completes as soon as it sees an *stanza.IQ whose Id
// matches, succeeding with the IQ itself or failing with an *IQFailure if
// its Type is error.
func SingleIQReducer(id string) Reducer {
	return func(element any) (accepted, done bool, result any, err error) {
		iq, ok := element.(*stanza.IQ)
		if !ok || iq.Id != id {
			return false, false, nil, nil
		}
		if iq.Type == stanza.IQError {
			cond := stanza.CondOther
			var text string
			if iq.Error != nil {
				cond = iq.Error.Condition
				text = iq.Error.Text
			}
			return true, true, nil, &IQFailure{Condition: cond, Text: text}
		}
		return true, true, iq, nil
	}
}
