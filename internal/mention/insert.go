package mention

import (
	"errors"
)

var (
	ErrNoTrigger  = errors.New("no mention trigger before cursor")
	ErrEmptyValue = errors.New("empty mention value")
)

// Insert replaces the open mention under the cursor, from the trigger up to
// the cursor, with the trigger, value and a single trailing space. It
// returns the new text and a cursor placed right after that space.
func Insert(text string, cursor int, value string) (string, int, error) {
	if value == "" {
		return text, cursor, ErrEmptyValue
	}
	cursor = clampCursor(text, cursor)
	idx, ok := triggerIndex(text, cursor)
	if !ok {
		return text, cursor, ErrNoTrigger
	}
	mention := string(Trigger) + value + " "
	out := text[:idx] + mention + text[cursor:]
	return out, idx + len(mention), nil
}
