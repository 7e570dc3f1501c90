// Package stream folds streamed plan responses into an ordered transcript.
package stream

import (
	"slices"
	"time"

	"github.com/user/planbridge/internal/types"
)

// Transcript is an ordered, append-only message list. The only in-place
// change allowed is amending the open streaming message, which is tracked
// by index rather than by inspecting the tail.
//
// Transcript values are immutable from the caller's point of view: every
// operation that changes the list returns a new value backed by a fresh
// slice.
type Transcript struct {
	messages     []types.Message
	streaming    int
	hasStreaming bool
	lastSeq      int64
	generation   types.GenerationID
}

// Messages returns a copy of the transcript messages in order.
func (t Transcript) Messages() []types.Message {
	return slices.Clone(t.messages)
}

func (t Transcript) Len() int {
	return len(t.messages)
}

// Last returns the final message, if any.
func (t Transcript) Last() (types.Message, bool) {
	if len(t.messages) == 0 {
		return types.Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Streaming returns the open partial assistant message, if any.
func (t Transcript) Streaming() (types.Message, bool) {
	if !t.hasStreaming {
		return types.Message{}, false
	}
	return t.messages[t.streaming], true
}

// AppendUser appends a finalized user message. An open partial message is
// sealed first so that the open message is always the trailing one.
func (t Transcript) AppendUser(text string, at time.Time) (Transcript, types.Message) {
	next, _ := t.Seal()
	msg := types.Message{
		ID:        types.NewMessageID(),
		Role:      types.RoleUser,
		Text:      text,
		Timestamp: at,
	}
	next.messages = append(slices.Clone(next.messages), msg)
	return next, msg
}

// Seal finalizes the open streaming message, keeping its text. It reports
// false when nothing was open.
func (t Transcript) Seal() (Transcript, bool) {
	if !t.hasStreaming {
		return t, false
	}
	next := Transcript{messages: slices.Clone(t.messages)}
	next.messages[t.streaming].Partial = false
	return next, true
}
