package stream

import (
	"slices"
	"time"

	"github.com/user/planbridge/internal/types"
)

// Update is one decoded planResponse event. Text carries the full text
// accumulated so far, never a delta. Seq is zero when the sender does not
// number its events. Seq is only ordered within one Generation; an empty
// Generation means the sender does not tag its responses.
type Update struct {
	Text       string
	HasText    bool
	Partial    bool
	Seq        int64
	Generation types.GenerationID
}

type Action int

const (
	ActionNone Action = iota
	ActionAppended
	ActionAmended
	ActionDropped
)

func (a Action) String() string {
	switch a {
	case ActionAppended:
		return "appended"
	case ActionAmended:
		return "amended"
	case ActionDropped:
		return "dropped"
	default:
		return "none"
	}
}

// Result describes what Apply did.
type Result struct {
	Action Action
	// Final is true when the update was a completion signal.
	Final bool
	// Sealed is true when a message was finalized by this update.
	Sealed  bool
	Message types.Message
}

// Merger applies updates to transcripts. Its clock is injectable so tests
// can pin timestamps.
type Merger struct {
	now func() time.Time
}

func NewMerger() *Merger {
	return &Merger{now: time.Now}
}

// NewMergerWithClock creates a Merger that stamps new messages with now().
func NewMergerWithClock(now func() time.Time) *Merger {
	return &Merger{now: now}
}

// Apply folds u into t and returns the new transcript.
//
// With no open streaming message the update is appended as a new assistant
// message. Otherwise the open message's text and partial flag are
// overwritten. A non-partial update seals the message; the next update
// starts a new one. A sequenced partial that is not newer than the last one
// applied to the open message is dropped. Final updates are never dropped.
// An update tagged with a different generation than the open message seals
// that message and starts a new one.
func (m *Merger) Apply(t Transcript, u Update) (Transcript, Result) {
	if !u.HasText {
		return m.applySignal(t, u)
	}

	if t.hasStreaming && u.Generation != "" && t.generation != "" && u.Generation != t.generation {
		t, _ = t.Seal()
	}

	if !t.hasStreaming {
		msg := types.Message{
			ID:        types.NewMessageID(),
			Role:      types.RoleAssistant,
			Text:      u.Text,
			Timestamp: m.now(),
			Partial:   u.Partial,
		}
		next := Transcript{messages: append(slices.Clone(t.messages), msg)}
		if u.Partial {
			next.streaming = len(next.messages) - 1
			next.hasStreaming = true
			next.lastSeq = u.Seq
			next.generation = u.Generation
		}
		return next, Result{Action: ActionAppended, Final: !u.Partial, Sealed: !u.Partial, Message: msg}
	}

	if u.Partial && u.Seq > 0 && u.Seq <= t.lastSeq {
		msg, _ := t.Streaming()
		return t, Result{Action: ActionDropped, Message: msg}
	}

	next := Transcript{messages: slices.Clone(t.messages)}
	msg := &next.messages[t.streaming]
	msg.Text = u.Text
	msg.Partial = u.Partial
	if u.Partial {
		next.streaming = t.streaming
		next.hasStreaming = true
		next.generation = t.generation
		if next.generation == "" {
			next.generation = u.Generation
		}
		if u.Seq > 0 {
			next.lastSeq = u.Seq
		} else {
			next.lastSeq = t.lastSeq
		}
	}
	return next, Result{Action: ActionAmended, Final: !u.Partial, Sealed: !u.Partial, Message: *msg}
}

// applySignal handles a text-less update. Only a completion signal is
// meaningful: it seals the open message as is.
func (m *Merger) applySignal(t Transcript, u Update) (Transcript, Result) {
	if u.Partial {
		return t, Result{Action: ActionNone}
	}
	next, sealed := t.Seal()
	res := Result{Action: ActionNone, Final: true, Sealed: sealed}
	if sealed {
		res.Action = ActionAmended
		res.Message = next.messages[t.streaming]
	}
	return next, res
}
