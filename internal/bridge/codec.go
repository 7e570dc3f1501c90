// Package bridge carries tagged payloads between the panel and its host.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/user/planbridge/internal/stream"
	"github.com/user/planbridge/internal/types"
)

var (
	ErrMalformed   = errors.New("malformed event")
	ErrUnknownType = errors.New("unknown event type")
)

// DecodeInbound parses a host message into a stream update. Only
// planResponse events are accepted. A partial event without text is
// malformed; a non-partial event without text is a bare completion signal.
func DecodeInbound(raw []byte) (stream.Update, error) {
	var ev types.InboundEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return stream.Update{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.Type != types.InboundPlanResponse {
		return stream.Update{}, fmt.Errorf("%w: %q", ErrUnknownType, ev.Type)
	}
	u := stream.Update{Partial: ev.Partial != nil && *ev.Partial}
	if ev.Text != nil {
		u.Text = *ev.Text
		u.HasText = true
	}
	if u.Partial && !u.HasText {
		return stream.Update{}, fmt.Errorf("%w: partial planResponse without text", ErrMalformed)
	}
	if ev.Seq != nil {
		u.Seq = *ev.Seq
	}
	u.Generation = ev.Generation
	return u, nil
}

// DecodeOutbound parses a panel message.
func DecodeOutbound(raw []byte) (types.OutboundEvent, error) {
	var ev types.OutboundEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return types.OutboundEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.Type == "" {
		return types.OutboundEvent{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return ev, nil
}

// PlanResponse builds an inbound planResponse event.
func PlanResponse(text string, partial bool, seq int64) types.InboundEvent {
	ev := types.InboundEvent{Type: types.InboundPlanResponse, Text: &text, Partial: &partial}
	if seq > 0 {
		ev.Seq = &seq
	}
	return ev
}
