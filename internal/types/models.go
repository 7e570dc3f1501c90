// internal/types/models.go
package types

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a plan transcript. Partial is true while the
// assistant is still producing it.
type Message struct {
	ID        MessageID `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Partial   bool      `json:"partial"`
}

// APIConfiguration selects the provider and model used for generation.
// The panel treats it as opaque and forwards it to the host unchanged.
type APIConfiguration struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	BaseURL  string `json:"baseUrl,omitempty"`
}

type OutboundType string

const (
	OutboundGeneratePlan     OutboundType = "generatePlan"
	OutboundAPIConfiguration OutboundType = "apiConfiguration"
	OutboundCancelPlan       OutboundType = "cancelPlan"
)

// OutboundEvent is a tagged payload posted from the panel to the host.
// Generation names the response a generatePlan request expects; the host
// echoes it on every planResponse it sends for that request.
type OutboundEvent struct {
	Type             OutboundType      `json:"type"`
	Text             string            `json:"text,omitempty"`
	APIConfiguration *APIConfiguration `json:"apiConfiguration,omitempty"`
	Generation       GenerationID      `json:"generation,omitempty"`
}

// PlanRequest is JSON-encoded into OutboundEvent.Text for generatePlan.
type PlanRequest struct {
	Messages []PlanRequestMessage `json:"messages"`
}

type PlanRequestMessage struct {
	Type          string `json:"type"`
	Text          string `json:"text"`
	IsInitialPlan bool   `json:"isInitialPlan"`
}

const InboundPlanResponse = "planResponse"

// InboundEvent is a tagged payload received from the host. Optional fields
// are pointers so that absence can be told apart from zero values.
type InboundEvent struct {
	Type       string       `json:"type"`
	Text       *string      `json:"text,omitempty"`
	Partial    *bool        `json:"partial,omitempty"`
	Seq        *int64       `json:"seq,omitempty"`
	Generation GenerationID `json:"generation,omitempty"`
}
