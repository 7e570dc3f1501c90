package controller

// Phase is the interaction state of the panel.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseComposing
	PhaseAwaitingResponse
)

func (p Phase) String() string {
	switch p {
	case PhaseComposing:
		return "composing"
	case PhaseAwaitingResponse:
		return "awaiting_response"
	default:
		return "idle"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
