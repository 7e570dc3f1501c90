// Package prompt serializes a plan transcript and a new draft into the
// consolidated generatePlan payload.
package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/user/planbridge/internal/types"
)

var ErrEmptyDraft = errors.New("draft is empty")

// TokenCounter counts tokens in a string.
type TokenCounter interface {
	Count(text string) int
}

// Builder assembles consolidated plan requests. With a counter and a
// positive budget, the oldest transcript lines are dropped until the block
// fits; the new user line is always kept.
type Builder struct {
	counter TokenCounter
	budget  int
}

// New creates a Builder. counter may be nil, which disables token
// accounting; budget <= 0 disables truncation.
func New(counter TokenCounter, budget int) *Builder {
	return &Builder{counter: counter, budget: budget}
}

// Payload is a built plan request.
type Payload struct {
	// Consolidated is the role-prefixed block without the task frame.
	Consolidated  string
	IsInitialPlan bool
	// Tokens is the token count of Consolidated, or 0 without a counter.
	Tokens int
	// Dropped is the number of transcript messages left out to fit the budget.
	Dropped int
}

// Task returns the consolidated block wrapped in the task frame.
func (p *Payload) Task() string {
	return "<task>\n" + p.Consolidated + "\n</task>"
}

// Event encodes the payload as a generatePlan outbound event.
func (p *Payload) Event() (types.OutboundEvent, error) {
	req := types.PlanRequest{
		Messages: []types.PlanRequestMessage{{
			Type:          "text",
			Text:          p.Task(),
			IsInitialPlan: p.IsInitialPlan,
		}},
	}
	data, err := json.Marshal(req)
	if err != nil {
		return types.OutboundEvent{}, fmt.Errorf("marshal plan request: %w", err)
	}
	return types.OutboundEvent{Type: types.OutboundGeneratePlan, Text: string(data)}, nil
}

// Build serializes transcript, in order, followed by the trimmed draft as
// the new user line. transcript must not already contain that line.
// initial marks the request as the session's first plan.
func (b *Builder) Build(transcript []types.Message, draft string, initial bool) (*Payload, error) {
	draft = strings.TrimSpace(draft)
	if draft == "" {
		return nil, ErrEmptyDraft
	}

	lines := make([]string, 0, len(transcript)+1)
	for _, msg := range transcript {
		lines = append(lines, formatLine(msg.Role, msg.Text))
	}
	userLine := formatLine(types.RoleUser, draft)

	dropped := 0
	if b.counter != nil && b.budget > 0 {
		lines, dropped = b.fit(lines, userLine)
	}
	lines = append(lines, userLine)

	p := &Payload{
		Consolidated:  strings.Join(lines, "\n\n"),
		IsInitialPlan: initial,
		Dropped:       dropped,
	}
	if b.counter != nil {
		p.Tokens = b.counter.Count(p.Consolidated)
	}
	return p, nil
}

// fit drops leading history lines until history plus the user line fits the
// budget. Separators are not counted.
func (b *Builder) fit(history []string, userLine string) ([]string, int) {
	used := b.counter.Count(userLine)
	costs := make([]int, len(history))
	for i, line := range history {
		costs[i] = b.counter.Count(line)
		used += costs[i]
	}
	start := 0
	for start < len(history) && used > b.budget {
		used -= costs[start]
		start++
	}
	return history[start:], start
}

func formatLine(role types.Role, text string) string {
	return strings.ToUpper(string(role)) + ": " + text
}
