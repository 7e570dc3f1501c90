package prompt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/user/planbridge/internal/types"
)

// wordCounter counts whitespace-separated words.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func TestBuildSerialization(t *testing.T) {
	b := New(nil, 0)
	transcript := []types.Message{
		{Role: types.RoleUser, Text: "hi"},
		{Role: types.RoleAssistant, Text: "hello"},
	}

	p, err := b.Build(transcript, "more", false)
	if err != nil {
		t.Fatal(err)
	}

	expected := "USER: hi\n\nASSISTANT: hello\n\nUSER: more"
	if p.Consolidated != expected {
		t.Errorf("expected %q, got %q", expected, p.Consolidated)
	}
	if p.Task() != "<task>\n"+expected+"\n</task>" {
		t.Errorf("unexpected task frame: %q", p.Task())
	}
}

func TestBuildTrimsDraft(t *testing.T) {
	p, err := New(nil, 0).Build(nil, "  write a plan \n", true)
	if err != nil {
		t.Fatal(err)
	}
	if p.Consolidated != "USER: write a plan" {
		t.Errorf("expected trimmed user line, got %q", p.Consolidated)
	}
	if !p.IsInitialPlan {
		t.Error("expected initial plan flag")
	}
}

func TestBuildEmptyDraft(t *testing.T) {
	for _, draft := range []string{"", "   ", "\n\t"} {
		p, err := New(nil, 0).Build(nil, draft, true)
		if !errors.Is(err, ErrEmptyDraft) {
			t.Errorf("draft %q: expected ErrEmptyDraft, got %v", draft, err)
		}
		if p != nil {
			t.Errorf("draft %q: expected no payload", draft)
		}
	}
}

func TestPayloadEvent(t *testing.T) {
	p, err := New(nil, 0).Build([]types.Message{{Role: types.RoleUser, Text: "a"}}, "b", true)
	if err != nil {
		t.Fatal(err)
	}
	ev, err := p.Event()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != types.OutboundGeneratePlan {
		t.Errorf("expected generatePlan, got %s", ev.Type)
	}

	var req types.PlanRequest
	if err := json.Unmarshal([]byte(ev.Text), &req); err != nil {
		t.Fatalf("text is not a JSON plan request: %v", err)
	}
	if len(req.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(req.Messages))
	}
	msg := req.Messages[0]
	if msg.Type != "text" {
		t.Errorf("expected type text, got %q", msg.Type)
	}
	if msg.Text != "<task>\nUSER: a\n\nUSER: b\n</task>" {
		t.Errorf("unexpected text %q", msg.Text)
	}
	if !msg.IsInitialPlan {
		t.Error("expected isInitialPlan=true")
	}
}

func TestBuildBudgetTruncation(t *testing.T) {
	b := New(wordCounter{}, 6)
	transcript := []types.Message{
		{Role: types.RoleUser, Text: "one two three"},
		{Role: types.RoleAssistant, Text: "four five"},
		{Role: types.RoleUser, Text: "six"},
	}

	p, err := b.Build(transcript, "seven eight", false)
	if err != nil {
		t.Fatal(err)
	}

	// Lines cost 4, 3, 2 and 3 words; only the last history line fits.
	expected := "USER: six\n\nUSER: seven eight"
	if p.Consolidated != expected {
		t.Errorf("expected %q, got %q", expected, p.Consolidated)
	}
	if p.Dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", p.Dropped)
	}
	if p.Tokens != 5 {
		t.Errorf("expected 5 tokens, got %d", p.Tokens)
	}
}

func TestBuildBudgetNeverDropsUserLine(t *testing.T) {
	b := New(wordCounter{}, 1)
	p, err := b.Build([]types.Message{{Role: types.RoleAssistant, Text: "x"}}, "a long new request", false)
	if err != nil {
		t.Fatal(err)
	}
	if p.Consolidated != "USER: a long new request" {
		t.Errorf("expected only the user line, got %q", p.Consolidated)
	}
}

func TestTiktokenCounter(t *testing.T) {
	c, err := NewTiktokenCounter("gpt-4")
	if err != nil {
		t.Skipf("tokenizer unavailable: %v", err)
	}
	if n := c.Count("hello world"); n <= 0 {
		t.Errorf("expected positive token count, got %d", n)
	}
}
