package controller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/user/planbridge/internal/types"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return t0 }

type fakeChannel struct {
	mu    sync.Mutex
	posts []types.OutboundEvent
	err   error
	subs  map[int]func([]byte)
	next  int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{subs: make(map[int]func([]byte))}
}

func (f *fakeChannel) Post(_ context.Context, ev types.OutboundEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.posts = append(f.posts, ev)
	return nil
}

func (f *fakeChannel) Subscribe(fn func([]byte)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fakeChannel) emit(raw string) {
	f.mu.Lock()
	fns := make([]func([]byte), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn([]byte(raw))
	}
}

func (f *fakeChannel) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeChannel) sent() []types.OutboundEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.OutboundEvent(nil), f.posts...)
}

// planText decodes the task text of a generatePlan event.
func planText(t *testing.T, ev types.OutboundEvent) (string, bool) {
	t.Helper()
	if ev.Type != types.OutboundGeneratePlan {
		t.Fatalf("expected generatePlan, got %s", ev.Type)
	}
	var req types.PlanRequest
	if err := json.Unmarshal([]byte(ev.Text), &req); err != nil {
		t.Fatalf("decode plan request: %v", err)
	}
	if len(req.Messages) != 1 {
		t.Fatalf("expected 1 request message, got %d", len(req.Messages))
	}
	return req.Messages[0].Text, req.Messages[0].IsInitialPlan
}

type recordingReporter struct {
	mu    sync.Mutex
	names []string
	props []map[string]string
}

func (r *recordingReporter) Send(name string, props map[string]string, _ map[string]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.props = append(r.props, props)
}

func (r *recordingReporter) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

type staticIndex []string

func (s staticIndex) Paths() []string { return s }

type failingClipboard struct{}

func (failingClipboard) WriteText(string) error { return errors.New("no display") }

func partial(text string) string {
	data, _ := json.Marshal(map[string]any{"type": "planResponse", "text": text, "partial": true})
	return string(data)
}

func final(text string) string {
	data, _ := json.Marshal(map[string]any{"type": "planResponse", "text": text, "partial": false})
	return string(data)
}
