package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/user/planbridge/internal/bridge"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// waitFor blocks until a watched view satisfies cond.
func waitFor(t *testing.T, s *Session, cond func(View) bool) View {
	t.Helper()
	views := make(chan View, 64)
	cancel := s.Watch(func(v View) {
		select {
		case views <- v:
		default:
		}
	})
	defer cancel()

	if v, err := s.View(context.Background()); err == nil && cond(v) {
		return v
	}
	timeout := time.After(2 * time.Second)
	for {
		select {
		case v := <-views:
			if cond(v) {
				return v
			}
		case <-timeout:
			t.Fatal("timed out waiting for view")
			return View{}
		}
	}
}

func TestSessionOverPipe(t *testing.T) {
	pipe := bridge.NewPipe(16)
	defer pipe.Close()

	host := pipe.Host()
	requests := make(chan []byte, 4)
	defer host.Subscribe(func(raw []byte) { requests <- raw })()

	s := Open(New(Options{Channel: pipe.Panel(), Now: fixedClock}), 0)
	defer s.Close()

	ctx := context.Background()
	err := s.Do(ctx, func(c *Controller) error {
		if err := c.SetDraft("plan it", 7); err != nil {
			return err
		}
		return c.Submit(ctx)
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case raw := <-requests:
		ev, err := bridge.DecodeOutbound(raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if text, _ := planText(t, ev); text != "<task>\nUSER: plan it\n</task>" {
			t.Errorf("unexpected task text %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("host did not receive the plan request")
	}

	for i, text := range []string{"S", "St", "Step"} {
		if err := host.Post(ctx, bridge.PlanResponse(text, true, int64(i+1))); err != nil {
			t.Fatalf("post partial: %v", err)
		}
	}
	if err := host.Post(ctx, bridge.PlanResponse("Step 1", false, 4)); err != nil {
		t.Fatalf("post final: %v", err)
	}

	v := waitFor(t, s, func(v View) bool { return v.Phase == PhaseIdle && len(v.Messages) == 2 })
	if v.Messages[1].Text != "Step 1" || v.Messages[1].Partial {
		t.Errorf("unexpected final message %+v", v.Messages[1])
	}
}

func TestSessionIgnoresMalformed(t *testing.T) {
	ch := newFakeChannel()
	s := Open(newTestController(ch), 0)
	defer s.Close()

	ch.emit(`{garbage`)
	ch.emit(final("ok"))

	v := waitFor(t, s, func(v View) bool { return len(v.Messages) == 1 })
	if v.Messages[0].Text != "ok" {
		t.Errorf("expected ok, got %q", v.Messages[0].Text)
	}
}

func TestSessionDoReturnsError(t *testing.T) {
	s := Open(newTestController(newFakeChannel()), 0)
	defer s.Close()

	boom := errors.New("boom")
	if err := s.Do(context.Background(), func(*Controller) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestSessionSerializesActions(t *testing.T) {
	s := Open(newTestController(newFakeChannel()), 0)
	defer s.Close()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do(context.Background(), func(*Controller) error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	var got int
	_ = s.Do(context.Background(), func(*Controller) error {
		got = counter
		return nil
	})
	if got != 50 {
		t.Errorf("expected 50 serialized jobs, got %d", got)
	}
}

func TestSessionCloseUnsubscribes(t *testing.T) {
	ch := newFakeChannel()
	s := Open(newTestController(ch), 0)
	if ch.subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", ch.subscribers())
	}
	s.Close()
	s.Close()

	if ch.subscribers() != 0 {
		t.Errorf("expected no subscribers after close, got %d", ch.subscribers())
	}
	if err := s.Do(context.Background(), func(*Controller) error { return nil }); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSessionDoContextCancelled(t *testing.T) {
	s := Open(newTestController(newFakeChannel()), 0)
	defer s.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = s.Do(context.Background(), func(*Controller) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Do(ctx, func(*Controller) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	close(release)
}
