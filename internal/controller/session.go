package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrSessionClosed = errors.New("session closed")

type job struct {
	fn   func(c *Controller) error
	done chan error
}

// Session is the single goroutine that owns a Controller. Inbound bridge
// messages and UI actions are queued to it and applied in arrival order.
// Watchers see a View after every applied job.
type Session struct {
	ctrl   *Controller
	inbox  chan job
	cancel func()
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[int]func(View)
	nextID   int

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open subscribes ctrl to its channel and starts the owning loop. Close
// must be called to unsubscribe and stop it.
func Open(ctrl *Controller, buffer int) *Session {
	if buffer <= 0 {
		buffer = 100
	}
	s := &Session{
		ctrl:     ctrl,
		inbox:    make(chan job, buffer),
		logger:   ctrl.logger,
		watchers: make(map[int]func(View)),
		closing:  make(chan struct{}),
	}
	s.cancel = ctrl.ch.Subscribe(s.inbound)
	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *Session) inbound(raw []byte) {
	j := job{fn: func(c *Controller) error {
		if err := c.HandleInbound(raw); err != nil {
			s.logger.Warn("ignored inbound event", "error", err)
		}
		return nil
	}}
	select {
	case s.inbox <- j:
	case <-s.closing:
	}
}

// Do runs fn on the owning goroutine and returns its error. It waits for
// fn to finish unless ctx is done or the session closes first.
func (s *Session) Do(ctx context.Context, fn func(c *Controller) error) error {
	j := job{fn: fn, done: make(chan error, 1)}
	select {
	case s.inbox <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closing:
		return ErrSessionClosed
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closing:
		return ErrSessionClosed
	}
}

// View returns a snapshot taken on the owning goroutine.
func (s *Session) View(ctx context.Context) (View, error) {
	var v View
	err := s.Do(ctx, func(c *Controller) error {
		v = c.View()
		return nil
	})
	return v, err
}

// Watch registers fn to receive a View after every applied job. fn runs
// on the owning goroutine and must not block or call back into the
// session.
func (s *Session) Watch(fn func(View)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Close unsubscribes from the channel and stops the loop. Queued jobs
// that have not started are discarded.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.closing)
	})
	s.wg.Wait()
}

func (s *Session) loop() {
	defer s.wg.Done()
	for {
		select {
		case j := <-s.inbox:
			err := j.fn(s.ctrl)
			if j.done != nil {
				j.done <- err
			}
			s.notify()
		case <-s.closing:
			return
		}
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	if len(s.watchers) == 0 {
		s.mu.Unlock()
		return
	}
	fns := make([]func(View), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	v := s.ctrl.View()
	for _, fn := range fns {
		fn(v)
	}
}
