package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/user/planbridge/internal/types"
)

var (
	ErrFull   = errors.New("bridge buffer full")
	ErrClosed = errors.New("bridge closed")
)

// Pipe is an in-process host bridge. Each direction is a FIFO delivered by
// its own goroutine, so messages arrive in send order and a subscriber may
// post back without deadlocking the sender.
type Pipe struct {
	toHost  chan []byte
	toPanel chan []byte
	host    subscribers
	panel   subscribers

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPipe creates a pipe with the given per-direction buffer and starts its
// delivery goroutines. Call Close to stop them.
func NewPipe(buffer int) *Pipe {
	if buffer <= 0 {
		buffer = 256
	}
	p := &Pipe{
		toHost:  make(chan []byte, buffer),
		toPanel: make(chan []byte, buffer),
		done:    make(chan struct{}),
	}
	p.wg.Add(2)
	go p.pump(p.toHost, &p.host)
	go p.pump(p.toPanel, &p.panel)
	return p
}

// Close stops delivery. Messages still buffered are discarded.
func (p *Pipe) Close() {
	p.closeOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

// Panel returns the panel side of the pipe.
func (p *Pipe) Panel() *PanelEnd {
	return &PanelEnd{p: p}
}

// Host returns the host side of the pipe.
func (p *Pipe) Host() *HostEnd {
	return &HostEnd{p: p}
}

func (p *Pipe) send(ch chan []byte, raw []byte) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case ch <- raw:
		return nil
	default:
		return ErrFull
	}
}

// sendWait blocks until raw is buffered, ctx is done or the pipe closes.
func (p *Pipe) sendWait(ctx context.Context, ch chan []byte, raw []byte) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case ch <- raw:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipe) pump(ch chan []byte, subs *subscribers) {
	defer p.wg.Done()
	for {
		select {
		case raw := <-ch:
			subs.deliver(raw)
		case <-p.done:
			return
		}
	}
}

// PanelEnd posts outbound events and receives inbound ones.
type PanelEnd struct{ p *Pipe }

var _ types.Channel = (*PanelEnd)(nil)

func (e *PanelEnd) Post(_ context.Context, event types.OutboundEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outbound event: %w", err)
	}
	return e.p.send(e.p.toHost, data)
}

func (e *PanelEnd) Subscribe(fn func(raw []byte)) func() {
	return e.p.panel.add(fn)
}

// HostEnd posts inbound events and receives outbound ones.
type HostEnd struct{ p *Pipe }

// Post sends event without blocking and fails with ErrFull when the panel
// is behind.
func (e *HostEnd) Post(_ context.Context, event types.InboundEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal inbound event: %w", err)
	}
	return e.PostRaw(data)
}

// Send waits for buffer space instead of failing when the panel is behind.
func (e *HostEnd) Send(ctx context.Context, event types.InboundEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal inbound event: %w", err)
	}
	return e.p.sendWait(ctx, e.p.toPanel, data)
}

// PostRaw sends raw bytes to the panel unmodified.
func (e *HostEnd) PostRaw(raw []byte) error {
	return e.p.send(e.p.toPanel, raw)
}

func (e *HostEnd) Subscribe(fn func(raw []byte)) func() {
	return e.p.host.add(fn)
}

type subscribers struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func([]byte)
}

func (s *subscribers) add(fn func([]byte)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func([]byte))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) deliver(raw []byte) {
	s.mu.RLock()
	fns := make([]func([]byte), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(raw)
	}
}
