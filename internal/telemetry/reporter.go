// Package telemetry reports named usage events to one or more sinks.
package telemetry

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/user/planbridge/internal/types"
)

// Event is one reported occurrence.
type Event struct {
	Seq          int64              `json:"seq"`
	Name         string             `json:"name"`
	Properties   map[string]string  `json:"properties,omitempty"`
	Measurements map[string]float64 `json:"measurements,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Write(e Event) error
	Close() error
}

// Reporter fans events out to its sinks. Send never fails; sink errors are
// logged and dropped. A nil *Reporter discards everything.
type Reporter struct {
	mu     sync.Mutex
	sinks  []Sink
	seq    int64
	closed bool
	now    func() time.Time
	logger *slog.Logger
}

var _ types.Reporter = (*Reporter)(nil)

// New creates a reporter writing to the given sinks.
func New(sinks ...Sink) *Reporter {
	return &Reporter{
		sinks:  sinks,
		now:    time.Now,
		logger: slog.Default(),
	}
}

// WithClock replaces the timestamp source.
func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	r.now = now
	return r
}

// Send reports one event.
func (r *Reporter) Send(name string, properties map[string]string, measurements map[string]float64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.seq++
	e := Event{
		Seq:          r.seq,
		Name:         name,
		Properties:   properties,
		Measurements: measurements,
		Timestamp:    r.now(),
	}
	for _, s := range r.sinks {
		if err := s.Write(e); err != nil {
			r.logger.Warn("telemetry send failed", "event", name, "error", err)
		}
	}
}

// Close flushes and closes every sink. Later sends are discarded.
func (r *Reporter) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var errs []error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
