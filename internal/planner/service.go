// Package planner answers generatePlan requests from the panel by streaming
// an LLM completion back as planResponse events.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/planbridge/internal/bridge"
	"github.com/user/planbridge/internal/types"
	"github.com/user/planbridge/pkg/llm"
)

var ErrNoPlanMessage = errors.New("plan request has no messages")

// Host is the host side of the bridge. Post may drop an event when the
// panel is behind; Send waits until the event is accepted or ctx ends.
type Host interface {
	Post(ctx context.Context, event types.InboundEvent) error
	Send(ctx context.Context, event types.InboundEvent) error
	Subscribe(fn func(raw []byte)) (cancel func())
}

// ProviderFactory builds a provider for a model configuration.
type ProviderFactory func(cfg types.APIConfiguration) llm.Provider

type Options struct {
	Factory       ProviderFactory
	Active        types.APIConfiguration
	Retry         *RetryPolicy
	MaxConcurrent int64
	Workspace     string
	Reporter      types.Reporter
	Logger        *slog.Logger
	Now           func() time.Time
}

type generation struct {
	id     types.GenerationID
	cancel context.CancelFunc
}

// Service owns at most one current generation. A new request supersedes
// the current one; cancelPlan aborts it.
type Service struct {
	host      Host
	router    *bridge.Router
	factory   ProviderFactory
	retry     *RetryPolicy
	sem       *semaphore.Weighted
	workspace string
	reporter  types.Reporter
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	active   types.APIConfiguration
	provider llm.Provider
	current  *generation

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// New creates a stopped service.
func New(host Host, opts Options) *Service {
	s := &Service{
		host:      host,
		router:    bridge.NewRouter(),
		factory:   opts.Factory,
		retry:     opts.Retry,
		workspace: opts.Workspace,
		reporter:  opts.Reporter,
		logger:    opts.Logger,
		now:       opts.Now,
		active:    opts.Active,
	}
	if s.retry == nil {
		s.retry = DefaultRetryPolicy()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	s.sem = semaphore.NewWeighted(opts.MaxConcurrent)
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.provider = s.factory(s.active)

	s.router.Register(types.OutboundGeneratePlan, s.handleGenerate)
	s.router.Register(types.OutboundAPIConfiguration, s.handleConfiguration)
	s.router.Register(types.OutboundCancelPlan, s.handleCancel)
	return s
}

// Start subscribes to the host bridge.
func (s *Service) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.unsubscribe = s.host.Subscribe(func(raw []byte) {
		if err := s.router.Dispatch(s.ctx, raw); err != nil {
			s.logger.Warn("ignored panel event", "error", err)
		}
	})
}

// Stop unsubscribes, cancels any generation and waits for it to exit.
func (s *Service) Stop() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Active returns the configuration used for new generations.
func (s *Service) Active() types.APIConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Service) handleConfiguration(_ context.Context, ev types.OutboundEvent) error {
	if ev.APIConfiguration == nil {
		return fmt.Errorf("apiConfiguration event without configuration")
	}
	cfg := *ev.APIConfiguration
	provider := s.factory(cfg)

	s.mu.Lock()
	s.active = cfg
	s.provider = provider
	s.mu.Unlock()
	s.logger.Info("model changed", "provider", cfg.Provider, "model", cfg.Model)
	return nil
}

func (s *Service) handleCancel(_ context.Context, _ types.OutboundEvent) error {
	s.mu.Lock()
	cur := s.current
	s.current = nil
	s.mu.Unlock()
	if cur != nil {
		s.logger.Info("generation cancelled", "generation_id", string(cur.id))
		cur.cancel()
	}
	return nil
}

func (s *Service) handleGenerate(ctx context.Context, ev types.OutboundEvent) error {
	id := ev.Generation
	if id == "" {
		id = types.NewGenerationID()
	}
	var req types.PlanRequest
	if err := json.Unmarshal([]byte(ev.Text), &req); err != nil {
		s.fail(ctx, id, fmt.Errorf("decode plan request: %w", err))
		return nil
	}
	if len(req.Messages) == 0 {
		s.fail(ctx, id, ErrNoPlanMessage)
		return nil
	}
	msg := req.Messages[len(req.Messages)-1]

	genCtx, cancel := context.WithCancel(ctx)
	gen := &generation{id: id, cancel: cancel}

	s.mu.Lock()
	prev := s.current
	s.current = gen
	provider := s.provider
	model := s.active.Model
	s.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(genCtx, gen, provider, model, msg)
	}()
	return nil
}

// run streams one generation. Every partial repeats the full text so far,
// numbered with a rising seq, and the last event is always final.
func (s *Service) run(ctx context.Context, gen *generation, provider llm.Provider, model string, msg types.PlanRequestMessage) {
	log := s.logger.With("generation_id", string(gen.id), "model", model)
	defer s.finish(gen)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	system, err := renderSystemPrompt(s.now(), model, s.workspace, msg.IsInitialPlan)
	if err != nil {
		s.fail(ctx, gen.id, err)
		return
	}
	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: msg.Text},
	}

	start := s.now()
	var stream <-chan llm.Delta
	attempts, err := s.retry.Execute(ctx, func() error {
		var err error
		stream, err = provider.Stream(ctx, messages)
		if err != nil {
			log.Warn("open plan stream", "error", err)
		}
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.report("generation.failed", model, map[string]float64{"attempts": float64(attempts)})
		s.fail(ctx, gen.id, err)
		return
	}

	var (
		text      string
		seq       int64
		streamErr error
	)
	for delta := range stream {
		if delta.Err != nil {
			streamErr = delta.Err
			continue
		}
		text += delta.Content
		seq++
		if err := s.host.Post(ctx, response(gen.id, text, true, seq)); err != nil {
			log.Debug("partial plan dropped", "seq", seq, "error", err)
		}
	}
	if ctx.Err() != nil {
		log.Debug("generation stopped", "reason", ctx.Err())
		return
	}

	if streamErr != nil {
		log.Error("plan stream failed", "error", streamErr)
		text = appendFailure(text, streamErr)
		s.report("generation.failed", model, map[string]float64{"attempts": float64(attempts)})
	} else {
		s.report("generation.completed", model, map[string]float64{
			"attempts":    float64(attempts),
			"chars":       float64(len(text)),
			"duration_ms": float64(s.now().Sub(start).Milliseconds()),
		})
	}
	if err := s.host.Send(ctx, response(gen.id, text, false, seq+1)); err != nil {
		log.Error("post final plan", "error", err)
	}
}

func (s *Service) finish(gen *generation) {
	s.mu.Lock()
	if s.current == gen {
		s.current = nil
	}
	s.mu.Unlock()
}

// fail sends a final response carrying err so the panel leaves its
// awaiting state.
func (s *Service) fail(ctx context.Context, id types.GenerationID, err error) {
	s.logger.Error("plan generation failed", "generation_id", string(id), "error", err)
	if perr := s.host.Send(ctx, response(id, appendFailure("", err), false, 0)); perr != nil {
		s.logger.Error("post failure response", "error", perr)
	}
}

func response(id types.GenerationID, text string, partial bool, seq int64) types.InboundEvent {
	ev := bridge.PlanResponse(text, partial, seq)
	ev.Generation = id
	return ev
}

func (s *Service) report(name, model string, measures map[string]float64) {
	if s.reporter != nil {
		s.reporter.Send(name, map[string]string{"model": model}, measures)
	}
}

func appendFailure(text string, err error) string {
	note := "Plan generation failed: " + err.Error()
	if text == "" {
		return note
	}
	return text + "\n\n" + note
}
