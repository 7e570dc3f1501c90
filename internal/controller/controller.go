// Package controller owns the plan panel's interaction state: the draft,
// the transcript, the mention menu and the model selector.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/user/planbridge/internal/bridge"
	"github.com/user/planbridge/internal/mention"
	"github.com/user/planbridge/internal/prompt"
	"github.com/user/planbridge/internal/stream"
	"github.com/user/planbridge/internal/types"
)

var (
	ErrBusy           = errors.New("panel is awaiting a response")
	ErrSelectorClosed = errors.New("model selector is not open")
	ErrUnknownModel   = errors.New("unknown model")
	ErrNoSettings     = errors.New("no settings store")
)

// Options configures a Controller. Channel is required.
type Options struct {
	Channel   types.Channel
	Index     types.FileIndex
	Clipboard types.Clipboard
	Settings  types.SettingsStore
	Reporter  types.Reporter
	Builder   *prompt.Builder
	// CancelOnClear makes ClearHistory post cancelPlan while a response
	// is pending.
	CancelOnClear bool
	Logger        *slog.Logger
	Now           func() time.Time
}

type selector struct {
	open   bool
	chosen types.APIConfiguration
}

// Controller is a plain state holder. It is not safe for concurrent use;
// Session serializes access to it.
type Controller struct {
	ch            types.Channel
	clipboard     types.Clipboard
	settings      types.SettingsStore
	reporter      types.Reporter
	builder       *prompt.Builder
	merger        *stream.Merger
	menu          *mention.Menu
	cancelOnClear bool
	logger        *slog.Logger
	now           func() time.Time

	phase      Phase
	draft      string
	cursor     int
	transcript stream.Transcript
	generation types.GenerationID
	completed  bool
	selector   selector
	copied     bool
}

// New creates a controller in the Idle phase with an empty transcript.
func New(opts Options) *Controller {
	c := &Controller{
		ch:            opts.Channel,
		clipboard:     opts.Clipboard,
		settings:      opts.Settings,
		reporter:      opts.Reporter,
		builder:       opts.Builder,
		menu:          mention.NewMenu(opts.Index),
		cancelOnClear: opts.CancelOnClear,
		logger:        opts.Logger,
		now:           opts.Now,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.builder == nil {
		c.builder = prompt.New(nil, 0)
	}
	c.merger = stream.NewMergerWithClock(c.now)
	return c
}

func (c *Controller) Phase() Phase { return c.phase }

func (c *Controller) Draft() (string, int) { return c.draft, c.cursor }

// Transcript returns the current transcript value.
func (c *Controller) Transcript() stream.Transcript { return c.transcript }

// Completed reports whether a complete response has been produced since
// the last clear.
func (c *Controller) Completed() bool { return c.completed }

func (c *Controller) busy() bool { return c.phase == PhaseAwaitingResponse }

// SetDraft replaces the draft text and cursor and re-evaluates the mention
// menu. Changing the text moves Idle to Composing.
func (c *Controller) SetDraft(text string, cursor int) error {
	if c.busy() {
		return ErrBusy
	}
	changed := text != c.draft
	c.draft = text
	c.cursor = clamp(cursor, len(text))
	c.menu.Update(c.draft, c.cursor)
	if changed && c.phase == PhaseIdle {
		c.phase = PhaseComposing
	}
	return nil
}

// Submit builds the plan request from the transcript and the draft, posts
// it and enters AwaitingResponse. The draft is kept. Nothing changes when
// the draft is blank or the post fails.
func (c *Controller) Submit(ctx context.Context) error {
	if c.busy() {
		return ErrBusy
	}
	payload, err := c.builder.Build(c.transcript.Messages(), c.draft, !c.completed)
	if err != nil {
		return err
	}
	event, err := payload.Event()
	if err != nil {
		return err
	}
	event.Generation = types.NewGenerationID()
	if err := c.ch.Post(ctx, event); err != nil {
		return fmt.Errorf("post plan request: %w", err)
	}
	c.generation = event.Generation

	c.transcript, _ = c.transcript.AppendUser(strings.TrimSpace(c.draft), c.now())
	c.phase = c.transition(PhaseAwaitingResponse)
	c.menu.Close()
	c.report("plan.submitted",
		map[string]string{"initial": strconv.FormatBool(payload.IsInitialPlan)},
		map[string]float64{"tokens": float64(payload.Tokens), "dropped": float64(payload.Dropped)})
	return nil
}

// HandleInbound applies one raw host message. Malformed messages change
// nothing and are returned as errors for the caller to log. Responses
// tagged with an earlier submission's generation are discarded.
func (c *Controller) HandleInbound(raw []byte) error {
	u, err := bridge.DecodeInbound(raw)
	if err != nil {
		return fmt.Errorf("decode inbound event: %w", err)
	}
	if u.Generation != "" && c.generation != "" && u.Generation != c.generation {
		c.logger.Debug("dropped superseded plan update", "generation", string(u.Generation), "current", string(c.generation))
		return nil
	}
	next, res := c.merger.Apply(c.transcript, u)
	c.transcript = next

	if res.Action == stream.ActionDropped {
		c.logger.Debug("dropped stale plan update", "seq", u.Seq)
		return nil
	}
	if !res.Final {
		return nil
	}
	if res.Sealed {
		c.completed = true
	}
	if c.phase == PhaseAwaitingResponse {
		c.phase = c.transition(PhaseIdle)
		c.report("plan.completed", nil, map[string]float64{"chars": float64(len(res.Message.Text))})
	}
	return nil
}

// ClearHistory discards the transcript and the completed flag and returns
// to Idle. The draft is kept.
func (c *Controller) ClearHistory(ctx context.Context) error {
	wasBusy := c.busy()
	c.transcript = stream.Transcript{}
	c.completed = false
	c.phase = c.transition(PhaseIdle)

	cancelled := false
	if wasBusy && c.cancelOnClear {
		if err := c.ch.Post(ctx, types.OutboundEvent{Type: types.OutboundCancelPlan}); err != nil {
			c.logger.Warn("post cancel", "error", err)
		} else {
			cancelled = true
		}
	}
	c.report("history.cleared", map[string]string{"cancelled": strconv.FormatBool(cancelled)}, nil)
	return nil
}

// MentionKey forwards a navigation key to the mention menu. handled is
// false when the menu is closed or the key is not a menu key.
func (c *Controller) MentionKey(k mention.Key) (bool, error) {
	if c.busy() {
		return false, ErrBusy
	}
	edit, handled := c.menu.Key(k, c.draft, c.cursor)
	if edit == nil {
		return handled, nil
	}
	c.draft = edit.Text
	c.cursor = edit.Cursor
	if c.phase == PhaseIdle {
		c.phase = PhaseComposing
	}
	c.report("mention.inserted", map[string]string{"kind": edit.Inserted.Kind.String()}, nil)
	return true, nil
}

// OpenModelSelector opens the selector with the active configuration
// preselected.
func (c *Controller) OpenModelSelector() error {
	if c.busy() {
		return ErrBusy
	}
	if c.settings == nil {
		return ErrNoSettings
	}
	c.selector = selector{open: true, chosen: c.settings.Active()}
	return nil
}

// SelectModel picks one of the store's models while the selector is open.
func (c *Controller) SelectModel(model string) error {
	if c.busy() {
		return ErrBusy
	}
	if !c.selector.open {
		return ErrSelectorClosed
	}
	for _, m := range c.settings.Models() {
		if m.Model == model {
			c.selector.chosen = m
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownModel, model)
}

// CloseModelSelector closes an open selector, posts exactly one
// apiConfiguration event with the chosen configuration and stores it as
// active. Closing a closed selector does nothing.
func (c *Controller) CloseModelSelector(ctx context.Context) error {
	if !c.selector.open {
		return nil
	}
	chosen := c.selector.chosen
	c.selector = selector{}

	if err := c.ch.Post(ctx, types.OutboundEvent{Type: types.OutboundAPIConfiguration, APIConfiguration: &chosen}); err != nil {
		return fmt.Errorf("post api configuration: %w", err)
	}
	if err := c.settings.SetActive(chosen); err != nil {
		c.logger.Warn("store active model", "model", chosen.Model, "error", err)
	}
	c.report("model.changed", map[string]string{"provider": chosen.Provider, "model": chosen.Model}, nil)
	return nil
}

// CopyLatest writes the last transcript message to the clipboard and
// reports whether it succeeded. Clipboard failures are logged, not returned.
func (c *Controller) CopyLatest() bool {
	c.copied = false
	last, ok := c.transcript.Last()
	if !ok || c.clipboard == nil {
		return false
	}
	if err := c.clipboard.WriteText(last.Text); err != nil {
		c.logger.Warn("copy message", "error", err)
		return false
	}
	c.copied = true
	c.report("message.copied", map[string]string{"role": string(last.Role)}, nil)
	return true
}

func (c *Controller) transition(to Phase) Phase {
	if c.phase != to {
		c.logger.Debug("phase change", "from", c.phase.String(), "to", to.String())
	}
	return to
}

func (c *Controller) report(name string, props map[string]string, measures map[string]float64) {
	if c.reporter != nil {
		c.reporter.Send(name, props, measures)
	}
}

func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
