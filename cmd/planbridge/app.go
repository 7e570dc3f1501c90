package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/user/planbridge/internal/bridge"
	"github.com/user/planbridge/internal/clipboard"
	"github.com/user/planbridge/internal/config"
	"github.com/user/planbridge/internal/controller"
	"github.com/user/planbridge/internal/fileindex"
	"github.com/user/planbridge/internal/planner"
	"github.com/user/planbridge/internal/prompt"
	"github.com/user/planbridge/internal/settings"
	"github.com/user/planbridge/internal/telemetry"
	"github.com/user/planbridge/internal/types"
	"github.com/user/planbridge/pkg/llm"
	"github.com/user/planbridge/pkg/llm/openai"
)

// app is the panel, the planner and their supporting services wired over
// an in-process bridge.
type app struct {
	pipe      *bridge.Pipe
	index     *fileindex.Index
	watcher   *fileindex.Watcher
	scheduler *fileindex.Scheduler
	reporter  *telemetry.Reporter
	settings  *settings.Store
	planner   *planner.Service
	session   *controller.Session
}

func newApp(ctx context.Context, cfg *config.Config, watch bool) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	workspace := cfg.Workspace
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve workspace: %w", err)
		}
		workspace = wd
	}

	a := &app{
		pipe:     bridge.NewPipe(0),
		index:    fileindex.New(workspace, cfg.Index.MaxEntries),
		settings: settings.FromConfig(cfgPath, cfg),
	}
	if err := a.index.Scan(); err != nil {
		slog.Warn("initial workspace scan failed", "root", workspace, "error", err)
	}

	sinks := []telemetry.Sink{telemetry.NewLogSink(slog.Default())}
	if cfg.Telemetry.Enabled {
		fs, err := telemetry.NewFileSink(cfg.Telemetry.Path)
		if err != nil {
			a.pipe.Close()
			return nil, fmt.Errorf("open telemetry sink: %w", err)
		}
		sinks = append(sinks, fs)
	}
	a.reporter = telemetry.New(sinks...)

	counter, err := prompt.NewTiktokenCounter(cfg.LLM.Model)
	if err != nil {
		slog.Warn("token counter unavailable, history is not trimmed", "model", cfg.LLM.Model, "error", err)
	}
	var builder *prompt.Builder
	if counter != nil {
		builder = prompt.New(counter, cfg.LLM.MaxContextTokens-cfg.LLM.MaxTokens)
	}

	retry := planner.DefaultRetryPolicy()
	if cfg.Generation.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Generation.MaxAttempts
	}
	a.planner = planner.New(a.pipe.Host(), planner.Options{
		Factory:       providerFactory(cfg),
		Active:        a.settings.Active(),
		Retry:         retry,
		MaxConcurrent: int64(cfg.Generation.MaxConcurrent),
		Workspace:     workspace,
		Reporter:      a.reporter,
	})
	a.planner.Start(ctx)

	ctrl := controller.New(controller.Options{
		Channel:       a.pipe.Panel(),
		Index:         a.index,
		Clipboard:     clipboard.System{},
		Settings:      a.settings,
		Reporter:      a.reporter,
		Builder:       builder,
		CancelOnClear: cfg.Panel.CancelOnClear,
	})
	a.session = controller.Open(ctrl, 0)

	if watch && cfg.Index.Watch {
		w, err := fileindex.NewWatcher(a.index, 0)
		if err == nil {
			err = w.Start(ctx)
		}
		if err != nil {
			slog.Warn("workspace watcher disabled", "error", err)
		} else {
			a.watcher = w
		}
	}
	if watch && cfg.Index.RescanSchedule != "" {
		s, err := fileindex.NewScheduler(a.index, cfg.Index.RescanSchedule)
		if err == nil {
			err = s.Start()
		}
		if err != nil {
			slog.Warn("workspace rescan disabled", "error", err)
		} else {
			a.scheduler = s
		}
	}

	slog.Info("panel ready",
		"workspace", workspace,
		"indexed", len(a.index.Paths()),
		"model", a.settings.Active().Model,
	)
	return a, nil
}

// Close stops everything in reverse start order.
func (a *app) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}
	a.session.Close()
	a.planner.Stop()
	a.pipe.Close()
	if err := a.reporter.Close(); err != nil {
		slog.Warn("close telemetry", "error", err)
	}
}

// providerFactory builds OpenAI-compatible clients. A model option without
// its own base URL uses the configured one.
func providerFactory(cfg *config.Config) planner.ProviderFactory {
	return func(c types.APIConfiguration) llm.Provider {
		baseURL := c.BaseURL
		if baseURL == "" {
			baseURL = cfg.LLM.BaseURL
		}
		return openai.New(&llm.Config{
			BaseURL:     baseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       c.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
	}
}
