package server

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"storyboarder/internal/api"
	"storyboarder/internal/config"
	"storyboarder/internal/events"
	"storyboarder/internal/jobs"
	"storyboarder/internal/logging"
	"storyboarder/internal/services/llm"
	"storyboarder/internal/services/providers"
	"storyboarder/internal/storyboard"
)

// Runtime is the wired set of collaborators shared by the server and the
// CLI: job store, completion provider, and storyboard service.
type Runtime struct {
	Store    *jobs.Store
	Provider *providers.Provider
	Service  *api.StoryboardService
}

// RuntimeOption customizes Open.
type RuntimeOption func(*runtimeOptions)

type runtimeOptions struct {
	completer llm.Completer
	model     string
	wrap      func(llm.Completer) llm.Completer
}

// WithCompleter replaces the configured provider with completer.
func WithCompleter(completer llm.Completer, model string) RuntimeOption {
	return func(o *runtimeOptions) {
		o.completer = completer
		o.model = model
	}
}

// WithCompleterWrapper decorates the completer before it reaches the
// generator, for example to pace requests.
func WithCompleterWrapper(wrap func(llm.Completer) llm.Completer) RuntimeOption {
	return func(o *runtimeOptions) { o.wrap = wrap }
}

// OpenRuntime opens the job store and builds the generation pipeline.
func OpenRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	var options runtimeOptions
	for _, opt := range opts {
		opt(&options)
	}

	provider := &providers.Provider{Completer: options.completer, Name: "custom", Model: options.model}
	if options.completer == nil {
		var err error
		provider, err = providers.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	if options.wrap != nil {
		provider.Completer = options.wrap(provider.Completer)
	}

	store, err := jobs.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	generator := storyboard.NewGenerator(provider.Completer,
		storyboard.WithAttemptTimeout(cfg.AttemptTimeout()),
		storyboard.WithLogger(logger),
	)
	service := api.NewStoryboardService(store, events.NewRegistry(0), generator, cfg.Storyboard, logger)
	return &Runtime{Store: store, Provider: provider, Service: service}, nil
}

// Close waits for background generations and closes the store.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	if r.Service != nil {
		r.Service.Wait()
	}
	if r.Store != nil {
		return r.Store.Close()
	}
	return nil
}

// Run starts the API server and blocks until the process is signalled or
// cmdCtx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts ...RuntimeOption) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	rt, err := OpenRuntime(signalCtx, cfg, logger, opts...)
	if err != nil {
		logger.Error("open runtime", logging.Error(err))
		return err
	}
	defer rt.Close()

	reset, err := rt.Store.ResetStuckGenerating(signalCtx)
	if err != nil {
		logging.WarnWithContext(logger, "reset interrupted jobs failed", "job_reset_failed", logging.Error(err))
	} else if reset > 0 {
		logger.Info("failed jobs interrupted by previous shutdown",
			logging.String(logging.FieldEventType, "jobs_interrupted"),
			logging.Int64("count", reset),
		)
	}

	srv, err := New(cfg, rt.Service, WithModel(rt.Provider.Model), WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err := srv.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("storyboarder server shutting down")
	srv.Stop()
	return nil
}
