package cli

import (
	"context"
	"errors"

	"github.com/drujensen/aibrowser/internal/domain/services"
	"github.com/drujensen/aibrowser/internal/impl/config"
	"github.com/drujensen/aibrowser/internal/impl/integrations"
	"github.com/drujensen/aibrowser/internal/impl/logging"
	"github.com/drujensen/aibrowser/internal/impl/repositories"
	"github.com/drujensen/aibrowser/internal/impl/screenshots"
	"github.com/drujensen/aibrowser/internal/impl/tools"

	"go.uber.org/zap"
)

// app is the wired object graph behind every command.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	checkpoint *repositories.Checkpoint
	sink       *screenshots.Sink
	tools      *tools.Registry
	sessions   *services.SessionService
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(opts *rootOptions) (*config.Config, *zap.Logger, error) {
	bootstrap := logging.NewConsole(config.LogConfig{Level: "warn"})
	cfg, err := config.Load(opts.configPath, bootstrap)
	if err != nil {
		return nil, nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.provider != "" {
		cfg.ModelConfig.Provider = opts.provider
	}
	return cfg, logging.NewConsole(cfg.Log), nil
}

// newApp wires the full stack. Tool servers are connected here, so the
// caller must Close the app.
func newApp(ctx context.Context, opts *rootOptions, version string) (*app, error) {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	checkpoint, err := repositories.OpenCheckpoint(ctx, cfg.Checkpoint, logger)
	if err != nil {
		return nil, err
	}

	registry, err := tools.NewRegistryFromConfig(ctx, cfg, version, logger)
	if err != nil {
		checkpoint.Close(context.Background())
		return nil, err
	}

	sink := screenshots.NewSink(cfg.Screenshots.Dir, logger)
	sessions := services.NewSessionService(
		integrations.NewModelFactory(cfg, logger),
		registry,
		checkpoint.Repository,
		sink,
		services.SessionOptions{
			Provider:         cfg.Provider(),
			SystemPrompt:     cfg.Agent.SystemPrompt,
			HistoryMaxTokens: cfg.History.MaxTokens,
			Loop: services.AgentLoopOptions{
				MaxIterations: cfg.Agent.MaxIterations,
				MaxDuration:   cfg.Agent.MaxDuration,
			},
			Executor: services.ToolExecutorOptions{
				Concurrency: cfg.Agent.ToolConcurrency,
				Timeout:     cfg.Agent.ToolTimeout,
			},
		},
		logger,
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		checkpoint: checkpoint,
		sink:       sink,
		tools:      registry,
		sessions:   sessions,
	}, nil
}

func (a *app) Close() error {
	err := errors.Join(a.tools.Close(), a.checkpoint.Close(context.Background()))
	_ = a.logger.Sync()
	return err
}
