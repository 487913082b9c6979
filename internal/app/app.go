// Package app wires the engine together: configuration loading, logging,
// the cache client, the execution log sink, and command dispatch.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ohler55/ojg/oj"

	"github.com/vk/privgraph/internal/cache"
	"github.com/vk/privgraph/internal/ctxlog"
	"github.com/vk/privgraph/internal/execlog"
	"github.com/vk/privgraph/internal/executor"
	"github.com/vk/privgraph/internal/hclcfg"
)

// App encapsulates the application's dependencies and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	model  *hclcfg.Model
}

// NewApp loads configuration and returns a fully initialized App with its
// own isolated logger.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg, outW)
	ctx = ctxlog.WithLogger(ctx, logger)

	model, err := hclcfg.Load(ctx, cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return &App{outW: outW, logger: logger, config: cfg, model: model}, nil
}

// Run dispatches the configured command.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	switch a.config.Command {
	case CommandValidate:
		return a.runValidate(ctx)
	case CommandExecute:
		return a.runExecute(ctx)
	default:
		return fmt.Errorf("unknown command %q", a.config.Command)
	}
}

func (a *App) runValidate(ctx context.Context) error {
	engine := executor.New(executor.Options{})
	result := engine.Validate(ctx, a.model.Datasets)
	fmt.Fprintln(a.outW, result.Message)
	if !result.Traversable {
		return fmt.Errorf("configuration is not traversable")
	}
	return nil
}

func (a *App) runExecute(ctx context.Context) error {
	requestID := a.config.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := a.logger.With("request_id", requestID)
	ctx = ctxlog.WithLogger(ctx, logger)

	pol, err := a.model.Policy(a.config.PolicyName)
	if err != nil {
		return err
	}

	cacheClient, err := a.newCacheClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = cacheClient.Close() }()

	sink, err := a.newLogSink()
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()

	res, err := executor.NewResources(ctx, requestID, pol, cacheClient, sink, a.model.Connections)
	if err != nil {
		return err
	}
	defer res.Close(ctx)

	identities := make(map[string]any, len(a.config.Identities))
	for attr, value := range a.config.Identities {
		identities[attr] = value
	}

	engine := executor.New(executor.Options{
		RetryCount:     a.config.RetryCount,
		RetryDelay:     a.config.RetryDelay,
		ResultTTL:      a.config.ResultTTL,
		RequestTimeout: a.config.RequestTimeout,
		OnOutcome: func(o executor.Outcome) {
			logger.Info("node finished",
				"node", o.Address.String(),
				"status", string(o.Status),
				"rows", o.RowCount,
				"masked", o.MaskedCount,
				"from_cache", o.FromCache)
		},
	})

	outcomes, execErr := engine.Execute(ctx, res, a.model.Datasets, identities)
	logger.Info("execution finished", "nodes_processed", len(outcomes))
	if execErr != nil {
		return execErr
	}

	results, err := engine.ExportResults(ctx, res)
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}
	export := make(map[string]any, len(results))
	for addr, rows := range results {
		export[addr.String()] = rows
	}
	fmt.Fprintln(a.outW, oj.JSON(export, &oj.Options{Indent: 2, Sort: true}))
	return nil
}

func (a *App) newCacheClient(ctx context.Context) (cache.Client, error) {
	if a.config.CacheAddr == "" {
		a.logger.Warn("no cache address configured, using in-process cache; results will not survive this run")
		return cache.NewMemoryClient(), nil
	}
	return cache.NewRedisClient(ctx, a.config.CacheAddr, a.config.CachePassword, a.config.CacheDB)
}

func (a *App) newLogSink() (execlog.Sink, error) {
	if a.config.ExecLogPath == "" {
		return execlog.NewMemorySink(), nil
	}
	return execlog.NewSQLiteSink(a.config.ExecLogPath)
}
