package main

import (
	"context"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Ayoub-k/DS-RedditEndToEnd/internal/pipeline"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/config"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/logger"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/objectstore"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/observability"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/reddit"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/warehouse"
)

// app holds what every command shares: configuration, logging, metrics and
// tracing.
type app struct {
	cfg        *config.Config
	configPath string
	logLevel   string
	logger     *zap.Logger
	metrics    *observability.PipelineMetrics
	tracer     *observability.Tracer
	bucket     objectstore.Bucket
}

func newApp(ctx context.Context, v *viper.Viper) (*app, error) {
	path := v.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level := v.GetString("log_level"); level != "" {
		cfg.Logging.Level = level
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	tracer, err := observability.NewTracer(ctx, cfg.Tracing, os.Stderr)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}

	return &app{
		cfg:        cfg,
		configPath: path,
		logLevel:   v.GetString("log_level"),
		logger:     log,
		metrics:    observability.NewPipelineMetrics(cfg.Metrics.Job),
		tracer:     tracer,
	}, nil
}

// steps connects the object store and, when withReddit is set, the Reddit
// API. The warehouse is only opened by the load step itself.
func (a *app) steps(ctx context.Context, withReddit bool) (*pipeline.Steps, error) {
	if a.bucket == nil {
		bucket, err := objectstore.Open(ctx, a.cfg)
		if err != nil {
			return nil, err
		}
		a.bucket = bucket
	}

	deps := pipeline.Deps{
		Config: a.cfg,
		Store:  objectstore.NewStore(a.bucket, a.logger),
		OpenWarehouse: func(ctx context.Context) (warehouse.Loader, error) {
			return warehouse.Open(ctx, a.cfg, a.logger)
		},
		Metrics: a.metrics,
		Logger:  a.logger,
	}
	if withReddit {
		creds, err := a.cfg.RedditCredentials()
		if err != nil {
			return nil, err
		}
		client, err := reddit.New(ctx, a.cfg.Reddit, creds, a.logger)
		if err != nil {
			return nil, err
		}
		deps.Reddit = client
	}
	return pipeline.NewSteps(deps), nil
}

func (a *app) orchestrator(ctx context.Context, inProcess bool) (*pipeline.Orchestrator, error) {
	// Each child process would start with its own empty bucket.
	if !inProcess && a.cfg.Storage.Backend == "memory" {
		return nil, etlerrors.New(etlerrors.ErrorTypeConfig,
			"storage.backend memory requires --in-process").
			WithDetail("backend", a.cfg.Storage.Backend)
	}

	opts := pipeline.Options{
		Retries:    a.cfg.Orchestrator.Retries,
		RetryDelay: a.cfg.Orchestrator.RetryDelay,
		Metrics:    a.metrics,
		Tracer:     a.tracer,
		Logger:     a.logger,
	}

	if inProcess {
		steps, err := a.steps(ctx, true)
		if err != nil {
			return nil, err
		}
		opts.Runner = pipeline.FuncRunner(steps.Run)
	} else {
		exe, err := os.Executable()
		if err != nil {
			return nil, err
		}
		args := []string{"--config", a.configPath}
		if a.logLevel != "" {
			args = append(args, "--log-level", a.logLevel)
		}
		opts.Runner = &pipeline.ProcessRunner{
			Binary: exe,
			Args:   args,
			Stdout: os.Stdout,
			Stderr: os.Stderr,
		}
	}
	return pipeline.NewOrchestrator(opts), nil
}

func (a *app) pushMetrics(ctx context.Context) {
	if err := a.metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL); err != nil {
		a.logger.Warn("failed to push metrics", zap.Error(err))
	}
}

func (a *app) close() {
	if a.bucket != nil {
		if err := a.bucket.Close(); err != nil {
			a.logger.Warn("failed to close object store", zap.Error(err))
		}
	}
	if err := a.tracer.Shutdown(context.Background()); err != nil {
		a.logger.Warn("failed to flush traces", zap.Error(err))
	}
	_ = a.logger.Sync()
}
