// Package pipeline runs the weekly Reddit ETL: extract, transform and load
// executed in order, each under a fixed retry budget. Steps hand off only
// through object store artifacts, never in memory, so each step can run as
// its own process.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/logger"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/observability"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/retry"
)

// Options configures an Orchestrator.
type Options struct {
	Runner     StepRunner
	Steps      []string // defaults to AllSteps
	Retries    int
	RetryDelay time.Duration
	Metrics    *observability.PipelineMetrics
	Tracer     *observability.Tracer
	Logger     *zap.Logger
}

// Orchestrator runs the step DAG. There is no resume: a failed run must be
// reissued from the first step.
type Orchestrator struct {
	runner     StepRunner
	steps      []string
	retries    int
	retryDelay time.Duration
	metrics    *observability.PipelineMetrics
	tracer     *observability.Tracer
	logger     *zap.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewPipelineMetrics("redditetl")
	}
	if len(opts.Steps) == 0 {
		opts.Steps = AllSteps
	}
	return &Orchestrator{
		runner:     opts.Runner,
		steps:      opts.Steps,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		metrics:    opts.Metrics,
		tracer:     opts.Tracer,
		logger:     opts.Logger.With(zap.String("component", "orchestrator")),
	}
}

// RunOnce executes every configured step in order under a new run ID and
// returns the ID.
func (o *Orchestrator) RunOnce(ctx context.Context) (string, error) {
	runID := uuid.NewString()
	return runID, o.Run(ctx, runID, o.steps...)
}

// Run executes steps in order under runID. A step starts only after the
// previous one returned successfully. An empty runID gets a fresh one.
func (o *Orchestrator) Run(ctx context.Context, runID string, steps ...string) error {
	for _, step := range steps {
		if !isStep(step) {
			return etlerrors.Newf(etlerrors.ErrorTypeValidation, "unknown step %q", step)
		}
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = logger.WithRunID(ctx, runID)
	log := logger.FromContext(ctx, o.logger)

	start := time.Now()
	log.Info("pipeline run started", zap.Strings("steps", steps))

	for _, step := range steps {
		if err := o.runStep(ctx, step); err != nil {
			log.Error("pipeline run failed",
				zap.String("step", step),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return etlerrors.Wrapf(err, etlerrors.TypeOf(err), "step %s failed", step)
		}
	}

	log.Info("pipeline run finished", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (o *Orchestrator) runStep(ctx context.Context, step string) error {
	runLog := logger.FromContext(ctx, o.logger)
	ctx = logger.WithStep(ctx, step)
	log := logger.FromContext(ctx, o.logger)

	policy := retry.Fixed(o.retries, o.retryDelay)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		o.metrics.RecordRetry(step)
		log.Warn("step attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	return policy.ExecuteWithCondition(ctx, func(ctx context.Context) error {
		return o.metrics.TrackStep(ctx, o.tracer, step, runLog, func(ctx context.Context) error {
			return o.runner.RunStep(ctx, step)
		})
	}, shouldRetry)
}

// shouldRetry rejects failures that a rerun cannot fix.
func shouldRetry(err error) bool {
	return etlerrors.IsRetryable(err)
}

func isStep(name string) bool {
	for _, s := range AllSteps {
		if s == name {
			return true
		}
	}
	return false
}
