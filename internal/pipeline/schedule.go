package pipeline

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// NextRun returns the first activation of the standard cron spec after from.
func NextRun(spec string, from time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, etlerrors.Wrapf(err, etlerrors.ErrorTypeConfig, "invalid schedule %q", spec)
	}
	return sched.Next(from), nil
}

// Schedule runs RunOnce on spec until ctx is cancelled, then waits for a
// run in progress to finish. A tick that fires while a run is still going
// is skipped.
func (o *Orchestrator) Schedule(ctx context.Context, spec string) error {
	cl := cronLogger{o.logger.Sugar()}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(spec, func() {
		if _, err := o.RunOnce(ctx); err != nil {
			o.logger.Error("scheduled run failed", zap.Error(err))
		}
	}); err != nil {
		return etlerrors.Wrapf(err, etlerrors.ErrorTypeConfig, "invalid schedule %q", spec)
	}

	c.Start()
	if next, err := NextRun(spec, time.Now()); err == nil {
		o.logger.Info("scheduler started", zap.String("schedule", spec), zap.Time("next_run", next))
	}

	<-ctx.Done()
	<-c.Stop().Done()
	o.logger.Info("scheduler stopped")
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
