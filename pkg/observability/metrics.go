package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

const namespace = "redditetl"

// PipelineMetrics records row counts, step durations, retries and errors.
type PipelineMetrics struct {
	job      string
	registry *prometheus.Registry

	rows        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	retries     *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

// NewPipelineMetrics registers the pipeline metrics in a fresh registry.
func NewPipelineMetrics(job string) *PipelineMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PipelineMetrics{
		job:      job,
		registry: reg,
		rows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "rows_total",
				Help:      "Rows produced by a step per dataset",
			},
			[]string{"step", "dataset"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "step_duration_seconds",
				Help:      "Duration of pipeline steps in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"step", "status"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "errors_total",
				Help:      "Failed step attempts by error type",
			},
			[]string{"step", "error_type"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "retries_total",
				Help:      "Step retries",
			},
			[]string{"step"},
		),
		lastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful step",
			},
			[]string{"step"},
		),
	}
}

// Registry exposes the registry for scraping or tests.
func (m *PipelineMetrics) Registry() *prometheus.Registry { return m.registry }

// RecordRows adds n rows for dataset in step.
func (m *PipelineMetrics) RecordRows(step, dataset string, n int) {
	m.rows.WithLabelValues(step, dataset).Add(float64(n))
}

// RecordRetry counts one retry of step.
func (m *PipelineMetrics) RecordRetry(step string) {
	m.retries.WithLabelValues(step).Inc()
}

// ObserveStep records one finished attempt of step.
func (m *PipelineMetrics) ObserveStep(step string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.errors.WithLabelValues(step, string(etlerrors.TypeOf(err))).Inc()
	} else {
		m.lastSuccess.WithLabelValues(step).SetToCurrentTime()
	}
	m.duration.WithLabelValues(step, status).Observe(d.Seconds())
}

// TrackStep runs fn inside a span and records its duration and outcome.
func (m *PipelineMetrics) TrackStep(ctx context.Context, tracer *Tracer, step string, logger *zap.Logger, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "step."+step, attribute.String("step", step))

	err := fn(ctx)

	duration := time.Since(start)
	span.End(err)
	m.ObserveStep(step, duration, err)

	if logger != nil {
		if err != nil {
			logger.Error("step failed",
				zap.String("step", step),
				zap.Duration("duration", duration),
				zap.String("error_type", string(etlerrors.TypeOf(err))),
				zap.Error(err))
		} else {
			logger.Info("step completed",
				zap.String("step", step),
				zap.Duration("duration", duration))
		}
	}
	return err
}

// Push sends the registry to a Pushgateway. An empty url is a no-op.
func (m *PipelineMetrics) Push(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, m.job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to push metrics")
	}
	return nil
}
