// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for pipeline steps.
//
// Metrics live in a per-process registry rather than the global default so
// that a batch run can push exactly what it produced to a Pushgateway when
// it finishes:
//
//	m := observability.NewPipelineMetrics("redditetl")
//	err := m.TrackStep(ctx, tracer, "extract", logger, func(ctx context.Context) error {
//		...
//	})
//	_ = m.Push(ctx, cfg.Metrics.PushgatewayURL)
package observability
