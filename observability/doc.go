// Package observability wires OpenTelemetry tracing and metrics for the
// transcription pipeline.
//
//	shutdown, err := observability.Setup(ctx, cfg.Observability, "chunkscribe", version.Version, cfg.Environment)
//	defer shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanRun)
//	defer span.End()
//
// Pipeline counters and histograms live on PipelineMetrics. A nil
// *PipelineMetrics is valid and records nothing.
package observability
