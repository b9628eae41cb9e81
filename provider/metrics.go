package provider

import (
	"context"
	"time"

	"github.com/kbukum/chunkscribe/observability"
)

// WithMetrics records a call counter and latency histogram per provider.
func WithMetrics[I, O any](metrics *observability.PipelineMetrics) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		if metrics == nil {
			return inner
		}
		return &metricsRR[I, O]{inner: inner, metrics: metrics}
	}
}

type metricsRR[I, O any] struct {
	inner   RequestResponse[I, O]
	metrics *observability.PipelineMetrics
}

func (m *metricsRR[I, O]) Name() string                         { return m.inner.Name() }
func (m *metricsRR[I, O]) IsAvailable(ctx context.Context) bool { return m.inner.IsAvailable(ctx) }

func (m *metricsRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	start := time.Now()
	output, err := m.inner.Execute(ctx, input)
	m.metrics.RecordProviderCall(ctx, m.inner.Name(), time.Since(start), err)
	return output, err
}
