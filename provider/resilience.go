package provider

import (
	"context"
	"errors"

	apperrors "github.com/kbukum/chunkscribe/errors"
	"github.com/kbukum/chunkscribe/resilience"
)

// ResilienceConfig selects the policies applied around a backend. Nil
// sections are skipped; an empty config is a passthrough.
type ResilienceConfig struct {
	RateLimiter    *resilience.RateLimiterConfig    `yaml:"rate_limiter" mapstructure:"rate_limiter"`
	CircuitBreaker *resilience.CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
	Retry          *resilience.RetryConfig          `yaml:"retry" mapstructure:"retry"`
}

// IsEmpty reports whether no policy is configured.
func (c ResilienceConfig) IsEmpty() bool {
	return c.CircuitBreaker == nil && c.Retry == nil && c.RateLimiter == nil
}

// ResilienceState holds the live primitives built from a ResilienceConfig.
// Share one state between every caller of the same backend so the limiter
// and breaker see all traffic.
type ResilienceState struct {
	rl    *resilience.RateLimiter
	cb    *resilience.CircuitBreaker
	retry *resilience.RetryConfig
}

// BuildResilience creates the primitives for cfg. It returns nil for an
// empty config.
func BuildResilience(cfg ResilienceConfig) *ResilienceState {
	if cfg.IsEmpty() {
		return nil
	}
	s := &ResilienceState{retry: cfg.Retry}
	if cfg.RateLimiter != nil {
		s.rl = resilience.NewRateLimiter(*cfg.RateLimiter)
	}
	if cfg.CircuitBreaker != nil {
		s.cb = resilience.NewCircuitBreaker(*cfg.CircuitBreaker)
	}
	return s
}

// CircuitState reports the breaker state, or closed when no breaker is set.
func (s *ResilienceState) CircuitState() resilience.State {
	if s == nil || s.cb == nil {
		return resilience.StateClosed
	}
	return s.cb.State()
}

// ExecuteWithResilience runs fn as limiter → breaker → retry → fn.
// Limiter and breaker rejections surface as AppErrors.
func ExecuteWithResilience[T any](ctx context.Context, s *ResilienceState, fn func() (T, error)) (T, error) {
	if s == nil {
		return fn()
	}

	if s.rl != nil {
		if err := s.rl.Wait(ctx); err != nil {
			var zero T
			return zero, wrapResilienceError(err)
		}
	}

	call := fn
	if s.retry != nil {
		cfg := *s.retry
		call = func() (T, error) { return resilience.Retry(ctx, cfg, fn) }
	}

	if s.cb == nil {
		return call()
	}

	var (
		result  T
		callErr error
	)
	cbErr := s.cb.Execute(func() error {
		result, callErr = call()
		return callErr
	})
	if cbErr != nil && callErr == nil {
		return result, wrapResilienceError(cbErr)
	}
	return result, callErr
}

// WithResilience wraps p with the policies in cfg.
func WithResilience[I, O any](p RequestResponse[I, O], cfg ResilienceConfig) RequestResponse[I, O] {
	return WithResilienceState(p, BuildResilience(cfg))
}

// WithResilienceState wraps p with already-built primitives.
func WithResilienceState[I, O any](p RequestResponse[I, O], s *ResilienceState) RequestResponse[I, O] {
	if s == nil {
		return p
	}
	return &resilientRR[I, O]{inner: p, state: s}
}

// WithResilienceMiddleware is WithResilience as a Middleware for Chain.
func WithResilienceMiddleware[I, O any](cfg ResilienceConfig) Middleware[I, O] {
	s := BuildResilience(cfg)
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return WithResilienceState(inner, s)
	}
}

// WithSinkResilience wraps a Sink with the policies in cfg.
func WithSinkResilience[I any](p Sink[I], cfg ResilienceConfig) Sink[I] {
	s := BuildResilience(cfg)
	if s == nil {
		return p
	}
	return &resilientSink[I]{inner: p, state: s}
}

type resilientRR[I, O any] struct {
	inner RequestResponse[I, O]
	state *ResilienceState
}

func (r *resilientRR[I, O]) Name() string { return r.inner.Name() }

func (r *resilientRR[I, O]) IsAvailable(ctx context.Context) bool {
	return r.state.CircuitState() != resilience.StateOpen && r.inner.IsAvailable(ctx)
}

func (r *resilientRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	return ExecuteWithResilience(ctx, r.state, func() (O, error) {
		return r.inner.Execute(ctx, input)
	})
}

type resilientSink[I any] struct {
	inner Sink[I]
	state *ResilienceState
}

func (r *resilientSink[I]) Name() string                         { return r.inner.Name() }
func (r *resilientSink[I]) IsAvailable(ctx context.Context) bool { return r.inner.IsAvailable(ctx) }

func (r *resilientSink[I]) Send(ctx context.Context, input I) error {
	_, err := ExecuteWithResilience(ctx, r.state, func() (struct{}, error) {
		return struct{}{}, r.inner.Send(ctx, input)
	})
	return err
}

func wrapResilienceError(err error) error {
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return apperrors.ServiceUnavailable("provider").WithCause(err)
	case errors.Is(err, resilience.ErrRateLimited):
		return apperrors.RateLimited().WithCause(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("waiting for rate limiter").WithCause(err)
	default:
		return err
	}
}
