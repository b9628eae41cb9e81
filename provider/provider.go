package provider

import "context"

// Provider is implemented by every backend.
type Provider interface {
	// Name identifies the backend in logs, metrics and cache keys.
	Name() string
	// IsAvailable reports whether the backend can take requests now.
	IsAvailable(ctx context.Context) bool
}

// Factory builds a provider from typed configuration.
type Factory[C any, T Provider] func(cfg C) (T, error)
