package transcription

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kbukum/chunkscribe/logger"
	"github.com/kbukum/chunkscribe/observability"
	"github.com/kbukum/chunkscribe/provider"
)

// ResponseStore persists transcripts. *redis.TypedStore[Response]
// satisfies it.
type ResponseStore interface {
	Load(ctx context.Context, key string) (*Response, error)
	Save(ctx context.Context, key string, val *Response, ttl time.Duration) error
}

// CacheKey identifies a transcript by the audio content and every
// parameter that changes the output.
func CacheKey(backend string, req Request) (string, error) {
	f, err := os.Open(req.AudioPath)
	if err != nil {
		return "", fmt.Errorf("open %s for hashing: %w", req.AudioPath, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", req.AudioPath, err)
	}
	fmt.Fprintf(h, "\x00%s\x00%s\x00%s\x00%s", backend, req.Format, req.Language, req.Prompt)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WithCache serves repeated chunks from store. Store failures are logged
// and treated as misses so the cache can never fail a run.
func WithCache(store ResponseStore, ttl time.Duration, metrics *observability.PipelineMetrics, log *logger.Logger) provider.Middleware[Request, *Response] {
	if log == nil {
		log = logger.NewNop()
	}
	return func(inner provider.RequestResponse[Request, *Response]) provider.RequestResponse[Request, *Response] {
		if store == nil {
			return inner
		}
		return &cachedRR{inner: inner, store: store, ttl: ttl, metrics: metrics, log: log.WithComponent("transcript-cache")}
	}
}

type cachedRR struct {
	inner   provider.RequestResponse[Request, *Response]
	store   ResponseStore
	ttl     time.Duration
	metrics *observability.PipelineMetrics
	log     *logger.Logger
}

func (c *cachedRR) Name() string                         { return c.inner.Name() }
func (c *cachedRR) IsAvailable(ctx context.Context) bool { return c.inner.IsAvailable(ctx) }

func (c *cachedRR) Execute(ctx context.Context, req Request) (*Response, error) {
	key, err := CacheKey(c.inner.Name(), req)
	if err != nil {
		c.log.WithContext(ctx).Warn("cache key unavailable", logger.ErrorFields("hash", err))
		return c.inner.Execute(ctx, req)
	}

	cached, err := c.store.Load(ctx, key)
	switch {
	case err != nil:
		c.log.WithContext(ctx).Warn("cache lookup failed", logger.ErrorFields("load", err))
	case cached != nil:
		c.metrics.RecordCacheHit(ctx, c.inner.Name())
		c.log.WithContext(ctx).Debug("cache hit", logger.Fields(logger.FieldChunkIndex, req.ChunkIndex))
		cached.Cached = true
		return cached, nil
	}

	resp, err := c.inner.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.store.Save(ctx, key, resp, c.ttl); err != nil {
		c.log.WithContext(ctx).Warn("cache store failed", logger.ErrorFields("save", err))
	}
	return resp, nil
}
