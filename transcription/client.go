package transcription

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/kbukum/chunkscribe/errors"
	"github.com/kbukum/chunkscribe/httpclient"
	"github.com/kbukum/chunkscribe/logger"
	"github.com/kbukum/chunkscribe/provider"
)

// Client transcribes one chunk per call without retrying.
type Client struct {
	backend Provider
	timeout time.Duration
	log     *logger.Logger
}

var _ provider.RequestResponse[Request, *Response] = (*Client)(nil)

// NewClient wraps backend. A non-positive timeout disables the per-call
// deadline.
func NewClient(backend Provider, timeout time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{backend: backend, timeout: timeout, log: log.WithComponent("transcription")}
}

// Name returns the backend name.
func (c *Client) Name() string { return c.backend.Name() }

// IsAvailable delegates to the backend.
func (c *Client) IsAvailable(ctx context.Context) bool { return c.backend.IsAvailable(ctx) }

// Execute is Transcribe for middleware chains.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	return c.Transcribe(ctx, req)
}

// Transcribe sends req to the backend once. Any failure, including the
// timeout, is EXTERNAL_SERVICE_ERROR with the chunk index attached. The
// error is marked retryable only for timeouts, connection failures, 429
// and 5xx.
func (c *Client) Transcribe(ctx context.Context, req Request) (*Response, error) {
	if req.AudioPath == "" {
		return nil, errors.MissingField("audio_path")
	}
	if !req.Format.Valid() {
		return nil, errors.InvalidFormat("format", "srt|vtt")
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.backend.Transcribe(callCtx, req)
	if err != nil {
		appErr := errors.ExternalServiceError(c.backend.Name(), err).
			WithDetail(errors.DetailChunkIndex, req.ChunkIndex)
		appErr.Retryable = retryable(ctx, err)
		c.log.WithContext(ctx).Warn("transcription failed", logger.MergeWithError(
			logger.Fields(
				logger.FieldChunkIndex, req.ChunkIndex,
				logger.FieldProvider, c.backend.Name(),
				"retryable", appErr.Retryable,
			), err))
		return nil, appErr
	}
	if resp.Provider == "" {
		resp.Provider = c.backend.Name()
	}

	c.log.WithContext(ctx).Debug("chunk transcribed", logger.Fields(
		logger.FieldChunkIndex, req.ChunkIndex,
		logger.FieldProvider, resp.Provider,
		logger.FieldDuration, time.Since(start).Milliseconds(),
		"bytes", len(resp.Document),
	))
	return resp, nil
}

// retryable is false once the caller's own context is done; otherwise a
// timeout of the per-call deadline is worth another attempt.
func retryable(parent context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return httpclient.IsRetryable(err)
}
