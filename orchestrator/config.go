package orchestrator

import (
	"time"

	"github.com/kbukum/chunkscribe/caption"
	"github.com/kbukum/chunkscribe/chunk"
	"github.com/kbukum/chunkscribe/resilience"
	"github.com/kbukum/chunkscribe/validation"
)

// Config is the pipeline section of the application config.
type Config struct {
	// BitrateBps is the chunk encoding bitrate, also used to predict size.
	BitrateBps int64 `mapstructure:"bitrate"`
	// MaxUploadBytes is the transcription service's upload limit.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
	// MaxChunkDuration caps each chunk's length.
	MaxChunkDuration time.Duration `mapstructure:"max_chunk_duration"`

	// AudioRoot holds demuxed audio and chunk files, one directory per asset.
	AudioRoot string `mapstructure:"audio_root"`
	// Format is the caption format used when a request names none.
	Format string `mapstructure:"format"`

	// Concurrency bounds parallel chunk exports and transcriptions. 1 runs
	// chunks one at a time.
	Concurrency int `mapstructure:"concurrency"`
	// KeepAudio leaves the working audio in place after a successful run.
	KeepAudio bool `mapstructure:"keep_audio"`
	// Normalize drops repeated VTT headers and renumbers SRT cues on merge.
	Normalize bool `mapstructure:"normalize"`

	// Language and Prompt are forwarded to the transcription backend.
	Language string `mapstructure:"language"`
	Prompt   string `mapstructure:"prompt"`

	// Retry governs per-chunk transcription retries of retryable errors.
	Retry resilience.RetryConfig `mapstructure:"retry"`
}

// ApplyDefaults fills the 128 kbps, 25 MiB, 20 min, vtt defaults.
func (c *Config) ApplyDefaults() {
	d := chunk.DefaultLimits()
	if c.BitrateBps <= 0 {
		c.BitrateBps = d.BitrateBps
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.MaxChunkDuration <= 0 {
		c.MaxChunkDuration = time.Duration(d.MaxChunkDurationMs) * time.Millisecond
	}
	if c.AudioRoot == "" {
		c.AudioRoot = "audio"
	}
	if c.Format == "" {
		c.Format = string(caption.FormatVTT)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	c.Retry.ApplyDefaults()
}

// Validate checks the limits, format, concurrency and retry settings and
// reports every failing field in one INVALID_INPUT error.
func (c *Config) Validate() error {
	formats := make([]string, len(caption.Formats))
	for i, f := range caption.Formats {
		formats[i] = string(f)
	}
	return validation.New().
		Positive("bitrate", c.BitrateBps).
		Positive("max_upload_bytes", c.MaxUploadBytes).
		Positive("max_chunk_duration", c.MaxChunkDuration.Milliseconds()).
		OneOf("format", c.Format, formats).
		Min("concurrency", c.Concurrency, 1).
		Min("retry.max_attempts", c.Retry.MaxAttempts, 1).
		Custom(c.Retry.MaxBackoff == 0 || c.Retry.MaxBackoff >= c.Retry.InitialBackoff,
			"retry.max_backoff", "must not be below initial_backoff").
		Err()
}

// Limits converts the size settings for the chunk planner.
func (c *Config) Limits() chunk.Limits {
	return chunk.Limits{
		BitrateBps:         c.BitrateBps,
		MaxUploadBytes:     c.MaxUploadBytes,
		MaxChunkDurationMs: c.MaxChunkDuration.Milliseconds(),
	}
}
