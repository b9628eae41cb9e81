package jobs

import (
	"fmt"
	"time"
)

// Config configures the asynq queue. Tasks live in the same Redis the
// transcription cache uses unless RedisAddr says otherwise.
type Config struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	// Queue is the asynq queue runs are enqueued on.
	Queue string `mapstructure:"queue"`
	// Concurrency is the number of runs a worker processes at once.
	Concurrency int `mapstructure:"concurrency"`
	// MaxRetry bounds asynq's redelivery of a failed run.
	MaxRetry int `mapstructure:"max_retry"`
	// Timeout bounds one run.
	Timeout time.Duration `mapstructure:"timeout"`
	// Retention keeps completed task records for inspection.
	Retention time.Duration `mapstructure:"retention"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.Queue == "" {
		c.Queue = "transcripts"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.MaxRetry == 0 {
		c.MaxRetry = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Hour
	}
	if c.Retention <= 0 {
		c.Retention = 24 * time.Hour
	}
}

// Validate checks the queue settings.
func (c *Config) Validate() error {
	if c.RedisAddr == "" {
		return fmt.Errorf("jobs: redis_addr is required")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("jobs: concurrency must be > 0")
	}
	if c.MaxRetry < 0 {
		return fmt.Errorf("jobs: max_retry must be >= 0")
	}
	return nil
}
