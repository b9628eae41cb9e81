package main

import (
	"fmt"

	"github.com/kbukum/chunkscribe/config"
	"github.com/kbukum/chunkscribe/database"
	"github.com/kbukum/chunkscribe/jobs"
	"github.com/kbukum/chunkscribe/kafka"
	"github.com/kbukum/chunkscribe/media"
	"github.com/kbukum/chunkscribe/observability"
	"github.com/kbukum/chunkscribe/orchestrator"
	"github.com/kbukum/chunkscribe/redis"
	"github.com/kbukum/chunkscribe/storage"
	"github.com/kbukum/chunkscribe/transcription"
	"github.com/kbukum/chunkscribe/version"
)

// AppConfig is the whole chunkscribe configuration.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Pipeline      orchestrator.Config  `yaml:"pipeline" mapstructure:"pipeline"`
	Media         media.Config         `yaml:"media" mapstructure:"media"`
	Transcription transcription.Config `yaml:"transcription" mapstructure:"transcription"`
	Storage       storage.Config       `yaml:"storage" mapstructure:"storage"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Kafka         kafka.Config         `yaml:"kafka" mapstructure:"kafka"`
	Queue         jobs.Config          `yaml:"queue" mapstructure:"queue"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills every section. The queue shares the cache's Redis
// unless it names its own, and the pipeline inherits the backend's
// language and prompt hints.
func (c *AppConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = version.Name
	}
	if c.Version == "" {
		c.Version = version.Version
	}
	c.ServiceConfig.ApplyDefaults()

	if c.Pipeline.Language == "" {
		c.Pipeline.Language = c.Transcription.Language
	}
	if c.Pipeline.Prompt == "" {
		c.Pipeline.Prompt = c.Transcription.Prompt
	}
	c.Pipeline.ApplyDefaults()
	c.Media.ApplyDefaults()
	c.Transcription.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Kafka.ApplyDefaults()
	if c.Queue.RedisAddr == "" && c.Redis.Addr != "" {
		c.Queue.RedisAddr = c.Redis.Addr
		c.Queue.RedisPassword = c.Redis.Password
		c.Queue.RedisDB = c.Redis.DB
	}
	c.Queue.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks the sections every command relies on. The transcription
// section is checked only by commands that transcribe.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	checks := []struct {
		section string
		check   func() error
	}{
		{"pipeline", c.Pipeline.Validate},
		{"storage", c.Storage.Validate},
		{"redis", c.Redis.Validate},
		{"database", c.Database.Validate},
		{"kafka", c.Kafka.Validate},
		{"queue", c.Queue.Validate},
	}
	for _, s := range checks {
		if err := s.check(); err != nil {
			return fmt.Errorf("%s: %w", s.section, err)
		}
	}
	return nil
}

// loadConfig reads config.yml, .env and the environment. An explicit path
// overrides the search.
func loadConfig(path string) (*AppConfig, error) {
	var opts []config.LoaderOption
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	cfg := &AppConfig{}
	if err := config.LoadConfig(version.Name, cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}
