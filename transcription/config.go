package transcription

import (
	"fmt"
	"time"

	"github.com/kbukum/chunkscribe/provider"
)

// Config selects and configures the backend.
type Config struct {
	// Provider is the registered backend name.
	Provider string `yaml:"provider" mapstructure:"provider"`
	// Timeout bounds a single chunk upload and transcription.
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Language string        `yaml:"language" mapstructure:"language"`
	Prompt   string        `yaml:"prompt" mapstructure:"prompt"`

	OpenAI  OpenAIConfig  `yaml:"openai" mapstructure:"openai"`
	Whisper WhisperConfig `yaml:"whisper" mapstructure:"whisper"`

	// Resilience wraps the client; retry applies per chunk.
	Resilience provider.ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	// Cache enables the Redis transcript cache.
	Cache bool `yaml:"cache" mapstructure:"cache"`
}

// OpenAIConfig configures the hosted backend.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// WhisperConfig configures the self-hosted sidecar.
type WhisperConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	Model       string `yaml:"model" mapstructure:"model"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	Device      string `yaml:"device" mapstructure:"device"`
	ComputeType string `yaml:"compute_type" mapstructure:"compute_type"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Minute
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "whisper-1"
	}
	if c.Whisper.URL == "" {
		c.Whisper.URL = "http://localhost:8387"
	}
	if c.Whisper.Model == "" {
		c.Whisper.Model = "base"
	}
}

// Validate checks the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("transcription.openai.api_key is required")
		}
	case "whisper":
		if c.Whisper.URL == "" {
			return fmt.Errorf("transcription.whisper.url is required")
		}
	case "":
		return fmt.Errorf("transcription.provider is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("transcription.timeout must be positive")
	}
	return nil
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *provider.Registry[Config, Provider] {
	return provider.NewRegistry[Config, Provider]()
}
