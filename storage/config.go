package storage

import (
	"errors"
	"fmt"
)

// Registered backend names.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

// Config selects and configures the artifact store.
type Config struct {
	// Provider is "local" or "s3".
	Provider string `yaml:"provider" mapstructure:"provider"`

	// BasePath is the root directory for the local backend.
	BasePath string `yaml:"base_path" mapstructure:"base_path"`

	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Region    string `yaml:"region" mapstructure:"region"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	// Prefix is prepended to every S3 key.
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	// ForcePathStyle is implied when Endpoint is set.
	ForcePathStyle bool `yaml:"force_path_style" mapstructure:"force_path_style"`
	// ChecksumWhenRequired turns off the SDK's default request checksums
	// for S3-compatible servers that reject them.
	ChecksumWhenRequired bool `yaml:"checksum_when_required" mapstructure:"checksum_when_required"`
}

// ApplyDefaults stores transcripts under ./transcripts by default.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.BasePath == "" {
		c.BasePath = "transcripts"
	}
	if c.Region == "" {
		c.Region = "us-east-1"
	}
}

// Validate checks the selected backend's settings.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.BasePath == "" {
			return errors.New("storage: base_path is required for local provider")
		}
	case ProviderS3:
		var errs []error
		if c.Bucket == "" {
			errs = append(errs, errors.New("bucket is required"))
		}
		if c.Region == "" {
			errs = append(errs, errors.New("region is required"))
		}
		if (c.AccessKey == "") != (c.SecretKey == "") {
			errs = append(errs, errors.New("access_key and secret_key must be set together"))
		}
		if len(errs) > 0 {
			return fmt.Errorf("storage: invalid s3 config: %w", errors.Join(errs...))
		}
	default:
		return fmt.Errorf("storage: unsupported provider %q", c.Provider)
	}
	return nil
}
