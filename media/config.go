package media

import "time"

// Config locates the ffmpeg tools and sets the chunk encoding.
type Config struct {
	FFmpegPath  string        `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	FFprobePath string        `yaml:"ffprobe_path" mapstructure:"ffprobe_path"`
	Codec       string        `yaml:"codec" mapstructure:"codec"`
	Extension   string        `yaml:"extension" mapstructure:"extension"`
	SampleRate  int           `yaml:"sample_rate" mapstructure:"sample_rate"`
	Channels    int           `yaml:"channels" mapstructure:"channels"`
	GracePeriod time.Duration `yaml:"grace_period" mapstructure:"grace_period"`
}

// ApplyDefaults encodes chunks as mono 16 kHz mp3.
func (c *Config) ApplyDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.FFprobePath == "" {
		c.FFprobePath = "ffprobe"
	}
	if c.Codec == "" {
		c.Codec = "libmp3lame"
	}
	if c.Extension == "" {
		c.Extension = "mp3"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 5 * time.Second
	}
}
