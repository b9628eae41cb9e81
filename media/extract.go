package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kbukum/chunkscribe/process"
)

// Extractor pulls the audio track out of a video container.
type Extractor struct {
	runner process.Runner
	cfg    Config
}

// NewExtractor creates an Extractor. A nil runner uses process.ExecRunner.
func NewExtractor(cfg Config, runner process.Runner) *Extractor {
	cfg.ApplyDefaults()
	if runner == nil {
		runner = process.ExecRunner{}
	}
	return &Extractor{runner: runner, cfg: cfg}
}

// ExtractAudio writes the audio of videoPath to outPath as 16-bit PCM wav
// and returns outPath.
func (e *Extractor) ExtractAudio(ctx context.Context, videoPath, outPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("create audio directory: %w", err)
	}
	res, err := e.runner.Run(ctx, process.Command{
		Binary: e.cfg.FFmpegPath,
		Args: []string{
			"-y", "-i", videoPath,
			"-vn",
			"-acodec", "pcm_s16le",
			"-ar", strconv.Itoa(e.cfg.SampleRate),
			"-ac", strconv.Itoa(e.cfg.Channels),
			"-f", "wav",
			outPath,
		},
		GracePeriod: e.cfg.GracePeriod,
	})
	if err != nil {
		return "", fmt.Errorf("extract audio from %s: %w: %s", videoPath, err, res.StderrTail(3))
	}
	return outPath, nil
}
