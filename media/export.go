package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kbukum/chunkscribe/chunk"
	"github.com/kbukum/chunkscribe/errors"
	"github.com/kbukum/chunkscribe/process"
)

// AudioChunk is an exported chunk on disk. DurationMs is measured from the
// written file, not taken from the plan.
type AudioChunk struct {
	Index      int    `json:"index"`
	StartMs    int64  `json:"start_ms"`
	DurationMs int64  `json:"duration_ms"`
	Path       string `json:"path"`
}

// ChunkFileName is the file name for chunk index with extension ext.
func ChunkFileName(index int, ext string) string {
	return "chunk" + strconv.Itoa(index) + "." + ext
}

// Exporter slices and re-encodes chunks.
type Exporter struct {
	runner     process.Runner
	prober     *Prober
	cfg        Config
	bitrateBps int64
}

// NewExporter creates an Exporter encoding at bitrateBps.
func NewExporter(cfg Config, runner process.Runner, bitrateBps int64) *Exporter {
	cfg.ApplyDefaults()
	if runner == nil {
		runner = process.ExecRunner{}
	}
	return &Exporter{
		runner:     runner,
		prober:     NewProber(cfg, runner),
		cfg:        cfg,
		bitrateBps: bitrateBps,
	}
}

// Extension is the file extension of exported chunks.
func (e *Exporter) Extension() string {
	return e.cfg.Extension
}

// Export writes spec's slice of sourcePath to workDir/chunk<i>.<ext>,
// replacing any previous file for the same index, and probes the result for
// its actual duration. Failures are EXPORT_ERROR carrying the chunk index.
func (e *Exporter) Export(ctx context.Context, sourcePath string, spec chunk.Spec, workDir string) (*AudioChunk, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, errors.ExportFailed(spec.Index, err)
	}
	out := filepath.Join(workDir, ChunkFileName(spec.Index, e.cfg.Extension))

	res, err := e.runner.Run(ctx, process.Command{
		Binary:      e.cfg.FFmpegPath,
		Args:        e.args(sourcePath, spec, out),
		GracePeriod: e.cfg.GracePeriod,
	})
	if err != nil {
		return nil, errors.ExportFailed(spec.Index, err).
			WithDetail(errors.DetailPath, out).
			WithDetail("stderr", res.StderrTail(5))
	}

	probe, err := e.prober.Probe(ctx, out)
	if err != nil {
		return nil, errors.ExportFailed(spec.Index, err).WithDetail(errors.DetailPath, out)
	}
	duration, err := probe.DurationMs()
	if err != nil {
		return nil, errors.ExportFailed(spec.Index, err).WithDetail(errors.DetailPath, out)
	}

	return &AudioChunk{
		Index:      spec.Index,
		StartMs:    spec.StartMs,
		DurationMs: duration,
		Path:       out,
	}, nil
}

func (e *Exporter) args(src string, spec chunk.Spec, out string) []string {
	return []string{
		"-y",
		"-i", src,
		"-ss", ffmpegTime(spec.StartMs),
		"-to", ffmpegTime(spec.EndMs),
		"-vn",
		"-c:a", e.cfg.Codec,
		"-b:a", strconv.FormatInt(e.bitrateBps, 10),
		"-ar", strconv.Itoa(e.cfg.SampleRate),
		"-ac", strconv.Itoa(e.cfg.Channels),
		out,
	}
}

// ffmpegTime renders ms as HH:MM:SS.mmm for -ss and -to.
func ffmpegTime(ms int64) string {
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3_600_000, ms/60_000%60, ms/1000%60, ms%1000)
}
