package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kbukum/chunkscribe/errors"
	"github.com/kbukum/chunkscribe/logger"
)

// Kind is the broad type of a source file.
type Kind string

const (
	KindAudio   Kind = "audio"
	KindVideo   Kind = "video"
	KindUnknown Kind = ""
)

var kindByExt = map[string]Kind{
	".mp4":  KindVideo,
	".mov":  KindVideo,
	".webm": KindVideo,
	".mkv":  KindVideo,
	".avi":  KindVideo,
	".wav":  KindAudio,
	".mp3":  KindAudio,
	".m4a":  KindAudio,
	".ogg":  KindAudio,
	".flac": KindAudio,
	".aac":  KindAudio,
}

// KindFromPath classifies path by extension.
func KindFromPath(path string) Kind {
	return kindByExt[strings.ToLower(filepath.Ext(path))]
}

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// AssetIDFromPath derives an asset id from the file name without its
// extension, replacing anything outside [A-Za-z0-9._-] with '_'.
func AssetIDFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	id := strings.Trim(unsafeIDChars.ReplaceAllString(base, "_"), "._")
	if id == "" {
		return "asset"
	}
	return id
}

// Asset is a loaded source file.
type Asset struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	DurationMs int64  `json:"duration_ms"`
	Kind       Kind   `json:"kind"`
	Container  string `json:"container"`
	AudioCodec string `json:"audio_codec"`
}

// Loader validates and probes source files.
type Loader struct {
	prober *Prober
	log    *logger.Logger
}

// NewLoader creates a Loader. A nil log discards output.
func NewLoader(prober *Prober, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.NewNop()
	}
	return &Loader{prober: prober, log: log.WithComponent("media")}
}

// Load stats and probes path. A missing or unreadable file, a file without
// audio, or a non-positive duration is INVALID_INPUT. When assetID is empty
// it is derived from the file name.
func (l *Loader) Load(ctx context.Context, path, assetID string) (*Asset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.InvalidInput("source", "cannot read source file").
			WithDetail(errors.DetailPath, path).WithCause(err)
	}
	if info.IsDir() {
		return nil, errors.InvalidInput("source", "source is a directory").WithDetail(errors.DetailPath, path)
	}

	probe, err := l.prober.Probe(ctx, path)
	if err != nil {
		return nil, errors.InvalidInput("source", "source is not a readable media file").
			WithDetail(errors.DetailPath, path).WithCause(err)
	}

	kind := KindFromPath(path)
	if kind == KindUnknown {
		switch {
		case probe.HasVideo() && probe.HasAudio():
			kind = KindVideo
		case probe.HasAudio():
			kind = KindAudio
		}
	}
	if kind == KindUnknown {
		return nil, errors.InvalidInput("source", "unsupported media type "+filepath.Ext(path)).
			WithDetail(errors.DetailPath, path)
	}
	if !probe.HasAudio() {
		return nil, errors.InvalidInput("source", "source has no audio stream").WithDetail(errors.DetailPath, path)
	}

	duration, err := probe.DurationMs()
	if err != nil || duration <= 0 {
		return nil, errors.InvalidInput("duration_ms", "source duration must be positive").
			WithDetail(errors.DetailPath, path).WithCause(err)
	}

	if assetID == "" {
		assetID = AssetIDFromPath(path)
	}
	asset := &Asset{
		ID:         assetID,
		Path:       path,
		DurationMs: duration,
		Kind:       kind,
		Container:  probe.Container(),
		AudioCodec: probe.AudioCodec(),
	}
	l.log.Debug("asset loaded", logger.Fields(
		logger.FieldAssetID, asset.ID,
		logger.FieldPath, path,
		"kind", string(kind),
		logger.FieldDuration, duration,
	))
	return asset, nil
}

// AudioDurationMs returns the duration of an audio file produced during a
// run, such as the track extracted from a video.
func (l *Loader) AudioDurationMs(ctx context.Context, path string) (int64, error) {
	info, err := l.prober.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	if !info.HasAudio() {
		return 0, fmt.Errorf("%s has no audio stream", path)
	}
	d, err := info.DurationMs()
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s has duration %d ms", path, d)
	}
	return d, nil
}
