package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kbukum/chunkscribe/caption"
	"github.com/kbukum/chunkscribe/errors"
	"github.com/kbukum/chunkscribe/media"
)

// MergedName is the base name of the merged transcript artifact.
const MergedName = "merged_transcript"

// ChunkKey is the key of chunk i's caption file: "<asset>/chunk<i>.<ext>".
func ChunkKey(assetID string, index int, f caption.Format) string {
	return assetID + "/" + media.ChunkFileName(index, f.Ext())
}

// MergedKey is the key of the merged transcript: "<asset>/merged_transcript.<ext>".
func MergedKey(assetID string, f caption.Format) string {
	return assetID + "/" + MergedName + "." + f.Ext()
}

// Artifacts persists caption documents under the layout above. Every
// failure is an errors.StorageError carrying the key.
type Artifacts struct {
	backend Storage
}

// NewArtifacts wraps backend.
func NewArtifacts(backend Storage) *Artifacts {
	return &Artifacts{backend: backend}
}

// Backend returns the underlying store.
func (a *Artifacts) Backend() Storage { return a.backend }

// SaveChunk writes chunk index's document and returns its key. Saving the
// same chunk twice overwrites it.
func (a *Artifacts) SaveChunk(ctx context.Context, assetID string, index int, f caption.Format, doc string) (string, error) {
	return a.save(ctx, ChunkKey(assetID, index, f), doc)
}

// SaveMerged writes the merged transcript and returns its key.
func (a *Artifacts) SaveMerged(ctx context.Context, assetID string, f caption.Format, doc string) (string, error) {
	return a.save(ctx, MergedKey(assetID, f), doc)
}

// LoadChunk reads a previously saved chunk document.
func (a *Artifacts) LoadChunk(ctx context.Context, assetID string, index int, f caption.Format) (string, error) {
	return a.Load(ctx, ChunkKey(assetID, index, f))
}

// Load reads the document stored at key.
func (a *Artifacts) Load(ctx context.Context, key string) (string, error) {
	rc, err := a.backend.Download(ctx, key)
	if err != nil {
		return "", errors.StorageError(key, err)
	}
	defer rc.Close() //nolint:errcheck // read-only

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", errors.StorageError(key, err)
	}
	return string(data), nil
}

// URL locates key in the backend.
func (a *Artifacts) URL(ctx context.Context, key string) (string, error) {
	u, err := a.backend.URL(ctx, key)
	if err != nil {
		return "", errors.StorageError(key, err)
	}
	return u, nil
}

// ChunkKeys lists the chunk artifacts stored for assetID.
func (a *Artifacts) ChunkKeys(ctx context.Context, assetID string) ([]string, error) {
	files, err := a.backend.List(ctx, assetID+"/chunk")
	if err != nil {
		return nil, errors.StorageError(assetID, err)
	}
	keys := make([]string, 0, len(files))
	for _, fi := range files {
		keys = append(keys, fi.Path)
	}
	return keys, nil
}

func (a *Artifacts) save(ctx context.Context, key, doc string) (string, error) {
	if err := a.backend.Upload(ctx, key, strings.NewReader(doc)); err != nil {
		return "", errors.StorageError(key, fmt.Errorf("upload: %w", err))
	}
	return key, nil
}
