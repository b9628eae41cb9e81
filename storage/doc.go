// Package storage persists pipeline artifacts: per-chunk caption files and
// the merged transcript. Backends register themselves by name; import the
// ones you need for their side effect:
//
//	import (
//	    _ "github.com/kbukum/chunkscribe/storage/local"
//	    _ "github.com/kbukum/chunkscribe/storage/s3"
//	)
//
//	backend, err := storage.New(ctx, cfg, log)
//	artifacts := storage.NewArtifacts(backend)
//	key, err := artifacts.SaveChunk(ctx, "talk", 2, caption.FormatVTT, doc)
package storage
