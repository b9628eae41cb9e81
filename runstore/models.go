package runstore

import (
	"time"

	"github.com/kbukum/chunkscribe/database"
)

// Chunk states recorded in the ledger.
const (
	ChunkExported    = "exported"
	ChunkTranscribed = "transcribed"
	ChunkFailed      = "failed"
)

// Run is one pipeline execution.
type Run struct {
	database.BaseModel
	AssetID string `gorm:"index;not null"`
	Source  string `gorm:"not null"`
	Format  string `gorm:"type:varchar(8)"`
	// State is the orchestrator state name; "done" and "failed" are final.
	State string `gorm:"type:varchar(16);index"`
	// Step and ChunkIndex locate a failure.
	Step       string
	ChunkIndex *int
	ErrorCode  string
	Error      string
	Chunks     int
	Captions   int
	Warnings   int
	MergedKey  string
	DurationMs int64
	FinishedAt *time.Time
}

// TableName pins the table name.
func (Run) TableName() string { return "runs" }

// Finished reports whether the run reached a final state.
func (r *Run) Finished() bool { return r.FinishedAt != nil }

// RunChunk records one chunk's progress within a run.
type RunChunk struct {
	database.BaseModel
	RunID      string `gorm:"type:varchar(36);uniqueIndex:idx_run_chunk;not null"`
	Index      int    `gorm:"column:chunk_index;uniqueIndex:idx_run_chunk"`
	StartMs    int64
	DurationMs int64
	AudioPath  string
	CaptionKey string
	State      string `gorm:"type:varchar(16)"`
	Error      string
}

// TableName pins the table name.
func (RunChunk) TableName() string { return "run_chunks" }

// Completion is what a successful run reports back to the ledger.
type Completion struct {
	MergedKey  string
	Captions   int
	Warnings   int
	DurationMs int64
}

// Failure locates where a run stopped.
type Failure struct {
	Step string
	// ChunkIndex is nil for failures outside per-chunk work.
	ChunkIndex *int
	Code       string
	Err        error
}
