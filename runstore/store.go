// Package runstore is the run ledger: one row per pipeline run plus one per
// chunk, so an operator can see which step and chunk a failed run stopped
// at and which artifacts it left behind.
package runstore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbukum/chunkscribe/database"
	"github.com/kbukum/chunkscribe/logger"
)

// Final run states.
const (
	StateDone   = "done"
	StateFailed = "failed"
)

// Store persists runs through GORM.
type Store struct {
	db  *database.DB
	log *logger.Logger
}

// New migrates the ledger schema and returns a Store.
func New(db *database.DB, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if err := db.AutoMigrate(&Run{}, &RunChunk{}); err != nil {
		return nil, database.FromDatabase(err, "run", "")
	}
	return &Store{db: db, log: log.WithComponent("runstore")}, nil
}

// Start inserts run. An empty ID is generated.
func (s *Store) Start(ctx context.Context, run *Run) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return database.FromDatabase(err, "run", run.ID)
	}
	return nil
}

// SetState records a state transition.
func (s *Store) SetState(ctx context.Context, runID, state string) error {
	return s.update(ctx, runID, map[string]interface{}{"state": state})
}

// SaveChunk inserts or replaces the row for (RunID, Index).
func (s *Store) SaveChunk(ctx context.Context, c *RunChunk) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}, {Name: "chunk_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"start_ms", "duration_ms", "audio_path", "caption_key", "state", "error", "updated_at"}),
	}).Create(c).Error
	if err != nil {
		return database.FromDatabase(err, "run chunk", c.RunID)
	}
	return nil
}

// SetChunkCount records how many chunks the plan produced.
func (s *Store) SetChunkCount(ctx context.Context, runID string, n int) error {
	return s.update(ctx, runID, map[string]interface{}{"chunks": n})
}

// Complete marks the run done.
func (s *Store) Complete(ctx context.Context, runID string, c Completion) error {
	now := time.Now().UTC()
	return s.update(ctx, runID, map[string]interface{}{
		"state":       StateDone,
		"merged_key":  c.MergedKey,
		"captions":    c.Captions,
		"warnings":    c.Warnings,
		"duration_ms": c.DurationMs,
		"finished_at": &now,
	})
}

// Fail marks the run failed at f.Step (and f.ChunkIndex, when set).
func (s *Store) Fail(ctx context.Context, runID string, f Failure) error {
	now := time.Now().UTC()
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return s.update(ctx, runID, map[string]interface{}{
		"state":       StateFailed,
		"step":        f.Step,
		"chunk_index": f.ChunkIndex,
		"error_code":  f.Code,
		"error":       msg,
		"finished_at": &now,
	})
}

// Get loads a run by ID.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	if err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, database.FromDatabase(err, "run", id)
	}
	return &run, nil
}

// List returns the most recent runs, newest first. limit ≤ 0 means 20.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, database.FromDatabase(err, "run", "")
	}
	return runs, nil
}

// Chunks returns a run's chunk rows in index order.
func (s *Store) Chunks(ctx context.Context, runID string) ([]RunChunk, error) {
	var chunks []RunChunk
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("chunk_index").Find(&chunks).Error
	if err != nil {
		return nil, database.FromDatabase(err, "run chunk", runID)
	}
	return chunks, nil
}

func (s *Store) update(ctx context.Context, runID string, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&Run{}).Where("id = ?", runID).Updates(fields)
	if res.Error != nil {
		return database.FromDatabase(res.Error, "run", runID)
	}
	if res.RowsAffected == 0 {
		return database.FromDatabase(gorm.ErrRecordNotFound, "run", runID)
	}
	s.log.Debug("run updated", logger.Fields(logger.FieldRunID, runID, "fields", len(fields)))
	return nil
}
