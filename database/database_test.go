package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/chunkscribe/errors"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.DSN != "chunkscribe.db" {
		t.Errorf("DSN = %q", cfg.DSN)
	}
	if cfg.MaxOpenConns != 1 || cfg.MaxIdleConns != 1 {
		t.Errorf("pool = %d/%d, want 1/1", cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.SlowQueryThreshold != "200ms" || cfg.LogLevel != "warn" {
		t.Errorf("SlowQueryThreshold = %q, LogLevel = %q", cfg.SlowQueryThreshold, cfg.LogLevel)
	}
}

func TestConfig_ApplyDefaults_PreservesExistingValues(t *testing.T) {
	cfg := Config{DSN: "x.db", MaxOpenConns: 4, MaxIdleConns: 2, MaxRetries: 9, LogLevel: "info"}
	cfg.ApplyDefaults()

	if cfg.DSN != "x.db" || cfg.MaxOpenConns != 4 || cfg.MaxIdleConns != 2 || cfg.MaxRetries != 9 || cfg.LogLevel != "info" {
		t.Errorf("defaults overwrote explicit values: %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		c := Config{Enabled: true}
		c.ApplyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"disabled skips validation", func(c *Config) { c.Enabled = false; c.DSN = "" }, false},
		{"missing dsn", func(c *Config) { c.DSN = "" }, true},
		{"idle above open", func(c *Config) { c.MaxIdleConns = 5 }, true},
		{"bad lifetime", func(c *Config) { c.ConnMaxLifetime = "forever" }, true},
		{"bad slow threshold", func(c *Config) { c.SlowQueryThreshold = "fast" }, true},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

type widget struct {
	BaseModel
	Name string `gorm:"uniqueIndex"`
}

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{Enabled: true, DSN: ":memory:", LogLevel: "silent"}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.AutoMigrate(&widget{}); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func TestOpenAndMigrate(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("PingContext: %v", err)
	}

	w := widget{Name: "a"}
	if err := db.WithContext(ctx).Create(&w).Error; err != nil {
		t.Fatalf("Create: %v", err)
	}
	if w.ID == "" {
		t.Error("expected generated ID")
	}
	if w.CreatedAt.IsZero() {
		t.Error("expected CreatedAt")
	}

	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestOpenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Open(ctx, Config{Enabled: true, DSN: ":memory:"}, nil); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestWithTransaction(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&widget{Name: "rolled-back"}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var n int64
	db.WithContext(ctx).Model(&widget{}).Count(&n)
	if n != 0 {
		t.Errorf("expected rollback, found %d rows", n)
	}

	err = db.WithTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&widget{Name: "kept"}).Error
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	db.WithContext(ctx).Model(&widget{}).Count(&n)
	if n != 1 {
		t.Errorf("expected 1 row, got %d", n)
	}
}

func TestFromDatabase(t *testing.T) {
	if FromDatabase(nil, "run", "") != nil {
		t.Error("nil error should map to nil")
	}

	nf := FromDatabase(gorm.ErrRecordNotFound, "run", "r1")
	if nf.Code != apperrors.ErrCodeNotFound || nf.Details["id"] != "r1" {
		t.Errorf("not found mapped to %+v", nf)
	}

	dup := FromDatabase(gorm.ErrDuplicatedKey, "run", "")
	if dup.Code != apperrors.ErrCodeInvalidInput || dup.Retryable {
		t.Errorf("duplicate mapped to %+v", dup)
	}

	locked := FromDatabase(fmt.Errorf("exec: database is locked"), "run", "")
	if locked.Code != apperrors.ErrCodeDatabaseError || !locked.Retryable {
		t.Errorf("locked mapped to %+v", locked)
	}

	other := FromDatabase(errors.New("no such column"), "run", "")
	if other.Retryable {
		t.Errorf("schema error should not be retryable: %+v", other)
	}
}

type migratedWidget struct {
	BaseModel
	Label string
}

func TestComponent_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c := NewComponent(Config{Enabled: true, DSN: ":memory:", AutoMigrate: true, LogLevel: "silent"}, nil).
		WithAutoMigrate(&migratedWidget{})

	if h := c.Health(ctx); h.Status != "unhealthy" {
		t.Errorf("health before start = %+v", h)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := c.Health(ctx); h.Status != "healthy" {
		t.Errorf("health = %+v", h)
	}

	w := &migratedWidget{Label: "x"}
	if err := c.DB().WithContext(ctx).Create(w).Error; err != nil {
		t.Fatalf("create on migrated table: %v", err)
	}
	if err := c.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
