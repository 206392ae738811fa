// Package store persists batch runs and their records in Postgres.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"invoicescan/models"
)

// ErrNotFound is returned by Run for unknown run ids.
var ErrNotFound = errors.New("run not found")

// Store wraps a gorm handle.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres using dsn.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{db: gdb}, nil
}

// Migrate creates or updates the tables. Models are migrated one by one so a
// failure on one doesn't hide the other.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&models.ScanRun{}); err != nil {
		return fmt.Errorf("migrate scan_runs: %w", err)
	}
	if err := s.db.AutoMigrate(&models.ScanRecord{}); err != nil {
		return fmt.Errorf("migrate scan_records: %w", err)
	}
	return nil
}

// SaveRun stores the run header and all its records in one transaction.
func (s *Store) SaveRun(ctx context.Context, run models.ScanRun, records []models.ScanRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		run.Records = nil
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("create run %s: %w", run.RunID, err)
		}
		if len(records) == 0 {
			return nil
		}
		for i := range records {
			records[i].RunID = run.RunID
		}
		if err := tx.CreateInBatches(records, 200).Error; err != nil {
			return fmt.Errorf("create records for run %s: %w", run.RunID, err)
		}
		return nil
	})
}

// RecentRecords returns up to limit records, newest first.
func (s *Store) RecentRecords(ctx context.Context, limit int) ([]models.ScanRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var recs []models.ScanRecord
	if err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// Run loads a run with its records in insertion order.
func (s *Store) Run(ctx context.Context, runID string) (models.ScanRun, error) {
	var run models.ScanRun
	err := s.db.WithContext(ctx).
		Preload("Records", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return run, ErrNotFound
	}
	return run, err
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
