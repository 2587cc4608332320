// Package repository persists finished counting runs.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Run is one finished chat count.
type Run struct {
	ID   string `gorm:"primaryKey"`
	Chat string `gorm:"index"`

	StartID int
	EndID   int

	TotalMessage       int
	WhitelistedMessage int
	TotalUser          int
	DeletedMessage     int

	Cancelled  bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunsRepository provides access to run history.
type RunsRepository struct {
	db *gorm.DB
}

// NewRunsRepository creates the repository and migrates its table.
func NewRunsRepository(db *gorm.DB) (*RunsRepository, error) {
	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("migrate runs: %w", err)
	}
	return &RunsRepository{db: db}, nil
}

// Save stores one finished run. Assigns an id when empty.
func (r *RunsRepository) Save(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (r *RunsRepository) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	err := r.db.WithContext(ctx).
		Order("finished_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ForChat returns all stored runs for one chat, newest first.
func (r *RunsRepository) ForChat(ctx context.Context, chat string) ([]Run, error) {
	var runs []Run
	err := r.db.WithContext(ctx).
		Where("chat = ?", chat).
		Order("finished_at DESC").
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", chat, err)
	}
	return runs, nil
}
