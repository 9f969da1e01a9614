package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/davidrys/gatepass/internal/models"
)

// ScanEvents records the audit trail of decode events and check-in outcomes.
type ScanEvents struct {
	db *gorm.DB
}

// NewScanEvents constructs the scan event store.
func NewScanEvents(db *gorm.DB) (*ScanEvents, error) {
	if db == nil {
		return nil, errors.New("scan event store: db is required")
	}
	return &ScanEvents{db: db}, nil
}

// Record persists one audit row.
func (s *ScanEvents) Record(ctx context.Context, event *models.ScanEvent) error {
	if event == nil {
		return errors.New("scan event store: event is required")
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("scan event store: record: %w", err)
	}
	return nil
}

// Recent returns the newest events up to limit.
func (s *ScanEvents) Recent(ctx context.Context, limit int) ([]models.ScanEvent, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	var events []models.ScanEvent
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("scan event store: recent: %w", err)
	}
	return events, nil
}

// PruneBefore removes audit rows older than the cutoff and reports how many
// were deleted. Registrant records are never pruned.
func (s *ScanEvents) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.ScanEvent{})
	if res.Error != nil {
		return 0, fmt.Errorf("scan event store: prune: %w", res.Error)
	}
	return res.RowsAffected, nil
}
