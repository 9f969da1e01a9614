// Package store is the policy layer over the shared attendance database. It
// exposes exactly the primitives the coordinator relies on: create-if-absent,
// point read, and a conditional status update with compare-and-swap semantics.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/davidrys/gatepass/internal/models"
)

var (
	// ErrNotFound indicates no registrant record exists for the token.
	ErrNotFound = errors.New("store: registrant not found")
	// ErrDuplicateToken indicates a create hit an existing token.
	ErrDuplicateToken = errors.New("store: token already exists")
	// ErrStale indicates the record's status no longer matched the expected
	// value when the conditional update committed.
	ErrStale = errors.New("store: conditional update stale")
)

// Registrants provides durable access to registrant records keyed by token.
type Registrants struct {
	db *gorm.DB
}

// NewRegistrants constructs the registrant store.
func NewRegistrants(db *gorm.DB) (*Registrants, error) {
	if db == nil {
		return nil, errors.New("registrant store: db is required")
	}
	return &Registrants{db: db}, nil
}

// Create inserts a new record. Token uniqueness is enforced here by the
// primary key, not at generation time.
func (s *Registrants) Create(ctx context.Context, record *models.Registrant) error {
	if record == nil || strings.TrimSpace(record.Token) == "" {
		return errors.New("registrant store: record with token is required")
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateToken
		}
		return fmt.Errorf("registrant store: create: %w", err)
	}
	return nil
}

// Get reads one record by token.
func (s *Registrants) Get(ctx context.Context, token string) (*models.Registrant, error) {
	var record models.Registrant
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("registrant store: read: %w", err)
	}
	return &record, nil
}

// UpdateIfStatus applies the mutation only if the record's status still equals
// expected at write time. It returns nil when applied, ErrStale when the
// status moved underneath the caller, and ErrNotFound when no record exists.
func (s *Registrants) UpdateIfStatus(ctx context.Context, token, expected string, mutation map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(&models.Registrant{}).
		Where("token = ? AND status = ?", token, expected).
		Updates(mutation)
	if res.Error != nil {
		return fmt.Errorf("registrant store: conditional update: %w", res.Error)
	}

	if res.RowsAffected > 0 {
		return nil
	}

	// Zero rows means either the precondition failed or the record is gone;
	// disambiguate with a read.
	if _, err := s.Get(ctx, token); err != nil {
		return err
	}
	return ErrStale
}

// List returns records filtered by optional status, newest first.
func (s *Registrants) List(ctx context.Context, status string, page, perPage int) ([]models.Registrant, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.Registrant{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("registrant store: count: %w", err)
	}

	var records []models.Registrant
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("registrant store: list: %w", err)
	}

	return records, total, nil
}

// CountByStatus returns the record count per status, for reporting.
func (s *Registrants) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}

	var rows []row
	err := s.db.WithContext(ctx).
		Model(&models.Registrant{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("registrant store: count by status: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "Duplicate entry") || // mysql
		strings.Contains(msg, "duplicate key value") // postgres
}
