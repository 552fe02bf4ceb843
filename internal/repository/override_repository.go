package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lektorek-app/lektorek-api/internal/models"
)

// OverrideRepository manages per-date availability exceptions.
type OverrideRepository struct {
	db *sqlx.DB
}

// NewOverrideRepository constructs an OverrideRepository.
func NewOverrideRepository(db *sqlx.DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

// Find returns the override for an exact (teacher, date) pair.
func (r *OverrideRepository) Find(ctx context.Context, teacherID, date string) (*models.AvailabilityOverride, error) {
	const query = `SELECT id, teacher_id, date, is_free, created_at
		FROM availability_overrides WHERE teacher_id = $1 AND date = $2 LIMIT 1`
	var override models.AvailabilityOverride
	if err := r.db.GetContext(ctx, &override, query, teacherID, date); err != nil {
		return nil, err
	}
	return &override, nil
}

// Upsert stores the override for a date. When the stored value already
// matches, nothing is written and changed is false (idempotent no-op).
func (r *OverrideRepository) Upsert(ctx context.Context, teacherID, date string, isFree bool) (changed bool, err error) {
	existing, err := r.Find(ctx, teacherID, date)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("find day override: %w", err)
	}

	if existing != nil {
		if existing.IsFree == isFree {
			return false, nil
		}
		if _, err := r.db.ExecContext(ctx, `UPDATE availability_overrides SET is_free = $1 WHERE id = $2`, isFree, existing.ID); err != nil {
			return false, fmt.Errorf("update day override: %w", err)
		}
		return true, nil
	}

	const insert = `INSERT INTO availability_overrides (id, teacher_id, date, is_free)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (teacher_id, date) DO UPDATE SET is_free = EXCLUDED.is_free`
	if _, err := r.db.ExecContext(ctx, insert, uuid.NewString(), teacherID, date, isFree); err != nil {
		return false, fmt.Errorf("insert day override: %w", err)
	}
	return true, nil
}

// ListRange returns the teacher's overrides within [from, to] inclusive,
// dates in ISO form.
func (r *OverrideRepository) ListRange(ctx context.Context, teacherID, from, to string) ([]models.AvailabilityOverride, error) {
	const query = `SELECT id, teacher_id, date, is_free, created_at
		FROM availability_overrides
		WHERE teacher_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`
	var overrides []models.AvailabilityOverride
	if err := r.db.SelectContext(ctx, &overrides, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("list day overrides: %w", err)
	}
	return overrides, nil
}
