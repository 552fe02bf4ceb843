package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lektorek-app/lektorek-api/internal/models"
)

// PricingRepository persists per-teacher price tables.
type PricingRepository struct {
	db *sqlx.DB
}

// NewPricingRepository constructs a PricingRepository.
func NewPricingRepository(db *sqlx.DB) *PricingRepository {
	return &PricingRepository{db: db}
}

// Find returns the teacher's pricing row, or sql.ErrNoRows when the teacher
// has never set prices.
func (r *PricingRepository) Find(ctx context.Context, teacherID string) (*models.PricingPolicy, error) {
	const query = `SELECT teacher_id, price_online, price_in_person, updated_at
		FROM teacher_pricing WHERE teacher_id = $1 LIMIT 1`
	var pricing models.PricingPolicy
	if err := r.db.GetContext(ctx, &pricing, query, teacherID); err != nil {
		return nil, err
	}
	return &pricing, nil
}

// Upsert writes the teacher's price table, replacing any earlier row.
func (r *PricingRepository) Upsert(ctx context.Context, pricing *models.PricingPolicy) error {
	pricing.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO teacher_pricing (teacher_id, price_online, price_in_person, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (teacher_id) DO UPDATE SET
			price_online = EXCLUDED.price_online,
			price_in_person = EXCLUDED.price_in_person,
			updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, pricing.TeacherID, pricing.PriceOnline, pricing.PriceInPerson, pricing.UpdatedAt); err != nil {
		return fmt.Errorf("upsert teacher pricing: %w", err)
	}
	return nil
}
