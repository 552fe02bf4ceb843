package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lektorek-app/lektorek-api/internal/models"
)

// AvailabilityRepository manages persistence for recurring weekly blocks.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs an AvailabilityRepository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ReplaceWeek atomically rewrites the teacher's entire recurring schedule:
// delete-then-insert in one transaction. There is no partial update path.
// Returns the ids assigned to the new blocks in input order.
func (r *AvailabilityRepository) ReplaceWeek(ctx context.Context, teacherID string, blocks []models.AvailabilityBlock) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace week: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM availability_blocks WHERE teacher_id = $1`, teacherID); err != nil {
		return nil, fmt.Errorf("clear weekly availability: %w", err)
	}

	const insert = `INSERT INTO availability_blocks (id, teacher_id, day_of_week, start_time, end_time, teaching_mode, available, created_at, updated_at)
		VALUES (:id, :teacher_id, :day_of_week, :start_time, :end_time, :teaching_mode, :available, :created_at, :updated_at)`

	now := time.Now().UTC()
	ids := make([]string, 0, len(blocks))
	for i := range blocks {
		block := blocks[i]
		block.ID = uuid.NewString()
		block.TeacherID = teacherID
		block.Available = true
		block.CreatedAt = now
		block.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, insert, block); err != nil {
			return nil, fmt.Errorf("insert availability block: %w", err)
		}
		ids = append(ids, block.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace week: %w", err)
	}
	return ids, nil
}

// ListByTeacher returns the teacher's blocks ordered by day then start time.
func (r *AvailabilityRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.AvailabilityBlock, error) {
	const query = `SELECT id, teacher_id, day_of_week, start_time, end_time, teaching_mode, available, created_at, updated_at
		FROM availability_blocks WHERE teacher_id = $1 ORDER BY day_of_week, start_time`
	var blocks []models.AvailabilityBlock
	if err := r.db.SelectContext(ctx, &blocks, query, teacherID); err != nil {
		return nil, fmt.Errorf("list availability blocks: %w", err)
	}
	return blocks, nil
}

// FindBlock fetches the block containing the given time range on a day. A
// recurring block spans any number of half-hour slots, so containment, not
// equality, decides whether a slot falls inside it. HH:MM strings compare
// correctly as text.
func (r *AvailabilityRepository) FindBlock(ctx context.Context, teacherID string, dayOfWeek int, startTime, endTime string) (*models.AvailabilityBlock, error) {
	const query = `SELECT id, teacher_id, day_of_week, start_time, end_time, teaching_mode, available, created_at, updated_at
		FROM availability_blocks
		WHERE teacher_id = $1 AND day_of_week = $2 AND start_time <= $3 AND end_time >= $4
		LIMIT 1`
	var block models.AvailabilityBlock
	if err := r.db.GetContext(ctx, &block, query, teacherID, dayOfWeek, startTime, endTime); err != nil {
		return nil, err
	}
	return &block, nil
}

// DeleteBlock removes a single block owned by the teacher. Returns
// sql.ErrNoRows when the block does not exist or belongs to someone else.
func (r *AvailabilityRepository) DeleteBlock(ctx context.Context, teacherID, blockID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM availability_blocks WHERE id = $1 AND teacher_id = $2`, blockID, teacherID)
	if err != nil {
		return fmt.Errorf("delete availability block: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete availability block: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
