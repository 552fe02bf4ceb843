package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lektorek-app/lektorek-api/internal/models"
)

// UserRepository reads and maintains user accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail fetches a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, full_name, role, active, last_login, created_at, updated_at
		FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID fetches a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, full_name, role, active, last_login, created_at, updated_at
		FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin stamps the user's last successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC()); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// Delete removes the user and every row that references them. The booking
// table is shared between the teacher and student sides, so both foreign
// roles are swept in the same transaction.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin user delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	statements := []string{
		`DELETE FROM bookings WHERE teacher_id = $1 OR student_id = $1`,
		`DELETE FROM availability_blocks WHERE teacher_id = $1`,
		`DELETE FROM availability_overrides WHERE teacher_id = $1`,
		`DELETE FROM teacher_pricing WHERE teacher_id = $1`,
		`DELETE FROM user_balances WHERE user_id = $1`,
		`DELETE FROM notifications WHERE user_id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete user data: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user delete: %w", err)
	}
	return nil
}
