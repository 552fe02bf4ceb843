package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lektorek-app/lektorek-api/internal/models"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
)

// BalanceRepository owns the internal money ledger. Every mutation is a
// single atomic statement, so concurrent deposits and withdrawals cannot
// lose updates and the balance can never go negative.
type BalanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository constructs a BalanceRepository.
func NewBalanceRepository(db *sqlx.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Get returns the user's balance. A user without a ledger row has a zero
// balance rather than an error.
func (r *BalanceRepository) Get(ctx context.Context, userID string) (*models.Balance, error) {
	const query = `SELECT user_id, balance FROM user_balances WHERE user_id = $1 LIMIT 1`
	var balance models.Balance
	if err := r.db.GetContext(ctx, &balance, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.Balance{UserID: userID, Balance: 0}, nil
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &balance, nil
}

// Deposit adds amount to the user's balance, creating the ledger row on
// first use.
func (r *BalanceRepository) Deposit(ctx context.Context, userID string, amount float64) error {
	const query = `INSERT INTO user_balances (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = user_balances.balance + EXCLUDED.balance`
	if _, err := r.db.ExecContext(ctx, query, userID, amount); err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	return nil
}

// Withdraw subtracts amount from the user's balance. The decrement is
// conditional on sufficient funds; when it matches no row the caller gets
// ErrInsufficientFunds.
func (r *BalanceRepository) Withdraw(ctx context.Context, userID string, amount float64) error {
	const query = `UPDATE user_balances SET balance = balance - $1 WHERE user_id = $2 AND balance >= $1`
	res, err := r.db.ExecContext(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrInsufficientFunds
	}
	return nil
}
