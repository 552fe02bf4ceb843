package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lektorek-app/lektorek-api/internal/models"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
)

type mockBalanceRepo struct {
	balances map[string]float64
}

func (m *mockBalanceRepo) Get(ctx context.Context, userID string) (*models.Balance, error) {
	return &models.Balance{UserID: userID, Balance: m.balances[userID]}, nil
}

func (m *mockBalanceRepo) Deposit(ctx context.Context, userID string, amount float64) error {
	m.balances[userID] += amount
	return nil
}

func (m *mockBalanceRepo) Withdraw(ctx context.Context, userID string, amount float64) error {
	if m.balances[userID] < amount {
		return appErrors.ErrInsufficientFunds
	}
	m.balances[userID] -= amount
	return nil
}

func TestBillingServiceDepositAndBalance(t *testing.T) {
	repo := &mockBalanceRepo{balances: map[string]float64{}}
	svc := NewBillingService(repo, nil, nil)

	balance, err := svc.Deposit(context.Background(), student, AmountRequest{Amount: 150})
	require.NoError(t, err)
	assert.Equal(t, 150.0, balance.Balance)
}

func TestBillingServiceDepositRejectsNonPositive(t *testing.T) {
	repo := &mockBalanceRepo{balances: map[string]float64{}}
	svc := NewBillingService(repo, nil, nil)

	_, err := svc.Deposit(context.Background(), student, AmountRequest{Amount: -5})
	var typed *appErrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, appErrors.ErrValidation.Code, typed.Code)
}

func TestBillingServiceWithdrawTeacherOnly(t *testing.T) {
	repo := &mockBalanceRepo{balances: map[string]float64{"student-1": 500}}
	svc := NewBillingService(repo, nil, nil)

	_, err := svc.Withdraw(context.Background(), student, AmountRequest{Amount: 100})
	var typed *appErrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, appErrors.ErrForbidden.Code, typed.Code)
}

func TestBillingServiceWithdraw(t *testing.T) {
	repo := &mockBalanceRepo{balances: map[string]float64{"teacher-1": 200}}
	svc := NewBillingService(repo, nil, nil)

	balance, err := svc.Withdraw(context.Background(), teacher, AmountRequest{Amount: 150})
	require.NoError(t, err)
	assert.Equal(t, 50.0, balance.Balance)

	_, err = svc.Withdraw(context.Background(), teacher, AmountRequest{Amount: 150})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientFunds)
}
