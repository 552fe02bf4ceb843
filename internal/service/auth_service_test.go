package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lektorek-app/lektorek-api/internal/models"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
)

type mockAuthRepo struct {
	users     map[string]*models.User
	lastLogin string
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string) error {
	m.lastLogin = id
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *mockAuthRepo) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockAuthRepo{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "anna@example.com", PasswordHash: string(hash), FullName: "Anna", Role: models.RoleTeacher, Active: true},
		"u2": {ID: "u2", Email: "off@example.com", PasswordHash: string(hash), FullName: "Off", Role: models.RoleUser, Active: false},
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{TokenSecret: "test-secret", TokenExpiry: time.Hour})
	return svc, repo
}

func TestAuthServiceLoginIssuesVerifiableToken(t *testing.T) {
	svc, repo := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "anna@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "u1", repo.lastLogin)
	assert.Equal(t, models.RoleTeacher, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "Anna", claims.FullName)

	actor := claims.Actor()
	assert.True(t, actor.Role.IsTeacher())
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "anna@example.com", Password: "nope"})
	var typed *appErrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, typed.Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "off@example.com", Password: "secret123"})
	var typed *appErrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, typed.Code)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	var typed *appErrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, typed.Code)
}
