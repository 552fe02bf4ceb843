package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lektorek-app/lektorek-api/internal/middleware"
	"github.com/lektorek-app/lektorek-api/internal/models"
	"github.com/lektorek-app/lektorek-api/internal/service"
)

type stubUserRepo struct {
	user *models.User
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user != nil && s.user.Email == email {
		return s.user, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.user != nil && s.user.ID == id {
		return s.user, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id string) error { return nil }

type stubBalanceRepo struct{}

func (s *stubBalanceRepo) Get(ctx context.Context, userID string) (*models.Balance, error) {
	return &models.Balance{UserID: userID, Balance: 120}, nil
}

func (s *stubBalanceRepo) Deposit(ctx context.Context, userID string, amount float64) error {
	return nil
}

func (s *stubBalanceRepo) Withdraw(ctx context.Context, userID string, amount float64) error {
	return nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	authSvc := service.NewAuthService(&stubUserRepo{user: &models.User{
		ID:           "u1",
		Email:        "anna@example.com",
		PasswordHash: string(hash),
		FullName:     "Anna",
		Role:         models.RoleTeacher,
		Active:       true,
	}}, nil, nil, service.AuthConfig{TokenSecret: "test-secret", TokenExpiry: time.Hour})
	billingSvc := service.NewBillingService(&stubBalanceRepo{}, nil, nil)

	router := gin.New()
	api := router.Group("/api/v1")
	api.POST("/auth/login", NewAuthHandler(authSvc).Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	protected.GET("/balance", NewBalanceHandler(billingSvc).Get)
	return router
}

func loginToken(t *testing.T, router *gin.Engine) string {
	t.Helper()
	body, _ := json.Marshal(models.LoginRequest{Email: "anna@example.com", Password: "secret123"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.AccessToken)
	return envelope.Data.AccessToken
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/balance", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginThenAccessBalance(t *testing.T) {
	router := newTestRouter(t)
	token := loginToken(t, router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.Balance `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "u1", envelope.Data.UserID)
	assert.Equal(t, 120.0, envelope.Data.Balance)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	router := newTestRouter(t)

	body, _ := json.Marshal(models.LoginRequest{Email: "anna@example.com", Password: "wrong"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
