package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
	appErrors "github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/errors"
)

type mockAuthRepo struct {
	usersByEmail map[string]*models.User
	usersByID    map[string]*models.User
	tokens       map[string]*models.RefreshToken
	auditLogs    []models.AuditLog
	revokedAll   map[string]int
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		usersByEmail: map[string]*models.User{},
		usersByID:    map[string]*models.User{},
		tokens:       map[string]*models.RefreshToken{},
		revokedAll:   map[string]int{},
	}
}

func (m *mockAuthRepo) addUser(user *models.User) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
}

func (m *mockAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := m.usersByEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockAuthRepo) Create(_ context.Context, user *models.User) error {
	m.addUser(user)
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	if u, ok := m.usersByID[id]; ok {
		u.LastLogin = &ts
	}
	return nil
}

func (m *mockAuthRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	m.usersByID[id].PasswordHash = passwordHash
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	m.revokedAll[userID]++
	for _, t := range m.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := m.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return stored, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	for _, t := range m.tokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, *log)
	return nil
}

func newAuthFixture() (*AuthService, *mockAuthRepo) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "smart-condominium",
	})
	return svc, repo
}

func seedAccount(repo *mockAuthRepo, email, password string, active bool) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Test Resident",
		Role:         models.RoleResident,
		Active:       active,
	}
	repo.addUser(user)
	return user
}

func TestRegisterDefaultsToResidentRole(t *testing.T) {
	svc, repo := newAuthFixture()

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "Ana@Example.com",
		Password: "secret123",
		FullName: "Ana Flores",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleResident, user.Role)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.True(t, user.Active)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, repo := newAuthFixture()
	seedAccount(repo, "ana@example.com", "secret123", true)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "ana@example.com",
		Password: "secret123",
		FullName: "Ana Flores",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestLoginIssuesTokenPairAndAudits(t *testing.T) {
	svc, repo := newAuthFixture()
	seedAccount(repo, "ana@example.com", "secret123", true)

	res, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ana@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	require.Len(t, repo.tokens, 1)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, models.RoleResident, claims.Role)
	require.Len(t, repo.auditLogs, 1)
}

func TestLoginRejectsWrongPasswordAndInactiveAccount(t *testing.T) {
	svc, repo := newAuthFixture()
	seedAccount(repo, "ana@example.com", "secret123", true)
	seedAccount(repo, "off@example.com", "secret123", false)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "nope-nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "off@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, repo := newAuthFixture()
	seedAccount(repo, "ana@example.com", "secret123", true)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "secret123"})
	require.NoError(t, err)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, res.RefreshToken)

	// The used token is revoked and cannot be exchanged again.
	assert.True(t, repo.tokens[login.RefreshToken].Revoked)
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	svc, repo := newAuthFixture()
	user := seedAccount(repo, "ana@example.com", "secret123", true)
	repo.tokens["stale"] = &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogoutRejectsForeignToken(t *testing.T) {
	svc, repo := newAuthFixture()
	seedAccount(repo, "ana@example.com", "secret123", true)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "secret123"})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), login.RefreshToken, "someone-else", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken, login.User.ID, models.LoginRequest{}))
	assert.True(t, repo.tokens[login.RefreshToken].Revoked)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	svc, repo := newAuthFixture()
	user := seedAccount(repo, "ana@example.com", "secret123", true)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "secret123"})
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		OldPassword: "wrong-old",
		NewPassword: "brandnew1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		OldPassword: "secret123",
		NewPassword: "brandnew1",
	}))
	assert.Equal(t, 1, repo.revokedAll[user.ID])
	assert.True(t, repo.tokens[login.RefreshToken].Revoked)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "brandnew1"})
	require.NoError(t, err)
}
