package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/internal/repository"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
)

type mockAuthRepo struct {
	users             map[string]*models.User
	createErr         error
	refreshTokens     map[string]*models.RefreshToken
	revokedAllFor     []string
	updatePasswordErr error
	auditLogs         []*models.AuditLog
	staleReads        bool
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	repo := &mockAuthRepo{users: map[string]*models.User{}, refreshTokens: map[string]*models.RefreshToken{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
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

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if user.ID == "" {
		user.ID = "new-user"
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	m.users[id].PasswordHash = passwordHash
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAllFor = append(m.revokedAllFor, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if m.staleReads {
		snapshot := *rt
		snapshot.Revoked, snapshot.RevokedAt = false, nil
		return &snapshot, nil
	}
	return rt, nil
}

func (m *mockAuthRepo) ClaimRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			if token.Revoked {
				return sql.ErrNoRows
			}
			token.Revoked = true
			token.RevokedAt = &revokedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "formation-lms-api",
		BcryptCost:         bcrypt.MinCost,
	})
}

func statusPtr(s models.FormateurStatus) *models.FormateurStatus { return &s }

func TestAuthServiceRegisterFormateurIsPending(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "Tom", Email: "tom@example.com", Password: "secret1", Role: models.RoleFormateur,
	}, AuditMeta{IP: "127.0.0.1"})
	require.NoError(t, err)
	require.NotNil(t, user.FormateurStatus)
	assert.Equal(t, models.FormateurPending, *user.FormateurStatus)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionRegister, repo.auditLogs[0].Action)
}

func TestAuthServiceAccountCreationInvalidatesAnalytics(t *testing.T) {
	cache, cacheRepo := newRecordingCache()
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo).WithCache(cache)
	ctx := context.Background()

	_, err := svc.Register(ctx, models.RegisterRequest{
		Name: "Tom", Email: "tom@example.com", Password: "secret1", Role: models.RoleFormateur,
	}, AuditMeta{})
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, models.CreateUserRequest{Name: "Root", Email: "root@example.com", Password: "secret1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, cacheRepo.deleted, 2)

	repo.createErr = repository.ErrDuplicate
	_, err = svc.Register(ctx, models.RegisterRequest{
		Name: "Tom", Email: "tom@example.com", Password: "secret1", Role: models.RoleStudent,
	}, AuditMeta{})
	require.Error(t, err)
	assert.Len(t, cacheRepo.deleted, 2)
}

func TestAuthServiceRegisterStudentHasNoStatus(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "Sam", Email: "sam@example.com", Password: "secret1", Role: models.RoleStudent,
	}, AuditMeta{})
	require.NoError(t, err)
	assert.Nil(t, user.FormateurStatus)
}

func TestAuthServiceRegisterRejectsAdmin(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "Eve", Email: "eve@example.com", Password: "secret1", Role: models.RoleAdmin,
	}, AuditMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepo()
	repo.createErr = repository.ErrDuplicate
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "Sam", Email: "sam@example.com", Password: "secret1", Role: models.RoleStudent,
	}, AuditMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Status, appErrors.FromError(err).Status)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newMockAuthRepo(&models.User{
		ID: "u1", Name: "Tom", Email: "tom@example.com", PasswordHash: hashed(t, "password"),
		Role: models.RoleFormateur, FormateurStatus: statusPtr(models.FormateurApproved),
	})
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "tom@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "Tom", claims.Name)
	assert.Equal(t, models.FormateurApproved, claims.FormateurStatus)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "a@example.com", PasswordHash: hashed(t, "password"), Role: models.RoleStudent})
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "a@example.com", Password: "nope"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceLoginRejectedFormateur(t *testing.T) {
	repo := newMockAuthRepo(&models.User{
		ID: "u1", Email: "t@example.com", PasswordHash: hashed(t, "password"),
		Role: models.RoleFormateur, FormateurStatus: statusPtr(models.FormateurRejected),
	})
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "t@example.com", Password: "password"})
	assert.True(t, errors.Is(err, appErrors.ErrAccountRejected))
}

func TestAuthServiceLoginPendingFormateurAllowed(t *testing.T) {
	repo := newMockAuthRepo(&models.User{
		ID: "u1", Email: "t@example.com", PasswordHash: hashed(t, "password"),
		Role: models.RoleFormateur, FormateurStatus: statusPtr(models.FormateurPending),
	})
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "t@example.com", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, models.FormateurPending, *res.User.FormateurStatus)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "a@example.com", PasswordHash: hashed(t, "password"), Role: models.RoleStudent})
	svc := newTestAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "a@example.com", Password: "password"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshRefusesConcurrentReuse(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "a@example.com", PasswordHash: hashed(t, "password"), Role: models.RoleStudent})
	svc := newTestAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "a@example.com", Password: "password"})
	require.NoError(t, err)
	// both requests read the token before either revokes it
	repo.staleReads = true

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	issued := len(repo.refreshTokens)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
	assert.Equal(t, "refresh token already used", appErr.Message)
	assert.Len(t, repo.refreshTokens, issued)
}

func TestAuthServiceRefreshExpired(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Role: models.RoleStudent})
	repo.refreshTokens["old"] = &models.RefreshToken{ID: "rt", UserID: "u1", Token: "old", ExpiresAt: time.Now().Add(-time.Minute)}
	svc := newTestAuthService(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Status, appErrors.FromError(err).Status)
}

func TestAuthServiceLogoutForeignToken(t *testing.T) {
	repo := newMockAuthRepo()
	repo.refreshTokens["tok"] = &models.RefreshToken{ID: "rt", UserID: "other", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newTestAuthService(repo)

	err := svc.Logout(context.Background(), "u1", models.LogoutRequest{RefreshToken: "tok"}, AuditMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.refreshTokens["tok"].Revoked)
}

func TestAuthServiceLogoutRevokes(t *testing.T) {
	repo := newMockAuthRepo()
	repo.refreshTokens["tok"] = &models.RefreshToken{ID: "rt", UserID: "u1", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newTestAuthService(repo)

	require.NoError(t, svc.Logout(context.Background(), "u1", models.LogoutRequest{RefreshToken: "tok"}, AuditMeta{}))
	assert.True(t, repo.refreshTokens["tok"].Revoked)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogout, repo.auditLogs[0].Action)
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "a@example.com", PasswordHash: hashed(t, "password"), Role: models.RoleStudent})
	svc := newTestAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newpassword"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "password", NewPassword: "newpassword"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["u1"].PasswordHash), []byte("newpassword")))
	assert.Equal(t, []string{"u1"}, repo.revokedAllFor)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())
	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Status, appErrors.FromError(err).Status)
}

func TestAuthServiceValidateTokenRoundTrip(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "t1", Email: "t@example.com", PasswordHash: hashed(t, "password"), Role: models.RoleFormateur, FormateurStatus: statusPtr(models.FormateurPending)})
	svc := newTestAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "t@example.com", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), login.ExpiresIn)

	claims, err := svc.ValidateToken(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "t1", claims.UserID)
	assert.Equal(t, models.FormateurPending, claims.FormateurStatus)
	assert.NotEmpty(t, claims.ID)

	other := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "someone-else"})
	_, err = other.ValidateToken(login.AccessToken)
	assert.Equal(t, appErrors.ErrUnauthorized.Status, appErrors.FromError(err).Status)
}

func TestAuthServiceValidateTokenRejectsOtherAlgorithms(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())
	claims := &models.JWTClaims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "formation-lms-api",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(forged)
	assert.Equal(t, appErrors.ErrUnauthorized.Status, appErrors.FromError(err).Status)
}

func TestAuthServiceRegisterReportsFields(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())

	_, err := svc.Register(context.Background(), models.RegisterRequest{Name: "A", Email: "nope", Password: "123", Role: models.RoleStudent}, AuditMeta{})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Fields, "email")
	assert.Contains(t, appErr.Fields, "password")
	assert.Contains(t, appErr.Fields, "name")
}
