package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/coaching-center-api/internal/models"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

func testAuthConfig() AuthConfig {
	return AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "coaching-center-api"}
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newFakeUserRepo(&models.User{ID: "123", Email: "admin@example.com", PasswordHash: hashed(t, "password"), Active: true, Role: models.RoleAdmin})
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "Admin@Example.com", Password: "password", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
	assert.NotNil(t, repo.users["123"].LastLogin)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
	assert.Equal(t, "10.0.0.1", repo.auditLogs[0].IPAddress)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newFakeUserRepo(&models.User{ID: "123", Email: "admin@example.com", PasswordHash: hashed(t, "password"), Active: true, Role: models.RoleAdmin})
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	repo := newFakeUserRepo(&models.User{ID: "123", Email: "user@example.com", PasswordHash: hashed(t, "password"), Active: false})
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterIssuesStudentToken(t *testing.T) {
	users := newFakeUserRepo()
	students := NewStudentService(newFakeStudentRepo(users), users, &fakeInstallmentRepo{}, testFeeSettings(), nil, nil)
	svc := NewAuthService(users, students, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Register(context.Background(), models.RegisterStudentRequest{
		Email: "student@example.com", Password: "secret1", FullName: "Asha", Class: "12", Section: "Commerce",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, res.User.Role)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash := hashed(t, "oldpassword")
	repo := newFakeUserRepo(&models.User{ID: "u1", PasswordHash: oldHash, Active: true})
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "oldpassword", NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, repo.users["u1"].PasswordHash)

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "oldpassword", NewPassword: "another1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceUpdateCredentials(t *testing.T) {
	repo := newFakeUserRepo(
		&models.User{ID: "admin", Email: "admin@example.com", PasswordHash: hashed(t, "current"), Role: models.RoleAdmin, Active: true},
		&models.User{ID: "t1", Email: "taken@example.com", Role: models.RoleTeacher, Active: true},
	)
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())
	ctx := context.Background()

	_, err := svc.UpdateCredentials(ctx, "admin", models.UpdateCredentialsRequest{Email: "taken@example.com", CurrentPassword: "current"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateCredentials(ctx, "admin", models.UpdateCredentialsRequest{Email: "new@example.com", CurrentPassword: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	info, err := svc.UpdateCredentials(ctx, "admin", models.UpdateCredentialsRequest{Email: "new@example.com", CurrentPassword: "current", NewPassword: "fresh-pass"})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", info.Email)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "new@example.com", Password: "fresh-pass"})
	require.NoError(t, err)

	_, err = svc.UpdateCredentials(ctx, "t1", models.UpdateCredentialsRequest{CurrentPassword: "x", FullName: "Nope"})
	require.Error(t, err)
}

func TestAuthServiceSeedAdminOnce(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())
	seed := AdminSeed{Email: "root@example.com", Password: "bootstrap"}

	created, err := svc.SeedAdmin(context.Background(), seed)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.SeedAdmin(context.Background(), seed)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, repo.users, 1)

	created, err = NewAuthService(newFakeUserRepo(), nil, nil, nil, testAuthConfig()).SeedAdmin(context.Background(), AdminSeed{})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo(), nil, validator.New(), zap.NewNop(), testAuthConfig())
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	other := NewAuthService(newFakeUserRepo(), nil, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "someone-else"})
	_, err = other.ValidateToken(token)
	require.Error(t, err)
}
