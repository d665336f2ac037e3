package service

import (
	"context"
	"testing"
	"time"

	"github.com/achlys/whimsical-backend/config"
	"github.com/achlys/whimsical-backend/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminSecret = "auth-service-secret"

func setupAuthServiceTest(t *testing.T) AuthService {
	hash, err := util.HashPassword("Achlys2025!")
	require.NoError(t, err)

	return NewAuthService(
		config.AdminConfig{Email: "admin@whimsical.local", PasswordHash: hash},
		config.JWTConfig{Secret: testAdminSecret, Expiry: time.Hour},
	)
}

func TestAuthService_Login(t *testing.T) {
	svc := setupAuthServiceTest(t)

	session, err := svc.Login(context.Background(), "  Admin@Whimsical.local ", "Achlys2025!")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", session.TokenType)
	assert.Equal(t, AdminRole, session.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)

	claims, err := util.ValidateToken(session.AccessToken, testAdminSecret)
	require.NoError(t, err)
	assert.Equal(t, AdminRole, claims.Role)
	assert.Equal(t, "admin@whimsical.local", claims.Email)
}

func TestAuthService_LoginRejects(t *testing.T) {
	svc := setupAuthServiceTest(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "admin@whimsical.local", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "someone@whimsical.local", "Achlys2025!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_LoginDisabledWithoutHash(t *testing.T) {
	svc := NewAuthService(config.AdminConfig{Email: "admin@whimsical.local"}, config.JWTConfig{Secret: testAdminSecret, Expiry: time.Hour})

	_, err := svc.Login(context.Background(), "admin@whimsical.local", "")
	assert.ErrorIs(t, err, ErrAdminDisabled)
}
