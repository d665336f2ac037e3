package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/achlys/whimsical-backend/config"
	"github.com/achlys/whimsical-backend/pkg/logger"
	"github.com/achlys/whimsical-backend/pkg/util"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAdminDisabled      = errors.New("admin login is not configured")
)

// AdminRole is the role claim carried by operator tokens.
const AdminRole = "admin"

// AdminSession is a signed operator token.
type AdminSession struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*AdminSession, error)
}

type authService struct {
	admin     config.AdminConfig
	jwtSecret string
	expiry    time.Duration
	now       func() time.Time
}

func NewAuthService(admin config.AdminConfig, jwt config.JWTConfig) AuthService {
	return &authService{
		admin:     admin,
		jwtSecret: jwt.Secret,
		expiry:    jwt.Expiry,
		now:       time.Now,
	}
}

// Login checks the operator account and issues an admin token.
func (s *authService) Login(_ context.Context, email, password string) (*AdminSession, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	logger.Info("Admin login attempt", map[string]interface{}{
		"email": email,
	})

	if s.admin.PasswordHash == "" {
		logger.Warn("Admin login rejected: ADMIN_PASSWORD_HASH is not set")
		return nil, ErrAdminDisabled
	}

	// compare the hash even for an unknown email so both failures cost the same
	passwordOK := util.VerifyPassword(s.admin.PasswordHash, password)
	if email != s.admin.Email || !passwordOK {
		logger.Warn("Admin login failed: invalid credentials", map[string]interface{}{
			"email": email,
		})
		return nil, ErrInvalidCredentials
	}

	token, err := util.GenerateToken(s.admin.Email, s.admin.Email, AdminRole, s.jwtSecret, s.expiry)
	if err != nil {
		logger.Error("Failed to generate admin token", err, map[string]interface{}{
			"email": email,
		})
		return nil, err
	}

	logger.Info("Admin logged in", map[string]interface{}{
		"email": email,
	})
	return &AdminSession{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   s.now().Add(s.expiry).UTC(),
		Email:       s.admin.Email,
		Role:        AdminRole,
	}, nil
}
