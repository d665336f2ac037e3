package middleware

import (
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/achlys/whimsical-backend/internal/errors"
	"github.com/achlys/whimsical-backend/pkg/util"
	"github.com/gin-gonic/gin"
)

// Context keys for operator information
const (
	OperatorIDKey    = "operator_id"
	OperatorEmailKey = "operator_email"
	OperatorRoleKey  = "operator_role"
)

const RoleAdmin = "admin"

type AuthMiddleware struct {
	jwtSecret string
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

// Authenticate validates the bearer token (required)
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("Missing authorization header", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			apperrors.Unauthorized(c, "Please sign in")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			log.Warn("Invalid authorization header format", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Malformed authorization header")
			c.Abort()
			return
		}

		claims, err := util.ValidateToken(parts[1], m.jwtSecret)
		if err != nil {
			log.Warn("Token validation failed", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			if errors.Is(err, util.ErrExpiredToken) {
				apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenExpired, "Your session has expired")
			} else {
				apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Invalid authentication token")
			}
			c.Abort()
			return
		}

		c.Set(OperatorIDKey, claims.Subject)
		c.Set(OperatorEmailKey, claims.Email)
		c.Set(OperatorRoleKey, claims.Role)

		log.Debug("Operator authenticated", map[string]interface{}{
			"operator_id": claims.Subject,
			"role":        claims.Role,
		})

		c.Next()
	}
}

// RequireRole checks the authenticated operator holds one of roles
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		role, exists := GetOperatorRole(c)
		if !exists {
			log.Warn("Role information not found in context", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			apperrors.RespondWithError(c, http.StatusForbidden, apperrors.AuthzAdminOnly, "Administrator access required")
			c.Abort()
			return
		}

		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}

		operatorID, _ := GetOperatorID(c)
		log.Warn("Insufficient permissions", map[string]interface{}{
			"operator_id":    operatorID,
			"role":           role,
			"required_roles": roles,
			"path":           c.Request.URL.Path,
		})
		apperrors.Forbidden(c, "You do not have access to this resource")
		c.Abort()
	}
}

// RequireAdmin is Authenticate followed by RequireRole(RoleAdmin).
func (m *AuthMiddleware) RequireAdmin() []gin.HandlerFunc {
	return []gin.HandlerFunc{m.Authenticate(), m.RequireRole(RoleAdmin)}
}

func GetOperatorID(c *gin.Context) (string, bool) {
	id, exists := c.Get(OperatorIDKey)
	if !exists {
		return "", false
	}
	s, ok := id.(string)
	return s, ok
}

func GetOperatorRole(c *gin.Context) (string, bool) {
	role, exists := c.Get(OperatorRoleKey)
	if !exists {
		return "", false
	}
	s, ok := role.(string)
	return s, ok
}
