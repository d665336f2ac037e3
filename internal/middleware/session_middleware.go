package middleware

import (
	"net/http"
	"regexp"

	apperrors "github.com/achlys/whimsical-backend/internal/errors"
	"github.com/gin-gonic/gin"
)

const (
	CartSessionHeader = "X-Cart-Session"
	CartSessionKey    = "cart_session"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// CartSession requires a cart session id from the X-Cart-Session header, or
// the session query parameter for websocket upgrades where browsers cannot
// set headers.
func CartSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		id := c.GetHeader(CartSessionHeader)
		if id == "" {
			id = c.Query("session")
		}
		if id == "" {
			log.Warn("Missing cart session", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			apperrors.RespondWithError(c, http.StatusBadRequest, apperrors.SessionMissing, "The X-Cart-Session header is required")
			c.Abort()
			return
		}
		if !sessionIDPattern.MatchString(id) {
			log.Warn("Malformed cart session", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			apperrors.RespondWithError(c, http.StatusBadRequest, apperrors.SessionInvalid, "The cart session id is malformed")
			c.Abort()
			return
		}

		c.Set(CartSessionKey, id)
		c.Next()
	}
}

// GetCartSession returns the session id set by CartSession.
func GetCartSession(c *gin.Context) string {
	return c.GetString(CartSessionKey)
}
