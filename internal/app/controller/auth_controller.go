package controller

import (
	"errors"
	"net/http"

	"github.com/achlys/whimsical-backend/internal/app/service"
	apperrors "github.com/achlys/whimsical-backend/internal/errors"
	"github.com/gin-gonic/gin"
)

type AuthController struct {
	authService service.AuthService
}

func NewAuthController(authService service.AuthService) *AuthController {
	return &AuthController{
		authService: authService,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login issues an operator token for the admin dashboard
// POST /api/v1/admin/login
func (ctrl *AuthController) Login(c *gin.Context) {
	log := loggerFrom(c)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid login request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Email and password are required")
		return
	}

	session, err := ctrl.authService.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		apperrors.Unauthorized(c, "Invalid email or password")
		return
	case errors.Is(err, service.ErrAdminDisabled):
		apperrors.RespondWithError(c, http.StatusServiceUnavailable, apperrors.AuthUnauthorized, "Admin login is not available")
		return
	case err != nil:
		respondError(c, err, "login")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"session": session,
	})
}
