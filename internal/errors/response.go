package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error     string                 `json:"error"`   // code for the storefront to map
	Message   string                 `json:"message"` // user facing message
	Kind      Kind                   `json:"kind,omitempty"`
	Retryable bool                   `json:"retryable,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// RespondWithError writes an error body with an explicit status and code.
func RespondWithError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// RespondWithKind writes a classified error using its kind's status.
func RespondWithKind(c *gin.Context, err *Error) {
	c.JSON(err.HTTPStatus(), ErrorResponse{
		Error:     err.Code(),
		Message:   err.Message(),
		Kind:      err.Kind(),
		Retryable: err.Retryable(),
		Details:   err.Details(),
	})
}

// ParseAndRespond classifies err and writes it. Controllers use this for any
// error coming back from a service.
func ParseAndRespond(c *gin.Context, err error, context string) {
	RespondWithKind(c, Classify(err, context))
}

func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	RespondWithError(c, http.StatusUnauthorized, AuthUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "You do not have access to this resource"
	}
	RespondWithError(c, http.StatusForbidden, AuthzForbidden, message)
}

func BadRequest(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusBadRequest, errorCode, message)
}

func Conflict(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusConflict, errorCode, message)
}

func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = kinds[KindInternal].message
	}
	RespondWithError(c, http.StatusInternalServerError, InternalServerError, message)
}

// ValidationError is the body for field level validation failures.
type ValidationError struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func RespondWithValidationError(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusBadRequest, ValidationError{
		Error:   ValidationInvalidInput,
		Message: "Some fields are missing or invalid",
		Fields:  fields,
	})
}
