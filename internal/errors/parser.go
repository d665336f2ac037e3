package errors

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"gorm.io/gorm"
)

// Classify converts any collaborator error into a classified *Error.
// context names the operation ("order", "catalog", "cart") and picks the
// not-found message. Already classified errors are returned unchanged.
func Classify(err error, context string) *Error {
	if err == nil {
		return Internal(nil)
	}

	if e, ok := As(err); ok {
		return e
	}

	// 1. GORM sentinel errors
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Wrap(err, KindNotFound, notFoundCode(context), getNotFoundMessage(context))
	}

	// 2. Deadlines and cancellations from the caller or the upstream
	if isTimeout(err) {
		return TransientNetwork(err, "The request timed out, please try again")
	}

	errStr := err.Error()
	errLower := strings.ToLower(errStr)

	// 3. Database constraint violations
	if strings.Contains(errLower, "duplicate key") || strings.Contains(errLower, "unique constraint") {
		return Wrap(err, KindValidation, ResourceAlreadyExists, "This record already exists")
	}
	if strings.Contains(errLower, "check constraint") {
		return parseCheckConstraintError(err, errLower)
	}
	if strings.Contains(errLower, "foreign key constraint") {
		return Wrap(err, KindNotFound, ResourceNotFound, "A referenced record no longer exists")
	}

	// 4. Network and connection errors
	if strings.Contains(errLower, "connection refused") ||
		strings.Contains(errLower, "connection reset") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "broken pipe") ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return TransientNetwork(err, "")
	}

	// 5. Everything else is an internal error
	return Wrap(err, KindInternal, InternalServerError, getDefaultErrorMessage(context))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// parseCheckConstraintError maps quantity and stock check failures to stock conflicts.
func parseCheckConstraintError(err error, errLower string) *Error {
	if strings.Contains(errLower, "quantity") || strings.Contains(errLower, "stock") {
		return Wrap(err, KindStockConflict, CartExceedsStock, "Requested quantity exceeds available stock")
	}
	return Wrap(err, KindValidation, ValidationInvalidRange, "A value is out of the allowed range")
}

func notFoundCode(context string) string {
	switch context {
	case "order", "orders":
		return OrderNotFound
	case "product", "catalog", "cart":
		return CartProductUnknown
	default:
		return ResourceNotFound
	}
}

func getNotFoundMessage(context string) string {
	switch context {
	case "order", "orders":
		return "Order not found"
	case "product", "catalog", "cart":
		return "This product is no longer available"
	case "setting", "settings":
		return "Setting not found"
	default:
		return "The requested item could not be found"
	}
}

func getDefaultErrorMessage(context string) string {
	switch context {
	case "order", "orders":
		return "We could not process the order, please try again later"
	case "catalog", "product":
		return "We could not load the catalog, please try again later"
	case "checkout":
		return "Checkout failed, please try again"
	default:
		return kinds[KindInternal].message
	}
}
