package controller

import (
	"errors"

	"github.com/achlys/whimsical-backend/internal/app/service"
	apperrors "github.com/achlys/whimsical-backend/internal/errors"
	"github.com/gin-gonic/gin"
)

// classify maps service sentinels to API errors; anything else goes through
// apperrors.Classify.
func classify(err error, context string) *apperrors.Error {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		return apperrors.NotFound(apperrors.CartProductUnknown, "This product is no longer available")
	case errors.Is(err, service.ErrInvalidProduct):
		return apperrors.New(apperrors.KindValidation, apperrors.ValidationInvalidInput, "Product needs a name and a non-negative price")
	case errors.Is(err, service.ErrInvalidReview):
		return apperrors.New(apperrors.KindValidation, apperrors.ValidationInvalidInput, "A review needs a comment and a rating from 1 to 5")
	case errors.Is(err, service.ErrReviewNotFound):
		return apperrors.NotFound(apperrors.ReviewNotFound, "Review not found")
	case errors.Is(err, service.ErrSessionRequired):
		return apperrors.New(apperrors.KindValidation, apperrors.SessionMissing, "The X-Cart-Session header is required")
	case errors.Is(err, service.ErrOrderNotFound):
		return apperrors.NotFound(apperrors.OrderNotFound, "Order not found")
	case errors.Is(err, service.ErrInvalidOrderStatus):
		return apperrors.New(apperrors.KindValidation, apperrors.OrderInvalidStatus, "Unknown order status")
	case errors.Is(err, service.ErrUnknownSetting):
		return apperrors.NotFound(apperrors.ResourceNotFound, "Unknown setting")
	case errors.Is(err, service.ErrInvalidSetting):
		return apperrors.New(apperrors.KindValidation, apperrors.ValidationInvalidRange, "Setting value must be a non-negative number")
	}
	return apperrors.Classify(err, context)
}

// respondError logs and writes err. Server side failures log at error
// level, everything else at warn.
func respondError(c *gin.Context, err error, context string) {
	log := loggerFrom(c)
	classified := classify(err, context)

	fields := map[string]interface{}{
		"kind": classified.Kind(),
		"code": classified.Code(),
	}
	if classified.Kind() == apperrors.KindInternal {
		log.Error("Request failed", err, fields)
	} else {
		fields["error"] = err.Error()
		log.Warn("Request rejected", fields)
	}
	apperrors.RespondWithKind(c, classified)
}
