package controller

import (
	"net/http"

	"github.com/achlys/whimsical-backend/internal/app/checkout"
	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/pricing"
	"github.com/achlys/whimsical-backend/internal/app/service"
	apperrors "github.com/achlys/whimsical-backend/internal/errors"
	"github.com/achlys/whimsical-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type CheckoutController struct {
	sessions  service.SessionService
	formatter *pricing.Formatter
}

func NewCheckoutController(sessions service.SessionService, formatter *pricing.Formatter) *CheckoutController {
	return &CheckoutController{
		sessions:  sessions,
		formatter: formatter,
	}
}

// CheckoutRequest carries the buyer form. Fields are validated by the
// checkout itself so missing ones come back as one field error list.
type CheckoutRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

// Checkout places an order from the session's cart
// POST /api/v1/checkout
func (ctrl *CheckoutController) Checkout(c *gin.Context) {
	log := loggerFrom(c)
	session := middleware.GetCartSession(c)

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid checkout request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request body")
		return
	}

	receipt, err := ctrl.sessions.Checkout(c.Request.Context(), session, checkout.Request{
		Buyer: model.BuyerInfo{
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			Address: req.Address,
		},
		Notes: req.Notes,
	})
	if err != nil {
		respondError(c, err, "checkout")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order":           receipt.Order,
		"quote":           receipt.Quote,
		"adjustments":     receipt.Adjustments,
		"total_formatted": ctrl.formatter.Format(receipt.Quote.Total),
	})
}

// Cancel abandons an in-flight checkout
// POST /api/v1/checkout/cancel
func (ctrl *CheckoutController) Cancel(c *gin.Context) {
	session := middleware.GetCartSession(c)

	cancelled, err := ctrl.sessions.CancelCheckout(c.Request.Context(), session)
	if err != nil {
		respondError(c, err, "checkout")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cancelled": cancelled,
	})
}
