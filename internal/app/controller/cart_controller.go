package controller

import (
	"net/http"

	"github.com/achlys/whimsical-backend/internal/app/cart"
	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/pricing"
	"github.com/achlys/whimsical-backend/internal/app/service"
	apperrors "github.com/achlys/whimsical-backend/internal/errors"
	"github.com/achlys/whimsical-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type CartController struct {
	sessions  service.SessionService
	formatter *pricing.Formatter
}

func NewCartController(sessions service.SessionService, formatter *pricing.Formatter) *CartController {
	return &CartController{
		sessions:  sessions,
		formatter: formatter,
	}
}

type AddToCartRequest struct {
	ProductID model.ProductID `json:"product_id" binding:"required"`
}

type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// CartResponse is the cart with its quote and display strings.
type CartResponse struct {
	*service.CartView
	SubtotalFormatted string `json:"subtotal_formatted"`
	TotalFormatted    string `json:"total_formatted"`
}

// CartEnvelope is the body of every successful cart endpoint. Result holds
// the outcome of a mutation and is absent on reads.
type CartEnvelope struct {
	Cart   CartResponse `json:"cart"`
	Result gin.H        `json:"result,omitempty"`
}

// GetCart returns the session's cart
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	ctrl.respondWithCart(c, http.StatusOK, nil)
}

// AddItem adds one unit of a product
// POST /api/v1/cart/items
func (ctrl *CartController) AddItem(c *gin.Context) {
	log := loggerFrom(c)
	session := middleware.GetCartSession(c)

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "product_id is required")
		return
	}

	result, err := ctrl.sessions.AddItem(c.Request.Context(), session, req.ProductID)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	if !result.OK {
		code := apperrors.CartExceedsStock
		if result.Reason == cart.ReasonOutOfStock {
			code = apperrors.CartOutOfStock
		}
		c.JSON(http.StatusConflict, gin.H{
			"ok":      false,
			"error":   code,
			"reason":  result.Reason,
			"message": result.Message,
		})
		return
	}

	ctrl.respondWithCart(c, http.StatusOK, gin.H{"ok": true})
}

// UpdateItem sets a line quantity, clamped to stock
// PATCH /api/v1/cart/items/:product_id
func (ctrl *CartController) UpdateItem(c *gin.Context) {
	log := loggerFrom(c)
	session := middleware.GetCartSession(c)
	productID := model.ProductID(c.Param("product_id"))

	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid cart update request", map[string]interface{}{
			"product_id": productID.String(),
			"error":      err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "quantity is required")
		return
	}

	quantity, err := ctrl.sessions.UpdateQuantity(c.Request.Context(), session, productID, *req.Quantity)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	ctrl.respondWithCart(c, http.StatusOK, gin.H{
		"quantity": quantity,
		"clamped":  quantity > 0 && quantity != *req.Quantity,
	})
}

// RemoveItem deletes a line
// DELETE /api/v1/cart/items/:product_id
func (ctrl *CartController) RemoveItem(c *gin.Context) {
	session := middleware.GetCartSession(c)

	removed, err := ctrl.sessions.RemoveItem(c.Request.Context(), session, model.ProductID(c.Param("product_id")))
	if err != nil {
		respondError(c, err, "cart")
		return
	}

	ctrl.respondWithCart(c, http.StatusOK, gin.H{"removed": removed})
}

// ClearCart empties the cart
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	session := middleware.GetCartSession(c)

	if err := ctrl.sessions.Clear(c.Request.Context(), session); err != nil {
		respondError(c, err, "cart")
		return
	}

	ctrl.respondWithCart(c, http.StatusOK, gin.H{"cleared": true})
}

// Refresh reconciles the cart against current stock
// POST /api/v1/cart/refresh
func (ctrl *CartController) Refresh(c *gin.Context) {
	session := middleware.GetCartSession(c)

	notice, err := ctrl.sessions.Refresh(c.Request.Context(), session)
	if err != nil {
		respondError(c, err, "catalog")
		return
	}

	c.JSON(http.StatusOK, notice)
}

// respondWithCart writes the current cart with the mutation result, if any.
func (ctrl *CartController) respondWithCart(c *gin.Context, status int, result gin.H) {
	view, err := ctrl.sessions.View(c.Request.Context(), middleware.GetCartSession(c))
	if err != nil {
		respondError(c, err, "cart")
		return
	}

	c.JSON(status, CartEnvelope{
		Cart: CartResponse{
			CartView:          view,
			SubtotalFormatted: ctrl.formatter.Format(view.Quote.Subtotal),
			TotalFormatted:    ctrl.formatter.Format(view.Quote.Total),
		},
		Result: result,
	})
}
