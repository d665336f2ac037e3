package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/service"
	apperrors "github.com/achlys/whimsical-backend/internal/errors"
	"github.com/gin-gonic/gin"
)

const statusWaitTimeout = 5 * time.Second

type OrderController struct {
	orderService service.OrderService
}

func NewOrderController(orderService service.OrderService) *OrderController {
	return &OrderController{
		orderService: orderService,
	}
}

type UpdateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required"`
}

// ListOrders returns orders, newest first, optionally for one email
// GET /api/v1/admin/orders
func (ctrl *OrderController) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		orders []model.OrderRecord
		err    error
	)
	if email := c.Query("email"); email != "" {
		orders, err = ctrl.orderService.GetOrdersByEmail(ctx, email)
	} else {
		orders, err = ctrl.orderService.ListOrders(ctx)
	}
	if err != nil {
		respondError(c, err, "order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetOrder returns one order
// GET /api/v1/admin/orders/:id
func (ctrl *OrderController) GetOrder(c *gin.Context) {
	order, err := ctrl.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
	})
}

// UpdateOrderStatus applies a status change right away and confirms it in
// the background. With ?wait=true the response waits for the confirmation.
// PATCH /api/v1/admin/orders/:id
func (ctrl *OrderController) UpdateOrderStatus(c *gin.Context) {
	log := loggerFrom(c)
	orderID := c.Param("id")

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid order status request", map[string]interface{}{
			"order_id": orderID,
			"error":    err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "status is required")
		return
	}

	pending, err := ctrl.orderService.UpdateOrderStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		respondError(c, err, "order")
		return
	}

	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, gin.H{
			"pending": pending,
			"state":   pending.State(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), statusWaitTimeout)
	defer cancel()
	if err := pending.Wait(ctx); err != nil {
		respondError(c, err, "order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pending": pending,
		"state":   pending.State(),
	})
}

// DeleteOrder removes an order and its items
// DELETE /api/v1/admin/orders/:id
func (ctrl *OrderController) DeleteOrder(c *gin.Context) {
	orderID := c.Param("id")

	if err := ctrl.orderService.DeleteOrder(c.Request.Context(), orderID); err != nil {
		respondError(c, err, "order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Order deleted",
		"order_id": orderID,
	})
}
