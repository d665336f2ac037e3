package controller

import (
	"net/http"
	"strconv"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/service"
	apperrors "github.com/achlys/whimsical-backend/internal/errors"
	"github.com/gin-gonic/gin"
)

type ReviewController struct {
	reviewService service.ReviewService
}

func NewReviewController(reviewService service.ReviewService) *ReviewController {
	return &ReviewController{
		reviewService: reviewService,
	}
}

// ListReviews returns a product's reviews, newest first
// GET /api/v1/products/:id/reviews
func (ctrl *ReviewController) ListReviews(c *gin.Context) {
	reviews, err := ctrl.reviewService.ListReviews(c.Request.Context(), model.ProductID(c.Param("id")))
	if err != nil {
		respondError(c, err, "review")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews": reviews,
		"count":   len(reviews),
	})
}

// AddReview posts a review for a product. No account is needed.
// POST /api/v1/products/:id/reviews
func (ctrl *ReviewController) AddReview(c *gin.Context) {
	log := loggerFrom(c)
	productID := model.ProductID(c.Param("id"))

	var input service.ReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		log.Warn("Invalid review request", map[string]interface{}{
			"product_id": productID.String(),
			"error":      err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid review")
		return
	}

	review, err := ctrl.reviewService.AddReview(c.Request.Context(), productID, input)
	if err != nil {
		respondError(c, err, "review")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Review added successfully",
		"review":  review,
	})
}

// DeleteReview removes a review
// DELETE /api/v1/admin/reviews/:id
func (ctrl *ReviewController) DeleteReview(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid review ID")
		return
	}

	if err := ctrl.reviewService.DeleteReview(c.Request.Context(), uint(id)); err != nil {
		respondError(c, err, "review")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Review deleted successfully",
	})
}
