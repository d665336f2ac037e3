package controller

import (
	"net/http"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/service"
	apperrors "github.com/achlys/whimsical-backend/internal/errors"
	"github.com/achlys/whimsical-backend/internal/middleware"
	"github.com/achlys/whimsical-backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

type ProductController struct {
	productService service.ProductService
}

func NewProductController(productService service.ProductService) *ProductController {
	return &ProductController{
		productService: productService,
	}
}

// ListProducts returns the catalog
// GET /api/v1/products
func (ctrl *ProductController) ListProducts(c *gin.Context) {
	products, err := ctrl.productService.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, err, "catalog")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// GetProduct returns one product
// GET /api/v1/products/:id
func (ctrl *ProductController) GetProduct(c *gin.Context) {
	product, err := ctrl.productService.GetProduct(c.Request.Context(), model.ProductID(c.Param("id")))
	if err != nil {
		respondError(c, err, "product")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product": product,
	})
}

// CreateProduct adds a catalog product. The body uses the same field names
// the importer accepts.
// POST /api/v1/admin/products
func (ctrl *ProductController) CreateProduct(c *gin.Context) {
	log := loggerFrom(c)

	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		log.Warn("Invalid product create request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Request body must be a JSON object")
		return
	}

	product, err := ctrl.productService.CreateProduct(c.Request.Context(), fields)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Product created successfully",
		"product": product,
	})
}

// UpdateProduct changes the fields present in the body
// PUT /api/v1/admin/products/:id
func (ctrl *ProductController) UpdateProduct(c *gin.Context) {
	log := loggerFrom(c)
	id := model.ProductID(c.Param("id"))

	var updates map[string]any
	if err := c.ShouldBindJSON(&updates); err != nil {
		log.Warn("Invalid product update request", map[string]interface{}{
			"product_id": id.String(),
			"error":      err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Request body must be a JSON object")
		return
	}

	product, err := ctrl.productService.UpdateProduct(c.Request.Context(), id, updates)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product updated successfully",
		"product": product,
	})
}

// DeleteProduct removes a product from the catalog
// DELETE /api/v1/admin/products/:id
func (ctrl *ProductController) DeleteProduct(c *gin.Context) {
	if err := ctrl.productService.DeleteProduct(c.Request.Context(), model.ProductID(c.Param("id"))); err != nil {
		respondError(c, err, "product")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product deleted successfully",
	})
}

func loggerFrom(c *gin.Context) *logger.Logger {
	return middleware.GetLoggerFromContext(c)
}
