package controller

import (
	"fmt"
	"net/http"

	"github.com/achlys/whimsical-backend/internal/app/pricing"
	"github.com/achlys/whimsical-backend/internal/app/service"
	apperrors "github.com/achlys/whimsical-backend/internal/errors"
	"github.com/gin-gonic/gin"
)

type SettingsController struct {
	settingsService service.SettingsService
	formatter       *pricing.Formatter
}

func NewSettingsController(settingsService service.SettingsService, formatter *pricing.Formatter) *SettingsController {
	return &SettingsController{
		settingsService: settingsService,
		formatter:       formatter,
	}
}

type UpdateSettingRequest struct {
	Value interface{} `json:"value" binding:"required"`
}

// GetPricing returns the shipping fee and tax rate
// GET /api/v1/settings/pricing
func (ctrl *SettingsController) GetPricing(c *gin.Context) {
	settings, err := ctrl.settingsService.Pricing(c.Request.Context())
	if err != nil {
		respondError(c, err, "settings")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"shipping_fee":           settings.ShippingFee,
		"shipping_fee_formatted": ctrl.formatter.Format(settings.ShippingFee),
		"tax_rate":               settings.TaxRate,
	})
}

// UpdateSetting stores one pricing setting
// PUT /api/v1/admin/settings/:key
func (ctrl *SettingsController) UpdateSetting(c *gin.Context) {
	log := loggerFrom(c)
	key := c.Param("key")

	var req UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid setting update request", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "A value is required")
		return
	}

	value := fmt.Sprint(req.Value)
	if err := ctrl.settingsService.UpdateSetting(c.Request.Context(), key, value); err != nil {
		respondError(c, err, "settings")
		return
	}

	log.Info("Site setting updated", map[string]interface{}{
		"key":   key,
		"value": value,
	})
	c.JSON(http.StatusOK, gin.H{
		"key":   key,
		"value": value,
	})
}
