package service

import (
	"context"
	"errors"
	"strings"

	"github.com/achlys/whimsical-backend/config"
	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/pricing"
	"github.com/achlys/whimsical-backend/internal/app/repository"
	"github.com/achlys/whimsical-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrInvalidSetting = errors.New("setting value must be a non-negative number")
)

type SettingsService interface {
	Pricing(ctx context.Context) (pricing.Settings, error)
	UpdateSetting(ctx context.Context, key, value string) error
}

type settingsService struct {
	repo     repository.SettingsRepository
	defaults pricing.Settings
}

// NewSettingsService serves stored settings over the configured defaults.
func NewSettingsService(repo repository.SettingsRepository, storefront config.StorefrontConfig) SettingsService {
	return &settingsService{
		repo: repo,
		defaults: pricing.Settings{
			ShippingFee: storefront.ShippingFee,
			TaxRate:     storefront.TaxRate,
		},
	}
}

func (s *settingsService) Pricing(ctx context.Context) (pricing.Settings, error) {
	stored, err := s.repo.FindAll(ctx)
	if err != nil {
		logger.Error("Failed to load pricing settings", err)
		return pricing.Settings{}, err
	}

	settings := s.defaults
	settings.ShippingFee = s.pick(stored, model.SettingShippingFee, s.defaults.ShippingFee)
	settings.TaxRate = s.pick(stored, model.SettingTaxRate, s.defaults.TaxRate)
	return settings, nil
}

func (s *settingsService) pick(stored map[string]string, key string, fallback decimal.Decimal) decimal.Decimal {
	raw, ok := stored[key]
	if !ok {
		return fallback
	}
	value, err := parseSettingValue(raw)
	if err != nil {
		logger.Warn("Ignoring malformed site setting", map[string]interface{}{
			"key":   key,
			"value": raw,
		})
		return fallback
	}
	return value
}

func (s *settingsService) UpdateSetting(ctx context.Context, key, value string) error {
	if key != model.SettingShippingFee && key != model.SettingTaxRate {
		logger.Warn("Rejected update of unknown setting", map[string]interface{}{
			"key": key,
		})
		return ErrUnknownSetting
	}

	parsed, err := parseSettingValue(value)
	if err != nil {
		logger.Warn("Rejected invalid setting value", map[string]interface{}{
			"key":   key,
			"value": value,
		})
		return err
	}

	return s.repo.Upsert(ctx, key, parsed.String())
}

func parseSettingValue(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || value.IsNegative() {
		return decimal.Zero, ErrInvalidSetting
	}
	return value, nil
}
