package db

import (
	"errors"

	"github.com/achlys/whimsical-backend/config"
	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Models lists every table owned by the service, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&model.ProductRecord{},
		&model.OrderRecord{},
		&model.OrderItem{},
		&model.SiteSetting{},
		&model.Review{},
	}
}

// Migrate creates or updates the schema and seeds the default site settings.
func Migrate(conn *gorm.DB, storefront config.StorefrontConfig) error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := conn.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	if err := seedSettings(conn, storefront); err != nil {
		logger.Error("Failed to seed site settings", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// seedSettings inserts the configured pricing defaults without touching
// values an admin has already changed.
func seedSettings(conn *gorm.DB, storefront config.StorefrontConfig) error {
	if storefront.ShippingFee.IsNegative() || storefront.TaxRate.IsNegative() {
		return errors.New("storefront defaults must not be negative")
	}

	defaults := []model.SiteSetting{
		{Key: model.SettingShippingFee, Value: storefront.ShippingFee.String()},
		{Key: model.SettingTaxRate, Value: storefront.TaxRate.String()},
	}

	result := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults)
	if result.Error != nil {
		return result.Error
	}

	logger.Info("Site settings seeded", map[string]interface{}{
		"inserted": result.RowsAffected,
	})
	return nil
}
