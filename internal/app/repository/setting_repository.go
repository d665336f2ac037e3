package repository

import (
	"context"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository interface {
	FindAll(ctx context.Context) (map[string]string, error)
	Upsert(ctx context.Context, key, value string) error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) FindAll(ctx context.Context) (map[string]string, error) {
	var rows []model.SiteSetting
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		logger.Error("Failed to load site settings", err)
		return nil, err
	}

	settings := make(map[string]string, len(rows))
	for _, row := range rows {
		settings[row.Key] = row.Value
	}
	return settings, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, key, value string) error {
	setting := model.SiteSetting{Key: key, Value: value}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		logger.Error("Failed to upsert site setting", err, map[string]interface{}{
			"key": key,
		})
		return err
	}

	logger.Info("Site setting saved", map[string]interface{}{
		"key":   key,
		"value": value,
	})
	return nil
}
