package service

import (
	"context"
	"testing"

	"github.com/achlys/whimsical-backend/config"
	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/repository"
	"github.com/achlys/whimsical-backend/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSettingsServiceTest(t *testing.T) (SettingsService, repository.SettingsRepository) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	repo := repository.NewSettingsRepository(testDB)
	svc := NewSettingsService(repo, config.StorefrontConfig{
		ShippingFee: decimal.NewFromInt(350),
		TaxRate:     decimal.RequireFromString("0.08"),
	})
	return svc, repo
}

func TestSettingsService_DefaultsWhenUnset(t *testing.T) {
	svc, _ := setupSettingsServiceTest(t)

	settings, err := svc.Pricing(context.Background())
	require.NoError(t, err)
	assert.True(t, settings.ShippingFee.Equal(decimal.NewFromInt(350)))
	assert.True(t, settings.TaxRate.Equal(decimal.RequireFromString("0.08")))
}

func TestSettingsService_StoredValuesWin(t *testing.T) {
	svc, _ := setupSettingsServiceTest(t)
	ctx := context.Background()

	require.NoError(t, svc.UpdateSetting(ctx, model.SettingShippingFee, " 35 "))
	require.NoError(t, svc.UpdateSetting(ctx, model.SettingTaxRate, "0.12"))

	settings, err := svc.Pricing(ctx)
	require.NoError(t, err)
	assert.True(t, settings.ShippingFee.Equal(decimal.NewFromInt(35)))
	assert.True(t, settings.TaxRate.Equal(decimal.RequireFromString("0.12")))
}

func TestSettingsService_MalformedStoredValueFallsBack(t *testing.T) {
	svc, repo := setupSettingsServiceTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, model.SettingShippingFee, "free"))
	require.NoError(t, repo.Upsert(ctx, model.SettingTaxRate, "-1"))

	settings, err := svc.Pricing(ctx)
	require.NoError(t, err)
	assert.True(t, settings.ShippingFee.Equal(decimal.NewFromInt(350)))
	assert.True(t, settings.TaxRate.Equal(decimal.RequireFromString("0.08")))
}

func TestSettingsService_UpdateRejects(t *testing.T) {
	svc, _ := setupSettingsServiceTest(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.UpdateSetting(ctx, "currency", "USD"), ErrUnknownSetting)
	assert.ErrorIs(t, svc.UpdateSetting(ctx, model.SettingTaxRate, "-0.1"), ErrInvalidSetting)
	assert.ErrorIs(t, svc.UpdateSetting(ctx, model.SettingShippingFee, "abc"), ErrInvalidSetting)
}
