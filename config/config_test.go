package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StoreMemory, cfg.Cart.Store)
	assert.Equal(t, "whimsical-cart-v1", cfg.Cart.SnapshotKey)
	assert.True(t, cfg.Cart.FollowChanges)
	assert.Equal(t, 24*time.Hour, cfg.Cart.SessionIdle)
	assert.True(t, cfg.Checkout.AbortOnAdjustment)
	assert.Equal(t, CatalogFailureHard, cfg.Checkout.CatalogFailure)
	assert.True(t, cfg.Storefront.ShippingFee.Equal(decimal.NewFromInt(350)))
	assert.True(t, cfg.Storefront.TaxRate.Equal(decimal.RequireFromString("0.08")))
	assert.Equal(t, 5*time.Minute, cfg.Storefront.CatalogCacheTTL)
	assert.Equal(t, 12*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, "admin@whimsical.local", cfg.Admin.Email)
	assert.Empty(t, cfg.Admin.PasswordHash)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CART_STORE", "Redis")
	t.Setenv("CHECKOUT_CATALOG_FAILURE", "skip")
	t.Setenv("CHECKOUT_ABORT_ON_ADJUSTMENT", "false")
	t.Setenv("STORE_TAX_RATE", "0.12")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.Cart.Store)
	assert.Equal(t, CatalogFailureSkip, cfg.Checkout.CatalogFailure)
	assert.False(t, cfg.Checkout.AbortOnAdjustment)
	assert.True(t, cfg.Storefront.TaxRate.Equal(decimal.RequireFromString("0.12")))
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("CART_PERSIST_TIMEOUT", "soon")
	t.Setenv("STORE_SHIPPING_FEE", "free")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Cart.PersistTimeout)
	assert.True(t, cfg.Storefront.ShippingFee.Equal(decimal.NewFromInt(350)))
}

func TestLoad_RejectsUnknownStore(t *testing.T) {
	t.Setenv("CART_STORE", "localstorage")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsNegativeTaxRate(t *testing.T) {
	t.Setenv("STORE_TAX_RATE", "-0.1")

	_, err := Load()
	assert.Error(t, err)
}
