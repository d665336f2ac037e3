package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/achlys/whimsical-backend/config"
	"github.com/achlys/whimsical-backend/internal/app/catalog"
	"github.com/achlys/whimsical-backend/internal/app/checkout"
	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/pricing"
	"github.com/achlys/whimsical-backend/internal/app/repository"
	"github.com/achlys/whimsical-backend/internal/app/service"
	"github.com/achlys/whimsical-backend/internal/db"
	"github.com/achlys/whimsical-backend/internal/middleware"
	"github.com/achlys/whimsical-backend/pkg/kvstore"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSession = "session-aaaa-0001"

type storefrontFixture struct {
	router   *gin.Engine
	db       *gorm.DB
	orders   service.OrderService
	products []model.ProductRecord
}

func intPtr(n int) *int { return &n }

func (f *storefrontFixture) id(i int) string {
	return fmt.Sprint(f.products[i].ID)
}

// setupStorefrontTest wires the controllers over an in-memory database with
// three products: one in stock (1 left), one unlimited and one sold out.
func setupStorefrontTest(t *testing.T) *storefrontFixture {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)

	f := &storefrontFixture{
		db: testDB,
		products: []model.ProductRecord{
			{Name: "Moonlit Tote", Price: decimal.NewFromInt(50), Stock: intPtr(1)},
			{Name: "Sticker Pack", Price: decimal.NewFromInt(45), Stock: nil},
			{Name: "Crochet Frog", Price: decimal.RequireFromString("199.50"), Stock: intPtr(0)},
		},
	}
	productRepo := repository.NewProductRepository(testDB)
	require.NoError(t, productRepo.CreateBatch(context.Background(), f.products))

	storefront := config.StorefrontConfig{ShippingFee: decimal.NewFromInt(35), TaxRate: decimal.Zero}
	live := catalog.NewRepositoryProvider(productRepo)
	cache := catalog.NewCachedProvider(live, kvstore.NewMemoryStore(), 0)
	settings := service.NewSettingsService(repository.NewSettingsRepository(testDB), storefront)
	f.orders = service.NewOrderService(repository.NewOrderRepository(testDB), service.NewOrderBoard())

	sessions := service.NewSessionService(cache, live, service.NewOrderSubmitter(testDB), settings, service.SessionOptions{
		Store:    kvstore.NewMemoryStore(),
		Cart:     config.CartConfig{SnapshotKey: "whimsical-cart-v1"},
		Checkout: checkout.Options{CatalogFailure: config.CatalogFailureHard},
	})

	t.Cleanup(func() {
		sessions.Close()
		db.CleanupTestDB(testDB)
	})

	formatter := pricing.NewFormatter("en-PH", "₱")
	products := NewProductController(service.NewProductService(productRepo, cache))
	reviews := NewReviewController(service.NewReviewService(repository.NewReviewRepository(testDB), productRepo))
	settingsCtrl := NewSettingsController(settings, formatter)
	carts := NewCartController(sessions, formatter)
	checkouts := NewCheckoutController(sessions, formatter)
	orders := NewOrderController(f.orders)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.LoggingMiddleware())

	r.GET("/products", products.ListProducts)
	r.GET("/products/:id", products.GetProduct)
	r.GET("/products/:id/reviews", reviews.ListReviews)
	r.POST("/products/:id/reviews", reviews.AddReview)
	r.DELETE("/admin/reviews/:id", reviews.DeleteReview)
	r.GET("/settings/pricing", settingsCtrl.GetPricing)
	r.PUT("/admin/settings/:key", settingsCtrl.UpdateSetting)
	r.POST("/admin/products", products.CreateProduct)
	r.PUT("/admin/products/:id", products.UpdateProduct)
	r.DELETE("/admin/products/:id", products.DeleteProduct)

	cartGroup := r.Group("/cart", middleware.CartSession())
	cartGroup.GET("", carts.GetCart)
	cartGroup.DELETE("", carts.ClearCart)
	cartGroup.POST("/items", carts.AddItem)
	cartGroup.PATCH("/items/:product_id", carts.UpdateItem)
	cartGroup.DELETE("/items/:product_id", carts.RemoveItem)
	cartGroup.POST("/refresh", carts.Refresh)

	checkoutGroup := r.Group("/checkout", middleware.CartSession())
	checkoutGroup.POST("", checkouts.Checkout)
	checkoutGroup.POST("/cancel", checkouts.Cancel)

	r.GET("/admin/orders", orders.ListOrders)
	r.GET("/admin/orders/:id", orders.GetOrder)
	r.PATCH("/admin/orders/:id", orders.UpdateOrderStatus)
	r.DELETE("/admin/orders/:id", orders.DeleteOrder)

	f.router = r
	return f
}

// do sends a request with the test cart session and decodes a JSON object
// response.
func (f *storefrontFixture) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.CartSessionHeader, testSession)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w, decoded
}

func (f *storefrontFixture) addItem(t *testing.T, i int) {
	t.Helper()
	w, _ := f.do(t, http.MethodPost, "/cart/items", gin.H{"product_id": f.id(i)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func object(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	m, ok := v.(map[string]interface{})
	require.True(t, ok, "expected object, got %T", v)
	return m
}

func money(t *testing.T, v interface{}) decimal.Decimal {
	t.Helper()
	s, ok := v.(string)
	require.True(t, ok, "expected decimal string, got %T", v)
	return decimal.RequireFromString(s)
}
