package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartController_AddItem(t *testing.T) {
	f := setupStorefrontTest(t)

	w, body := f.do(t, http.MethodPost, "/cart/items", gin.H{"product_id": f.id(1)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, true, object(t, body["result"])["ok"])
	cart := object(t, body["cart"])
	assert.Equal(t, float64(1), cart["total_items"])
	assert.Equal(t, "₱80.00", cart["total_formatted"])

	items, ok := cart["items"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, f.id(1), object(t, items[0])["id"])
}

func TestCartController_AddItemDeclined(t *testing.T) {
	f := setupStorefrontTest(t)
	f.addItem(t, 0)

	tests := []struct {
		name    string
		product int
		code    string
		reason  string
	}{
		{"at stock ceiling", 0, "CART_EXCEEDS_STOCK", "stock_limit"},
		{"sold out", 2, "CART_OUT_OF_STOCK", "out_of_stock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := f.do(t, http.MethodPost, "/cart/items", gin.H{"product_id": f.id(tt.product)})
			assert.Equal(t, http.StatusConflict, w.Code)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tt.code, body["error"])
			assert.Equal(t, tt.reason, body["reason"])
			assert.NotEmpty(t, body["message"])
		})
	}

	_, body := f.do(t, http.MethodGet, "/cart", nil)
	assert.Equal(t, float64(1), object(t, body["cart"])["total_items"])
}

func TestCartController_AddItemUnknownProduct(t *testing.T) {
	f := setupStorefrontTest(t)

	w, body := f.do(t, http.MethodPost, "/cart/items", gin.H{"product_id": "9999"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "CART_PRODUCT_UNKNOWN", body["error"])

	w, body = f.do(t, http.MethodPost, "/cart/items", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_INVALID_INPUT", body["error"])
}

func TestCartController_UpdateItemClamps(t *testing.T) {
	f := setupStorefrontTest(t)
	f.addItem(t, 0)
	f.addItem(t, 1)

	w, body := f.do(t, http.MethodPatch, "/cart/items/"+f.id(0), gin.H{"quantity": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := object(t, body["result"])
	assert.Equal(t, float64(1), result["quantity"])
	assert.Equal(t, true, result["clamped"])

	_, body = f.do(t, http.MethodPatch, "/cart/items/"+f.id(1), gin.H{"quantity": 4})
	result = object(t, body["result"])
	assert.Equal(t, float64(4), result["quantity"])
	assert.Equal(t, false, result["clamped"])
	assert.Equal(t, float64(5), object(t, body["cart"])["total_items"])

	_, body = f.do(t, http.MethodPatch, "/cart/items/"+f.id(1), gin.H{"quantity": 0})
	assert.Equal(t, float64(0), object(t, body["result"])["quantity"])
	assert.Equal(t, float64(1), object(t, body["cart"])["total_items"])
}

func TestCartController_RemoveAndClear(t *testing.T) {
	f := setupStorefrontTest(t)
	f.addItem(t, 0)
	f.addItem(t, 1)

	_, body := f.do(t, http.MethodDelete, "/cart/items/"+f.id(0), nil)
	assert.Equal(t, true, object(t, body["result"])["removed"])

	_, body = f.do(t, http.MethodDelete, "/cart/items/"+f.id(0), nil)
	assert.Equal(t, false, object(t, body["result"])["removed"])

	w, body := f.do(t, http.MethodDelete, "/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, object(t, body["result"])["cleared"])
	cart := object(t, body["cart"])
	assert.Equal(t, float64(0), cart["total_items"])
	assert.Empty(t, cart["items"])
}

func TestCartController_OneEnvelopeForEveryEndpoint(t *testing.T) {
	f := setupStorefrontTest(t)

	calls := []struct {
		method string
		path   string
		body   interface{}
		result bool
	}{
		{http.MethodGet, "/cart", nil, false},
		{http.MethodPost, "/cart/items", gin.H{"product_id": f.id(1)}, true},
		{http.MethodPatch, "/cart/items/" + f.id(1), gin.H{"quantity": 2}, true},
		{http.MethodDelete, "/cart/items/" + f.id(1), nil, true},
		{http.MethodDelete, "/cart", nil, true},
	}

	for _, call := range calls {
		w, body := f.do(t, call.method, call.path, call.body)
		require.Equal(t, http.StatusOK, w.Code, "%s %s", call.method, call.path)

		cart := object(t, body["cart"])
		assert.Contains(t, cart, "items")
		assert.Contains(t, cart, "total_items")
		assert.Contains(t, cart, "quote")
		assert.Contains(t, cart, "total_formatted")
		assert.NotContains(t, body, "items", "%s %s leaked bare cart fields", call.method, call.path)
		_, hasResult := body["result"]
		assert.Equal(t, call.result, hasResult, "%s %s", call.method, call.path)
	}
}

func TestCartController_Refresh(t *testing.T) {
	f := setupStorefrontTest(t)
	f.addItem(t, 0)
	f.addItem(t, 1)

	require.NoError(t, f.db.Model(&model.ProductRecord{}).Where("id = ?", f.products[0].ID).Update("stock", 0).Error)

	w, body := f.do(t, http.MethodPost, "/cart/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	adjustments, ok := body["adjustments"].([]interface{})
	require.True(t, ok)
	assert.Len(t, adjustments, 1)
	assert.NotEmpty(t, body["notices"])

	items, ok := body["items"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, f.id(1), object(t, items[0])["id"])
}

func TestCartController_SessionsAreIsolated(t *testing.T) {
	f := setupStorefrontTest(t)
	f.addItem(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set(middleware.CartSessionHeader, "session-bbbb-0002")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_items":0`)
}

func TestCartController_RequiresSession(t *testing.T) {
	f := setupStorefrontTest(t)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cart", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "SESSION_MISSING")
}
