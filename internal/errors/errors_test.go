package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestKindMetadata(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, KindValidation.HTTPStatus())
	assert.Equal(t, http.StatusConflict, KindStockConflict.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, KindNotFound.HTTPStatus())
	assert.Equal(t, http.StatusServiceUnavailable, KindTransientNetwork.HTTPStatus())
	assert.True(t, KindTransientNetwork.Retryable())
	assert.False(t, KindValidation.Retryable())
	assert.Equal(t, http.StatusInternalServerError, Kind("bogus").HTTPStatus())
}

func TestErrorWrapAndDetails(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	e := TransientNetwork(cause, "")

	assert.ErrorIs(t, e, cause)
	assert.Equal(t, InternalExternalAPI, e.Code())
	assert.NotEmpty(t, e.Message())

	withDetails := e.WithDetails("attempt", 2)
	assert.Nil(t, e.Details(), "original must not be mutated")
	assert.Equal(t, 2, withDetails.Details()["attempt"])

	wrapped := fmt.Errorf("checkout: %w", e)
	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindTransientNetwork, got.Kind())
	assert.Equal(t, KindTransientNetwork, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(stderrors.New("plain")))
}

func TestErrorIsMatchesKindAndCode(t *testing.T) {
	sentinel := New(KindValidation, CartEmpty, "")
	other := New(KindValidation, CartEmpty, "different message")

	assert.True(t, stderrors.Is(fmt.Errorf("wrap: %w", other), sentinel))
	assert.False(t, stderrors.Is(New(KindValidation, ValidationRequired, ""), sentinel))
}

func TestValidationFields(t *testing.T) {
	e := Validation("missing fields", map[string]string{"name": "required"})
	assert.Equal(t, KindValidation, e.Kind())
	assert.Equal(t, map[string]string{"name": "required"}, e.Details()["fields"])

	assert.Nil(t, Validation("x", nil).Details())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		context string
		kind    Kind
		code    string
	}{
		{"nil", nil, "", KindInternal, InternalServerError},
		{"record not found order", gorm.ErrRecordNotFound, "order", KindNotFound, OrderNotFound},
		{"record not found product", fmt.Errorf("find: %w", gorm.ErrRecordNotFound), "product", KindNotFound, CartProductUnknown},
		{"deadline", context.DeadlineExceeded, "catalog", KindTransientNetwork, InternalExternalAPI},
		{"duplicate", stderrors.New(`ERROR: duplicate key value violates unique constraint "idx_orders_idempotency_key"`), "order", KindValidation, ResourceAlreadyExists},
		{"check quantity", stderrors.New("CHECK constraint failed: quantity > 0"), "order", KindStockConflict, CartExceedsStock},
		{"check other", stderrors.New("violates check constraint chk_total"), "order", KindValidation, ValidationInvalidRange},
		{"refused", stderrors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), "catalog", KindTransientNetwork, InternalExternalAPI},
		{"unknown", stderrors.New("boom"), "checkout", KindInternal, InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, tt.context)
			require.NotNil(t, got)
			assert.Equal(t, tt.kind, got.Kind())
			assert.Equal(t, tt.code, got.Code())
		})
	}
}

func TestClassifyKeepsClassifiedErrors(t *testing.T) {
	original := StockConflict("items changed")
	got := Classify(fmt.Errorf("wrap: %w", original), "checkout")
	assert.Same(t, original, got)
}

func TestRespondWithKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithKind(c, StockConflict("review your cart").WithDetails("count", 1))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"CART_ITEMS_CHANGED","message":"review your cart","kind":"STOCK_CONFLICT","details":{"count":1}}`, w.Body.String())
}
