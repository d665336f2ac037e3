package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/repository"
	"github.com/achlys/whimsical-backend/internal/db"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyOrderRepository fails status writes while failing is set.
type flakyOrderRepository struct {
	repository.OrderRepository

	mu      sync.Mutex
	failing bool
}

func (r *flakyOrderRepository) UpdateStatus(ctx context.Context, id string, status model.OrderStatus) error {
	r.mu.Lock()
	failing := r.failing
	r.mu.Unlock()
	if failing {
		return errors.New("connection reset by peer")
	}
	return r.OrderRepository.UpdateStatus(ctx, id, status)
}

func setupOrderServiceTest(t *testing.T) (OrderService, *flakyOrderRepository, *model.OrderRecord) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	repo := &flakyOrderRepository{OrderRepository: repository.NewOrderRepository(testDB)}
	order := &model.OrderRecord{
		ID:             uuid.NewString(),
		IdempotencyKey: uuid.NewString(),
		Email:          "luna@example.com",
		Items: []model.OrderItem{
			{ProductID: "1", Name: "Moonlit Tote", Quantity: 1, Price: decimal.NewFromInt(50)},
		},
		Subtotal:      decimal.NewFromInt(50),
		ShippingFee:   decimal.NewFromInt(35),
		Tax:           decimal.NewFromInt(4),
		Total:         decimal.NewFromInt(89),
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusUnpaid,
		PaymentMethod: model.PaymentMethodManual,
	}
	require.NoError(t, repo.Create(context.Background(), order))

	return NewOrderService(repo, NewOrderBoard()), repo, order
}

func waitPending(t *testing.T, p *PendingStatus) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.Wait(ctx)
}

func TestOrderService_GetOrder(t *testing.T) {
	svc, _, order := setupOrderServiceTest(t)
	ctx := context.Background()

	found, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.Email, found.Email)
	assert.Len(t, found.Items, 1)

	_, err = svc.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_UpdateOrderStatusConfirms(t *testing.T) {
	svc, _, order := setupOrderServiceTest(t)
	ctx := context.Background()

	pending, err := svc.UpdateOrderStatus(ctx, order.ID, model.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, pending.From)
	assert.Equal(t, model.OrderStatusConfirmed, pending.To)

	require.NoError(t, waitPending(t, pending))
	assert.Equal(t, PendingConfirmed, pending.State())

	found, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, found.Status)
}

func TestOrderService_UpdateOrderStatusRollsBack(t *testing.T) {
	svc, repo, order := setupOrderServiceTest(t)
	ctx := context.Background()
	repo.failing = true

	pending, err := svc.UpdateOrderStatus(ctx, order.ID, model.OrderStatusShipped)
	require.NoError(t, err)

	assert.Error(t, waitPending(t, pending))
	assert.Equal(t, PendingRolledBack, pending.State())

	orders, err := svc.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, model.OrderStatusPending, orders[0].Status)
}

func TestOrderService_UpdateOrderStatusValidation(t *testing.T) {
	svc, _, order := setupOrderServiceTest(t)
	ctx := context.Background()

	_, err := svc.UpdateOrderStatus(ctx, order.ID, model.OrderStatus("lost"))
	assert.ErrorIs(t, err, ErrInvalidOrderStatus)

	_, err = svc.UpdateOrderStatus(ctx, "missing", model.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_DeleteOrder(t *testing.T) {
	svc, _, order := setupOrderServiceTest(t)
	ctx := context.Background()

	require.NoError(t, svc.DeleteOrder(ctx, order.ID))
	_, err := svc.GetOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	assert.ErrorIs(t, svc.DeleteOrder(ctx, order.ID), ErrOrderNotFound)
}

func TestOrderService_GetOrdersByEmail(t *testing.T) {
	svc, _, order := setupOrderServiceTest(t)

	orders, err := svc.GetOrdersByEmail(context.Background(), order.Email)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	orders, err = svc.GetOrdersByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderBoard_ChainedChanges(t *testing.T) {
	board := NewOrderBoard()

	first := board.Apply("o1", model.OrderStatusPending, model.OrderStatusConfirmed)
	second := board.Apply("o1", model.OrderStatusPending, model.OrderStatusShipped)
	assert.Equal(t, model.OrderStatusConfirmed, second.From)

	status, ok := board.Status("o1")
	require.True(t, ok)
	assert.Equal(t, model.OrderStatusShipped, status)

	board.Confirm(second, errors.New("write failed"))
	status, ok = board.Status("o1")
	require.True(t, ok)
	assert.Equal(t, model.OrderStatusConfirmed, status)

	board.Confirm(first, nil)
	_, ok = board.Status("o1")
	assert.False(t, ok)
	assert.Equal(t, PendingConfirmed, first.State())
	assert.Equal(t, PendingRolledBack, second.State())
}

func TestOrderBoard_OverlayAndForget(t *testing.T) {
	board := NewOrderBoard()
	board.Apply("o1", model.OrderStatusPending, model.OrderStatusCancelled)

	orders := []model.OrderRecord{
		{ID: "o1", Status: model.OrderStatusPending},
		{ID: "o2", Status: model.OrderStatusPending},
	}
	board.Overlay(orders)
	assert.Equal(t, model.OrderStatusCancelled, orders[0].Status)
	assert.Equal(t, model.OrderStatusPending, orders[1].Status)

	board.Forget("o1")
	_, ok := board.Status("o1")
	assert.False(t, ok)
}
