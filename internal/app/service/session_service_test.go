package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/achlys/whimsical-backend/config"
	"github.com/achlys/whimsical-backend/internal/app/cart"
	"github.com/achlys/whimsical-backend/internal/app/catalog"
	"github.com/achlys/whimsical-backend/internal/app/checkout"
	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/reconcile"
	"github.com/achlys/whimsical-backend/internal/app/repository"
	"github.com/achlys/whimsical-backend/internal/db"
	"github.com/achlys/whimsical-backend/pkg/kvstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type notification struct {
	session string
	event   string
	payload interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (n *recordingNotifier) Notify(sessionID, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{session: sessionID, event: event, payload: payload})
}

func (n *recordingNotifier) last(event string) (notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events) - 1; i >= 0; i-- {
		if n.events[i].event == event {
			return n.events[i], true
		}
	}
	return notification{}, false
}

type sessionFixture struct {
	svc      SessionService
	db       *gorm.DB
	store    *kvstore.MemoryStore
	notifier *recordingNotifier
	products []model.ProductRecord
	now      time.Time
	mu       sync.Mutex
}

func (f *sessionFixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *sessionFixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *sessionFixture) id(i int) model.ProductID {
	return model.ProductID(fmt.Sprint(f.products[i].ID))
}

func setupSessionServiceTest(t *testing.T, follow bool) *sessionFixture {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)

	f := &sessionFixture{
		db:       testDB,
		store:    kvstore.NewMemoryStore(),
		notifier: &recordingNotifier{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		products: []model.ProductRecord{
			{Name: "Moonlit Tote", Price: decimal.NewFromInt(50), Stock: intPtr(3)},
			{Name: "Sticker Pack", Price: decimal.NewFromInt(45), Stock: nil},
			{Name: "Crochet Frog", Price: decimal.RequireFromString("199.50"), Stock: intPtr(0)},
		},
	}
	productRepo := repository.NewProductRepository(testDB)
	require.NoError(t, productRepo.CreateBatch(context.Background(), f.products))

	products := catalog.NewRepositoryProvider(productRepo)
	settings := NewSettingsService(repository.NewSettingsRepository(testDB), config.StorefrontConfig{
		ShippingFee: decimal.NewFromInt(35),
		TaxRate:     decimal.RequireFromString("0.08"),
	})

	f.svc = NewSessionService(products, products, NewOrderSubmitter(testDB), settings, SessionOptions{
		Store: f.store,
		Cart: config.CartConfig{
			SnapshotKey:   "whimsical-cart-v1",
			FollowChanges: follow,
			SessionIdle:   time.Hour,
		},
		Checkout: checkout.Options{AbortOnAdjustment: true, CatalogFailure: config.CatalogFailureHard},
		Notifier: f.notifier,
		Now:      f.clock,
	})

	t.Cleanup(func() {
		f.svc.Close()
		db.CleanupTestDB(testDB)
	})
	return f
}

func TestSessionService_AddAndView(t *testing.T) {
	f := setupSessionServiceTest(t, false)
	ctx := context.Background()

	result, err := f.svc.AddItem(ctx, "alice", f.id(0))
	require.NoError(t, err)
	assert.True(t, result.OK)
	_, err = f.svc.AddItem(ctx, "alice", f.id(0))
	require.NoError(t, err)

	view, err := f.svc.View(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalItems)
	assert.True(t, view.Quote.Subtotal.Equal(decimal.NewFromInt(100)))
	assert.True(t, view.Quote.Total.Equal(decimal.NewFromInt(143)))
	assert.Equal(t, checkout.StateIdle, view.CheckoutState)

	stored, err := f.store.Get(ctx, SnapshotKey("whimsical-cart-v1", "alice"))
	require.NoError(t, err)
	lines, err := cart.Decode(stored)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)

	_, ok := f.notifier.last(EventCartUpdated)
	assert.True(t, ok)
}

func TestSessionService_SessionsAreIsolated(t *testing.T) {
	f := setupSessionServiceTest(t, false)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "alice", f.id(1))
	require.NoError(t, err)

	view, err := f.svc.View(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.Equal(t, []string{"alice", "bob"}, f.svc.Sessions())

	_, err = f.svc.View(ctx, "")
	assert.ErrorIs(t, err, ErrSessionRequired)
}

func TestSessionService_RehydratesStoredCart(t *testing.T) {
	f := setupSessionServiceTest(t, false)
	ctx := context.Background()

	payload, err := cart.Encode([]model.CartLine{
		{ProductID: f.id(1), Name: "Sticker Pack", UnitPrice: decimal.NewFromInt(45), Quantity: 4},
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Set(ctx, SnapshotKey("whimsical-cart-v1", "carol"), payload))

	view, err := f.svc.View(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, 4, view.TotalItems)
}

func TestSessionService_AddItemDeclinesAndUnknown(t *testing.T) {
	f := setupSessionServiceTest(t, false)
	ctx := context.Background()

	result, err := f.svc.AddItem(ctx, "alice", f.id(2))
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, cart.ReasonOutOfStock, result.Reason)

	_, err = f.svc.AddItem(ctx, "alice", "999")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestSessionService_UpdateQuantityClampsToCatalogStock(t *testing.T) {
	f := setupSessionServiceTest(t, false)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "alice", f.id(0))
	require.NoError(t, err)

	got, err := f.svc.UpdateQuantity(ctx, "alice", f.id(0), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	got, err = f.svc.UpdateQuantity(ctx, "alice", f.id(0), 0)
	require.NoError(t, err)
	assert.Zero(t, got)

	view, err := f.svc.View(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestSessionService_RemoveAndClear(t *testing.T) {
	f := setupSessionServiceTest(t, false)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "alice", f.id(0))
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, "alice", f.id(1))
	require.NoError(t, err)

	removed, err := f.svc.RemoveItem(ctx, "alice", f.id(0))
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = f.svc.RemoveItem(ctx, "alice", f.id(0))
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, f.svc.Clear(ctx, "alice"))
	stored, err := f.store.Get(ctx, SnapshotKey("whimsical-cart-v1", "alice"))
	require.NoError(t, err)
	assert.Equal(t, "[]", stored)
}

func TestSessionService_RefreshAppliesAdjustments(t *testing.T) {
	f := setupSessionServiceTest(t, false)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "alice", f.id(0))
	require.NoError(t, err)
	_, err = f.svc.UpdateQuantity(ctx, "alice", f.id(0), 3)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&model.ProductRecord{}).Where("id = ?", f.products[0].ID).Update("stock", 1).Error)

	notice, err := f.svc.Refresh(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, notice.Adjustments, 1)
	assert.Equal(t, reconcile.KindClamped, notice.Adjustments[0].Kind)
	assert.Equal(t, 1, notice.Adjustments[0].To)
	assert.Len(t, notice.Notices, 1)

	view, err := f.svc.View(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, view.TotalItems)

	event, ok := f.notifier.last(EventCartAdjusted)
	require.True(t, ok)
	assert.Equal(t, "alice", event.session)

	notice, err = f.svc.Refresh(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, notice.Adjustments)
}

func TestSessionService_CheckoutPlacesOrder(t *testing.T) {
	f := setupSessionServiceTest(t, false)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "alice", f.id(0))
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, "alice", f.id(0))
	require.NoError(t, err)

	receipt, err := f.svc.Checkout(ctx, "alice", checkout.Request{
		Buyer: model.BuyerInfo{
			Name:    "Luna Reyes",
			Email:   "luna@example.com",
			Phone:   "09171234567",
			Address: "12 Mabini St, Quezon City",
		},
	})
	require.NoError(t, err)
	assert.True(t, receipt.Quote.Total.Equal(decimal.NewFromInt(143)))
	assert.True(t, receipt.Order.Total.Equal(decimal.NewFromInt(143)))

	view, err := f.svc.View(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.Equal(t, checkout.StateSucceeded, view.CheckoutState)

	var record model.ProductRecord
	require.NoError(t, f.db.First(&record, f.products[0].ID).Error)
	assert.Equal(t, 1, *record.Stock)

	_, ok := f.notifier.last(EventOrderPlaced)
	assert.True(t, ok)

	cancelled, err := f.svc.CancelCheckout(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestSessionService_RefreshAllDropsIdleSessions(t *testing.T) {
	f := setupSessionServiceTest(t, false)
	ctx := context.Background()

	_, err := f.svc.View(ctx, "alice")
	require.NoError(t, err)
	f.advance(30 * time.Minute)
	_, err = f.svc.View(ctx, "bob")
	require.NoError(t, err)

	f.advance(45 * time.Minute)
	require.NoError(t, f.svc.RefreshAll(ctx))
	assert.Equal(t, []string{"bob"}, f.svc.Sessions())
}

func TestSessionService_FollowsExternalWrites(t *testing.T) {
	f := setupSessionServiceTest(t, true)
	ctx := context.Background()

	_, err := f.svc.View(ctx, "alice")
	require.NoError(t, err)

	payload, err := cart.Encode([]model.CartLine{
		{ProductID: f.id(1), Name: "Sticker Pack", UnitPrice: decimal.NewFromInt(45), Quantity: 2},
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Set(ctx, SnapshotKey("whimsical-cart-v1", "alice"), payload))

	assert.Eventually(t, func() bool {
		view, err := f.svc.View(ctx, "alice")
		return err == nil && view.TotalItems == 2
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := f.notifier.last(EventCartUpdated)
	assert.True(t, ok)
}

// heldSubmitter blocks every submission until release is closed.
type heldSubmitter struct {
	next    checkout.OrderService
	entered chan struct{}
	release chan struct{}
}

func (h *heldSubmitter) SubmitOrder(ctx context.Context, draft model.OrderDraft) (*model.OrderRecord, error) {
	h.entered <- struct{}{}
	<-h.release
	return h.next.SubmitOrder(ctx, draft)
}

func TestSessionService_EditsRejectedDuringCheckout(t *testing.T) {
	f := setupSessionServiceTest(t, false)
	ctx := context.Background()

	held := &heldSubmitter{
		next:    NewOrderSubmitter(f.db),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	products := catalog.NewRepositoryProvider(repository.NewProductRepository(f.db))
	settings := NewSettingsService(repository.NewSettingsRepository(f.db), config.StorefrontConfig{
		ShippingFee: decimal.NewFromInt(35),
	})
	svc := NewSessionService(products, products, held, settings, SessionOptions{
		Store:    f.store,
		Cart:     config.CartConfig{SnapshotKey: "whimsical-cart-v1"},
		Checkout: checkout.Options{AbortOnAdjustment: true},
	})
	t.Cleanup(svc.Close)

	_, err := svc.AddItem(ctx, "alice", f.id(0))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Checkout(ctx, "alice", checkout.Request{Buyer: model.BuyerInfo{
			Name: "Luna Reyes", Email: "luna@example.com", Phone: "09171234567", Address: "12 Mabini St",
		}})
		done <- err
	}()

	select {
	case <-held.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("checkout never reached submission")
	}

	_, err = svc.AddItem(ctx, "alice", f.id(1))
	assert.ErrorIs(t, err, checkout.ErrInProgress)
	_, err = svc.UpdateQuantity(ctx, "alice", f.id(0), 2)
	assert.ErrorIs(t, err, checkout.ErrInProgress)
	_, err = svc.RemoveItem(ctx, "alice", f.id(0))
	assert.ErrorIs(t, err, checkout.ErrInProgress)
	assert.ErrorIs(t, svc.Clear(ctx, "alice"), checkout.ErrInProgress)

	close(held.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("checkout never finished")
	}

	view, err := svc.View(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, view.Lines)

	result, err := svc.AddItem(ctx, "alice", f.id(1))
	require.NoError(t, err)
	assert.True(t, result.OK)
}
