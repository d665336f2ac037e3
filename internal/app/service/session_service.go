package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/achlys/whimsical-backend/config"
	"github.com/achlys/whimsical-backend/internal/app/cart"
	"github.com/achlys/whimsical-backend/internal/app/catalog"
	"github.com/achlys/whimsical-backend/internal/app/checkout"
	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/pricing"
	"github.com/achlys/whimsical-backend/internal/app/reconcile"
	"github.com/achlys/whimsical-backend/internal/metrics"
	"github.com/achlys/whimsical-backend/pkg/kvstore"
	"github.com/achlys/whimsical-backend/pkg/logger"
	"go.uber.org/multierr"
)

// Events published to a session's listeners.
const (
	EventCartUpdated  = "cart_updated"
	EventCartAdjusted = "cart_adjusted"
	EventOrderPlaced  = "order_placed"
)

var ErrSessionRequired = errors.New("cart session id is required")

// Notifier delivers events to whoever listens on a session.
type Notifier interface {
	Notify(sessionID, event string, payload interface{})
}

// CartView is what a shopper sees of their cart.
type CartView struct {
	Lines         []model.CartLine  `json:"items"`
	TotalItems    int               `json:"total_items"`
	Quote         pricing.Breakdown `json:"quote"`
	CheckoutState checkout.State    `json:"checkout_state"`
}

// AdjustmentNotice is the payload of EventCartAdjusted and of a refresh.
type AdjustmentNotice struct {
	Adjustments []reconcile.Adjustment `json:"adjustments"`
	Notices     []string               `json:"notices"`
	Lines       []model.CartLine       `json:"items"`
}

type SessionService interface {
	View(ctx context.Context, sessionID string) (*CartView, error)
	AddItem(ctx context.Context, sessionID string, productID model.ProductID) (cart.Result, error)
	UpdateQuantity(ctx context.Context, sessionID string, productID model.ProductID, quantity int) (int, error)
	RemoveItem(ctx context.Context, sessionID string, productID model.ProductID) (bool, error)
	Clear(ctx context.Context, sessionID string) error
	Refresh(ctx context.Context, sessionID string) (*AdjustmentNotice, error)
	RefreshAll(ctx context.Context) error
	Checkout(ctx context.Context, sessionID string, req checkout.Request) (*checkout.Receipt, error)
	CancelCheckout(ctx context.Context, sessionID string) (bool, error)
	Sessions() []string
	Close()
}

type SessionOptions struct {
	Store kvstore.Store
	Cart  config.CartConfig
	// Checkout is copied into every session's orchestrator.
	Checkout checkout.Options
	Metrics  *metrics.Metrics
	Notifier Notifier
	Now      func() time.Time
}

// session is one shopper's cart and checkout. mu serializes the service
// level read-modify-write steps (refresh, quantity lookups) on the cart.
type session struct {
	id       string
	cart     *cart.Cart
	checkout *checkout.Orchestrator

	mu       sync.Mutex
	lastSeen time.Time
	stop     context.CancelFunc
}

type sessionService struct {
	browse   catalog.Provider
	live     catalog.Provider
	orders   checkout.OrderService
	settings checkout.SettingsProvider
	opts     SessionOptions

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessionService keeps carts per session. browse serves cart operations
// and refreshes; live is the uncached catalog checkout reconciles against.
func NewSessionService(browse, live catalog.Provider, orders checkout.OrderService, settings checkout.SettingsProvider, opts SessionOptions) SessionService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Cart.SnapshotKey == "" {
		opts.Cart.SnapshotKey = "whimsical-cart-v1"
	}
	opts.Checkout.Metrics = opts.Metrics
	return &sessionService{
		browse:   browse,
		live:     live,
		orders:   orders,
		settings: settings,
		opts:     opts,
		sessions: make(map[string]*session),
	}
}

// SnapshotKey is the store key of a session's cart.
func SnapshotKey(prefix, sessionID string) string {
	return prefix + ":" + sessionID
}

func (s *sessionService) View(ctx context.Context, sessionID string) (*CartView, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Pricing(ctx)
	if err != nil {
		return nil, err
	}

	lines := sess.cart.Lines()
	return &CartView{
		Lines:         lines,
		TotalItems:    sess.cart.TotalItems(),
		Quote:         pricing.Quote(pricing.Subtotal(lines), settings),
		CheckoutState: sess.checkout.State(),
	}, nil
}

// AddItem adds one unit of a catalog product.
func (s *sessionService) AddItem(ctx context.Context, sessionID string, productID model.ProductID) (cart.Result, error) {
	sess, err := s.editable(ctx, sessionID)
	if err != nil {
		return cart.Result{}, err
	}

	product, err := s.lookup(ctx, productID)
	if err != nil {
		return cart.Result{}, err
	}

	result := sess.cart.AddItem(product)
	if result.OK {
		s.publish(sess, EventCartUpdated, sess.cart.Lines())
	}
	return result, nil
}

// UpdateQuantity sets a line quantity, clamped to the product's current
// stock. A product that left the catalog is not limited here; the next
// refresh removes it.
func (s *sessionService) UpdateQuantity(ctx context.Context, sessionID string, productID model.ProductID, quantity int) (int, error) {
	sess, err := s.editable(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	maxStock := model.UnlimitedStock
	product, err := s.lookup(ctx, productID)
	switch {
	case err == nil:
		maxStock = product.Stock
	case errors.Is(err, ErrProductNotFound):
	default:
		return 0, err
	}

	sess.mu.Lock()
	got := sess.cart.UpdateQuantity(productID, quantity, maxStock)
	sess.mu.Unlock()

	s.publish(sess, EventCartUpdated, sess.cart.Lines())
	return got, nil
}

func (s *sessionService) RemoveItem(ctx context.Context, sessionID string, productID model.ProductID) (bool, error) {
	sess, err := s.editable(ctx, sessionID)
	if err != nil {
		return false, err
	}

	removed := sess.cart.RemoveItem(productID)
	if removed {
		s.publish(sess, EventCartUpdated, sess.cart.Lines())
	}
	return removed, nil
}

func (s *sessionService) Clear(ctx context.Context, sessionID string) error {
	sess, err := s.editable(ctx, sessionID)
	if err != nil {
		return err
	}

	sess.cart.Clear()
	s.publish(sess, EventCartUpdated, []model.CartLine{})
	return nil
}

// Refresh reconciles a session's cart against the browsing catalog and
// applies any adjustment through the cart. A session with a checkout in
// flight is left alone.
func (s *sessionService) Refresh(ctx context.Context, sessionID string) (*AdjustmentNotice, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, sess)
}

func (s *sessionService) refresh(ctx context.Context, sess *session) (*AdjustmentNotice, error) {
	if checkoutBusy(sess.checkout.State()) {
		logger.Debug("Skipping refresh during checkout", map[string]interface{}{
			"session": sess.id,
		})
		return &AdjustmentNotice{Lines: sess.cart.Lines()}, nil
	}

	products, err := s.browse.ListProducts(ctx)
	if err != nil {
		logger.Error("Failed to load catalog for refresh", err, map[string]interface{}{
			"session": sess.id,
		})
		return nil, err
	}

	sess.mu.Lock()
	outcome := reconcile.Reconcile(sess.cart.Lines(), products)
	sess.cart.Apply(outcome.Adjustments)
	sess.mu.Unlock()

	notice := &AdjustmentNotice{
		Adjustments: outcome.Adjustments,
		Notices:     outcome.Notices(),
		Lines:       sess.cart.Lines(),
	}
	if !outcome.Changed() {
		return notice, nil
	}

	for _, a := range outcome.Adjustments {
		s.opts.Metrics.ReconcileAdjustment(string(a.Kind))
	}
	logger.Warn("Cart adjusted to current stock", map[string]interface{}{
		"session":     sess.id,
		"adjustments": len(outcome.Adjustments),
	})
	s.publish(sess, EventCartAdjusted, notice)
	return notice, nil
}

// RefreshAll refreshes every active session and drops the idle ones.
// Per-session failures are combined; one failure does not stop the sweep.
func (s *sessionService) RefreshAll(ctx context.Context) error {
	s.evictIdle()

	var errs error
	for _, sess := range s.snapshot() {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		if _, err := s.refresh(ctx, sess); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	s.opts.Metrics.Sweep(errs)
	return errs
}

func (s *sessionService) Checkout(ctx context.Context, sessionID string, req checkout.Request) (*checkout.Receipt, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	receipt, err := sess.checkout.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	s.publish(sess, EventOrderPlaced, receipt)
	return receipt, nil
}

func (s *sessionService) CancelCheckout(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return sess.checkout.Cancel(), nil
}

// Sessions lists active session ids in order.
func (s *sessionService) Sessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops following every session's snapshot and forgets all sessions.
func (s *sessionService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.stop != nil {
			sess.stop()
		}
		delete(s.sessions, id)
	}
}

// session returns the session, rehydrating its cart on first use.
func (s *sessionService) session(ctx context.Context, id string) (*session, error) {
	if id == "" {
		return nil, ErrSessionRequired
	}

	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.touch(s.opts.Now())
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	sess := s.newSession(id)
	sess.cart.Rehydrate(ctx)

	s.mu.Lock()
	if existing, ok := s.sessions[id]; ok {
		existing.touch(s.opts.Now())
		s.mu.Unlock()
		return existing, nil
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	s.follow(sess)
	logger.Info("Cart session opened", map[string]interface{}{
		"session":     id,
		"total_items": sess.cart.TotalItems(),
	})
	return sess, nil
}

// editable returns the session unless its checkout is in flight. Edits made
// then could change the cart under an order that is already being placed.
func (s *sessionService) editable(ctx context.Context, id string) (*session, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	if state := sess.checkout.State(); checkoutBusy(state) {
		logger.Warn("Cart edit rejected during checkout", map[string]interface{}{
			"session": id,
			"state":   state,
		})
		return nil, checkout.ErrInProgress
	}
	return sess, nil
}

func (s *sessionService) newSession(id string) *session {
	fields := map[string]interface{}{"session": id}
	sess := &session{id: id, lastSeen: s.opts.Now()}

	sess.cart = cart.New(cart.Options{
		Store:          s.opts.Store,
		Key:            SnapshotKey(s.opts.Cart.SnapshotKey, id),
		PersistTimeout: s.opts.Cart.PersistTimeout,
		Metrics:        s.opts.Metrics,
		LogFields:      fields,
		OnRemoteChange: func(lines []model.CartLine) {
			s.publish(sess, EventCartUpdated, lines)
		},
	})

	checkoutOpts := s.opts.Checkout
	checkoutOpts.LogFields = fields
	sess.checkout = checkout.NewOrchestrator(sess.cart, s.live, s.orders, s.settings, checkoutOpts)
	return sess
}

func (s *sessionService) follow(sess *session) {
	if !s.opts.Cart.FollowChanges {
		return
	}
	watcher, ok := s.opts.Store.(kvstore.Watcher)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := sess.cart.Follow(ctx, watcher); err != nil {
		cancel()
		logger.Warn("Cannot follow cart snapshot changes", map[string]interface{}{
			"session": sess.id,
			"error":   err.Error(),
		})
		return
	}

	s.mu.Lock()
	sess.stop = cancel
	s.mu.Unlock()
}

func (s *sessionService) evictIdle() {
	if s.opts.Cart.SessionIdle <= 0 {
		return
	}
	cutoff := s.opts.Now().Add(-s.opts.Cart.SessionIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.lastSeen.After(cutoff) || checkoutBusy(sess.checkout.State()) {
			continue
		}
		if sess.stop != nil {
			sess.stop()
		}
		delete(s.sessions, id)
		logger.Info("Idle cart session dropped", map[string]interface{}{
			"session": id,
		})
	}
}

func (s *sessionService) snapshot() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
	return list
}

func (s *sessionService) lookup(ctx context.Context, id model.ProductID) (model.Product, error) {
	products, err := s.browse.ListProducts(ctx)
	if err != nil {
		logger.Error("Failed to load catalog", err, map[string]interface{}{
			"product_id": id.String(),
		})
		return model.Product{}, err
	}
	product, ok := catalog.Find(products, id)
	if !ok {
		logger.Warn("Product not found", map[string]interface{}{
			"product_id": id.String(),
		})
		return model.Product{}, ErrProductNotFound
	}
	return product, nil
}

func (s *sessionService) publish(sess *session, event string, payload interface{}) {
	if s.opts.Notifier == nil {
		return
	}
	s.opts.Notifier.Notify(sess.id, event, payload)
}

// touch must be called with the service lock held.
func (sess *session) touch(now time.Time) {
	sess.lastSeen = now
}

func checkoutBusy(state checkout.State) bool {
	switch state {
	case checkout.StateValidating, checkout.StateReconciling, checkout.StateSubmitting:
		return true
	}
	return false
}
