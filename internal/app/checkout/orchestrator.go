// Package checkout turns a cart and buyer details into a submitted order.
// Each attempt runs IDLE -> VALIDATING -> RECONCILING -> SUBMITTING and ends
// in SUCCEEDED or FAILED, or back in IDLE when it is aborted or cancelled.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/achlys/whimsical-backend/config"
	"github.com/achlys/whimsical-backend/internal/app/catalog"
	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/pricing"
	"github.com/achlys/whimsical-backend/internal/app/reconcile"
	apperrors "github.com/achlys/whimsical-backend/internal/errors"
	"github.com/achlys/whimsical-backend/internal/metrics"
	"github.com/achlys/whimsical-backend/pkg/logger"
	"github.com/google/uuid"
)

type State string

const (
	StateIdle        State = "IDLE"
	StateValidating  State = "VALIDATING"
	StateReconciling State = "RECONCILING"
	StateSubmitting  State = "SUBMITTING"
	StateSucceeded   State = "SUCCEEDED"
	StateFailed      State = "FAILED"
)

func (s State) inFlight() bool {
	return s == StateValidating || s == StateReconciling || s == StateSubmitting
}

var (
	ErrEmptyCart  = apperrors.New(apperrors.KindValidation, apperrors.CartEmpty, "Your cart is empty")
	ErrInProgress = apperrors.New(apperrors.KindConflict, apperrors.CheckoutInProgress, "A checkout is already in progress")
	ErrCancelled  = apperrors.New(apperrors.KindConflict, apperrors.CheckoutCancelled, "Checkout was cancelled")
)

// OrderService creates orders.
type OrderService interface {
	SubmitOrder(ctx context.Context, draft model.OrderDraft) (*model.OrderRecord, error)
}

// SettingsProvider supplies the shipping fee and tax rate.
type SettingsProvider interface {
	Pricing(ctx context.Context) (pricing.Settings, error)
}

// Cart is the part of the cart state machine checkout drives. Checkout
// never replaces the lines wholesale, so edits made while an attempt is in
// flight survive it.
type Cart interface {
	Lines() []model.CartLine
	Apply(adjustments []reconcile.Adjustment)
	Settle(ordered []model.CartLine)
}

// Request is the buyer input of one attempt.
type Request struct {
	Buyer model.BuyerInfo
	Notes string
}

// Receipt is the outcome of a successful attempt.
type Receipt struct {
	Order       *model.OrderRecord     `json:"order"`
	Quote       pricing.Breakdown      `json:"quote"`
	Adjustments []reconcile.Adjustment `json:"adjustments,omitempty"`
}

type Options struct {
	// AbortOnAdjustment returns to IDLE when reconciliation changed the cart
	// instead of submitting the adjusted cart.
	AbortOnAdjustment bool
	// CatalogFailure is config.CatalogFailureHard or config.CatalogFailureSkip.
	CatalogFailure string
	SubmitTimeout  time.Duration
	Metrics        *metrics.Metrics
	LogFields      map[string]interface{}
	// NewIdempotencyKey defaults to uuid.NewString.
	NewIdempotencyKey func() string
}

type Orchestrator struct {
	cart     Cart
	catalog  catalog.Provider
	orders   OrderService
	settings SettingsProvider
	opts     Options
	log      *logger.Logger

	mu          sync.Mutex
	state       State
	attempt     uint64
	cancel      context.CancelFunc
	lastErr     error
	lastReceipt *Receipt
}

func NewOrchestrator(cart Cart, products catalog.Provider, orders OrderService, settings SettingsProvider, opts Options) *Orchestrator {
	if opts.NewIdempotencyKey == nil {
		opts.NewIdempotencyKey = uuid.NewString
	}
	if opts.CatalogFailure == "" {
		opts.CatalogFailure = config.CatalogFailureHard
	}
	return &Orchestrator{
		cart:     cart,
		catalog:  products,
		orders:   orders,
		settings: settings,
		opts:     opts,
		log:      logger.WithContext(opts.LogFields),
		state:    StateIdle,
	}
}

// State returns the state of the current attempt.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastError returns the error that ended the last failed attempt.
func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// LastReceipt returns the receipt of the last successful attempt.
func (o *Orchestrator) LastReceipt() *Receipt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastReceipt
}

// Cancel abandons the in-flight attempt and returns to IDLE. A result that
// arrives later is ignored. It reports whether an attempt was in flight.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.state.inFlight() {
		return false
	}
	o.log.Info("Checkout cancelled", map[string]interface{}{
		"attempt": o.attempt,
		"state":   o.state,
	})
	o.attempt++
	o.state = StateIdle
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	return true
}

// Submit runs one checkout attempt. Errors are classified *apperrors.Error
// values. On success only the ordered quantities leave the cart; otherwise
// the cart is only touched to apply reconciliation adjustments.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Receipt, error) {
	started := time.Now()

	id, ctx, err := o.begin(ctx)
	if err != nil {
		return nil, err
	}

	receipt, outcome, err := o.run(ctx, id, req)
	o.opts.Metrics.CheckoutFinished(outcome, time.Since(started))
	return receipt, err
}

func (o *Orchestrator) begin(ctx context.Context) (uint64, context.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.inFlight() {
		o.log.Warn("Checkout rejected: attempt already in flight", map[string]interface{}{
			"attempt": o.attempt,
			"state":   o.state,
		})
		return 0, nil, ErrInProgress
	}

	o.attempt++
	o.state = StateValidating
	o.lastErr = nil
	attemptCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.log.Info("Checkout started", map[string]interface{}{
		"attempt": o.attempt,
	})
	return o.attempt, attemptCtx, nil
}

func (o *Orchestrator) run(ctx context.Context, id uint64, req Request) (*Receipt, string, error) {
	// VALIDATING
	buyer, err := ValidateBuyer(req.Buyer)
	if err != nil {
		return nil, "failed_validation", o.fail(id, err)
	}
	lines := o.cart.Lines()
	if len(lines) == 0 {
		return nil, "failed_validation", o.fail(id, ErrEmptyCart)
	}

	// RECONCILING
	if !o.transition(id, StateReconciling) {
		return nil, "cancelled", ErrCancelled
	}

	var adjustments []reconcile.Adjustment
	products, err := o.catalog.ListProducts(ctx)
	if !o.current(id) {
		return nil, "cancelled", ErrCancelled
	}
	switch {
	case err != nil && o.opts.CatalogFailure == config.CatalogFailureSkip:
		o.log.Warn("Catalog unavailable, submitting cached cart without reconciliation", map[string]interface{}{
			"attempt": id,
			"error":   err.Error(),
		})
	case err != nil:
		return nil, "failed_catalog", o.fail(id, apperrors.TransientNetwork(err, "We could not check stock right now, please try again"))
	default:
		outcome := reconcile.Reconcile(lines, products)
		if outcome.Changed() {
			for _, a := range outcome.Adjustments {
				o.opts.Metrics.ReconcileAdjustment(string(a.Kind))
			}
			// the shopper sees the adjusted cart whether or not we continue
			o.cart.Apply(outcome.Adjustments)
			adjustments = outcome.Adjustments

			if o.opts.AbortOnAdjustment {
				return nil, "aborted_adjusted", o.abort(id, outcome)
			}
			o.log.Warn("Submitting adjusted cart", map[string]interface{}{
				"attempt":     id,
				"adjustments": len(outcome.Adjustments),
			})
		}
		lines = outcome.Lines
		if len(lines) == 0 {
			return nil, "failed_validation", o.fail(id, ErrEmptyCart.WithDetails("adjustments", outcome.Adjustments))
		}
	}

	settings, err := o.settings.Pricing(ctx)
	if err != nil {
		return nil, "failed_settings", o.fail(id, err)
	}

	quote := pricing.Quote(pricing.Subtotal(lines), settings)
	draft := model.OrderDraft{
		IdempotencyKey: o.opts.NewIdempotencyKey(),
		Buyer:          buyer,
		Notes:          strings.TrimSpace(req.Notes),
		Lines:          lines,
		Subtotal:       quote.Subtotal,
		ShippingFee:    quote.ShippingFee,
		Tax:            quote.Tax,
		Total:          quote.Total,
	}

	// SUBMITTING
	if !o.transition(id, StateSubmitting) {
		return nil, "cancelled", ErrCancelled
	}

	submitCtx := ctx
	if o.opts.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(ctx, o.opts.SubmitTimeout)
		defer cancel()
	}
	record, err := o.orders.SubmitOrder(submitCtx, draft)

	o.mu.Lock()
	defer o.mu.Unlock()

	if id != o.attempt {
		fields := map[string]interface{}{"attempt": id}
		if record != nil {
			fields["order_id"] = record.ID
		}
		o.log.Warn("Ignoring result of abandoned checkout attempt", fields)
		return nil, "cancelled", ErrCancelled
	}

	o.release()
	if err != nil {
		classified := apperrors.Classify(err, "order")
		o.state = StateFailed
		o.lastErr = classified
		o.log.Error("Order submission failed", err, map[string]interface{}{
			"attempt":         id,
			"idempotency_key": draft.IdempotencyKey,
			"kind":            classified.Kind(),
		})
		return nil, "failed_submit", classified
	}

	// SUCCEEDED
	o.cart.Settle(lines)
	receipt := &Receipt{Order: record, Quote: quote, Adjustments: adjustments}
	o.state = StateSucceeded
	o.lastReceipt = receipt
	o.log.Info("Order placed", map[string]interface{}{
		"attempt":  id,
		"order_id": record.ID,
		"total":    quote.Total.String(),
	})
	return receipt, "succeeded", nil
}

// transition moves the attempt to next if it is still current.
func (o *Orchestrator) transition(id uint64, next State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if id != o.attempt {
		return false
	}
	o.log.Debug("Checkout state changed", map[string]interface{}{
		"attempt": id,
		"from":    o.state,
		"to":      next,
	})
	o.state = next
	return true
}

func (o *Orchestrator) current(id uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return id == o.attempt
}

// fail ends the attempt in FAILED. A stale attempt only reports ErrCancelled.
func (o *Orchestrator) fail(id uint64, err error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if id != o.attempt {
		return ErrCancelled
	}
	classified := apperrors.Classify(err, "checkout")
	o.release()
	o.state = StateFailed
	o.lastErr = classified
	o.log.Warn("Checkout failed", map[string]interface{}{
		"attempt": id,
		"kind":    classified.Kind(),
		"code":    classified.Code(),
	})
	return classified
}

// abort returns the attempt to IDLE with a stock conflict naming the changes.
func (o *Orchestrator) abort(id uint64, outcome reconcile.Outcome) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if id != o.attempt {
		return ErrCancelled
	}
	o.release()
	o.state = StateIdle

	err := apperrors.StockConflict(fmt.Sprintf("%d item(s) in your cart changed, please review before placing the order", len(outcome.Adjustments))).
		WithDetails("adjustments", outcome.Adjustments).
		WithDetails("notices", outcome.Notices())
	o.lastErr = err
	o.log.Warn("Checkout aborted: cart changed during reconciliation", map[string]interface{}{
		"attempt":     id,
		"adjustments": len(outcome.Adjustments),
	})
	return err
}

// release drops the attempt context. Must be called with o.mu held.
func (o *Orchestrator) release() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}
