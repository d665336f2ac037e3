// Package cart holds the shopping cart state machine. Every mutation keeps
// the stock ceiling and the no-empty-line invariants, then writes the cart
// to the key-value store. Store failures are logged and never change the
// in-memory cart.
package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/reconcile"
	"github.com/achlys/whimsical-backend/internal/metrics"
	"github.com/achlys/whimsical-backend/pkg/kvstore"
	"github.com/achlys/whimsical-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// Reason explains why an add was declined.
type Reason string

const (
	// ReasonOutOfStock: the product has no stock at all.
	ReasonOutOfStock Reason = "out_of_stock"
	// ReasonStockLimit: the line already holds every unit in stock.
	ReasonStockLimit Reason = "stock_limit"
)

// MessageExceedsStock is the message carried by every declined add.
const MessageExceedsStock = "exceeds stock"

// Result is returned by AddItem. Declined adds leave the cart unchanged.
type Result struct {
	OK      bool   `json:"ok"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

func declined(reason Reason) Result {
	return Result{OK: false, Reason: reason, Message: MessageExceedsStock}
}

const defaultPersistTimeout = 2 * time.Second

// Options configure a Cart.
type Options struct {
	Store          kvstore.Store
	Key            string
	PersistTimeout time.Duration
	Metrics        *metrics.Metrics
	// LogFields are attached to every log event of this cart.
	LogFields map[string]interface{}
	// OnRemoteChange is called after the cart reloads because another
	// writer changed the snapshot key.
	OnRemoteChange func(lines []model.CartLine)
}

// Cart is safe for concurrent use; operations apply in call order.
type Cart struct {
	mu             sync.Mutex
	lines          []model.CartLine
	store          kvstore.Store
	key            string
	persistTimeout time.Duration
	metrics        *metrics.Metrics
	log            *logger.Logger
	onRemoteChange func([]model.CartLine)

	// lastPayload is the snapshot the in-memory lines match, "" for none.
	lastPayload string
}

// New creates an empty cart. Call Rehydrate to restore a stored snapshot.
func New(opts Options) *Cart {
	timeout := opts.PersistTimeout
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	return &Cart{
		store:          opts.Store,
		key:            opts.Key,
		persistTimeout: timeout,
		metrics:        opts.Metrics,
		log:            logger.WithContext(opts.LogFields),
		onRemoteChange: opts.OnRemoteChange,
	}
}

// Key returns the snapshot key.
func (c *Cart) Key() string { return c.key }

// Rehydrate replaces the cart with the stored snapshot. A missing, unreadable
// or corrupt snapshot leaves an empty cart.
func (c *Cart) Rehydrate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = nil
	if c.store == nil {
		return
	}

	payload, err := c.store.Get(ctx, c.key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			c.persistenceWarning("Failed to read cart snapshot, starting empty", err)
		}
		return
	}

	lines, err := Decode(payload)
	if err != nil {
		c.persistenceWarning("Discarding corrupt cart snapshot", err)
		return
	}

	c.lines = lines
	c.lastPayload = payload
	c.log.Info("Cart rehydrated", map[string]interface{}{
		"lines":       len(lines),
		"total_items": totalItems(lines),
	})
}

// Load replaces the whole line list without validation and persists it.
func (c *Cart) Load(lines []model.CartLine) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = copyLines(lines)
	c.persist("load")
}

// AddItem adds one unit of product. The add is declined when the product has
// no stock or the line is already at the stock ceiling.
func (c *Cart) AddItem(product model.Product) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	fields := map[string]interface{}{
		"product_id": product.ID.String(),
		"stock":      product.Stock.String(),
	}

	if !product.InStock() {
		c.log.Warn("Add declined: product out of stock", fields)
		c.metrics.CartMutation("add", string(ReasonOutOfStock))
		return declined(ReasonOutOfStock)
	}

	if i := c.indexOf(product.ID); i >= 0 {
		next := c.lines[i].Quantity + 1
		if !product.Stock.Allows(next) {
			fields["quantity"] = c.lines[i].Quantity
			c.log.Warn("Add declined: line at stock ceiling", fields)
			c.metrics.CartMutation("add", string(ReasonStockLimit))
			return declined(ReasonStockLimit)
		}
		c.lines[i].Quantity = next
		fields["quantity"] = next
	} else {
		c.lines = append(c.lines, model.NewCartLine(product, 1))
		fields["quantity"] = 1
	}

	c.log.Info("Cart item added", fields)
	c.metrics.CartMutation("add", "ok")
	c.persist("add")
	return Result{OK: true}
}

// RemoveItem deletes the line for id. Removing a missing line is a no-op.
// It reports whether a line was removed.
func (c *Cart) RemoveItem(id model.ProductID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.remove(id)
	c.metrics.CartMutation("remove", "ok")
	c.persist("remove")
	return removed
}

// UpdateQuantity sets the quantity of the line for id, clamped to maxStock.
// A quantity that ends up below one removes the line. It returns the
// resulting quantity, zero when the line is gone or never existed.
func (c *Cart) UpdateQuantity(id model.ProductID, quantity int, maxStock model.Stock) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	defer c.persist("update")

	clamped := maxStock.Clamp(quantity)
	if clamped <= 0 {
		c.remove(id)
		c.metrics.CartMutation("update", "removed")
		return 0
	}

	i := c.indexOf(id)
	if i < 0 {
		c.metrics.CartMutation("update", "missing")
		return 0
	}

	if clamped != quantity {
		c.log.Info("Cart quantity clamped to stock", map[string]interface{}{
			"product_id": id.String(),
			"requested":  quantity,
			"quantity":   clamped,
		})
	}
	c.lines[i].Quantity = clamped
	c.metrics.CartMutation("update", "ok")
	return clamped
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = nil
	c.log.Info("Cart cleared")
	c.metrics.CartMutation("clear", "ok")
	c.persist("clear")
}

// Apply applies reconciliation adjustments to the current lines. Removed
// products lose their line and clamped lines are capped at the new quantity.
// Lines the adjustments do not name are kept as they are now, including ones
// added after the reconciliation read the cart.
func (c *Cart) Apply(adjustments []reconcile.Adjustment) {
	if len(adjustments) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range adjustments {
		i := c.indexOf(a.ProductID)
		if i < 0 {
			continue
		}
		if a.Kind == reconcile.KindRemoved || a.To <= 0 {
			c.remove(a.ProductID)
			continue
		}
		if c.lines[i].Quantity > a.To {
			c.lines[i].Quantity = a.To
		}
	}
	c.metrics.CartMutation("reconcile", "ok")
	c.persist("reconcile")
}

// Settle takes the quantities of an ordered line list out of the cart. A line
// drops once nothing of it is left; anything added after the order was drafted
// stays.
func (c *Cart) Settle(ordered []model.CartLine) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, o := range ordered {
		i := c.indexOf(o.ProductID)
		if i < 0 {
			continue
		}
		left := c.lines[i].Quantity - o.Quantity
		if left <= 0 {
			c.remove(o.ProductID)
			continue
		}
		c.lines[i].Quantity = left
	}
	c.log.Info("Cart settled after order", map[string]interface{}{
		"lines":       len(c.lines),
		"total_items": totalItems(c.lines),
	})
	c.metrics.CartMutation("settle", "ok")
	c.persist("settle")
}

// Lines returns a copy of the current lines in order.
func (c *Cart) Lines() []model.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyLines(c.lines)
}

// TotalItems is the sum of quantities.
func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalItems(c.lines)
}

// Subtotal is the sum of quantity * unit price.
func (c *Cart) Subtotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// Quantity returns the quantity held for id, zero if absent.
func (c *Cart) Quantity(id model.ProductID) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(id); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

func (c *Cart) indexOf(id model.ProductID) int {
	for i, l := range c.lines {
		if l.ProductID.Is(id) {
			return i
		}
	}
	return -1
}

func (c *Cart) remove(id model.ProductID) bool {
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i:i], c.lines[i+1:]...)
	c.log.Info("Cart item removed", map[string]interface{}{
		"product_id": id.String(),
	})
	return true
}

// persist writes the current lines. Must be called with c.mu held.
func (c *Cart) persist(op string) {
	if c.store == nil {
		return
	}

	payload, err := Encode(c.lines)
	if err != nil {
		c.persistenceWarning("Failed to encode cart snapshot", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.persistTimeout)
	defer cancel()

	if err := c.store.Set(ctx, c.key, payload); err != nil {
		c.persistenceWarning("Failed to persist cart snapshot after "+op, err)
		return
	}

	c.lastPayload = payload
}

func (c *Cart) persistenceWarning(msg string, err error) {
	c.log.Warn(msg, map[string]interface{}{
		"key":   c.key,
		"error": err.Error(),
	})
	c.metrics.PersistenceWarning()
}

func copyLines(lines []model.CartLine) []model.CartLine {
	if len(lines) == 0 {
		return nil
	}
	out := make([]model.CartLine, len(lines))
	copy(out, lines)
	return out
}

func totalItems(lines []model.CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
