package service

import (
	"context"
	"sync"

	"github.com/achlys/whimsical-backend/internal/app/model"
)

// PendingState is the phase of an optimistic status change.
type PendingState string

const (
	PendingApplied    PendingState = "applied"
	PendingConfirmed  PendingState = "confirmed"
	PendingRolledBack PendingState = "rolled_back"
)

// PendingStatus is an order status shown before the store confirmed it.
type PendingStatus struct {
	OrderID string            `json:"order_id"`
	From    model.OrderStatus `json:"from"`
	To      model.OrderStatus `json:"to"`

	mu    sync.Mutex
	state PendingState
	err   error
	done  chan struct{}
	prev  *PendingStatus
}

// State returns the current phase.
func (p *PendingStatus) State() PendingState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Wait blocks until the change is confirmed or rolled back and returns the
// confirmation error, if any.
func (p *PendingStatus) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OrderBoard holds optimistic status changes until the store answers.
// Changes to the same order are confirmed in the order they were applied.
type OrderBoard struct {
	mu      sync.Mutex
	pending map[string]*PendingStatus
}

func NewOrderBoard() *OrderBoard {
	return &OrderBoard{pending: make(map[string]*PendingStatus)}
}

// Apply records the new status immediately. from is the last known status.
func (b *OrderBoard) Apply(orderID string, from, to model.OrderStatus) *PendingStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.pending[orderID]
	if prev != nil {
		from = prev.To
	}
	p := &PendingStatus{
		OrderID: orderID,
		From:    from,
		To:      to,
		state:   PendingApplied,
		done:    make(chan struct{}),
		prev:    prev,
	}
	b.pending[orderID] = p
	return p
}

// Confirm finishes p with the result of writing it to the store. On error
// the order shows its previous status again.
func (b *OrderBoard) Confirm(p *PendingStatus, err error) {
	b.mu.Lock()
	if b.pending[p.OrderID] == p {
		if err != nil && p.prev != nil && p.prev.State() != PendingRolledBack {
			b.pending[p.OrderID] = p.prev
		} else {
			delete(b.pending, p.OrderID)
		}
	}
	b.mu.Unlock()

	p.mu.Lock()
	p.err = err
	if err != nil {
		p.state = PendingRolledBack
	} else {
		p.state = PendingConfirmed
	}
	p.prev = nil
	p.mu.Unlock()
	close(p.done)
}

// Status returns the optimistic status of an order, if one is pending.
func (b *OrderBoard) Status(orderID string) (model.OrderStatus, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pending[orderID]; ok {
		return p.To, true
	}
	return "", false
}

// Overlay replaces stored statuses with pending ones.
func (b *OrderBoard) Overlay(orders []model.OrderRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range orders {
		if p, ok := b.pending[orders[i].ID]; ok {
			orders[i].Status = p.To
		}
	}
}

// Forget drops any pending change for an order that no longer exists.
func (b *OrderBoard) Forget(orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, orderID)
}

// waitPrevious blocks until the change applied before p has finished.
func (p *PendingStatus) waitPrevious(ctx context.Context) {
	p.mu.Lock()
	prev := p.prev
	p.mu.Unlock()
	if prev != nil {
		_ = prev.Wait(ctx)
	}
}
