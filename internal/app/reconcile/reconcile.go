// Package reconcile re-checks cart lines against the latest catalog. It never
// mutates its inputs and has no side effects; callers apply the result.
package reconcile

import (
	"fmt"

	"github.com/achlys/whimsical-backend/internal/app/catalog"
	"github.com/achlys/whimsical-backend/internal/app/model"
)

type Kind string

const (
	KindRemoved Kind = "removed"
	KindClamped Kind = "clamped"
)

const (
	ReasonNoLongerAvailable = "no longer available"
	ReasonOutOfStock        = "out of stock"
	ReasonInsufficientStock = "insufficient stock"
)

// Adjustment records one line the reconciliation changed.
type Adjustment struct {
	ProductID model.ProductID `json:"product_id"`
	Name      string          `json:"name"`
	Kind      Kind            `json:"kind"`
	Reason    string          `json:"reason"`
	From      int             `json:"from"`
	To        int             `json:"to"`
}

// Notice is the shopper facing sentence for the adjustment.
func (a Adjustment) Notice() string {
	switch a.Kind {
	case KindClamped:
		return fmt.Sprintf("%s: quantity reduced from %d to %d (%s)", a.Name, a.From, a.To, a.Reason)
	default:
		return fmt.Sprintf("%s was removed from your cart (%s)", a.Name, a.Reason)
	}
}

// Outcome is the reconciled line list plus what changed.
type Outcome struct {
	Lines       []model.CartLine `json:"lines"`
	Adjustments []Adjustment     `json:"adjustments"`
}

// Changed reports whether any line was dropped or clamped.
func (o Outcome) Changed() bool { return len(o.Adjustments) > 0 }

// Notices lists the shopper facing sentence of every adjustment.
func (o Outcome) Notices() []string {
	notices := make([]string, 0, len(o.Adjustments))
	for _, a := range o.Adjustments {
		notices = append(notices, a.Notice())
	}
	return notices
}

// Reconcile checks every line against products. Lines whose product is gone
// or out of stock are dropped; lines above a finite stock are clamped to it.
// Unaffected lines pass through unchanged and in order.
func Reconcile(lines []model.CartLine, products []model.Product) Outcome {
	idx := catalog.Index(products)
	out := Outcome{
		Lines:       make([]model.CartLine, 0, len(lines)),
		Adjustments: []Adjustment{},
	}

	for _, line := range lines {
		product, ok := idx[line.ProductID.String()]
		if !ok {
			out.Adjustments = append(out.Adjustments, removed(line, ReasonNoLongerAvailable))
			continue
		}

		if product.Stock.Allows(line.Quantity) {
			out.Lines = append(out.Lines, line)
			continue
		}

		if product.Stock <= 0 {
			out.Adjustments = append(out.Adjustments, removed(line, ReasonOutOfStock))
			continue
		}

		clamped := line
		clamped.Quantity = int(product.Stock)
		out.Lines = append(out.Lines, clamped)
		out.Adjustments = append(out.Adjustments, Adjustment{
			ProductID: line.ProductID,
			Name:      line.Name,
			Kind:      KindClamped,
			Reason:    ReasonInsufficientStock,
			From:      line.Quantity,
			To:        clamped.Quantity,
		})
	}
	return out
}

func removed(line model.CartLine, reason string) Adjustment {
	return Adjustment{
		ProductID: line.ProductID,
		Name:      line.Name,
		Kind:      KindRemoved,
		Reason:    reason,
		From:      line.Quantity,
		To:        0,
	}
}
