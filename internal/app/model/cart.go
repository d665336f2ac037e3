package model

import "github.com/shopspring/decimal"

// CartLine is one product-quantity pairing in a cart. Display fields are
// copied from the product when the line is created and never refreshed.
type CartLine struct {
	ProductID ProductID       `json:"id"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Category  string          `json:"category,omitempty"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// LineTotal is quantity * unit price.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// NewCartLine starts a line for product with the given quantity.
func NewCartLine(p Product, quantity int) CartLine {
	return CartLine{
		ProductID: ProductID(p.ID.String()),
		Name:      p.Name,
		Image:     p.Image,
		Category:  p.Category,
		UnitPrice: p.Price,
		Quantity:  quantity,
	}
}
