// Package pricing computes checkout totals and formats amounts for display.
package pricing

import (
	"strings"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CurrencyPlaces is the number of decimal places amounts are rounded to.
const CurrencyPlaces = 2

// Settings holds the store-wide values used in the quote.
type Settings struct {
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// Breakdown is a priced cart.
type Breakdown struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

// Quote prices a subtotal: tax = subtotal * rate rounded to the currency,
// total = subtotal + shipping + tax.
func Quote(subtotal decimal.Decimal, s Settings) Breakdown {
	tax := subtotal.Mul(s.TaxRate).Round(CurrencyPlaces)
	return Breakdown{
		Subtotal:    subtotal,
		ShippingFee: s.ShippingFee,
		Tax:         tax,
		Total:       subtotal.Add(s.ShippingFee).Add(tax),
	}
}

// Subtotal sums quantity * unit price over the lines.
func Subtotal(lines []model.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// Formatter renders amounts in a locale with a currency symbol prefix.
type Formatter struct {
	printer *message.Printer
	symbol  string
}

// NewFormatter builds a formatter for a BCP 47 locale, falling back to
// English when the tag does not parse.
func NewFormatter(locale, symbol string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{printer: message.NewPrinter(tag), symbol: symbol}
}

// Format renders d rounded to two places, e.g. "₱1,234.50".
func (f *Formatter) Format(d decimal.Decimal) string {
	rounded := d.Round(CurrencyPlaces)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	digits := f.printer.Sprint(number.Decimal(rounded.InexactFloat64(), number.Scale(CurrencyPlaces)))
	return sign + f.symbol + strings.TrimSpace(digits)
}
