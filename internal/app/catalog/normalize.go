// Package catalog is the boundary between product sources and the cart. Every
// product the cart, reconciliation or checkout sees has passed through Normalize.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrMissingID    = errors.New("catalog: product has no id")
	ErrMissingName  = errors.New("catalog: product has no name")
	ErrInvalidPrice = errors.New("catalog: product price is missing or invalid")
)

// Accepted spellings per canonical field, in lookup order.
var (
	idKeys          = []string{"id", "product_id", "productId"}
	nameKeys        = []string{"name", "title"}
	descriptionKeys = []string{"description", "desc"}
	priceKeys       = []string{"price", "unit_price", "unitPrice"}
	stockKeys       = []string{"stock", "stock_quantity", "stockQuantity", "inventory"}
	categoryKeys    = []string{"category"}
	imageKeys       = []string{"image", "image_url", "imageUrl"}
	isNewKeys       = []string{"is_new", "isNew"}
	isFeaturedKeys  = []string{"is_featured", "isFeatured"}
	isOnSaleKeys    = []string{"is_on_sale", "isOnSale"}
	isLimitedKeys   = []string{"is_limited_stock", "isLimitedStock"}

	fieldKeys = [][]string{
		idKeys, nameKeys, descriptionKeys, priceKeys, stockKeys, categoryKeys,
		imageKeys, isNewKeys, isFeaturedKeys, isOnSaleKeys, isLimitedKeys,
	}
)

// Normalize turns a loosely shaped product map into the canonical Product.
// Names are put in Unicode NFC so composed and decomposed spellings compare
// equal. A missing or null stock means unlimited; negative or unparsable stock is 0.
func Normalize(raw map[string]any) (model.Product, error) {
	id := stringField(raw, idKeys)
	if id == "" {
		return model.Product{}, ErrMissingID
	}
	name := stringField(raw, nameKeys)
	if name == "" {
		return model.Product{}, fmt.Errorf("%w: id %s", ErrMissingName, id)
	}

	priceValue, _ := lookup(raw, priceKeys)
	price, ok := toDecimal(priceValue)
	if !ok || price.IsNegative() {
		return model.Product{}, fmt.Errorf("%w: id %s", ErrInvalidPrice, id)
	}

	stockValue, _ := lookup(raw, stockKeys)

	return model.Product{
		ID:             model.ProductID(id),
		Name:           norm.NFC.String(name),
		Description:    stringField(raw, descriptionKeys),
		Price:          price,
		Stock:          toStock(stockValue),
		Category:       stringField(raw, categoryKeys),
		Image:          stringField(raw, imageKeys),
		IsNew:          boolField(raw, isNewKeys),
		IsFeatured:     boolField(raw, isFeaturedKeys),
		IsOnSale:       boolField(raw, isOnSaleKeys),
		IsLimitedStock: boolField(raw, isLimitedKeys),
	}, nil
}

// NormalizeAll normalizes every entry, skipping the ones that fail. The
// returned errors line up with the skipped entries.
func NormalizeAll(raws []map[string]any) ([]model.Product, []error) {
	products := make([]model.Product, 0, len(raws))
	var errs []error
	for i, raw := range raws {
		p, err := Normalize(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		products = append(products, p)
	}
	return products, errs
}

// FromRecord normalizes a products table row.
func FromRecord(r model.ProductRecord) (model.Product, error) {
	return Normalize(RecordFields(r))
}

// RecordFields is the raw map form of a row, as Normalize reads it. A NULL
// stock column is left out.
func RecordFields(r model.ProductRecord) map[string]any {
	raw := map[string]any{
		"id":               r.ID,
		"name":             r.Name,
		"description":      r.Description,
		"price":            r.Price,
		"category":         r.Category,
		"image_url":        r.ImageURL,
		"is_new":           r.IsNew,
		"is_featured":      r.IsFeatured,
		"is_on_sale":       r.IsOnSale,
		"is_limited_stock": r.IsLimitedStock,
	}
	if r.Stock != nil {
		raw["stock"] = *r.Stock
	}
	return raw
}

// Merge overlays updates on base. An update under any spelling of a field
// replaces every spelling of that field in base, so {"stock_quantity": 2}
// overrides a stored "stock". Neither input is modified.
func Merge(base, updates map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(updates))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range updates {
		for _, alias := range aliasesOf(k) {
			delete(out, alias)
		}
		out[k] = v
	}
	return out
}

func aliasesOf(key string) []string {
	for _, keys := range fieldKeys {
		for _, k := range keys {
			if k == key {
				return keys
			}
		}
	}
	return nil
}

// ToRecord converts a normalized product into an insertable row. The id is
// left for the database to assign.
func ToRecord(p model.Product) model.ProductRecord {
	var stock *int
	if !p.Stock.Unlimited() {
		n := int(p.Stock)
		stock = &n
	}
	return model.ProductRecord{
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		Stock:          stock,
		Category:       p.Category,
		ImageURL:       p.Image,
		IsNew:          p.IsNew,
		IsFeatured:     p.IsFeatured,
		IsOnSale:       p.IsOnSale,
		IsLimitedStock: p.IsLimitedStock,
	}
}

func lookup(raw map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func stringField(raw map[string]any, keys []string) string {
	v, ok := lookup(raw, keys)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func boolField(raw map[string]any, keys []string) bool {
	v, _ := lookup(raw, keys)
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	}
	return decimal.Zero, false
}

func toStock(v any) model.Stock {
	switch t := v.(type) {
	case nil:
		return model.UnlimitedStock
	case int:
		return model.FiniteStock(t)
	case int64:
		return model.FiniteStock(int(t))
	case float64:
		if math.IsInf(t, 1) {
			return model.UnlimitedStock
		}
		if math.IsNaN(t) {
			return 0
		}
		return model.FiniteStock(int(math.Floor(t)))
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return model.FiniteStock(int(n))
		}
		if f, err := t.Float64(); err == nil {
			return toStock(f)
		}
		return 0
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return model.UnlimitedStock
		}
		if n, err := strconv.Atoi(s); err == nil {
			return model.FiniteStock(n)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return toStock(f)
		}
		return 0
	case decimal.Decimal:
		return model.FiniteStock(int(t.IntPart()))
	}
	return 0
}
