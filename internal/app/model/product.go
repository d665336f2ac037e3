package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductID is compared by its trimmed string form, so a snapshot that stored
// 7 and a catalog that reports "7" refer to the same product.
type ProductID string

func (id ProductID) String() string { return strings.TrimSpace(string(id)) }

// Is reports whether both ids name the same product.
func (id ProductID) Is(other ProductID) bool { return id.String() == other.String() }

// UnmarshalJSON accepts both JSON strings and JSON numbers.
func (id *ProductID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ProductID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ProductID(n.String())
	return nil
}

// Stock is the available inventory of a product. UnlimitedStock means the
// product is not inventory tracked.
type Stock int

const UnlimitedStock Stock = -1

// FiniteStock returns n as a tracked stock level, flooring negatives at zero.
func FiniteStock(n int) Stock {
	if n < 0 {
		return 0
	}
	return Stock(n)
}

func (s Stock) Unlimited() bool { return s < 0 }

// Allows reports whether quantity fits under the stock ceiling.
func (s Stock) Allows(quantity int) bool {
	return s.Unlimited() || quantity <= int(s)
}

// Clamp returns quantity capped at the stock ceiling.
func (s Stock) Clamp(quantity int) int {
	if s.Allows(quantity) {
		return quantity
	}
	return int(s)
}

func (s Stock) String() string {
	if s.Unlimited() {
		return "unlimited"
	}
	return strconv.Itoa(int(s))
}

// MarshalJSON encodes unlimited stock as null.
func (s Stock) MarshalJSON() ([]byte, error) {
	if s.Unlimited() {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(int(s))), nil
}

func (s *Stock) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = UnlimitedStock
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = FiniteStock(n)
	return nil
}

// Product is the canonical catalog entry seen by the cart, reconciliation and
// checkout. It is only ever built by the catalog normalization step.
type Product struct {
	ID             ProductID       `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Price          decimal.Decimal `json:"price"`
	Stock          Stock           `json:"stock"`
	Category       string          `json:"category,omitempty"`
	Image          string          `json:"image,omitempty"`
	IsNew          bool            `json:"is_new"`
	IsFeatured     bool            `json:"is_featured"`
	IsOnSale       bool            `json:"is_on_sale"`
	IsLimitedStock bool            `json:"is_limited_stock"`
}

func (p Product) InStock() bool {
	return p.Stock.Unlimited() || p.Stock > 0
}

// ProductRecord is the products table row. A NULL stock column means the
// product is not inventory tracked.
type ProductRecord struct {
	ID             uint            `gorm:"primarykey" json:"id"`
	Name           string          `gorm:"not null" json:"name"`
	Description    string          `gorm:"type:text" json:"description"`
	Price          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Stock          *int            `json:"stock"`
	Category       string          `gorm:"type:varchar(50);index" json:"category"`
	ImageURL       string          `json:"image_url"`
	IsNew          bool            `gorm:"default:false" json:"is_new"`
	IsFeatured     bool            `gorm:"default:false" json:"is_featured"`
	IsOnSale       bool            `gorm:"default:false" json:"is_on_sale"`
	IsLimitedStock bool            `gorm:"default:false" json:"is_limited_stock"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (ProductRecord) TableName() string {
	return "products"
}
