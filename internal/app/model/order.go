package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string   // fulfillment state
type PaymentStatus string // payment state

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"

	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"

	PaymentMethodManual = "manual"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// BuyerInfo holds the checkout contact fields. All four are required.
type BuyerInfo struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address" validate:"required"`
}

// OrderDraft is the assembled, not yet submitted order. It is never mutated
// after it is handed to the order service.
type OrderDraft struct {
	IdempotencyKey string          `json:"idempotency_key"`
	Buyer          BuyerInfo       `json:"shipping_address"`
	Notes          string          `json:"notes,omitempty"`
	Lines          []CartLine      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingFee    decimal.Decimal `json:"shipping_fee"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
}

// ShippingAddress is stored inline on the orders table.
type ShippingAddress struct {
	Name    string `gorm:"not null" json:"name"`
	Email   string `gorm:"not null" json:"email"`
	Phone   string `gorm:"not null" json:"phone"`
	Address string `gorm:"type:text;not null" json:"address"`
}

// OrderRecord is a confirmed order as stored by the order service.
type OrderRecord struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	IdempotencyKey  string          `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	Email           string          `gorm:"not null;index" json:"email"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	ShippingFee     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping_fee"`
	Tax             decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Notes           *string         `gorm:"type:text" json:"notes"`
	Status          OrderStatus     `gorm:"type:varchar(20);default:'pending'" json:"status"`
	PaymentStatus   PaymentStatus   `gorm:"type:varchar(20);default:'unpaid'" json:"payment_status"`
	PaymentMethod   string          `gorm:"type:varchar(20);default:'manual'" json:"payment_method"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (OrderRecord) TableName() string {
	return "orders"
}

// OrderItem echoes one cart line on a stored order.
type OrderItem struct {
	ID        uint            `gorm:"primarykey" json:"-"`
	OrderID   string          `gorm:"type:varchar(36);not null;index" json:"-"`
	ProductID string          `gorm:"not null" json:"product_id"`
	Name      string          `gorm:"not null" json:"name"`
	Quantity  int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
