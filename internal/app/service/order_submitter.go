package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/repository"
	apperrors "github.com/achlys/whimsical-backend/internal/errors"
	"github.com/achlys/whimsical-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderSubmitter creates orders from checkout drafts. A draft whose
// idempotency key was already used returns the order created the first time.
type OrderSubmitter struct {
	db *gorm.DB
}

func NewOrderSubmitter(db *gorm.DB) *OrderSubmitter {
	return &OrderSubmitter{db: db}
}

func (s *OrderSubmitter) SubmitOrder(ctx context.Context, draft model.OrderDraft) (*model.OrderRecord, error) {
	logger.Info("Submitting order", map[string]interface{}{
		"idempotency_key": draft.IdempotencyKey,
		"email":           draft.Buyer.Email,
		"lines":           len(draft.Lines),
		"total":           draft.Total.String(),
	})

	orders := repository.NewOrderRepository(s.db)
	if existing, err := s.replay(ctx, orders, draft.IdempotencyKey); existing != nil || err != nil {
		return existing, err
	}

	order := newOrderRecord(draft)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products := repository.NewProductRepository(tx)
		for _, line := range draft.Lines {
			if err := reserveStock(ctx, products, line); err != nil {
				return err
			}
		}
		return repository.NewOrderRepository(tx).Create(ctx, order)
	})
	if err != nil {
		// a concurrent submission with the same key won the insert
		if existing, replayErr := s.replay(ctx, orders, draft.IdempotencyKey); existing != nil && replayErr == nil {
			return existing, nil
		}
		if _, ok := apperrors.As(err); !ok {
			logger.Error("Failed to create order", err, map[string]interface{}{
				"idempotency_key": draft.IdempotencyKey,
			})
		}
		return nil, err
	}

	logger.Info("Order created", map[string]interface{}{
		"order_id":        order.ID,
		"idempotency_key": draft.IdempotencyKey,
		"total":           order.Total.String(),
	})
	return order, nil
}

func (s *OrderSubmitter) replay(ctx context.Context, orders repository.OrderRepository, key string) (*model.OrderRecord, error) {
	if key == "" {
		return nil, nil
	}
	existing, err := orders.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	logger.Info("Order already submitted, returning existing record", map[string]interface{}{
		"order_id":        existing.ID,
		"idempotency_key": key,
	})
	return existing, nil
}

// reserveStock takes the line's units from a tracked product.
func reserveStock(ctx context.Context, products repository.ProductRepository, line model.CartLine) error {
	id, err := strconv.ParseUint(line.ProductID.String(), 10, 64)
	if err != nil {
		return apperrors.NotFound(apperrors.CartProductUnknown, fmt.Sprintf("%s is no longer available", line.Name)).
			WithDetails("product_id", line.ProductID.String())
	}

	product, err := products.FindByIDForUpdate(ctx, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Order creation failed: product not found", map[string]interface{}{
				"product_id": id,
			})
			return apperrors.NotFound(apperrors.CartProductUnknown, fmt.Sprintf("%s is no longer available", line.Name)).
				WithDetails("product_id", line.ProductID.String())
		}
		return err
	}
	if product.Stock == nil {
		return nil
	}

	ok, err := products.DecrementStock(ctx, product.ID, line.Quantity)
	if err != nil {
		return err
	}
	if !ok {
		logger.Warn("Order creation failed: insufficient product stock", map[string]interface{}{
			"product_id": id,
			"requested":  line.Quantity,
			"available":  *product.Stock,
		})
		return apperrors.StockConflict(fmt.Sprintf("Only %d of %s left", *product.Stock, product.Name)).
			WithDetails("product_id", line.ProductID.String()).
			WithDetails("available", *product.Stock)
	}
	return nil
}

func newOrderRecord(draft model.OrderDraft) *model.OrderRecord {
	items := make([]model.OrderItem, 0, len(draft.Lines))
	for _, l := range draft.Lines {
		items = append(items, model.OrderItem{
			ProductID: l.ProductID.String(),
			Name:      l.Name,
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
		})
	}

	var notes *string
	if draft.Notes != "" {
		n := draft.Notes
		notes = &n
	}

	key := draft.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	return &model.OrderRecord{
		ID:             uuid.NewString(),
		IdempotencyKey: key,
		Email:          draft.Buyer.Email,
		ShippingAddress: model.ShippingAddress{
			Name:    draft.Buyer.Name,
			Email:   draft.Buyer.Email,
			Phone:   draft.Buyer.Phone,
			Address: draft.Buyer.Address,
		},
		Items:         items,
		Subtotal:      draft.Subtotal,
		ShippingFee:   draft.ShippingFee,
		Tax:           draft.Tax,
		Total:         draft.Total,
		Notes:         notes,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusUnpaid,
		PaymentMethod: model.PaymentMethodManual,
	}
}
