package repository

import (
	"context"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/pkg/logger"
	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.OrderRecord) error
	FindByID(ctx context.Context, id string) (*model.OrderRecord, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.OrderRecord, error)
	FindAll(ctx context.Context) ([]model.OrderRecord, error)
	FindByEmail(ctx context.Context, email string) ([]model.OrderRecord, error)
	UpdateStatus(ctx context.Context, id string, status model.OrderStatus) error
	Delete(ctx context.Context, id string) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) preloadOrder(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	})
}

// Create inserts the order and its items in one transaction.
func (r *orderRepository) Create(ctx context.Context, order *model.OrderRecord) error {
	logger.Debug("Creating order in database", map[string]interface{}{
		"order_id": order.ID,
		"email":    order.Email,
		"total":    order.Total.String(),
		"items":    len(order.Items),
	})

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
	if err != nil {
		logger.Error("Failed to create order in database", err, map[string]interface{}{
			"order_id": order.ID,
			"email":    order.Email,
		})
		return err
	}

	logger.Debug("Order created in database", map[string]interface{}{
		"order_id": order.ID,
	})
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (*model.OrderRecord, error) {
	var order model.OrderRecord
	if err := r.preloadOrder(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		logger.Error("Failed to find order by ID in database", err, map[string]interface{}{
			"order_id": id,
		})
		return nil, err
	}
	return &order, nil
}

// FindByIdempotencyKey returns gorm.ErrRecordNotFound when the key is unused.
func (r *orderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*model.OrderRecord, error) {
	var order model.OrderRecord
	if err := r.preloadOrder(ctx).Where("idempotency_key = ?", key).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindAll(ctx context.Context) ([]model.OrderRecord, error) {
	var orders []model.OrderRecord
	if err := r.preloadOrder(ctx).Order("created_at DESC").Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders in database", err)
		return nil, err
	}

	logger.Debug("Orders found in database", map[string]interface{}{
		"count": len(orders),
	})
	return orders, nil
}

func (r *orderRepository) FindByEmail(ctx context.Context, email string) ([]model.OrderRecord, error) {
	var orders []model.OrderRecord
	if err := r.preloadOrder(ctx).Where("email = ?", email).Order("created_at DESC").Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders by email in database", err, map[string]interface{}{
			"email": email,
		})
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status model.OrderStatus) error {
	result := r.db.WithContext(ctx).Model(&model.OrderRecord{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		logger.Error("Failed to update order status in database", result.Error, map[string]interface{}{
			"order_id": id,
			"status":   status,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.Debug("Order status updated in database", map[string]interface{}{
		"order_id": id,
		"status":   status,
	})
	return nil
}

// Delete removes the order; items go with it through the cascade and an
// explicit delete for drivers without foreign key enforcement.
func (r *orderRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&model.OrderItem{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&model.OrderRecord{})
		if result.Error != nil {
			logger.Error("Failed to delete order in database", result.Error, map[string]interface{}{
				"order_id": id,
			})
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
