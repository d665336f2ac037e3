package repository

import (
	"context"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const productBatchSize = 100

type ProductRepository interface {
	Create(ctx context.Context, product *model.ProductRecord) error
	CreateBatch(ctx context.Context, products []model.ProductRecord) error
	FindAll(ctx context.Context) ([]model.ProductRecord, error)
	FindByID(ctx context.Context, id uint) (*model.ProductRecord, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*model.ProductRecord, error)
	Update(ctx context.Context, product *model.ProductRecord) error
	Delete(ctx context.Context, id uint) (bool, error)
	DecrementStock(ctx context.Context, id uint, quantity int) (bool, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.ProductRecord) error {
	logger.Debug("Creating product in database", map[string]interface{}{
		"name":     product.Name,
		"category": product.Category,
	})

	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		logger.Error("Failed to create product in database", err, map[string]interface{}{
			"name": product.Name,
		})
		return err
	}

	logger.Debug("Product created in database", map[string]interface{}{
		"product_id": product.ID,
		"name":       product.Name,
	})
	return nil
}

// CreateBatch inserts products in chunks inside one transaction.
func (r *productRepository) CreateBatch(ctx context.Context, products []model.ProductRecord) error {
	if len(products) == 0 {
		return nil
	}

	logger.Debug("Creating product batch in database", map[string]interface{}{
		"count": len(products),
	})

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&products, productBatchSize).Error
	})
	if err != nil {
		logger.Error("Failed to create product batch in database", err, map[string]interface{}{
			"count": len(products),
		})
		return err
	}
	return nil
}

func (r *productRepository) FindAll(ctx context.Context) ([]model.ProductRecord, error) {
	var products []model.ProductRecord
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&products).Error; err != nil {
		logger.Error("Failed to find products in database", err)
		return nil, err
	}

	logger.Debug("Products found in database", map[string]interface{}{
		"count": len(products),
	})
	return products, nil
}

func (r *productRepository) FindByID(ctx context.Context, id uint) (*model.ProductRecord, error) {
	var product model.ProductRecord
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		logger.Error("Failed to find product by ID in database", err, map[string]interface{}{
			"product_id": id,
		})
		return nil, err
	}
	return &product, nil
}

// FindByIDForUpdate locks the row for the rest of the transaction.
func (r *productRepository) FindByIDForUpdate(ctx context.Context, id uint) (*model.ProductRecord, error) {
	var product model.ProductRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) Update(ctx context.Context, product *model.ProductRecord) error {
	logger.Debug("Updating product in database", map[string]interface{}{
		"product_id": product.ID,
		"name":       product.Name,
	})

	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		logger.Error("Failed to update product in database", err, map[string]interface{}{
			"product_id": product.ID,
		})
		return err
	}
	return nil
}

// Delete soft deletes the product. It reports false when no live row had id.
func (r *productRepository) Delete(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&model.ProductRecord{}, id)
	if result.Error != nil {
		logger.Error("Failed to delete product from database", result.Error, map[string]interface{}{
			"product_id": id,
		})
		return false, result.Error
	}

	logger.Debug("Product deleted from database", map[string]interface{}{
		"product_id": id,
		"deleted":    result.RowsAffected,
	})
	return result.RowsAffected > 0, nil
}

// DecrementStock takes quantity units from a tracked stock level. It reports
// false when the product is untracked or holds fewer units than requested.
func (r *productRepository) DecrementStock(ctx context.Context, id uint, quantity int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ProductRecord{}).
		Where("id = ? AND stock IS NOT NULL AND stock >= ?", id, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		logger.Error("Failed to update product stock", result.Error, map[string]interface{}{
			"product_id": id,
			"quantity":   quantity,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
