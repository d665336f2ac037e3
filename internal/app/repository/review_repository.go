package repository

import (
	"context"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/pkg/logger"
	"gorm.io/gorm"
)

type ReviewRepository interface {
	Create(ctx context.Context, review *model.Review) error
	FindByProduct(ctx context.Context, productID uint) ([]model.Review, error)
	Delete(ctx context.Context, id uint) (bool, error)
}

type reviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(ctx context.Context, review *model.Review) error {
	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		logger.Error("Failed to create review in database", err, map[string]interface{}{
			"product_id": review.ProductID,
		})
		return err
	}

	logger.Debug("Review created in database", map[string]interface{}{
		"review_id":  review.ID,
		"product_id": review.ProductID,
	})
	return nil
}

// FindByProduct returns a product's reviews, newest first.
func (r *reviewRepository) FindByProduct(ctx context.Context, productID uint) ([]model.Review, error) {
	var reviews []model.Review
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC, id DESC").
		Find(&reviews).Error
	if err != nil {
		logger.Error("Failed to find reviews in database", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, err
	}
	return reviews, nil
}

// Delete reports false when no review had id.
func (r *reviewRepository) Delete(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&model.Review{}, id)
	if result.Error != nil {
		logger.Error("Failed to delete review from database", result.Error, map[string]interface{}{
			"review_id": id,
		})
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
