package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/repository"
	"github.com/achlys/whimsical-backend/pkg/logger"
)

var (
	ErrReviewNotFound = errors.New("review not found")
	ErrInvalidReview  = errors.New("invalid review")
)

// ReviewInput is a review as the shop page posts it. A blank name and a zero
// rating fall back to the guest defaults.
type ReviewInput struct {
	Name    string `json:"name"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type ReviewService interface {
	ListReviews(ctx context.Context, productID model.ProductID) ([]model.Review, error)
	AddReview(ctx context.Context, productID model.ProductID, input ReviewInput) (*model.Review, error)
	DeleteReview(ctx context.Context, id uint) error
}

type reviewService struct {
	reviewRepo  repository.ReviewRepository
	productRepo repository.ProductRepository
}

func NewReviewService(reviewRepo repository.ReviewRepository, productRepo repository.ProductRepository) ReviewService {
	return &reviewService{
		reviewRepo:  reviewRepo,
		productRepo: productRepo,
	}
}

// ListReviews returns the product's reviews, newest first. Unknown products
// simply have none.
func (s *reviewService) ListReviews(ctx context.Context, productID model.ProductID) ([]model.Review, error) {
	n, err := strconv.ParseUint(productID.String(), 10, 64)
	if err != nil {
		return []model.Review{}, nil
	}

	reviews, err := s.reviewRepo.FindByProduct(ctx, uint(n))
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

func (s *reviewService) AddReview(ctx context.Context, productID model.ProductID, input ReviewInput) (*model.Review, error) {
	comment := strings.TrimSpace(input.Comment)
	if comment == "" {
		return nil, ErrInvalidReview
	}
	rating := input.Rating
	if rating == 0 {
		rating = model.DefaultRating
	}
	if rating < model.MinRating || rating > model.MaxRating {
		return nil, ErrInvalidReview
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = model.GuestReviewer
	}

	product, err := findProductRecord(ctx, s.productRepo, productID)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			logger.Warn("Review for unknown product", map[string]interface{}{
				"product_id": productID.String(),
			})
		}
		return nil, err
	}

	review := &model.Review{
		ProductID: product.ID,
		Name:      name,
		Rating:    rating,
		Comment:   comment,
	}
	if err := s.reviewRepo.Create(ctx, review); err != nil {
		return nil, err
	}

	logger.Info("Review added", map[string]interface{}{
		"review_id":  review.ID,
		"product_id": product.ID,
		"rating":     rating,
	})
	return review, nil
}

func (s *reviewService) DeleteReview(ctx context.Context, id uint) error {
	deleted, err := s.reviewRepo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		logger.Warn("Review not found for deletion", map[string]interface{}{
			"review_id": id,
		})
		return ErrReviewNotFound
	}

	logger.Info("Review deleted", map[string]interface{}{
		"review_id": id,
	})
	return nil
}
