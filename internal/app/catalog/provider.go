package catalog

import (
	"context"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/repository"
	"github.com/achlys/whimsical-backend/pkg/logger"
)

// Provider lists the current catalog.
type Provider interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) ([]model.Product, error)

func (f ProviderFunc) ListProducts(ctx context.Context) ([]model.Product, error) {
	return f(ctx)
}

// RepositoryProvider reads the catalog from the products table.
type RepositoryProvider struct {
	repo repository.ProductRepository
}

func NewRepositoryProvider(repo repository.ProductRepository) *RepositoryProvider {
	return &RepositoryProvider{repo: repo}
}

func (p *RepositoryProvider) ListProducts(ctx context.Context) ([]model.Product, error) {
	records, err := p.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	products := make([]model.Product, 0, len(records))
	for _, r := range records {
		product, err := FromRecord(r)
		if err != nil {
			logger.Warn("Skipping malformed product row", map[string]interface{}{
				"product_id": r.ID,
				"error":      err.Error(),
			})
			continue
		}
		products = append(products, product)
	}
	return products, nil
}

// Index maps products by their normalized id.
func Index(products []model.Product) map[string]model.Product {
	idx := make(map[string]model.Product, len(products))
	for _, p := range products {
		idx[p.ID.String()] = p
	}
	return idx
}

// Find returns the product with the given id.
func Find(products []model.Product, id model.ProductID) (model.Product, bool) {
	for _, p := range products {
		if p.ID.Is(id) {
			return p, true
		}
	}
	return model.Product{}, false
}
