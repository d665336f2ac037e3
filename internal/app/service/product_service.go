package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/achlys/whimsical-backend/internal/app/catalog"
	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/repository"
	"github.com/achlys/whimsical-backend/pkg/logger"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrNothingToImport = errors.New("no importable products")
	ErrInvalidProduct  = errors.New("invalid product")
)

// newProductID stands in for the id Normalize requires until the database
// assigns the real one.
const newProductID = "new"

// CatalogCache is the browsing catalog: a provider whose contents can be dropped.
type CatalogCache interface {
	catalog.Provider
	Invalidate(ctx context.Context) error
}

// ImportResult reports a bulk import. Rejected holds one error per skipped row.
type ImportResult struct {
	Imported int     `json:"imported"`
	Rejected []error `json:"-"`
}

type ProductService interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id model.ProductID) (model.Product, error)
	ImportProducts(ctx context.Context, rows []map[string]any) (ImportResult, error)
	CreateProduct(ctx context.Context, fields map[string]any) (model.Product, error)
	UpdateProduct(ctx context.Context, id model.ProductID, updates map[string]any) (model.Product, error)
	DeleteProduct(ctx context.Context, id model.ProductID) error
}

type productService struct {
	productRepo repository.ProductRepository
	catalog     CatalogCache
}

func NewProductService(productRepo repository.ProductRepository, cache CatalogCache) ProductService {
	return &productService{
		productRepo: productRepo,
		catalog:     cache,
	}
}

// ListProducts serves the cached catalog.
func (s *productService) ListProducts(ctx context.Context) ([]model.Product, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		logger.Error("Failed to list products", err)
		return nil, err
	}

	logger.Debug("Products listed", map[string]interface{}{
		"count": len(products),
	})
	return products, nil
}

func (s *productService) GetProduct(ctx context.Context, id model.ProductID) (model.Product, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		logger.Error("Failed to load catalog", err, map[string]interface{}{
			"product_id": id.String(),
		})
		return model.Product{}, err
	}

	product, ok := catalog.Find(products, id)
	if !ok {
		logger.Warn("Product not found", map[string]interface{}{
			"product_id": id.String(),
		})
		return model.Product{}, ErrProductNotFound
	}
	return product, nil
}

// ImportProducts normalizes every row and inserts the ones that pass. Rows
// without an id get a positional one since the database assigns ids anyway.
func (s *productService) ImportProducts(ctx context.Context, rows []map[string]any) (ImportResult, error) {
	logger.Info("Importing products", map[string]interface{}{
		"rows": len(rows),
	})

	var result ImportResult
	records := make([]model.ProductRecord, 0, len(rows))
	for i, row := range rows {
		if _, ok := row["id"]; !ok {
			row["id"] = fmt.Sprintf("row-%d", i+1)
		}
		product, err := catalog.Normalize(row)
		if err != nil {
			result.Rejected = append(result.Rejected, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		records = append(records, catalog.ToRecord(product))
	}

	if len(result.Rejected) > 0 {
		logger.Warn("Some product rows were rejected", map[string]interface{}{
			"rejected": len(result.Rejected),
			"error":    multierr.Combine(result.Rejected...).Error(),
		})
	}
	if len(records) == 0 {
		return result, ErrNothingToImport
	}

	if err := s.productRepo.CreateBatch(ctx, records); err != nil {
		logger.Error("Failed to import products", err, map[string]interface{}{
			"count": len(records),
		})
		return result, err
	}
	result.Imported = len(records)

	s.invalidate(ctx, "import")

	logger.Info("Products imported", map[string]interface{}{
		"imported": result.Imported,
		"rejected": len(result.Rejected),
	})
	return result, nil
}

// CreateProduct normalizes fields into a new catalog product.
func (s *productService) CreateProduct(ctx context.Context, fields map[string]any) (model.Product, error) {
	raw := catalog.Merge(fields, map[string]any{"id": newProductID})
	product, err := catalog.Normalize(raw)
	if err != nil {
		logger.Warn("Rejected new product", map[string]interface{}{
			"error": err.Error(),
		})
		return model.Product{}, fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}

	record := catalog.ToRecord(product)
	if err := s.productRepo.Create(ctx, &record); err != nil {
		return model.Product{}, err
	}
	s.invalidate(ctx, "create")

	logger.Info("Product created", map[string]interface{}{
		"product_id": record.ID,
		"name":       record.Name,
	})
	return catalog.FromRecord(record)
}

// UpdateProduct applies a partial update. Only the fields present in updates
// change; a null stock makes the product untracked.
func (s *productService) UpdateProduct(ctx context.Context, id model.ProductID, updates map[string]any) (model.Product, error) {
	existing, err := findProductRecord(ctx, s.productRepo, id)
	if err != nil {
		return model.Product{}, err
	}

	raw := catalog.Merge(catalog.Merge(catalog.RecordFields(*existing), updates), map[string]any{"id": existing.ID})
	product, err := catalog.Normalize(raw)
	if err != nil {
		logger.Warn("Rejected product update", map[string]interface{}{
			"product_id": existing.ID,
			"error":      err.Error(),
		})
		return model.Product{}, fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}

	record := catalog.ToRecord(product)
	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	if err := s.productRepo.Update(ctx, &record); err != nil {
		return model.Product{}, err
	}
	s.invalidate(ctx, "update")

	logger.Info("Product updated", map[string]interface{}{
		"product_id": record.ID,
		"stock":      product.Stock.String(),
	})
	return catalog.FromRecord(record)
}

func (s *productService) DeleteProduct(ctx context.Context, id model.ProductID) error {
	n, err := strconv.ParseUint(id.String(), 10, 64)
	if err != nil {
		return ErrProductNotFound
	}

	deleted, err := s.productRepo.Delete(ctx, uint(n))
	if err != nil {
		return err
	}
	if !deleted {
		logger.Warn("Product not found for deletion", map[string]interface{}{
			"product_id": id.String(),
		})
		return ErrProductNotFound
	}
	s.invalidate(ctx, "delete")

	logger.Info("Product deleted", map[string]interface{}{
		"product_id": id.String(),
	})
	return nil
}

func findProductRecord(ctx context.Context, repo repository.ProductRepository, id model.ProductID) (*model.ProductRecord, error) {
	n, err := strconv.ParseUint(id.String(), 10, 64)
	if err != nil {
		return nil, ErrProductNotFound
	}

	record, err := repo.FindByID(ctx, uint(n))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return record, nil
}

// invalidate drops the cached catalog so carts reconcile against the edit.
func (s *productService) invalidate(ctx context.Context, op string) {
	if err := s.catalog.Invalidate(ctx); err != nil {
		logger.Warn("Failed to invalidate catalog cache", map[string]interface{}{
			"op":    op,
			"error": err.Error(),
		})
	}
}
