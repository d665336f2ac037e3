package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/pkg/kvstore"
	"github.com/achlys/whimsical-backend/pkg/logger"
)

// CacheKey is the key-value store key holding the cached catalog.
const CacheKey = "whimsical_cache_products"

type cacheEntry struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Products  []model.Product `json:"products"`
}

// CachedProvider serves the catalog from the key-value store while it is
// younger than the TTL. When a refresh fails it falls back to the stale copy.
type CachedProvider struct {
	source Provider
	store  kvstore.Store
	ttl    time.Duration
	now    func() time.Time
	mu     sync.Mutex
}

func NewCachedProvider(source Provider, store kvstore.Store, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		source: source,
		store:  store,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *CachedProvider) ListProducts(ctx context.Context) ([]model.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, hasCache := c.read(ctx)
	if hasCache && c.now().Sub(cached.FetchedAt) < c.ttl {
		return cached.Products, nil
	}

	products, err := c.source.ListProducts(ctx)
	if err != nil {
		if hasCache {
			logger.Warn("Catalog refresh failed, serving stale cache", map[string]interface{}{
				"error":      err.Error(),
				"fetched_at": cached.FetchedAt,
			})
			return cached.Products, nil
		}
		return nil, err
	}

	c.write(ctx, cacheEntry{FetchedAt: c.now(), Products: products})
	return products, nil
}

// Invalidate drops the cached copy so the next call fetches from the source.
func (c *CachedProvider) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Remove(ctx, CacheKey)
}

func (c *CachedProvider) read(ctx context.Context) (cacheEntry, bool) {
	raw, err := c.store.Get(ctx, CacheKey)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			logger.Warn("Failed to read catalog cache", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return cacheEntry{}, false
	}

	var entry cacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		logger.Warn("Discarding corrupt catalog cache", map[string]interface{}{
			"error": err.Error(),
		})
		return cacheEntry{}, false
	}
	return entry, true
}

func (c *CachedProvider) write(ctx context.Context, entry cacheEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		logger.Warn("Failed to encode catalog cache", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if err := c.store.Set(ctx, CacheKey, string(data)); err != nil {
		logger.Warn("Failed to write catalog cache", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
