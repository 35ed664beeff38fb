package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/domain"
	"posledger/pkg/logger"
)

// ErrCacheMiss is returned by Cache implementations when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the read-through cache contract for product snapshots.
// Implementations live in infrastructure (Redis).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Service provides catalog reads with an optional cache in front.
// Cached snapshots are for display only; transactional stock checks go
// through the ledger with row locks.
type Service struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
}

// NewService creates a catalog service. cache may be nil.
func NewService(repo Repository, cache Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
	}
}

func cacheKey(productID id.ID) string {
	return "product:" + productID.String()
}

// Create validates and inserts a new product.
func (s *Service) Create(ctx context.Context, product *entity.Product) error {
	if err := product.Validate(ctx); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	logger.Info(ctx, "product created", "id", product.ID, "sku", product.SKU)
	return nil
}

// GetByID retrieves a product, serving from cache when possible.
func (s *Service) GetByID(ctx context.Context, productID id.ID) (*entity.Product, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey(productID)); err == nil {
			var product entity.Product
			if err := json.Unmarshal(data, &product); err == nil {
				return &product, nil
			}
			// Corrupt entry, fall through to the repository
			_ = s.cache.Delete(ctx, cacheKey(productID))
		}
	}

	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	s.fillCache(ctx, product)
	return product, nil
}

// GetBySKU retrieves a product by SKU (uncached).
func (s *Service) GetBySKU(ctx context.Context, sku string) (*entity.Product, error) {
	return s.repo.GetBySKU(ctx, sku)
}

// GetByBarcode retrieves a product by barcode (uncached).
func (s *Service) GetByBarcode(ctx context.Context, barcode string) (*entity.Product, error) {
	return s.repo.GetByBarcode(ctx, barcode)
}

// Update validates and saves catalog fields, then invalidates the cache.
func (s *Service) Update(ctx context.Context, product *entity.Product) error {
	if err := product.Validate(ctx); err != nil {
		return err
	}

	product.Touch()
	if err := s.repo.Update(ctx, product); err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	s.invalidate(ctx, product.ID)
	return nil
}

// List retrieves products with filtering and pagination.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*entity.Product], error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// ListLowStock returns products needing replenishment.
func (s *Service) ListLowStock(ctx context.Context) ([]*entity.Product, error) {
	return s.repo.ListLowStock(ctx)
}

// Invalidate drops cached snapshots after stock changes. Called outside
// the transaction; a stale snapshot only affects display.
func (s *Service) Invalidate(ctx context.Context, productIDs ...id.ID) {
	for _, productID := range productIDs {
		s.invalidate(ctx, productID)
	}
}

func (s *Service) fillCache(ctx context.Context, product *entity.Product) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(product)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(product.ID), data, s.ttl); err != nil {
		logger.Debug(ctx, "product cache set failed", "id", product.ID, "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context, productID id.ID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(productID)); err != nil {
		logger.Debug(ctx, "product cache invalidation failed", "id", productID, "error", err)
	}
}
