package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"catalog-analytics-service/internal/domain"
	"catalog-analytics-service/internal/store"
)

const (
	maxCategoryName = 100
	maxProductName  = 200
)

// SnapshotCache stores computed analytics between writes.
type SnapshotCache interface {
	// Load returns the snapshot of the current generation, or nil on a miss,
	// together with that generation.
	Load(ctx context.Context) (*domain.AnalyticsSnapshot, int64, error)
	// Store saves snap under gen. A snapshot stored under a stale generation is never loaded.
	Store(ctx context.Context, gen int64, snap *domain.AnalyticsSnapshot) error
	// Invalidate starts a new generation.
	Invalidate(ctx context.Context) error
}

// Service exposes the catalog query, analytics and bulk update operations.
type Service struct {
	store    store.Store
	cache    SnapshotCache
	log      *logrus.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService wires a Service. cache may be nil to disable analytics caching.
func NewService(st store.Store, cache SnapshotCache, logger *logrus.Logger) *Service {
	return &Service{
		store:    st,
		cache:    cache,
		log:      logger,
		validate: newValidator(),
		now:      time.Now,
	}
}

// invalidate drops cached analytics after a write. Cache failures are logged only.
func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.WithError(err).Warn("failed to invalidate analytics cache")
	}
}

// --- Queries ---

// ListProducts returns every product matching c, newest first.
func (s *Service) ListProducts(ctx context.Context, c Criteria) ([]domain.Product, error) {
	products, err := s.store.FindProducts(ctx, store.ProductQuery{Where: c.Predicate(), OrderBy: newestFirst})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// AdvancedSearch returns one page of the products matching c. The counts cover
// the whole filtered set and are read from the same snapshot as the page.
func (s *Service) AdvancedSearch(ctx context.Context, c Criteria, p Paging) (*domain.SearchPage, error) {
	where := c.Predicate()
	page := &domain.SearchPage{Results: []domain.Product{}}

	err := s.store.WithinTx(ctx, store.TxOptions{ReadOnly: true}, func(cat store.Catalog) error {
		var err error
		if page.Count, err = cat.CountProducts(ctx, where); err != nil {
			return err
		}
		if page.LowStockCount, err = cat.CountProducts(ctx, store.And(where, lowStockBand(DefaultLowStockThreshold))); err != nil {
			return err
		}
		if page.OutOfStockCount, err = cat.CountProducts(ctx, store.And(where, store.Eq(store.FieldStock, int64(0)))); err != nil {
			return err
		}
		if p.Offset() >= page.Count {
			return nil
		}
		page.Results, err = cat.FindProducts(ctx, store.ProductQuery{
			Where:   where,
			OrderBy: p.orderBy(),
			Limit:   p.PageSize,
			Offset:  p.Offset(),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("advanced search: %w", err)
	}
	return page, nil
}

// LowStock returns products with stock below threshold, lowest stock first.
func (s *Service) LowStock(ctx context.Context, threshold int64) ([]domain.Product, error) {
	if threshold < 0 {
		return nil, invalid("threshold", "must not be negative")
	}
	products, err := s.store.FindProducts(ctx, store.ProductQuery{
		Where:   store.Lt(store.FieldStock, threshold),
		OrderBy: byStockAsc,
	})
	if err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}
	return products, nil
}

// ProductsByCategory returns the products of one category, most expensive first.
func (s *Service) ProductsByCategory(ctx context.Context, categoryID int64) ([]domain.Product, error) {
	var products []domain.Product
	err := s.store.WithinTx(ctx, store.TxOptions{ReadOnly: true}, func(c store.Catalog) error {
		if _, err := c.GetCategoryByID(ctx, categoryID); err != nil {
			return err
		}
		var err error
		products, err = c.FindProducts(ctx, store.ProductQuery{
			Where:   store.Eq(store.FieldCategoryID, categoryID),
			OrderBy: []store.SortKey{{Field: store.FieldPrice, Desc: true}, {Field: store.FieldID}},
		})
		return err
	})
	if errors.Is(err, store.ErrCategoryNotFound) {
		return nil, categoryNotFound(categoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("products by category: %w", err)
	}
	return products, nil
}

// Analytics returns the inventory snapshot, served from the cache while no
// write has happened since it was computed.
func (s *Service) Analytics(ctx context.Context) (*domain.AnalyticsSnapshot, error) {
	var (
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		snap, g, err := s.cache.Load(ctx)
		switch {
		case err != nil:
			s.log.WithError(err).Warn("analytics cache unavailable, computing snapshot")
		case snap != nil:
			return snap, nil
		default:
			gen, cacheable = g, true
		}
	}

	var snap *domain.AnalyticsSnapshot
	err := s.store.WithinTx(ctx, store.TxOptions{ReadOnly: true}, func(c store.Catalog) error {
		var err error
		snap, err = computeSnapshot(ctx, c, s.now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}

	if cacheable {
		if err := s.cache.Store(ctx, gen, snap); err != nil {
			s.log.WithError(err).Warn("failed to cache analytics snapshot")
		}
	}
	return snap, nil
}

// --- Categories ---

// CategoryPatch holds the fields of a partial category update.
type CategoryPatch struct {
	Name        *string
	Description *string
}

func checkCategory(c *domain.Category) error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return invalid("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxCategoryName {
		return invalid("name", "must be at most %d characters", maxCategoryName)
	}
	c.Name = name
	return nil
}

func (s *Service) CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error) {
	if err := checkCategory(c); err != nil {
		return nil, err
	}
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	s.invalidate(ctx)
	return created, nil
}

func (s *Service) ListCategories(ctx context.Context, params store.ListCategoriesParams) ([]domain.Category, int, error) {
	categories, total, err := s.store.ListCategories(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}
	return categories, total, nil
}

func (s *Service) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	c, err := s.store.GetCategoryByID(ctx, id)
	if errors.Is(err, store.ErrCategoryNotFound) {
		return nil, categoryNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error) {
	if err := checkCategory(c); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateCategory(ctx, c)
	if errors.Is(err, store.ErrCategoryNotFound) {
		return nil, categoryNotFound(c.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	s.invalidate(ctx)
	return updated, nil
}

// PatchCategory applies the set fields of patch to an existing category.
func (s *Service) PatchCategory(ctx context.Context, id int64, patch CategoryPatch) (*domain.Category, error) {
	var updated *domain.Category
	err := s.store.WithinTx(ctx, store.TxOptions{}, func(c store.Catalog) error {
		current, err := c.GetCategoryByID(ctx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			current.Name = *patch.Name
		}
		if patch.Description != nil {
			current.Description = patch.Description
		}
		if err := checkCategory(current); err != nil {
			return err
		}
		updated, err = c.UpdateCategory(ctx, current)
		return err
	})
	if errors.Is(err, store.ErrCategoryNotFound) {
		return nil, categoryNotFound(id)
	}
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("patch category: %w", err)
	}
	s.invalidate(ctx)
	return updated, nil
}

// DeleteCategory removes the category together with its products.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	err := s.store.DeleteCategory(ctx, id)
	if errors.Is(err, store.ErrCategoryNotFound) {
		return categoryNotFound(id)
	}
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.invalidate(ctx)
	s.log.WithField("category_id", id).Info("category deleted with its products")
	return nil
}

// --- Products ---

// ProductPatch holds the fields of a partial product update.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int64
	CategoryID  *int64
}

func checkProduct(p *domain.Product) error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return invalid("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxProductName {
		return invalid("name", "must be at most %d characters", maxProductName)
	}
	if p.Price.IsNegative() {
		return invalid("price", "must not be negative")
	}
	if !p.Price.Equal(p.Price.Round(domain.PriceScale)) {
		return invalid("price", "must have at most %d decimal places", domain.PriceScale)
	}
	if p.Stock < 0 {
		return invalid("stock", "must not be negative")
	}
	if p.CategoryID <= 0 {
		return invalid("category_id", "is required")
	}
	p.Name = name
	return nil
}

// productWriteError maps store failures of a product write onto the core taxonomy.
func productWriteError(op string, p *domain.Product, err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return err
	case errors.Is(err, store.ErrProductNotFound):
		return productNotFound(p.ID)
	case errors.Is(err, store.ErrCategoryNotFound):
		return invalid("category_id", "category %d does not exist", p.CategoryID)
	case errors.Is(err, store.ErrConstraintViolation):
		return invalid("product", "%v", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	if err := checkProduct(p); err != nil {
		return nil, err
	}
	created, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return nil, productWriteError("create product", p, err)
	}
	s.invalidate(ctx)
	return created, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.store.GetProductByID(ctx, id)
	if errors.Is(err, store.ErrProductNotFound) {
		return nil, productNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	if err := checkProduct(p); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateProduct(ctx, p)
	if err != nil {
		return nil, productWriteError("update product", p, err)
	}
	s.invalidate(ctx)
	return updated, nil
}

// PatchProduct applies the set fields of patch to an existing product.
func (s *Service) PatchProduct(ctx context.Context, id int64, patch ProductPatch) (*domain.Product, error) {
	target := &domain.Product{ID: id}
	var updated *domain.Product
	err := s.store.WithinTx(ctx, store.TxOptions{}, func(c store.Catalog) error {
		current, err := c.GetProductByID(ctx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			current.Name = *patch.Name
		}
		if patch.Description != nil {
			current.Description = patch.Description
		}
		if patch.Price != nil {
			current.Price = *patch.Price
		}
		if patch.Stock != nil {
			current.Stock = *patch.Stock
		}
		if patch.CategoryID != nil {
			current.CategoryID = *patch.CategoryID
		}
		target = current
		if err := checkProduct(current); err != nil {
			return err
		}
		updated, err = c.UpdateProduct(ctx, current)
		return err
	})
	if err != nil {
		return nil, productWriteError("patch product", target, err)
	}
	s.invalidate(ctx)
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	err := s.store.DeleteProduct(ctx, id)
	if errors.Is(err, store.ErrProductNotFound) {
		return productNotFound(id)
	}
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidate(ctx)
	return nil
}
