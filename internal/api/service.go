package api

import (
	"context"

	"catalog-analytics-service/internal/catalog"
	"catalog-analytics-service/internal/domain"
	"catalog-analytics-service/internal/store"
)

// CatalogService is the core surface the transports call.
type CatalogService interface {
	CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error)
	ListCategories(ctx context.Context, params store.ListCategoriesParams) ([]domain.Category, int, error)
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	UpdateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error)
	PatchCategory(ctx context.Context, id int64, patch catalog.CategoryPatch) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	ProductsByCategory(ctx context.Context, categoryID int64) ([]domain.Product, error)

	CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	UpdateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error)
	PatchProduct(ctx context.Context, id int64, patch catalog.ProductPatch) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	ListProducts(ctx context.Context, c catalog.Criteria) ([]domain.Product, error)
	AdvancedSearch(ctx context.Context, c catalog.Criteria, p catalog.Paging) (*domain.SearchPage, error)
	LowStock(ctx context.Context, threshold int64) ([]domain.Product, error)
	Analytics(ctx context.Context) (*domain.AnalyticsSnapshot, error)
	BulkUpdateStock(ctx context.Context, updates []catalog.StockUpdate) (*catalog.BulkResult, error)
}

var _ CatalogService = (*catalog.Service)(nil)
