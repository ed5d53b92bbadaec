package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"catalog-analytics-service/internal/catalog"
	"catalog-analytics-service/internal/domain"
	"catalog-analytics-service/internal/store"
)

// MockCatalogService is a mock implementation of CatalogService.
type MockCatalogService struct {
	mock.Mock
}

var _ CatalogService = (*MockCatalogService)(nil)

func (m *MockCatalogService) category(args mock.Arguments) (*domain.Category, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCatalogService) product(args mock.Arguments) (*domain.Product, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockCatalogService) products(args mock.Arguments) ([]domain.Product, error) {
	var products []domain.Product
	if arg0 := args.Get(0); arg0 != nil {
		products = arg0.([]domain.Product)
	}
	return products, args.Error(1)
}

func (m *MockCatalogService) CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error) {
	return m.category(m.Called(ctx, c))
}

func (m *MockCatalogService) ListCategories(ctx context.Context, params store.ListCategoriesParams) ([]domain.Category, int, error) {
	args := m.Called(ctx, params)
	var categories []domain.Category
	if arg0 := args.Get(0); arg0 != nil {
		categories = arg0.([]domain.Category)
	}
	return categories, args.Int(1), args.Error(2)
}

func (m *MockCatalogService) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	return m.category(m.Called(ctx, id))
}

func (m *MockCatalogService) UpdateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error) {
	return m.category(m.Called(ctx, c))
}

func (m *MockCatalogService) PatchCategory(ctx context.Context, id int64, patch catalog.CategoryPatch) (*domain.Category, error) {
	return m.category(m.Called(ctx, id, patch))
}

func (m *MockCatalogService) DeleteCategory(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCatalogService) ProductsByCategory(ctx context.Context, categoryID int64) ([]domain.Product, error) {
	return m.products(m.Called(ctx, categoryID))
}

func (m *MockCatalogService) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	return m.product(m.Called(ctx, p))
}

func (m *MockCatalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return m.product(m.Called(ctx, id))
}

func (m *MockCatalogService) UpdateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	return m.product(m.Called(ctx, p))
}

func (m *MockCatalogService) PatchProduct(ctx context.Context, id int64, patch catalog.ProductPatch) (*domain.Product, error) {
	return m.product(m.Called(ctx, id, patch))
}

func (m *MockCatalogService) DeleteProduct(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCatalogService) ListProducts(ctx context.Context, c catalog.Criteria) ([]domain.Product, error) {
	return m.products(m.Called(ctx, c))
}

func (m *MockCatalogService) AdvancedSearch(ctx context.Context, c catalog.Criteria, p catalog.Paging) (*domain.SearchPage, error) {
	args := m.Called(ctx, c, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SearchPage), args.Error(1)
}

func (m *MockCatalogService) LowStock(ctx context.Context, threshold int64) ([]domain.Product, error) {
	return m.products(m.Called(ctx, threshold))
}

func (m *MockCatalogService) Analytics(ctx context.Context) (*domain.AnalyticsSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnalyticsSnapshot), args.Error(1)
}

func (m *MockCatalogService) BulkUpdateStock(ctx context.Context, updates []catalog.StockUpdate) (*catalog.BulkResult, error) {
	args := m.Called(ctx, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.BulkResult), args.Error(1)
}
