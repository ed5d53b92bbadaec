package store

import (
	"context"

	"catalog-analytics-service/internal/domain"
)

// ListCategoriesParams holds parameters for listing categories.
// A zero Limit lists every category.
type ListCategoriesParams struct {
	Limit  int
	Offset int
}

// CategoryStorer defines the database operations for categories.
type CategoryStorer interface {
	CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error)
	ListCategories(ctx context.Context, params ListCategoriesParams) ([]domain.Category, int, error) // Returns categories and total count for pagination
	UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	// DeleteCategory removes the category and every product in it.
	DeleteCategory(ctx context.Context, id int64) error
}

// ProductQuery selects, orders and windows products.
// A zero Limit returns every matching row.
type ProductQuery struct {
	Where   Predicate
	OrderBy []SortKey
	Limit   int
	Offset  int
}

// ProductStorer defines the database operations for products.
type ProductStorer interface {
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	SetStock(ctx context.Context, productID int64, stock int64) (*domain.Product, error)

	FindProducts(ctx context.Context, q ProductQuery) ([]domain.Product, error)
	CountProducts(ctx context.Context, where Predicate) (int, error)
	// AggregateByCategory evaluates aggs once per category, including
	// categories that have no products.
	AggregateByCategory(ctx context.Context, aggs []Aggregate) ([]GroupResult, error)
}

// Catalog is the full record store surface.
type Catalog interface {
	CategoryStorer
	ProductStorer
}

// TxOptions configures WithinTx.
type TxOptions struct {
	// ReadOnly requests a consistent read-only snapshot.
	ReadOnly bool
}

// Store is a Catalog that can scope work to a single transaction.
type Store interface {
	Catalog
	// WithinTx runs fn against a Catalog bound to one transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, opts TxOptions, fn func(Catalog) error) error
	Close() error
}
