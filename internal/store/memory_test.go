package store

import (
	"context"
	"errors"
	"testing"

	"catalog-analytics-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemory(t *testing.T) (*MemoryStore, *domain.Category, *domain.Category) {
	t.Helper()
	ctx := context.Background()
	m := NewMemoryStore()

	electronics, err := m.CreateCategory(ctx, &domain.Category{Name: "Electronics"})
	require.NoError(t, err)
	books, err := m.CreateCategory(ctx, &domain.Category{Name: "Books"})
	require.NoError(t, err)

	for _, p := range []domain.Product{
		{Name: "Laptop", Price: decimal.RequireFromString("1000.00"), Stock: 3, CategoryID: electronics.ID},
		{Name: "Mouse", Description: PtrTo("Wireless laptop mouse"), Price: decimal.RequireFromString("25.50"), Stock: 0, CategoryID: electronics.ID},
		{Name: "Novel", Price: decimal.RequireFromString("12.00"), Stock: 40, CategoryID: books.ID},
	} {
		_, err := m.CreateProduct(ctx, &p)
		require.NoError(t, err)
	}
	return m, electronics, books
}

func TestMemoryStore_CreateProduct_UnknownCategory(t *testing.T) {
	m := NewMemoryStore()
	_, err := m.CreateProduct(context.Background(), &domain.Product{Name: "x", CategoryID: 9})
	assert.True(t, errors.Is(err, ErrCategoryNotFound))
}

func TestMemoryStore_FindProducts_FilterSortWindow(t *testing.T) {
	m, _, _ := seedMemory(t)
	ctx := context.Background()

	got, err := m.FindProducts(ctx, ProductQuery{
		Where:   Or(Contains(FieldName, "LAPTOP"), Contains(FieldDescription, "laptop")),
		OrderBy: []SortKey{{Field: FieldPrice, Desc: true}},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Laptop", got[0].Name)
	assert.Equal(t, "Mouse", got[1].Name)
	assert.Equal(t, "Electronics", got[1].CategoryName)

	page, err := m.FindProducts(ctx, ProductQuery{OrderBy: []SortKey{{Field: FieldID}}, Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Novel", page[0].Name)

	past, err := m.FindProducts(ctx, ProductQuery{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.NotNil(t, past)
	assert.Empty(t, past)

	negative, err := m.FindProducts(ctx, ProductQuery{Limit: 2, Offset: -4})
	require.NoError(t, err)
	assert.NotNil(t, negative)
	assert.Empty(t, negative)
}

func TestMemoryStore_AndComposition(t *testing.T) {
	m, electronics, _ := seedMemory(t)
	ctx := context.Background()

	a := Eq(FieldCategoryID, electronics.ID)
	b := Gt(FieldStock, 0)

	both, err := m.CountProducts(ctx, And(a, b))
	require.NoError(t, err)
	nested, err := m.CountProducts(ctx, And(And(a), And(b), Predicate{}))
	require.NoError(t, err)
	assert.Equal(t, both, nested)
	assert.Equal(t, 1, both)

	all, err := m.CountProducts(ctx, And())
	require.NoError(t, err)
	assert.Equal(t, 3, all)
}

func TestMemoryStore_DeleteCategoryCascades(t *testing.T) {
	m, electronics, books := seedMemory(t)
	ctx := context.Background()

	require.NoError(t, m.DeleteCategory(ctx, electronics.ID))

	n, err := m.CountProducts(ctx, Predicate{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = m.GetCategoryByID(ctx, electronics.ID)
	assert.True(t, errors.Is(err, ErrCategoryNotFound))
	_, err = m.GetCategoryByID(ctx, books.ID)
	assert.NoError(t, err)

	assert.True(t, errors.Is(m.DeleteCategory(ctx, electronics.ID), ErrCategoryNotFound))
}

func TestMemoryStore_WithinTx_RollsBackOnError(t *testing.T) {
	m, _, _ := seedMemory(t)
	ctx := context.Background()

	err := m.WithinTx(ctx, TxOptions{}, func(c Catalog) error {
		if _, err := c.SetStock(ctx, 1, 99); err != nil {
			return err
		}
		_, err := c.SetStock(ctx, 999, 1)
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductNotFound))

	p, err := m.GetProductByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Stock)
}

func TestMemoryStore_WithinTx_Commits(t *testing.T) {
	m, _, _ := seedMemory(t)
	ctx := context.Background()

	err := m.WithinTx(ctx, TxOptions{}, func(c Catalog) error {
		_, err := c.SetStock(ctx, 2, 8)
		return err
	})
	require.NoError(t, err)

	p, err := m.GetProductByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(8), p.Stock)
	assert.True(t, p.UpdatedAt.After(p.CreatedAt))
}

func TestMemoryStore_AggregateByCategory_IncludesEmptyCategory(t *testing.T) {
	m, _, _ := seedMemory(t)
	ctx := context.Background()
	_, err := m.CreateCategory(ctx, &domain.Category{Name: "Garden"})
	require.NoError(t, err)

	groups, err := m.AggregateByCategory(ctx, []Aggregate{
		{Name: "count", Func: AggCount},
		{Name: "value", Func: AggSum, Field: FieldStockValue},
		{Name: "avg", Func: AggAvg, Field: FieldPrice},
		{Name: "low", Func: AggCountIf, Where: Lt(FieldStock, 10)},
	})
	require.NoError(t, err)
	require.Len(t, groups, 3)

	electronics := groups[0]
	assert.Equal(t, int64(2), electronics.Values["count"].Decimal.IntPart())
	assert.True(t, electronics.Values["value"].Decimal.Equal(decimal.NewFromInt(3000)))
	assert.True(t, electronics.Values["avg"].Decimal.Equal(decimal.RequireFromString("512.75")))
	assert.Equal(t, int64(2), electronics.Values["low"].Decimal.IntPart())

	garden := groups[2]
	assert.Equal(t, "Garden", garden.CategoryName)
	assert.Equal(t, int64(0), garden.Values["count"].Decimal.IntPart())
	assert.False(t, garden.Values["value"].Valid)
	assert.False(t, garden.Values["avg"].Valid)
}

func TestPredicate_MatchNumericKinds(t *testing.T) {
	p := &domain.Product{Price: decimal.RequireFromString("9.99"), Stock: 5}
	assert.True(t, Lt(FieldPrice, 10).Match(p))
	assert.True(t, Gte(FieldPrice, decimal.RequireFromString("9.99")).Match(p))
	assert.True(t, Eq(FieldStock, int64(5)).Match(p))
	assert.False(t, Eq(FieldStock, "5").Match(p))
	assert.True(t, Gt(FieldStockValue, 49.9).Match(p))
}
