package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"catalog-analytics-service/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productCols = []string{"id", "name", "description", "price", "stock", "category_id", "name", "created_at", "updated_at"}

func TestSQLStore_GetProductByID(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	mock.ExpectQuery(regexp.QuoteMeta(productSelect + ` WHERE p.id = $1`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(int64(3), "Laptop", nil, "999.99", int64(4), int64(1), "Electronics", now, now))

	p, err := store.GetProductByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Laptop", p.Name)
	assert.Equal(t, "Electronics", p.CategoryName)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("999.99")))
	assert.Nil(t, p.Description)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_SetStock(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE products SET stock = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`)).
		WithArgs(int64(15), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(productSelect + ` WHERE p.id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(int64(1), "Mouse", "Wireless", "25.00", int64(15), int64(1), "Electronics", now, now))

	p, err := store.SetStock(context.Background(), 1, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(15), p.Stock)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_SetStock_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE products SET stock = $1`)).
		WithArgs(int64(1), int64(999)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.SetStock(context.Background(), 999, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_SetStock_NegativeSkipsDatabase(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	_, err := store.SetStock(context.Background(), 1, -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConstraintViolation))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_UpdateProduct_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	product := &domain.Product{ID: 42, Name: "Ghost", Price: decimal.NewFromInt(1), Stock: 1, CategoryID: 1}
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE products
SET name = $1, description = $2, price = $3, stock = $4, category_id = $5, updated_at = CURRENT_TIMESTAMP
WHERE id = $6`)).
		WithArgs(product.Name, nil, product.Price, product.Stock, product.CategoryID, product.ID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateProduct(context.Background(), product)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_DeleteProduct_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM products WHERE id = $1`)).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteProduct(context.Background(), 5)
	assert.True(t, errors.Is(err, ErrProductNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_FindProducts_CompilesQuery(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	q := ProductQuery{
		Where: And(
			Or(Contains(FieldName, "Lap"), Contains(FieldDescription, "lap")),
			Gte(FieldPrice, decimal.NewFromInt(10)),
		),
		OrderBy: []SortKey{{Field: FieldPrice}, {Field: FieldID, Desc: true}},
		Limit:   12,
		Offset:  24,
	}

	mock.ExpectQuery(regexp.QuoteMeta(productSelect +
		` WHERE ((LOWER(p.name) LIKE $1 OR LOWER(COALESCE(p.description, '')) LIKE $2) AND p.price >= $3)` +
		` ORDER BY p.price ASC, p.id DESC LIMIT $4 OFFSET $5`)).
		WithArgs("%lap%", "%lap%", decimal.NewFromInt(10), 12, 24).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(int64(8), "Laptop", nil, "1200.00", int64(2), int64(1), "Electronics", now, now))

	products, err := store.FindProducts(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, int64(8), products[0].ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_FindProducts_NoFilter(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(productSelect + ` ORDER BY p.created_at DESC`)).
		WillReturnRows(sqlmock.NewRows(productCols))

	products, err := store.FindProducts(context.Background(), ProductQuery{
		OrderBy: []SortKey{{Field: FieldCreatedAt, Desc: true}},
	})
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_CountProducts(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM products p JOIN categories c ON c.id = p.category_id WHERE (p.stock > $1 AND p.stock <= $2)`)).
		WithArgs(0, 10).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := store.CountProducts(context.Background(), And(Gt(FieldStock, 0), Lte(FieldStock, 10)))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_AggregateByCategory(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	aggs := []Aggregate{
		{Name: "count", Func: AggCount},
		{Name: "value", Func: AggSum, Field: FieldStockValue},
		{Name: "avg_price", Func: AggAvg, Field: FieldPrice},
		{Name: "low", Func: AggCountIf, Where: Lt(FieldStock, 10)},
	}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT c.id, c.name, COUNT(p.id) AS agg_0, SUM((p.stock * p.price)) AS agg_1, AVG(p.price) AS agg_2, SUM(CASE WHEN p.stock < $1 THEN 1 ELSE 0 END) AS agg_3
FROM categories c LEFT JOIN products p ON p.category_id = c.id
GROUP BY c.id, c.name
ORDER BY c.id ASC`)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "agg_0", "agg_1", "agg_2", "agg_3"}).
			AddRow(int64(1), "Electronics", int64(2), "150.00", "37.5", int64(1)).
			AddRow(int64(2), "Empty", int64(0), nil, nil, nil))

	groups, err := store.AggregateByCategory(context.Background(), aggs)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "Electronics", groups[0].CategoryName)
	assert.True(t, groups[0].Values["value"].Valid)
	assert.True(t, groups[0].Values["value"].Decimal.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, int64(1), groups[0].Values["low"].Decimal.IntPart())

	assert.Equal(t, int64(0), groups[1].Values["count"].Decimal.IntPart())
	assert.False(t, groups[1].Values["value"].Valid)
	assert.False(t, groups[1].Values["avg_price"].Valid)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_WithinTx_ReadOnlyCommits(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM products p JOIN categories c ON c.id = p.category_id`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectCommit()

	var n int
	err := store.WithinTx(context.Background(), TxOptions{ReadOnly: true}, func(c Catalog) error {
		var err error
		n, err = c.CountProducts(context.Background(), Predicate{})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_WithinTx_ErrorRollsBack(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE products SET stock = $1`)).
		WithArgs(int64(5), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(productSelect + ` WHERE p.id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(int64(1), "Keyboard", nil, "50.00", int64(5), int64(1), "Electronics", time.Now(), time.Now()))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE products SET stock = $1`)).
		WithArgs(int64(1), int64(999)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), TxOptions{}, func(c Catalog) error {
		if _, err := c.SetStock(context.Background(), 1, 5); err != nil {
			return err
		}
		_, err := c.SetStock(context.Background(), 999, 1)
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}
