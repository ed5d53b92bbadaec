package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"catalog-analytics-service/internal/domain"
)

// Predefined errors for store operations
var (
	ErrCategoryNotFound    = errors.New("store: category not found")
	ErrProductNotFound     = errors.New("store: product not found")
	ErrConstraintViolation = errors.New("store: value violates a table constraint")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// SQLStore implements Store on top of database/sql for the Postgres and MySQL dialects.
type SQLStore struct {
	db *sql.DB
	q  querier
	tx *sql.Tx
	d  Dialect
}

// NewSQLStore creates a store that renders SQL for dialect d.
func NewSQLStore(db *sql.DB, d Dialect) *SQLStore {
	return &SQLStore{db: db, q: db, d: d}
}

// NewPostgresStore creates a new SQLStore for PostgreSQL.
func NewPostgresStore(db *sql.DB) *SQLStore {
	return NewSQLStore(db, Postgres)
}

// Migrate creates the catalog tables when they do not exist yet.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: Migrate failed: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders for the active dialect.
func (s *SQLStore) rebind(query string) string {
	if s.d.Name == MySQL.Name {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString(s.d.placeholder(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *SQLStore) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if s.d.returning {
		var id int64
		err := s.q.QueryRowContext(ctx, s.rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := s.q.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.q.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// WithinTx runs fn inside one transaction. Read-only transactions use
// repeatable-read isolation so every statement sees the same snapshot.
// Calls made on a store that is already transactional join the outer transaction.
func (s *SQLStore) WithinTx(ctx context.Context, opts TxOptions, fn func(Catalog) error) error {
	if s.tx != nil {
		return fn(s)
	}
	txOpts := &sql.TxOptions{}
	if opts.ReadOnly {
		txOpts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	tx, err := s.db.BeginTx(ctx, txOpts)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLStore{db: s.db, q: tx, tx: tx, d: s.d}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit tx: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// --- CategoryStorer Implementation ---

const categoryColumns = `id, name, description, created_at, updated_at`

func scanCategory(row rowScanner) (*domain.Category, error) {
	var c domain.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLStore) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	id, err := s.insert(ctx, `INSERT INTO categories (name, description) VALUES (?, ?)`,
		category.Name, category.Description)
	if err != nil {
		return nil, fmt.Errorf("store: CreateCategory failed to insert row: %w", s.d.classify(err))
	}
	return s.GetCategoryByID(ctx, id)
}

func (s *SQLStore) GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = ?`
	category, err := scanCategory(s.q.QueryRowContext(ctx, s.rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("store: GetCategoryByID failed to scan row: %w", err)
	}
	return category, nil
}

// ListCategories retrieves categories ordered by id.
func (s *SQLStore) ListCategories(ctx context.Context, params ListCategoriesParams) ([]domain.Category, int, error) {
	var totalCount int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListCategories failed to count categories: %w", err)
	}
	if totalCount == 0 {
		return []domain.Category{}, 0, nil
	}

	query := `SELECT ` + categoryColumns + ` FROM categories ORDER BY id ASC`
	var args []any
	if params.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, params.Limit, params.Offset)
	}
	rows, err := s.q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListCategories failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, params.Limit)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: ListCategories failed to scan category row: %w", err)
		}
		categories = append(categories, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListCategories iteration error: %w", err)
	}
	return categories, totalCount, nil
}

func (s *SQLStore) UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	query := `UPDATE categories SET name = ?, description = ?, updated_at = ` + s.d.now + ` WHERE id = ?`
	n, err := s.exec(ctx, query, category.Name, category.Description, category.ID)
	if err != nil {
		return nil, fmt.Errorf("store: UpdateCategory failed to execute update: %w", s.d.classify(err))
	}
	if n == 0 {
		return nil, ErrCategoryNotFound
	}
	return s.GetCategoryByID(ctx, category.ID)
}

// DeleteCategory deletes the category's products and then the category in one transaction.
func (s *SQLStore) DeleteCategory(ctx context.Context, id int64) error {
	return s.WithinTx(ctx, TxOptions{}, func(c Catalog) error {
		tx := c.(*SQLStore)
		if _, err := tx.exec(ctx, `DELETE FROM products WHERE category_id = ?`, id); err != nil {
			return fmt.Errorf("store: DeleteCategory failed to delete products: %w", err)
		}
		n, err := tx.exec(ctx, `DELETE FROM categories WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("store: DeleteCategory failed to execute delete: %w", err)
		}
		if n == 0 {
			return ErrCategoryNotFound
		}
		return nil
	})
}

// --- ProductStorer Implementation ---

const productSelect = `SELECT p.id, p.name, p.description, p.price, p.stock, p.category_id, c.name, p.created_at, p.updated_at
FROM products p JOIN categories c ON c.id = p.category_id`

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CategoryID,
		&p.CategoryName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	id, err := s.insert(ctx,
		`INSERT INTO products (name, description, price, stock, category_id) VALUES (?, ?, ?, ?, ?)`,
		product.Name, product.Description, product.Price, product.Stock, product.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("store: CreateProduct failed to insert row: %w", s.d.classify(err))
	}
	return s.GetProductByID(ctx, id)
}

func (s *SQLStore) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := scanProduct(s.q.QueryRowContext(ctx, s.rebind(productSelect+` WHERE p.id = ?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: GetProductByID failed to scan row: %w", err)
	}
	return product, nil
}

func (s *SQLStore) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `UPDATE products
SET name = ?, description = ?, price = ?, stock = ?, category_id = ?, updated_at = ` + s.d.now + `
WHERE id = ?`
	n, err := s.exec(ctx, query, product.Name, product.Description, product.Price, product.Stock,
		product.CategoryID, product.ID)
	if err != nil {
		return nil, fmt.Errorf("store: UpdateProduct failed to execute update: %w", s.d.classify(err))
	}
	if n == 0 {
		return nil, ErrProductNotFound
	}
	return s.GetProductByID(ctx, product.ID)
}

func (s *SQLStore) DeleteProduct(ctx context.Context, id int64) error {
	n, err := s.exec(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to execute delete: %w", err)
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// SetStock overwrites the stock of one product. Negative values are rejected
// before reaching the database.
func (s *SQLStore) SetStock(ctx context.Context, productID int64, stock int64) (*domain.Product, error) {
	if stock < 0 {
		return nil, fmt.Errorf("%w: stock %d is negative", ErrConstraintViolation, stock)
	}
	query := `UPDATE products SET stock = ?, updated_at = ` + s.d.now + ` WHERE id = ?`
	n, err := s.exec(ctx, query, stock, productID)
	if err != nil {
		return nil, fmt.Errorf("store: SetStock failed to execute update: %w", s.d.classify(err))
	}
	if n == 0 {
		return nil, ErrProductNotFound
	}
	return s.GetProductByID(ctx, productID)
}

func (s *SQLStore) FindProducts(ctx context.Context, q ProductQuery) ([]domain.Product, error) {
	b := &sqlBuilder{d: s.d}
	var sb strings.Builder
	sb.WriteString(productSelect)
	if !q.Where.IsTrue() {
		cond, err := b.where(q.Where)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" WHERE " + cond)
	}
	if len(q.OrderBy) > 0 {
		order, err := b.orderBy(q.OrderBy)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" ORDER BY " + order)
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + b.bind(q.Limit) + " OFFSET " + b.bind(q.Offset))
	}

	rows, err := s.q.QueryContext(ctx, sb.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("store: FindProducts failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, q.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("store: FindProducts failed to scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: FindProducts iteration error: %w", err)
	}
	return products, nil
}

func (s *SQLStore) CountProducts(ctx context.Context, where Predicate) (int, error) {
	b := &sqlBuilder{d: s.d}
	query := `SELECT COUNT(*) FROM products p JOIN categories c ON c.id = p.category_id`
	if !where.IsTrue() {
		cond, err := b.where(where)
		if err != nil {
			return 0, err
		}
		query += " WHERE " + cond
	}
	var n int
	if err := s.q.QueryRowContext(ctx, query, b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: CountProducts failed: %w", err)
	}
	return n, nil
}

func (s *SQLStore) AggregateByCategory(ctx context.Context, aggs []Aggregate) ([]GroupResult, error) {
	b := &sqlBuilder{d: s.d}
	cols := make([]string, 0, len(aggs)+2)
	cols = append(cols, "c.id", "c.name")
	for i, a := range aggs {
		expr, err := b.aggregate(a)
		if err != nil {
			return nil, err
		}
		cols = append(cols, expr+" AS agg_"+strconv.Itoa(i))
	}
	query := `SELECT ` + strings.Join(cols, ", ") + `
FROM categories c LEFT JOIN products p ON p.category_id = c.id
GROUP BY c.id, c.name
ORDER BY c.id ASC`

	rows, err := s.q.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("store: AggregateByCategory failed to query: %w", err)
	}
	defer rows.Close()

	var results []GroupResult
	for rows.Next() {
		var r GroupResult
		values := make([]decimal.NullDecimal, len(aggs))
		dest := []any{&r.CategoryID, &r.CategoryName}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("store: AggregateByCategory failed to scan row: %w", err)
		}
		r.Values = make(map[string]decimal.NullDecimal, len(aggs))
		for i, a := range aggs {
			r.Values[a.Name] = values[i]
		}
		results = append(results, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: AggregateByCategory iteration error: %w", err)
	}
	return results, nil
}
