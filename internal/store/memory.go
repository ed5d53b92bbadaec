package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"catalog-analytics-service/internal/domain"
)

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// MemoryStore is an in-process Store. It serializes writers behind one lock,
// so every transaction sees a consistent state.
type MemoryStore struct {
	mu sync.RWMutex
	st *memState
}

type memState struct {
	categories map[int64]domain.Category
	products   map[int64]domain.Product
	nextCatID  int64
	nextProdID int64
	lastStamp  time.Time
	now        func() time.Time
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: &memState{
		categories: make(map[int64]domain.Category),
		products:   make(map[int64]domain.Product),
		now:        time.Now,
	}}
}

func (m *MemoryStore) read(fn func(v memView) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(memView{st: m.st})
}

func (m *MemoryStore) write(fn func(v memView) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(memView{st: m.st})
}

// WithinTx holds the store lock for the duration of fn. A failed read-write
// transaction restores the state captured before fn ran.
func (m *MemoryStore) WithinTx(ctx context.Context, opts TxOptions, fn func(Catalog) error) error {
	if opts.ReadOnly {
		return m.read(func(v memView) error { return fn(v) })
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := m.st.clone()
	if err := fn(memView{st: m.st}); err != nil {
		m.st = saved
		return err
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateCategory(ctx context.Context, category *domain.Category) (out *domain.Category, err error) {
	err = m.write(func(v memView) error { out, err = v.CreateCategory(ctx, category); return err })
	return out, err
}

func (m *MemoryStore) GetCategoryByID(ctx context.Context, id int64) (out *domain.Category, err error) {
	err = m.read(func(v memView) error { out, err = v.GetCategoryByID(ctx, id); return err })
	return out, err
}

func (m *MemoryStore) ListCategories(ctx context.Context, params ListCategoriesParams) (out []domain.Category, total int, err error) {
	err = m.read(func(v memView) error { out, total, err = v.ListCategories(ctx, params); return err })
	return out, total, err
}

func (m *MemoryStore) UpdateCategory(ctx context.Context, category *domain.Category) (out *domain.Category, err error) {
	err = m.write(func(v memView) error { out, err = v.UpdateCategory(ctx, category); return err })
	return out, err
}

func (m *MemoryStore) DeleteCategory(ctx context.Context, id int64) error {
	return m.write(func(v memView) error { return v.DeleteCategory(ctx, id) })
}

func (m *MemoryStore) CreateProduct(ctx context.Context, product *domain.Product) (out *domain.Product, err error) {
	err = m.write(func(v memView) error { out, err = v.CreateProduct(ctx, product); return err })
	return out, err
}

func (m *MemoryStore) GetProductByID(ctx context.Context, id int64) (out *domain.Product, err error) {
	err = m.read(func(v memView) error { out, err = v.GetProductByID(ctx, id); return err })
	return out, err
}

func (m *MemoryStore) UpdateProduct(ctx context.Context, product *domain.Product) (out *domain.Product, err error) {
	err = m.write(func(v memView) error { out, err = v.UpdateProduct(ctx, product); return err })
	return out, err
}

func (m *MemoryStore) DeleteProduct(ctx context.Context, id int64) error {
	return m.write(func(v memView) error { return v.DeleteProduct(ctx, id) })
}

func (m *MemoryStore) SetStock(ctx context.Context, productID int64, stock int64) (out *domain.Product, err error) {
	err = m.write(func(v memView) error { out, err = v.SetStock(ctx, productID, stock); return err })
	return out, err
}

func (m *MemoryStore) FindProducts(ctx context.Context, q ProductQuery) (out []domain.Product, err error) {
	err = m.read(func(v memView) error { out, err = v.FindProducts(ctx, q); return err })
	return out, err
}

func (m *MemoryStore) CountProducts(ctx context.Context, where Predicate) (n int, err error) {
	err = m.read(func(v memView) error { n, err = v.CountProducts(ctx, where); return err })
	return n, err
}

func (m *MemoryStore) AggregateByCategory(ctx context.Context, aggs []Aggregate) (out []GroupResult, err error) {
	err = m.read(func(v memView) error { out, err = v.AggregateByCategory(ctx, aggs); return err })
	return out, err
}

func (st *memState) clone() *memState {
	c := *st
	c.categories = make(map[int64]domain.Category, len(st.categories))
	for k, v := range st.categories {
		c.categories[k] = v
	}
	c.products = make(map[int64]domain.Product, len(st.products))
	for k, v := range st.products {
		c.products[k] = v
	}
	return &c
}

// stamp returns a timestamp that never goes backwards.
func (st *memState) stamp() time.Time {
	t := st.now().UTC()
	if !t.After(st.lastStamp) {
		t = st.lastStamp.Add(time.Microsecond)
	}
	st.lastStamp = t
	return t
}

// memView performs the catalog operations without locking; callers hold the lock.
type memView struct {
	st *memState
}

func (v memView) WithinTx(ctx context.Context, _ TxOptions, fn func(Catalog) error) error {
	return fn(v)
}

func (v memView) Close() error { return nil }

func (v memView) CreateCategory(_ context.Context, category *domain.Category) (*domain.Category, error) {
	v.st.nextCatID++
	now := v.st.stamp()
	c := domain.Category{
		ID:          v.st.nextCatID,
		Name:        category.Name,
		Description: category.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	v.st.categories[c.ID] = c
	return &c, nil
}

func (v memView) GetCategoryByID(_ context.Context, id int64) (*domain.Category, error) {
	c, ok := v.st.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	return &c, nil
}

func (v memView) ListCategories(_ context.Context, params ListCategoriesParams) ([]domain.Category, int, error) {
	all := make([]domain.Category, 0, len(v.st.categories))
	for _, c := range v.st.categories {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return window(all, params.Limit, params.Offset), len(all), nil
}

func (v memView) UpdateCategory(_ context.Context, category *domain.Category) (*domain.Category, error) {
	c, ok := v.st.categories[category.ID]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	c.Name = category.Name
	c.Description = category.Description
	c.UpdatedAt = v.st.stamp()
	v.st.categories[c.ID] = c
	return &c, nil
}

func (v memView) DeleteCategory(_ context.Context, id int64) error {
	if _, ok := v.st.categories[id]; !ok {
		return ErrCategoryNotFound
	}
	for pid, p := range v.st.products {
		if p.CategoryID == id {
			delete(v.st.products, pid)
		}
	}
	delete(v.st.categories, id)
	return nil
}

func (v memView) checkProduct(p *domain.Product) error {
	if _, ok := v.st.categories[p.CategoryID]; !ok {
		return fmt.Errorf("%w: id %d", ErrCategoryNotFound, p.CategoryID)
	}
	if p.Stock < 0 || p.Price.IsNegative() {
		return fmt.Errorf("%w: negative price or stock", ErrConstraintViolation)
	}
	return nil
}

// joined returns a copy of p with its category name filled in.
func (v memView) joined(p domain.Product) *domain.Product {
	p.CategoryName = v.st.categories[p.CategoryID].Name
	return &p
}

func (v memView) CreateProduct(_ context.Context, product *domain.Product) (*domain.Product, error) {
	if err := v.checkProduct(product); err != nil {
		return nil, fmt.Errorf("store: CreateProduct failed: %w", err)
	}
	v.st.nextProdID++
	now := v.st.stamp()
	p := domain.Product{
		ID:          v.st.nextProdID,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price.Round(domain.PriceScale),
		Stock:       product.Stock,
		CategoryID:  product.CategoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	v.st.products[p.ID] = p
	return v.joined(p), nil
}

func (v memView) GetProductByID(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := v.st.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return v.joined(p), nil
}

func (v memView) UpdateProduct(_ context.Context, product *domain.Product) (*domain.Product, error) {
	p, ok := v.st.products[product.ID]
	if !ok {
		return nil, ErrProductNotFound
	}
	if err := v.checkProduct(product); err != nil {
		return nil, fmt.Errorf("store: UpdateProduct failed: %w", err)
	}
	p.Name = product.Name
	p.Description = product.Description
	p.Price = product.Price.Round(domain.PriceScale)
	p.Stock = product.Stock
	p.CategoryID = product.CategoryID
	p.UpdatedAt = v.st.stamp()
	v.st.products[p.ID] = p
	return v.joined(p), nil
}

func (v memView) DeleteProduct(_ context.Context, id int64) error {
	if _, ok := v.st.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(v.st.products, id)
	return nil
}

func (v memView) SetStock(_ context.Context, productID int64, stock int64) (*domain.Product, error) {
	if stock < 0 {
		return nil, fmt.Errorf("%w: stock %d is negative", ErrConstraintViolation, stock)
	}
	p, ok := v.st.products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	p.Stock = stock
	p.UpdatedAt = v.st.stamp()
	v.st.products[p.ID] = p
	return v.joined(p), nil
}

func (v memView) matching(where Predicate) []domain.Product {
	var out []domain.Product
	for _, p := range v.st.products {
		jp := v.joined(p)
		if where.Match(jp) {
			out = append(out, *jp)
		}
	}
	// map iteration is random; id order keeps unsorted queries deterministic
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v memView) FindProducts(_ context.Context, q ProductQuery) ([]domain.Product, error) {
	out := v.matching(q.Where)
	if len(q.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, k := range q.OrderBy {
				c, _ := compare(fieldValue(&out[i], k.Field), fieldValue(&out[j], k.Field))
				if c == 0 {
					continue
				}
				if k.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	res := window(out, q.Limit, q.Offset)
	if res == nil {
		res = []domain.Product{}
	}
	return res, nil
}

func (v memView) CountProducts(_ context.Context, where Predicate) (int, error) {
	return len(v.matching(where)), nil
}

func (v memView) AggregateByCategory(_ context.Context, aggs []Aggregate) ([]GroupResult, error) {
	cats, _, _ := v.ListCategories(context.Background(), ListCategoriesParams{})
	results := make([]GroupResult, 0, len(cats))
	for _, c := range cats {
		members := v.matching(Eq(FieldCategoryID, c.ID))
		r := GroupResult{CategoryID: c.ID, CategoryName: c.Name, Values: make(map[string]decimal.NullDecimal, len(aggs))}
		for _, a := range aggs {
			val, err := aggregate(a, members)
			if err != nil {
				return nil, err
			}
			r.Values[a.Name] = val
		}
		results = append(results, r)
	}
	return results, nil
}

func aggregate(a Aggregate, members []domain.Product) (decimal.NullDecimal, error) {
	switch a.Func {
	case AggCount:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(len(members)))), nil
	case AggCountIf:
		var n int64
		for i := range members {
			if a.Where.Match(&members[i]) {
				n++
			}
		}
		return decimal.NewNullDecimal(decimal.NewFromInt(n)), nil
	case AggSum, AggAvg:
		if len(members) == 0 {
			return decimal.NullDecimal{}, nil
		}
		sum := decimal.Zero
		for i := range members {
			d, ok := toDecimal(fieldValue(&members[i], a.Field))
			if !ok {
				return decimal.NullDecimal{}, fmt.Errorf("store: field %s is not numeric", a.Field)
			}
			sum = sum.Add(d)
		}
		if a.Func == AggAvg {
			sum = sum.Div(decimal.NewFromInt(int64(len(members))))
		}
		return decimal.NewNullDecimal(sum), nil
	}
	return decimal.NullDecimal{}, fmt.Errorf("store: unknown aggregate %d", a.Func)
}

func window[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		return []T{}
	}
	if offset >= len(items) {
		if limit > 0 || offset > 0 {
			return []T{}
		}
		return items
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
