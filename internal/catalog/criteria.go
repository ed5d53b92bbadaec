package catalog

import (
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"catalog-analytics-service/internal/domain"
)

// DefaultLowStockThreshold bounds the low_stock bucket and the low-stock report.
const DefaultLowStockThreshold int64 = 10

// Criteria holds the recognised product filters. Nil fields are not applied.
type Criteria struct {
	Search *string
	// SearchCategoryName extends Search to the category name.
	SearchCategoryName bool
	CategoryID         *int64
	StockStatus        *domain.StockStatus
	LowStockThreshold  int64
	MinPrice           *decimal.Decimal
	MaxPrice           *decimal.Decimal
}

// ParseListCriteria reads the plain product listing filters: search over name
// and description, and category. Other parameters are ignored.
func ParseListCriteria(q url.Values) (Criteria, error) {
	c := Criteria{LowStockThreshold: DefaultLowStockThreshold}
	if s := q.Get("search"); s != "" {
		c.Search = &s
	}
	id, err := optionalID(q, "category")
	if err != nil {
		return Criteria{}, err
	}
	c.CategoryID = id
	return c, nil
}

// ParseSearchCriteria reads the advanced search filters. Unknown parameters and
// unknown stock_status values are ignored; malformed numbers are rejected.
func ParseSearchCriteria(q url.Values) (Criteria, error) {
	c, err := ParseListCriteria(q)
	if err != nil {
		return Criteria{}, err
	}
	c.SearchCategoryName = true

	if st, ok := domain.ParseStockStatus(q.Get("stock_status")); ok {
		c.StockStatus = &st
	}
	if raw := q.Get("low_stock_threshold"); raw != "" {
		t, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Criteria{}, invalid("low_stock_threshold", "%q is not an integer", raw)
		}
		if t < 0 {
			return Criteria{}, invalid("low_stock_threshold", "must not be negative")
		}
		c.LowStockThreshold = t
	}
	if c.MinPrice, err = optionalDecimal(q, "min_price"); err != nil {
		return Criteria{}, err
	}
	if c.MaxPrice, err = optionalDecimal(q, "max_price"); err != nil {
		return Criteria{}, err
	}
	return c, nil
}

// ParseThreshold reads an optional non-negative stock threshold.
func ParseThreshold(q url.Values, name string) (int64, error) {
	raw := q.Get(name)
	if raw == "" {
		return DefaultLowStockThreshold, nil
	}
	t, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, invalid(name, "%q is not an integer", raw)
	}
	if t < 0 {
		return 0, invalid(name, "must not be negative")
	}
	return t, nil
}

func optionalID(q url.Values, name string) (*int64, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, invalid(name, "%q is not an integer id", raw)
	}
	return &id, nil
}

func optionalDecimal(q url.Values, name string) (*decimal.Decimal, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, invalid(name, "%q is not a decimal number", raw)
	}
	return &d, nil
}
