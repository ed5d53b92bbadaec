package catalog

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"catalog-analytics-service/internal/store"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

var sortFields = map[string]store.Field{
	"name":    store.FieldName,
	"price":   store.FieldPrice,
	"stock":   store.FieldStock,
	"created": store.FieldCreatedAt,
}

// SortFields lists the accepted sort_by values.
func SortFields() []string {
	names := make([]string, 0, len(sortFields))
	for k := range sortFields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Paging selects the sort order and the result window of an advanced search.
type Paging struct {
	Page     int
	PageSize int
	// SortBy is empty for the default order, newest first.
	SortBy string
	Desc   bool
}

// ParsePaging reads sort_by, sort_order, page and page_size.
// page_size above MaxPageSize is clamped.
func ParsePaging(q url.Values) (Paging, error) {
	p := Paging{Page: 1, PageSize: DefaultPageSize}

	if by := q.Get("sort_by"); by != "" {
		if _, ok := sortFields[by]; !ok {
			return Paging{}, invalid("sort_by", "must be one of %s", strings.Join(SortFields(), ", "))
		}
		p.SortBy = by
	}
	switch order := strings.ToLower(q.Get("sort_order")); order {
	case "", "asc":
	case "desc":
		p.Desc = true
	default:
		return Paging{}, invalid("sort_order", "must be asc or desc")
	}

	var err error
	if p.Page, err = positiveInt(q, "page", p.Page); err != nil {
		return Paging{}, err
	}
	if p.PageSize, err = positiveInt(q, "page_size", p.PageSize); err != nil {
		return Paging{}, err
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p, nil
}

func positiveInt(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid(name, "%q is not an integer", raw)
	}
	if n < 1 {
		return 0, invalid(name, "must be at least 1")
	}
	return n, nil
}

// Offset is the index of the first row on the page. It saturates at
// math.MaxInt, which lies past any result set.
func (p Paging) Offset() int {
	if p.Page <= 1 || p.PageSize <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PageSize {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PageSize
}

// orderBy always ends with id so equal sort values keep a stable order.
func (p Paging) orderBy() []store.SortKey {
	if p.SortBy == "" {
		return newestFirst
	}
	return []store.SortKey{
		{Field: sortFields[p.SortBy], Desc: p.Desc},
		{Field: store.FieldID},
	}
}

var newestFirst = []store.SortKey{
	{Field: store.FieldCreatedAt, Desc: true},
	{Field: store.FieldID, Desc: true},
}
