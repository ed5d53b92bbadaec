package store

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"catalog-analytics-service/internal/domain"
)

// Field enumerates the product attributes a query may reference.
type Field int

const (
	FieldID Field = iota
	FieldName
	FieldDescription
	FieldCategoryID
	FieldCategoryName
	FieldPrice
	FieldStock
	FieldCreatedAt
	// FieldStockValue is the computed stock × price.
	FieldStockValue
)

func (f Field) String() string {
	switch f {
	case FieldID:
		return "id"
	case FieldName:
		return "name"
	case FieldDescription:
		return "description"
	case FieldCategoryID:
		return "category_id"
	case FieldCategoryName:
		return "category_name"
	case FieldPrice:
		return "price"
	case FieldStock:
		return "stock"
	case FieldCreatedAt:
		return "created_at"
	case FieldStockValue:
		return "stock_value"
	}
	return "unknown"
}

// Op is a predicate operator.
type Op int

const (
	OpAnd Op = iota
	OpOr
	OpContains
	OpEq
	OpGt
	OpGte
	OpLt
	OpLte
)

// Predicate is a store-neutral boolean condition over a product.
// The zero value matches every product.
type Predicate struct {
	Op    Op
	Field Field
	Value any
	Terms []Predicate
}

// And matches when every term matches. And() matches everything.
func And(terms ...Predicate) Predicate {
	out := Predicate{Op: OpAnd}
	for _, t := range terms {
		if t.IsTrue() {
			continue
		}
		if t.Op == OpAnd {
			out.Terms = append(out.Terms, t.Terms...)
			continue
		}
		out.Terms = append(out.Terms, t)
	}
	return out
}

// Or matches when at least one term matches. Or() matches nothing.
func Or(terms ...Predicate) Predicate {
	return Predicate{Op: OpOr, Terms: terms}
}

// Contains is a case-insensitive substring match on a text field.
func Contains(f Field, s string) Predicate { return Predicate{Op: OpContains, Field: f, Value: s} }

func Eq(f Field, v any) Predicate  { return Predicate{Op: OpEq, Field: f, Value: v} }
func Gt(f Field, v any) Predicate  { return Predicate{Op: OpGt, Field: f, Value: v} }
func Gte(f Field, v any) Predicate { return Predicate{Op: OpGte, Field: f, Value: v} }
func Lt(f Field, v any) Predicate  { return Predicate{Op: OpLt, Field: f, Value: v} }
func Lte(f Field, v any) Predicate { return Predicate{Op: OpLte, Field: f, Value: v} }

// IsTrue reports whether p is an empty conjunction.
func (p Predicate) IsTrue() bool {
	return p.Op == OpAnd && len(p.Terms) == 0
}

// Match evaluates p against a product in process.
func (p Predicate) Match(prod *domain.Product) bool {
	switch p.Op {
	case OpAnd:
		for _, t := range p.Terms {
			if !t.Match(prod) {
				return false
			}
		}
		return true
	case OpOr:
		for _, t := range p.Terms {
			if t.Match(prod) {
				return true
			}
		}
		return false
	case OpContains:
		s, _ := fieldValue(prod, p.Field).(string)
		needle, _ := p.Value.(string)
		return strings.Contains(strings.ToLower(s), strings.ToLower(needle))
	}

	c, ok := compare(fieldValue(prod, p.Field), p.Value)
	if !ok {
		return false
	}
	switch p.Op {
	case OpEq:
		return c == 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

// SortKey orders products by one field.
type SortKey struct {
	Field Field
	Desc  bool
}

// AggFunc is an aggregate function.
type AggFunc int

const (
	AggCount AggFunc = iota
	AggSum
	AggAvg
	// AggCountIf counts the products matching Aggregate.Where.
	AggCountIf
)

// Aggregate names one aggregate column of a grouped query.
type Aggregate struct {
	Name  string
	Func  AggFunc
	Field Field
	Where Predicate
}

// GroupResult holds the aggregate values of one category keyed by Aggregate.Name.
// Sums and averages over an empty group are null.
type GroupResult struct {
	CategoryID   int64
	CategoryName string
	Values       map[string]decimal.NullDecimal
}

func fieldValue(p *domain.Product, f Field) any {
	switch f {
	case FieldID:
		return p.ID
	case FieldName:
		return p.Name
	case FieldDescription:
		if p.Description == nil {
			return ""
		}
		return *p.Description
	case FieldCategoryID:
		return p.CategoryID
	case FieldCategoryName:
		return p.CategoryName
	case FieldPrice:
		return p.Price
	case FieldStock:
		return p.Stock
	case FieldCreatedAt:
		return p.CreatedAt
	case FieldStockValue:
		return p.StockValue()
	}
	return nil
}

func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	ad, ok := toDecimal(a)
	if !ok {
		return 0, false
	}
	bd, ok := toDecimal(b)
	if !ok {
		return 0, false
	}
	return ad.Cmp(bd), true
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	}
	return decimal.Decimal{}, false
}
