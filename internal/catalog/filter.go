package catalog

import (
	"catalog-analytics-service/internal/domain"
	"catalog-analytics-service/internal/store"
)

// predicateBuilder turns one criterion into a store predicate. A criterion
// that is not set yields the empty conjunction.
type predicateBuilder func(c Criteria) store.Predicate

// filterChain is applied in order and folded with AND.
var filterChain = []predicateBuilder{
	searchPredicate,
	categoryPredicate,
	stockStatusPredicate,
	minPricePredicate,
	maxPricePredicate,
}

// Predicate composes every set criterion into one condition.
func (c Criteria) Predicate() store.Predicate {
	terms := make([]store.Predicate, 0, len(filterChain))
	for _, build := range filterChain {
		terms = append(terms, build(c))
	}
	return store.And(terms...)
}

func searchPredicate(c Criteria) store.Predicate {
	if c.Search == nil {
		return store.And()
	}
	alts := []store.Predicate{
		store.Contains(store.FieldName, *c.Search),
		store.Contains(store.FieldDescription, *c.Search),
	}
	if c.SearchCategoryName {
		alts = append(alts, store.Contains(store.FieldCategoryName, *c.Search))
	}
	return store.Or(alts...)
}

func categoryPredicate(c Criteria) store.Predicate {
	if c.CategoryID == nil {
		return store.And()
	}
	return store.Eq(store.FieldCategoryID, *c.CategoryID)
}

func stockStatusPredicate(c Criteria) store.Predicate {
	if c.StockStatus == nil {
		return store.And()
	}
	switch *c.StockStatus {
	case domain.InStock:
		return store.Gt(store.FieldStock, int64(0))
	case domain.OutOfStock:
		return store.Eq(store.FieldStock, int64(0))
	case domain.LowStock:
		return lowStockBand(c.LowStockThreshold)
	}
	return store.And()
}

// lowStockBand matches 0 < stock <= threshold.
func lowStockBand(threshold int64) store.Predicate {
	return store.And(
		store.Gt(store.FieldStock, int64(0)),
		store.Lte(store.FieldStock, threshold),
	)
}

func minPricePredicate(c Criteria) store.Predicate {
	if c.MinPrice == nil {
		return store.And()
	}
	return store.Gte(store.FieldPrice, *c.MinPrice)
}

func maxPricePredicate(c Criteria) store.Predicate {
	if c.MaxPrice == nil {
		return store.And()
	}
	return store.Lte(store.FieldPrice, *c.MaxPrice)
}
