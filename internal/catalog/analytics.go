package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"catalog-analytics-service/internal/domain"
	"catalog-analytics-service/internal/store"
)

const (
	topProductsLimit = 5
	// analyticsLowStock is the exclusive stock bound used by the snapshot.
	analyticsLowStock int64 = 10
)

const (
	aggCount    = "product_count"
	aggStock    = "total_stock"
	aggValue    = "total_value"
	aggAvgPrice = "avg_price"
	aggLowStock = "low_stock_count"
)

var rollupAggregates = []store.Aggregate{
	{Name: aggCount, Func: store.AggCount},
	{Name: aggStock, Func: store.AggSum, Field: store.FieldStock},
	{Name: aggValue, Func: store.AggSum, Field: store.FieldStockValue},
	{Name: aggAvgPrice, Func: store.AggAvg, Field: store.FieldPrice},
	{Name: aggLowStock, Func: store.AggCountIf, Where: store.Lt(store.FieldStock, analyticsLowStock)},
}

// computeSnapshot builds the three analytics parts from c. Callers run it in a
// read-only transaction so every part sees the same data.
func computeSnapshot(ctx context.Context, c store.Catalog, now time.Time) (*domain.AnalyticsSnapshot, error) {
	summary, err := inventorySummary(ctx, c)
	if err != nil {
		return nil, err
	}
	top, err := topProducts(ctx, c)
	if err != nil {
		return nil, err
	}
	low, err := lowStockProducts(ctx, c)
	if err != nil {
		return nil, err
	}
	return &domain.AnalyticsSnapshot{
		GeneratedAt:      now.UTC(),
		InventorySummary: summary,
		TopProducts:      top,
		LowStockProducts: low,
	}, nil
}

func inventorySummary(ctx context.Context, c store.Catalog) ([]domain.CategoryRollup, error) {
	groups, err := c.AggregateByCategory(ctx, rollupAggregates)
	if err != nil {
		return nil, fmt.Errorf("analytics: inventory summary: %w", err)
	}
	out := make([]domain.CategoryRollup, 0, len(groups))
	for _, g := range groups {
		r := domain.CategoryRollup{
			CategoryID:    g.CategoryID,
			Name:          g.CategoryName,
			ProductCount:  orZero(g.Values[aggCount]).IntPart(),
			TotalStock:    orZero(g.Values[aggStock]).IntPart(),
			TotalValue:    orZero(g.Values[aggValue]).Round(domain.PriceScale),
			LowStockCount: orZero(g.Values[aggLowStock]).IntPart(),
		}
		if avg := g.Values[aggAvgPrice]; avg.Valid {
			r.AvgPrice = decimal.NewNullDecimal(avg.Decimal.Round(domain.PriceScale))
		}
		out = append(out, r)
	}
	return out, nil
}

func orZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

func topProducts(ctx context.Context, c store.Catalog) ([]domain.StockValueEntry, error) {
	products, err := c.FindProducts(ctx, store.ProductQuery{
		OrderBy: []store.SortKey{
			{Field: store.FieldStockValue, Desc: true},
			{Field: store.FieldID},
		},
		Limit: topProductsLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: top products: %w", err)
	}
	out := make([]domain.StockValueEntry, 0, len(products))
	for _, p := range products {
		out = append(out, domain.StockValueEntry{
			ID:           p.ID,
			Name:         p.Name,
			CategoryName: p.CategoryName,
			Stock:        p.Stock,
			Price:        p.Price,
			StockValue:   p.StockValue().Round(domain.PriceScale),
		})
	}
	return out, nil
}

func lowStockProducts(ctx context.Context, c store.Catalog) ([]domain.LowStockEntry, error) {
	products, err := c.FindProducts(ctx, store.ProductQuery{
		Where:   store.Lt(store.FieldStock, analyticsLowStock),
		OrderBy: byStockAsc,
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: low stock products: %w", err)
	}
	out := make([]domain.LowStockEntry, 0, len(products))
	for _, p := range products {
		out = append(out, domain.LowStockEntry{
			ID:           p.ID,
			Name:         p.Name,
			CategoryName: p.CategoryName,
			Stock:        p.Stock,
			Price:        p.Price,
		})
	}
	return out, nil
}

var byStockAsc = []store.SortKey{{Field: store.FieldStock}, {Field: store.FieldID}}
