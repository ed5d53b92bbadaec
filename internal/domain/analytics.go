package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CategoryRollup is the inventory summary of one category.
// AvgPrice is null for a category without products.
type CategoryRollup struct {
	CategoryID    int64               `json:"category_id"`
	Name          string              `json:"name"`
	ProductCount  int64               `json:"product_count"`
	TotalStock    int64               `json:"total_stock"`
	TotalValue    decimal.Decimal     `json:"total_value"`
	AvgPrice      decimal.NullDecimal `json:"avg_price"`
	LowStockCount int64               `json:"low_stock_count"`
}

func (r CategoryRollup) MarshalJSON() ([]byte, error) {
	type plain CategoryRollup
	var avg *string
	if r.AvgPrice.Valid {
		v := Money(r.AvgPrice.Decimal)
		avg = &v
	}
	return json.Marshal(struct {
		plain
		TotalValue string  `json:"total_value"`
		AvgPrice   *string `json:"avg_price"`
	}{plain(r), Money(r.TotalValue), avg})
}

// StockValueEntry is one row of the top performers ranking.
type StockValueEntry struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	CategoryName string          `json:"category_name"`
	Stock        int64           `json:"stock"`
	Price        decimal.Decimal `json:"price"`
	StockValue   decimal.Decimal `json:"stock_value"`
}

func (e StockValueEntry) MarshalJSON() ([]byte, error) {
	type plain StockValueEntry
	return json.Marshal(struct {
		plain
		Price      string `json:"price"`
		StockValue string `json:"stock_value"`
	}{plain(e), Money(e.Price), Money(e.StockValue)})
}

// LowStockEntry is one row of the low-stock report.
type LowStockEntry struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	CategoryName string          `json:"category_name"`
	Stock        int64           `json:"stock"`
	Price        decimal.Decimal `json:"price"`
}

func (e LowStockEntry) MarshalJSON() ([]byte, error) {
	type plain LowStockEntry
	return json.Marshal(struct {
		plain
		Price string `json:"price"`
	}{plain(e), Money(e.Price)})
}

// AnalyticsSnapshot is a point-in-time view of catalog inventory.
type AnalyticsSnapshot struct {
	GeneratedAt      time.Time         `json:"generated_at"`
	InventorySummary []CategoryRollup  `json:"inventory_summary"`
	TopProducts      []StockValueEntry `json:"top_products"`
	LowStockProducts []LowStockEntry   `json:"low_stock_products"`
}

// SearchPage is one window of an advanced search together with counts
// computed over the whole filtered set.
type SearchPage struct {
	Count           int       `json:"count"`
	LowStockCount   int       `json:"low_stock_count"`
	OutOfStockCount int       `json:"out_of_stock_count"`
	Results         []Product `json:"results"`
}
