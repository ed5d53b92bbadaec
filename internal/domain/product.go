package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of fractional digits a price carries.
const PriceScale = 2

// Category represents a product category in the system.
// Deleting a category deletes every product that references it.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Product represents a product in the catalog.
// CreatedAt and UpdatedAt are always assigned by the store.
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  *string         `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Stock        int64           `json:"stock"`
	CategoryID   int64           `json:"category_id"`
	CategoryName string          `json:"category_name,omitempty"` // populated from the category join on reads
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Money renders an amount with exactly PriceScale fractional digits.
func Money(d decimal.Decimal) string { return d.StringFixed(PriceScale) }

func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return json.Marshal(struct {
		plain
		Price string `json:"price"`
	}{plain(p), Money(p.Price)})
}

// StockValue is stock × price.
func (p Product) StockValue() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(p.Stock))
}

// StockStatus buckets a product by its stock level.
type StockStatus string

const (
	InStock    StockStatus = "in_stock"
	OutOfStock StockStatus = "out_of_stock"
	LowStock   StockStatus = "low_stock"
)

// ParseStockStatus reports whether s names a known bucket.
func ParseStockStatus(s string) (StockStatus, bool) {
	switch StockStatus(s) {
	case InStock, OutOfStock, LowStock:
		return StockStatus(s), true
	}
	return "", false
}
