package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_MarshalJSON_FixedPrice(t *testing.T) {
	tests := []struct {
		price string
		want  string
	}{
		{"1200.00", `"1200.00"`},
		{"9.9", `"9.90"`},
		{"0", `"0.00"`},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			raw, err := json.Marshal(Product{ID: 1, Name: "Laptop", Price: decimal.RequireFromString(tt.price), Stock: 3})
			require.NoError(t, err)

			var fields map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(raw, &fields))
			assert.JSONEq(t, tt.want, string(fields["price"]))
			assert.JSONEq(t, `3`, string(fields["stock"]))
			assert.JSONEq(t, `"Laptop"`, string(fields["name"]))
		})
	}
}

func TestProduct_JSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(Product{ID: 7, Name: "Cable", Price: decimal.RequireFromString("9.90"), CategoryID: 2})
	require.NoError(t, err)

	var back Product
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, int64(7), back.ID)
	assert.True(t, back.Price.Equal(decimal.RequireFromString("9.9")))
}

func TestAnalyticsSnapshot_MarshalJSON_Money(t *testing.T) {
	snap := AnalyticsSnapshot{
		InventorySummary: []CategoryRollup{
			{CategoryID: 1, Name: "Electronics", TotalValue: decimal.RequireFromString("7498.5"),
				AvgPrice: decimal.NewNullDecimal(decimal.NewFromInt(670))},
			{CategoryID: 2, Name: "Garden"},
		},
		TopProducts: []StockValueEntry{
			{ID: 1, Name: "Laptop", Price: decimal.NewFromInt(1200), StockValue: decimal.NewFromInt(6000)},
		},
		LowStockProducts: []LowStockEntry{
			{ID: 2, Name: "Phone", Price: decimal.RequireFromString("800.5")},
		},
	}
	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var got struct {
		InventorySummary []map[string]json.RawMessage `json:"inventory_summary"`
		TopProducts      []map[string]json.RawMessage `json:"top_products"`
		LowStockProducts []map[string]json.RawMessage `json:"low_stock_products"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.JSONEq(t, `"7498.50"`, string(got.InventorySummary[0]["total_value"]))
	assert.JSONEq(t, `"670.00"`, string(got.InventorySummary[0]["avg_price"]))
	assert.JSONEq(t, `"0.00"`, string(got.InventorySummary[1]["total_value"]))
	assert.JSONEq(t, `null`, string(got.InventorySummary[1]["avg_price"]))
	assert.JSONEq(t, `"1200.00"`, string(got.TopProducts[0]["price"]))
	assert.JSONEq(t, `"6000.00"`, string(got.TopProducts[0]["stock_value"]))
	assert.JSONEq(t, `"800.50"`, string(got.LowStockProducts[0]["price"]))

	var back AnalyticsSnapshot
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.False(t, back.InventorySummary[1].AvgPrice.Valid)
	assert.True(t, back.InventorySummary[0].TotalValue.Equal(decimal.RequireFromString("7498.5")))
}
