package models

import (
	"github.com/shopspring/decimal"
)

// SearchResult is a symbol/name pair returned by stock search
type SearchResult struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// StockDetails represents the header figures of a single stock
type StockDetails struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	CurrentPrice  float64 `json:"currentPrice"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Industry      string  `json:"industry,omitempty"`
	Sector        string  `json:"sector,omitempty"`
	MarketCap     float64 `json:"marketCap,omitempty"`
}

// IsPositive reports whether the day change is zero or up
func (d *StockDetails) IsPositive() bool {
	return d.Change >= 0
}

// PricePoint is one observation of a price series. Optional fields are nil
// when neither the upstream nor the generator supplied them.
type PricePoint struct {
	Time   string   `json:"time"`
	Price  float64  `json:"price"`
	Volume *float64 `json:"volume,omitempty"`
	Open   *float64 `json:"open,omitempty"`
	High   *float64 `json:"high,omitempty"`
	Low    *float64 `json:"low,omitempty"`
	Close  *float64 `json:"close,omitempty"`
}

// PopularStock is an entry of the fixed popular-stocks list shown on the
// search page
type PopularStock struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// Float returns a pointer to v, for the optional PricePoint fields
func Float(v float64) *float64 {
	return &v
}

// Round2 rounds v half away from zero to two decimal places
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
