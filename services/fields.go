package services

import (
	"math"

	"github.com/tidwall/gjson"
)

// fieldAliases lists the keys under which upstream payloads may carry one
// logical field, highest priority first. The first alias holding a truthy
// value wins: non-empty string, non-zero number, true, or any object/array.
type fieldAliases []string

var (
	searchSymbolFields = fieldAliases{"symbol", "Symbol"}
	searchNameFields   = fieldAliases{"name", "Name", "companyName"}

	priceTimeFields   = fieldAliases{"time", "date", "timestamp"}
	priceValueFields  = fieldAliases{"price", "close", "lastPrice"}
	priceVolumeFields = fieldAliases{"volume", "Volume"}
	priceOpenFields   = fieldAliases{"open", "Open"}
	priceHighFields   = fieldAliases{"high", "High"}
	priceLowFields    = fieldAliases{"low", "Low"}
	priceCloseFields  = fieldAliases{"close", "Close"}

	tickerSymbolFields  = fieldAliases{"symbol", "Symbol", "ticker", "Ticker"}
	tickerNameFields    = fieldAliases{"name", "Name", "companyName", "description"}
	tickerPriceFields   = fieldAliases{"price", "lastPrice", "Close", "close", "currentPrice"}
	tickerChangeFields  = fieldAliases{"change", "Change", "netChange", "priceChange"}
	tickerPercentFields = fieldAliases{"changePercent", "percentChange", "chgPct"}
	tickerVolumeFields  = fieldAliases{"volume", "Volume", "totalVolume"}

	detailsNameFields    = fieldAliases{"name", "companyName", "Name"}
	detailsPriceFields   = fieldAliases{"price", "lastPrice", "currentPrice", "close"}
	detailsChangeFields  = fieldAliases{"change", "netChange"}
	detailsPercentFields = fieldAliases{"changePercent", "percentChange", "chgPct"}
	detailsIndustry      = fieldAliases{"industry"}
	detailsSector        = fieldAliases{"sector"}
	detailsMarketCap     = fieldAliases{"marketCap", "mcap"}
)

// lookup returns the first truthy value among the aliases
func (f fieldAliases) lookup(item gjson.Result) (gjson.Result, bool) {
	if !item.IsObject() {
		return gjson.Result{}, false
	}
	for _, key := range f {
		if v := item.Get(key); truthy(v) {
			return v, true
		}
	}
	return gjson.Result{}, false
}

// String resolves the field as text, or returns fallback
func (f fieldAliases) String(item gjson.Result, fallback string) string {
	if v, ok := f.lookup(item); ok {
		return v.String()
	}
	return fallback
}

// Float resolves the field as a number, or returns fallback. A truthy value
// that does not parse as a number yields zero, so it fails positivity checks.
func (f fieldAliases) Float(item gjson.Result, fallback float64) float64 {
	if v, ok := f.lookup(item); ok {
		n := v.Float()
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return n
	}
	return fallback
}

// Optional resolves the field as a number, or nil when no alias is truthy
func (f fieldAliases) Optional(item gjson.Result) *float64 {
	if _, ok := f.lookup(item); !ok {
		return nil
	}
	n := f.Float(item, 0)
	return &n
}

func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0 && !math.IsNaN(v.Num)
	case gjson.True:
		return true
	case gjson.JSON:
		return true
	default:
		return false
	}
}
