package services

import (
	"math"
	"strings"
	"time"

	"stockpro/models"
)

// isoLayout matches JavaScript's Date.prototype.toISOString
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// fallbackSearchList answers searches while the upstream is unreachable
var fallbackSearchList = []models.SearchResult{
	{Symbol: "RELIANCE", Name: "Reliance Industries Limited"},
	{Symbol: "TCS", Name: "Tata Consultancy Services Limited"},
	{Symbol: "INFY", Name: "Infosys Limited"},
	{Symbol: "HDFC", Name: "Housing Development Finance Corporation Limited"},
	{Symbol: "ICICI", Name: "ICICI Bank Limited"},
}

// companyNames names the symbols the detail synthesizer knows about
var companyNames = map[string]string{
	"RELIANCE":   "Reliance Industries Limited",
	"TCS":        "Tata Consultancy Services Limited",
	"INFY":       "Infosys Limited",
	"HDFC":       "HDFC Bank Limited",
	"ICICI":      "ICICI Bank Limited",
	"ITC":        "ITC Limited",
	"HINDUNILVR": "Hindustan Unilever Limited",
	"SBIN":       "State Bank of India",
}

// mockTickerStocks is the demo set scrolled when no live movers are available
var mockTickerStocks = []models.SearchResult{
	{Symbol: "RELIANCE", Name: "Reliance Industries"},
	{Symbol: "TCS", Name: "Tata Consultancy Services"},
	{Symbol: "INFY", Name: "Infosys"},
	{Symbol: "HDFC", Name: "HDFC Bank"},
	{Symbol: "ICICI", Name: "ICICI Bank"},
	{Symbol: "ITC", Name: "ITC Limited"},
	{Symbol: "HINDUNILVR", Name: "Hindustan Unilever"},
	{Symbol: "SBIN", Name: "State Bank of India"},
}

// filterFallbackSearch matches keyword case-insensitively against symbol or
// name, keeping declaration order
func filterFallbackSearch(keyword string) []models.SearchResult {
	needle := strings.ToLower(keyword)
	results := make([]models.SearchResult, 0, len(fallbackSearchList))
	for _, stock := range fallbackSearchList {
		if strings.Contains(strings.ToLower(stock.Symbol), needle) ||
			strings.Contains(strings.ToLower(stock.Name), needle) {
			results = append(results, stock)
		}
	}
	return results
}

// CompanyName returns the display name for symbol, synthesizing one for
// symbols outside the known table. The table lookup ignores case; a
// synthesized name keeps symbol as given.
func CompanyName(symbol string) string {
	if name, ok := companyNames[strings.ToUpper(symbol)]; ok {
		return name
	}
	return symbol + " Company Limited"
}

func (s *MarketDataService) syntheticDetails(symbol string) *models.StockDetails {
	basePrice := 100 + float64(len(symbol))*50 + s.random()*200
	change := (s.random() - 0.5) * 20

	return &models.StockDetails{
		Symbol:        symbol,
		Name:          CompanyName(symbol),
		CurrentPrice:  basePrice,
		Change:        change,
		ChangePercent: change / basePrice * 100,
		Industry:      "Financial Services",
		Sector:        "Banking",
		MarketCap:     1e11 + s.random()*9e11,
	}
}

// randomWalkPrices generates days+1 points ending now, oldest first. Daily
// series step by day, every other type steps by hour.
func (s *MarketDataService) randomWalkPrices(symbol string, days int, priceType string) []models.PricePoint {
	now := s.now().UTC()
	step := 24 * time.Hour
	if priceType != DefaultPriceType {
		step = time.Hour
	}

	basePrice := 100 + float64(len(symbol))*50 + s.random()*200
	price := basePrice
	points := make([]models.PricePoint, 0, days+1)

	for i := days; i >= 0; i-- {
		change := (s.random() - 0.48) * (basePrice * 0.03)
		price = math.Max(10, price+change)

		points = append(points, models.PricePoint{
			Time:   now.Add(-time.Duration(i) * step).Format(isoLayout),
			Price:  price,
			Open:   models.Float(price - s.random()*price*0.01),
			High:   models.Float(price + s.random()*price*0.02),
			Low:    models.Float(price - s.random()*price*0.02),
			Volume: models.Float(math.Floor(1e6 + s.random()*9e6)),
			Close:  models.Float(price),
		})
	}

	return points
}

// uniformPrices is the last-resort series: days+1 daily points with prices
// drawn uniformly from [100, 1000) and no OHLC data
func (s *MarketDataService) uniformPrices(days int) []models.PricePoint {
	now := s.now().UTC()
	points := make([]models.PricePoint, 0, days+1)
	for i := days; i >= 0; i-- {
		points = append(points, models.PricePoint{
			Time:  now.AddDate(0, 0, -i).Format(isoLayout),
			Price: 100 + s.random()*900,
		})
	}
	return points
}

// mockTickerData prices the demo set, every figure rounded to two decimals
func (s *MarketDataService) mockTickerData() []models.TickerEntry {
	entries := make([]models.TickerEntry, 0, len(mockTickerStocks))
	for _, stock := range mockTickerStocks {
		basePrice := 100 + s.random()*1900
		change := (s.random() - 0.5) * 30

		entries = append(entries, models.TickerEntry{
			Symbol:        stock.Symbol,
			Name:          stock.Name,
			Price:         models.Round2(basePrice),
			Change:        models.Round2(change),
			ChangePercent: models.Round2(change / basePrice * 100),
			Volume:        math.Floor(1e6 + s.random()*9e6),
		})
	}
	return entries
}
