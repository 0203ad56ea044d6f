package services

import (
	"context"

	"stockpro/models"
)

// MarketDataServiceInterface defines the quote/search operations the
// application depends on
type MarketDataServiceInterface interface {
	SearchStocks(ctx context.Context, keyword string) []models.SearchResult
	GetStockDetails(ctx context.Context, symbol string) *models.StockDetails
	GetStockPrices(ctx context.Context, symbol string, days int, priceType string, limit int) []models.PricePoint
	GetTickerData(ctx context.Context, index string) []models.TickerEntry
}

// Compile-time interface verification
var _ MarketDataServiceInterface = (*MarketDataService)(nil)
