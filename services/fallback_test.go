package services

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpro/models"
)

func newOfflineService() *MarketDataService {
	return NewMarketDataService(
		WithRand(rand.New(rand.NewPCG(3, 5))),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func TestFilterFallbackSearch(t *testing.T) {
	tests := []struct {
		keyword string
		want    []string
	}{
		{"tcs", []string{"TCS"}},
		{"LIMITED", []string{"RELIANCE", "TCS", "INFY", "HDFC", "ICICI"}},
		{"finance", []string{"HDFC"}},
		{"reli", []string{"RELIANCE"}},
		{"zzz", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			got := filterFallbackSearch(tt.keyword)
			symbols := make([]string, 0, len(got))
			for _, r := range got {
				symbols = append(symbols, r.Symbol)
			}
			assert.Equal(t, tt.want, symbols)
		})
	}
}

func TestCompanyName(t *testing.T) {
	assert.Equal(t, "HDFC Bank Limited", CompanyName("HDFC"))
	assert.Equal(t, "Hindustan Unilever Limited", CompanyName("hindunilvr"))
	assert.Equal(t, "WIPRO Company Limited", CompanyName("WIPRO"))
	assert.Equal(t, "wipro Company Limited", CompanyName("wipro"))
}

func TestSyntheticDetails_PriceDependsOnSymbolLength(t *testing.T) {
	svc := newOfflineService()

	short := svc.syntheticDetails("ITC")
	long := svc.syntheticDetails("HINDUNILVR")

	assert.GreaterOrEqual(t, short.CurrentPrice, 250.0)
	assert.Less(t, short.CurrentPrice, 450.0)
	assert.GreaterOrEqual(t, long.CurrentPrice, 600.0)
	assert.Less(t, long.CurrentPrice, 800.0)
}

func TestRandomWalkPrices_Reproducible(t *testing.T) {
	a := newOfflineService().randomWalkPrices("TCS", 10, DefaultPriceType)
	b := newOfflineService().randomWalkPrices("TCS", 10, DefaultPriceType)

	require.Len(t, a, 11)
	assert.Equal(t, a, b)
	assert.Equal(t, "2024-03-05T09:30:00.000Z", a[0].Time)
	assert.Equal(t, "2024-03-15T09:30:00.000Z", a[10].Time)
}

func TestRandomWalkPrices_FloorsAtTen(t *testing.T) {
	svc := NewMarketDataService(
		WithClock(func() time.Time { return fixedNow }),
	)
	// a constant zero draw always walks down by 1.44% of the base
	svc.random = func() float64 { return 0 }

	prices := svc.randomWalkPrices("X", 200, DefaultPriceType)

	last := prices[len(prices)-1]
	assert.Equal(t, 10.0, last.Price)
	for _, p := range prices {
		assert.GreaterOrEqual(t, p.Price, 10.0)
	}
}

func TestMockTickerData_Names(t *testing.T) {
	entries := newOfflineService().mockTickerData()

	require.Len(t, entries, len(mockTickerStocks))
	for i, e := range entries {
		assert.Equal(t, mockTickerStocks[i].Symbol, e.Symbol)
		assert.Equal(t, mockTickerStocks[i].Name, e.Name)
		assert.Equal(t, models.Round2(e.Price), e.Price)
	}
}
