package app

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"stockpro/config"
	"stockpro/models"
	"stockpro/observability"
	"stockpro/services"
)

const (
	// DetailDays is the span of the detail page chart
	DetailDays = 30
)

// CatalogInterface defines the popular-stock lookups needed by App
type CatalogInterface interface {
	All() []models.PopularStock
	Search(query string) ([]models.PopularStock, error)
}

// TickerInterface defines the ticker poller state needed by App
type TickerInterface interface {
	Snapshot() models.TickerSnapshot
	Index() string
}

// App struct holds application dependencies using interfaces for testability
type App struct {
	cfg     *config.Config
	market  services.MarketDataServiceInterface
	catalog CatalogInterface
	ticker  TickerInterface

	random func() float64
	now    func() time.Time
}

// Option configures an App
type Option func(*App)

// WithRand makes derived statistics reproducible
func WithRand(r *rand.Rand) Option {
	var mu sync.Mutex
	return func(a *App) {
		a.random = func() float64 {
			mu.Lock()
			defer mu.Unlock()
			return r.Float64()
		}
	}
}

// WithClock sets the time shown as "as of" on detail pages
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// New creates a new App application struct
func New(cfg *config.Config, market services.MarketDataServiceInterface, catalog CatalogInterface, ticker TickerInterface, opts ...Option) *App {
	a := &App{
		cfg:     cfg,
		market:  market,
		catalog: catalog,
		ticker:  ticker,
		random:  rand.Float64,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the application configuration
func (a *App) Config() *config.Config {
	return a.cfg
}

// Market returns the market data service for API handlers
func (a *App) Market() services.MarketDataServiceInterface {
	return a.market
}

// SearchStocks looks up stocks by keyword through the market data service
func (a *App) SearchStocks(ctx context.Context, keyword string) []models.SearchResult {
	return a.market.SearchStocks(ctx, keyword)
}

// PopularStocks returns the fixed popular list
func (a *App) PopularStocks() []models.PopularStock {
	if a.catalog == nil {
		return []models.PopularStock{}
	}
	return a.catalog.All()
}

// SearchCatalog filters the popular list
func (a *App) SearchCatalog(query string) ([]models.PopularStock, error) {
	if a.catalog == nil {
		return nil, fmt.Errorf("catalog not initialized")
	}
	return a.catalog.Search(query)
}

// Ticker returns the current ticker bar state
func (a *App) Ticker() models.TickerSnapshot {
	if a.ticker == nil {
		return models.TickerSnapshot{State: models.TickerStateEmpty}
	}
	return a.ticker.Snapshot()
}

// Statistics are the display-only figures of the detail page. None of them
// come from the upstream API.
type Statistics struct {
	Open          float64 `json:"open"`
	Week52High    float64 `json:"week52High"`
	Week52Low     float64 `json:"week52Low"`
	Volume        float64 `json:"volume"`
	MarketCap     float64 `json:"marketCap"`
	PERatio       float64 `json:"peRatio"`
	EPS           float64 `json:"eps"`
	DividendYield float64 `json:"dividendYield"`
	Beta          float64 `json:"beta"`
}

// MarketCapCrore is the market cap in crore (1e7) rupees
func (s Statistics) MarketCapCrore() float64 {
	return s.MarketCap / 1e7
}

// PerformanceItem is one row of the performance block
type PerformanceItem struct {
	Label    string  `json:"label"`
	Percent  float64 `json:"percent"`
	Positive bool    `json:"positive"`
}

// DetailView is everything the detail page renders for one symbol
type DetailView struct {
	Details     *models.StockDetails `json:"details"`
	Prices      []models.PricePoint  `json:"prices"`
	LastPrice   float64              `json:"lastPrice"`
	Stats       Statistics           `json:"stats"`
	Performance []PerformanceItem    `json:"performance"`
	Chart       Chart                `json:"chart"`
	About       string               `json:"about"`
	AsOf        time.Time            `json:"asOf"`
}

// IsPositive reports whether the day change is zero or up
func (v *DetailView) IsPositive() bool {
	return v.Details.IsPositive()
}

// Monogram is the two-letter badge shown next to the company name
func (v *DetailView) Monogram() string {
	r := []rune(v.Details.Symbol)
	return string(r[:min(2, len(r))])
}

// StockView gathers details and the 30-day daily series of symbol and
// derives the display statistics. The headline price and every statistic
// come from the details' current price; the series only feeds the chart.
func (a *App) StockView(ctx context.Context, symbol string) *DetailView {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	logger := observability.WithSymbol(symbol)

	details := a.market.GetStockDetails(ctx, symbol)
	prices := a.market.GetStockPrices(ctx, symbol, DetailDays, services.DefaultPriceType, services.DefaultPriceLimit)

	price := details.CurrentPrice
	volume := math.Floor(2.5e6 + a.random()*7.5e6)

	view := &DetailView{
		Details:   details,
		Prices:    prices,
		LastPrice: price,
		Stats: Statistics{
			Open:          price,
			Volume:        volume,
			MarketCap:     price * volume,
			PERatio:       models.Round2(15 + a.random()*25),
			EPS:           models.Round2(5 + a.random()*15),
			DividendYield: models.Round2(1 + a.random()*4),
			Beta:          models.Round2(0.8 + a.random()*0.6),
			Week52High:    price * (1 + a.random()*0.3),
			Week52Low:     price * (0.7 + a.random()*0.2),
		},
		Chart: NewChart(prices),
		About: about(details),
		AsOf:  a.now(),
	}
	view.Performance = []PerformanceItem{
		{Label: "Today", Percent: details.ChangePercent, Positive: details.IsPositive()},
		{Label: "Week", Percent: a.random() * 3, Positive: true},
		{Label: "Month", Percent: a.random() * 8, Positive: true},
		{Label: "YTD", Percent: a.random() * 15, Positive: true},
	}

	logger.Debug("detail view built", "points", len(prices), "last_price", view.LastPrice)
	return view
}

func about(d *models.StockDetails) string {
	sector := d.Sector
	if sector == "" {
		sector = "financial"
	}
	return fmt.Sprintf("%s (%s) is a leading company in the %s sector, trading on both the "+
		"National Stock Exchange (NSE) and Bombay Stock Exchange (BSE).", d.Name, d.Symbol, sector)
}
