package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"stockpro/models"
	"stockpro/observability"
	"stockpro/services/cache"
)

const (
	DefaultBaseURL   = "https://portal.tradebrains.in/api/assignment"
	DefaultUserAgent = "StockTickerApp/1.0"

	DefaultPriceDays  = 7
	DefaultPriceType  = "DAILY"
	DefaultPriceLimit = 50

	DefaultTickerIndex = "NIFTY"

	DefaultTimeout = 10 * time.Second

	minKeywordLength = 2
	searchLength     = 10
	maxBodyBytes     = 10 << 20
)

// Operation labels used in logs and metrics
const (
	OpSearch  = "search"
	OpDetails = "details"
	OpPrices  = "prices"
	OpTicker  = "ticker"
)

// Causes of an upstream call producing no data
const (
	CauseTransport   = "transport"
	CauseStatus      = "status"
	CauseContentType = "content_type"
	CauseDecode      = "decode"
	CauseBreakerOpen = "breaker_open"
	CauseTimeout     = "timeout"
	CauseCanceled    = "canceled"
)

// UpstreamError describes why a request to the quote API yielded no data
type UpstreamError struct {
	Cause      string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("upstream %s: HTTP %d", e.Cause, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("upstream %s: %v", e.Cause, e.Err)
	default:
		return "upstream " + e.Cause
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// errorCause classifies err into one of the Cause* labels
func errorCause(err error) string {
	var upstreamErr *UpstreamError
	switch {
	case errors.As(err, &upstreamErr):
		return upstreamErr.Cause
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return CauseBreakerOpen
	case errors.Is(err, context.DeadlineExceeded):
		return CauseTimeout
	case errors.Is(err, context.Canceled):
		return CauseCanceled
	default:
		return CauseTransport
	}
}

// MarketDataService talks to the Trade Brains assignment API. None of its
// operations fail: whenever the upstream has nothing usable to say, the
// answer is generated locally.
type MarketDataService struct {
	baseURL        string
	userAgent      string
	httpClient     *http.Client
	timeout        time.Duration
	retry          RetryConfig
	detailsEnabled bool

	cache    cache.BytesCache
	cacheTTL time.Duration

	group  singleflight.Group
	random func() float64
	now    func() time.Time
}

// Option configures a MarketDataService
type Option func(*MarketDataService)

// WithBaseURL points the service at another API root
func WithBaseURL(baseURL string) Option {
	return func(s *MarketDataService) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(s *MarketDataService) {
		s.httpClient = client
	}
}

// WithTimeout bounds one shared upstream round trip, retries included
func WithTimeout(d time.Duration) Option {
	return func(s *MarketDataService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(userAgent string) Option {
	return func(s *MarketDataService) {
		s.userAgent = userAgent
	}
}

// WithRetryConfig enables retries with backoff
func WithRetryConfig(cfg RetryConfig) Option {
	return func(s *MarketDataService) {
		s.retry = cfg
	}
}

// WithDetailsEndpoint makes GetStockDetails query /stock/{symbol}/ before
// synthesizing
func WithDetailsEndpoint(enabled bool) Option {
	return func(s *MarketDataService) {
		s.detailsEnabled = enabled
	}
}

// WithCache caches successful raw response bodies for ttl
func WithCache(c cache.BytesCache, ttl time.Duration) Option {
	return func(s *MarketDataService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithRand makes generated data reproducible
func WithRand(r *rand.Rand) Option {
	var mu sync.Mutex
	return func(s *MarketDataService) {
		s.random = func() float64 {
			mu.Lock()
			defer mu.Unlock()
			return r.Float64()
		}
	}
}

// WithClock sets the time source used to stamp generated series
func WithClock(now func() time.Time) Option {
	return func(s *MarketDataService) {
		s.now = now
	}
}

// NewMarketDataService creates a new MarketDataService instance
func NewMarketDataService(opts ...Option) *MarketDataService {
	s := &MarketDataService{
		baseURL:    DefaultBaseURL,
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		timeout:    DefaultTimeout,
		retry:      DefaultRetryConfig,
		random:     rand.Float64,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchStocks looks up symbols and company names matching keyword. Keywords
// shorter than two characters match nothing and cause no request.
func (s *MarketDataService) SearchStocks(ctx context.Context, keyword string) []models.SearchResult {
	if utf8.RuneCountInString(keyword) < minKeywordLength {
		return []models.SearchResult{}
	}

	params := url.Values{}
	params.Set("keyword", keyword)
	params.Set("length", strconv.Itoa(searchLength))

	data, err := s.fetchJSON(ctx, OpSearch, "/search?"+params.Encode())
	if err != nil || !data.IsArray() {
		if err == nil {
			observability.WithOperation(OpSearch).Warn("unexpected search payload", "type", data.Type.String())
		}
		s.recordFallback(OpSearch)
		return filterFallbackSearch(keyword)
	}

	results := make([]models.SearchResult, 0)
	data.ForEach(func(_, item gjson.Result) bool {
		result := models.SearchResult{
			Symbol: searchSymbolFields.String(item, ""),
			Name:   searchNameFields.String(item, ""),
		}
		if result.Symbol != "" && result.Name != "" {
			results = append(results, result)
		}
		return true
	})
	return results
}

// GetStockDetails returns header figures for symbol. The figures are
// synthesized unless the details endpoint is enabled and answers usefully.
func (s *MarketDataService) GetStockDetails(ctx context.Context, symbol string) *models.StockDetails {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if s.detailsEnabled {
		if details, ok := s.fetchDetails(ctx, symbol); ok {
			return details
		}
		s.recordFallback(OpDetails)
	}

	return s.syntheticDetails(symbol)
}

func (s *MarketDataService) fetchDetails(ctx context.Context, symbol string) (*models.StockDetails, bool) {
	data, err := s.fetchJSON(ctx, OpDetails, "/stock/"+url.PathEscape(symbol)+"/")
	if err != nil {
		return nil, false
	}

	item := data
	switch {
	case data.IsArray():
		item = data.Get("0")
	case data.Get("data").IsObject():
		item = data.Get("data")
	}

	price := detailsPriceFields.Float(item, 0)
	if price <= 0 {
		return nil, false
	}

	change := detailsChangeFields.Float(item, 0)
	percent := detailsPercentFields.Float(item, change/price*100)

	return &models.StockDetails{
		Symbol:        symbol,
		Name:          detailsNameFields.String(item, CompanyName(symbol)),
		CurrentPrice:  price,
		Change:        change,
		ChangePercent: percent,
		Industry:      detailsIndustry.String(item, ""),
		Sector:        detailsSector.String(item, ""),
		MarketCap:     detailsMarketCap.Float(item, 0),
	}, true
}

// GetStockPrices returns the price series of symbol over the last days.
// Non-positive limit and empty priceType take their defaults, negative days
// count as zero. The result always has a point for every requested day when
// generated; upstream series are passed through minus non-positive prices.
func (s *MarketDataService) GetStockPrices(ctx context.Context, symbol string, days int, priceType string, limit int) (prices []models.PricePoint) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if days < 0 {
		days = 0
	}
	if priceType == "" {
		priceType = DefaultPriceType
	}
	if limit <= 0 {
		limit = DefaultPriceLimit
	}

	defer func() {
		if r := recover(); r != nil {
			observability.WithSymbol(symbol).Error("price series normalization failed", "panic", r)
			s.recordFallback(OpPrices)
			prices = s.uniformPrices(days)
		}
	}()

	params := url.Values{}
	params.Set("days", strconv.Itoa(days))
	params.Set("type", priceType)
	params.Set("limit", strconv.Itoa(limit))

	data, err := s.fetchJSON(ctx, OpPrices, "/stock/"+url.PathEscape(symbol)+"/prices?"+params.Encode())
	if err != nil || !data.IsArray() || len(data.Array()) == 0 {
		s.recordFallback(OpPrices)
		return s.randomWalkPrices(symbol, days, priceType)
	}

	return s.normalizePrices(data)
}

func (s *MarketDataService) normalizePrices(data gjson.Result) []models.PricePoint {
	now := s.now().UTC().Format(isoLayout)
	points := make([]models.PricePoint, 0)

	data.ForEach(func(_, item gjson.Result) bool {
		point := models.PricePoint{
			Time:   priceTimeFields.String(item, now),
			Price:  priceValueFields.Float(item, 0),
			Volume: priceVolumeFields.Optional(item),
			Open:   priceOpenFields.Optional(item),
			High:   priceHighFields.Optional(item),
			Low:    priceLowFields.Optional(item),
			Close:  priceCloseFields.Optional(item),
		}
		if point.Price > 0 {
			points = append(points, point)
		}
		return true
	})

	return points
}

// GetTickerData returns the movers of index for the ticker bar, or the demo
// set when the upstream has none
func (s *MarketDataService) GetTickerData(ctx context.Context, index string) []models.TickerEntry {
	if index == "" {
		index = DefaultTickerIndex
	}

	data, err := s.fetchJSON(ctx, OpTicker, "/index/"+url.PathEscape(index)+"/movers/")
	if err != nil {
		s.recordFallback(OpTicker)
		return s.mockTickerData()
	}

	items, ok := unwrapMovers(data)
	if !ok {
		observability.WithOperation(OpTicker).Warn("unexpected movers payload", "type", data.Type.String())
		s.recordFallback(OpTicker)
		return s.mockTickerData()
	}

	entries := normalizeTicker(items)
	if len(entries) == 0 {
		s.recordFallback(OpTicker)
		return s.mockTickerData()
	}
	return entries
}

// unwrapMovers accepts a bare array, an object wrapping one under data,
// movers or results, or a lone object
func unwrapMovers(data gjson.Result) ([]gjson.Result, bool) {
	switch {
	case data.IsArray():
		return data.Array(), true
	case data.IsObject():
		for _, key := range []string{"data", "movers", "results"} {
			if v := data.Get(key); v.IsArray() {
				return v.Array(), true
			}
		}
		return []gjson.Result{data}, true
	default:
		return nil, false
	}
}

const unknownSymbol = "UNKNOWN"

func normalizeTicker(items []gjson.Result) []models.TickerEntry {
	entries := make([]models.TickerEntry, 0, len(items))
	for _, item := range items {
		price := tickerPriceFields.Float(item, 0)
		change := tickerChangeFields.Float(item, 0)

		derived := 0.0
		if change != 0 && price != 0 {
			derived = change / price * 100
		}

		entry := models.TickerEntry{
			Symbol:        tickerSymbolFields.String(item, unknownSymbol),
			Name:          tickerNameFields.String(item, ""),
			Price:         price,
			Change:        change,
			ChangePercent: tickerPercentFields.Float(item, derived),
			Volume:        tickerVolumeFields.Float(item, 0),
		}
		if entry.Symbol == unknownSymbol || entry.Price <= 0 {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// fetchJSON GETs endpoint and returns the parsed body. Identical concurrent
// requests share one round trip, and successful bodies may be served from
// the response cache. The shared round trip is detached from any single
// caller, so one caller giving up does not fail the others.
func (s *MarketDataService) fetchJSON(ctx context.Context, operation, endpoint string) (gjson.Result, error) {
	metrics := observability.GetMetrics()
	logger := observability.WithContext(ctx).With("operation", operation)

	if body, ok := s.cached(ctx, endpoint); ok {
		return gjson.ParseBytes(body), nil
	}

	if err := ctx.Err(); err != nil {
		metrics.RecordUpstreamFailure(operation, errorCause(err))
		return gjson.Result{}, err
	}

	metrics.RecordUpstreamRequest(operation)
	timer := metrics.NewTimer()

	ch := s.group.DoChan(endpoint, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		body, err := WithCircuitBreaker(callCtx, BreakerTradeBrains, func() ([]byte, error) {
			return fetchWithRetry(callCtx, s.retry, func() ([]byte, error) {
				return s.get(callCtx, endpoint)
			})
		})
		if err == nil {
			s.store(callCtx, endpoint, body)
		}
		return body, err
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res = singleflight.Result{Err: ctx.Err()}
	}
	timer.ObserveUpstream(operation)

	if res.Err != nil {
		cause := errorCause(res.Err)
		metrics.RecordUpstreamFailure(operation, cause)
		logger.Warn("upstream request yielded no data", "endpoint", endpoint, "cause", cause, "error", res.Err)
		return gjson.Result{}, res.Err
	}

	body := res.Val.([]byte)
	logger.Debug("upstream request succeeded", "endpoint", endpoint, "bytes", len(body), "shared", res.Shared)
	return gjson.ParseBytes(body), nil
}

func (s *MarketDataService) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &UpstreamError{Cause: CauseStatus, StatusCode: resp.StatusCode}
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return nil, &UpstreamError{Cause: CauseContentType, Err: fmt.Errorf("content type %q", ct)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &UpstreamError{Cause: CauseTransport, Err: err}
	}
	if !gjson.ValidBytes(body) {
		return nil, &UpstreamError{Cause: CauseDecode, Err: errors.New("invalid JSON body")}
	}

	return body, nil
}

func (s *MarketDataService) cached(ctx context.Context, endpoint string) ([]byte, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil, false
	}

	body, err := s.cache.GetBytes(ctx, endpoint)
	hit := err == nil
	observability.GetMetrics().RecordCacheLookup(hit)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		observability.Warn("response cache read failed", "endpoint", endpoint, "error", err)
	}
	return body, hit
}

func (s *MarketDataService) store(ctx context.Context, endpoint string, body []byte) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	if err := s.cache.SetBytes(ctx, endpoint, body, s.cacheTTL); err != nil {
		observability.Warn("response cache write failed", "endpoint", endpoint, "error", err)
	}
}

func (s *MarketDataService) recordFallback(operation string) {
	observability.GetMetrics().RecordFallback(operation)
}
