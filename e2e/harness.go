// Package e2e provides end-to-end testing infrastructure for stockpro. The
// full router runs against a mock of the upstream quote API.
package e2e

import (
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"stockpro/config"
	"stockpro/e2e/mocks"
	"stockpro/internal/api"
	"stockpro/internal/app"
	"stockpro/internal/catalog"
	"stockpro/internal/ticker"
	"stockpro/observability"
	"stockpro/services"
	"stockpro/services/cache"
)

// FixedNow is the clock of every harness
var FixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

// TestHarness provides the infrastructure for running E2E tests.
type TestHarness struct {
	t          *testing.T
	ctx        context.Context
	cancel     context.CancelFunc
	mockServer *mocks.MockServer
	market     *services.MarketDataService
	catalog    *catalog.Catalog
	poller     *ticker.Poller
	app        *app.App
	router     http.Handler
	config     *config.Config
	metrics    *observability.Metrics
}

// Option adjusts the configuration before the harness wires its components
type Option func(*config.Config)

// NewTestHarness creates a new test harness. Call Setup before use.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)

	return &TestHarness{
		t:      t,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Setup initializes all test dependencies.
func (h *TestHarness) Setup(opts ...Option) error {
	h.mockServer = mocks.NewMockServer()

	h.config = h.createTestConfig()
	for _, opt := range opts {
		opt(h.config)
	}

	// Isolate breaker state and metrics from other tests
	services.SetGlobalRegistry(services.NewCircuitBreakerRegistry(services.DefaultCircuitBreakerConfig))
	h.metrics = observability.NewMetrics(prometheus.NewRegistry())
	observability.SetMetrics(h.metrics)

	clock := func() time.Time { return FixedNow }

	h.market = services.NewMarketDataService(
		services.WithBaseURL(h.config.Upstream.BaseURL),
		services.WithUserAgent(h.config.Upstream.UserAgent),
		services.WithHTTPClient(&http.Client{Timeout: h.config.Upstream.Timeout()}),
		services.WithTimeout(h.config.Upstream.Timeout()),
		services.WithDetailsEndpoint(h.config.Upstream.DetailsEnabled),
		services.WithCache(cache.NewMemoryCache(0), h.config.Upstream.CacheTTL()),
		services.WithRand(rand.New(rand.NewPCG(1, 2))),
		services.WithClock(clock),
	)

	var err error
	h.catalog, err = catalog.NewPopular()
	if err != nil {
		return err
	}

	h.poller = ticker.NewPoller(h.market,
		ticker.WithIndex(h.config.Ticker.Index),
		ticker.WithInterval(h.config.Ticker.Interval()),
		ticker.WithClock(clock),
	)

	h.app = app.New(h.config, h.market, h.catalog, h.poller,
		app.WithRand(rand.New(rand.NewPCG(3, 4))),
		app.WithClock(clock),
	)

	handler := api.NewHandler(h.app, h.config)
	handler.SetTickerFeed(h.poller)
	h.router = api.NewRouter(handler, h.config)

	return nil
}

// Teardown cleans up all test resources.
func (h *TestHarness) Teardown() {
	if h.cancel != nil {
		h.cancel()
	}
	if h.poller != nil {
		h.poller.Stop()
	}
	if h.catalog != nil {
		h.catalog.Close()
	}
	if h.mockServer != nil {
		h.mockServer.Close()
	}
}

// Context returns the test context.
func (h *TestHarness) Context() context.Context {
	return h.ctx
}

// MockServer returns the mock upstream for configuring responses.
func (h *TestHarness) MockServer() *mocks.MockServer {
	return h.mockServer
}

// App returns the application instance.
func (h *TestHarness) App() *app.App {
	return h.app
}

// Poller returns the ticker poller. It only refreshes when told to.
func (h *TestHarness) Poller() *ticker.Poller {
	return h.poller
}

// Router returns the HTTP router for making requests.
func (h *TestHarness) Router() http.Handler {
	return h.router
}

// Config returns the test configuration.
func (h *TestHarness) Config() *config.Config {
	return h.config
}

// Metrics returns the metrics recorded during this harness's lifetime.
func (h *TestHarness) Metrics() *observability.Metrics {
	return h.metrics
}

// RefreshTicker runs one poller refresh against the mock upstream.
func (h *TestHarness) RefreshTicker() {
	h.poller.Refresh(h.ctx)
}

// DoRequest performs an HTTP request and returns the response.
func (h *TestHarness) DoRequest(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// DoHTMXRequest performs an HTMX request and returns the response.
func (h *TestHarness) DoHTMXRequest(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("HX-Request", "true")

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// DialSearch serves the router over a real listener and opens a search
// socket. Both are closed when the test ends.
func (h *TestHarness) DialSearch() (*websocket.Conn, error) {
	srv := httptest.NewServer(h.router)
	h.t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/search"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	h.t.Cleanup(func() { conn.Close() })
	return conn, nil
}

func (h *TestHarness) createTestConfig() *config.Config {
	cfg := config.NewTestConfig()

	// Point the upstream at the mock server
	cfg.Upstream.BaseURL = h.mockServer.URL()
	cfg.Upstream.TimeoutSeconds = 2
	cfg.Search.DebounceMS = 10

	return cfg
}

// WithDetailsEndpoint enables the upstream details endpoint
func WithDetailsEndpoint() Option {
	return func(c *config.Config) {
		c.Upstream.DetailsEnabled = true
	}
}

// WithResponseCache caches upstream bodies for ttl
func WithResponseCache(ttl time.Duration) Option {
	return func(c *config.Config) {
		c.Upstream.CacheTTLSeconds = int(ttl / time.Second)
	}
}
