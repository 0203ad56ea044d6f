package observability

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stockpro"

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Upstream API metrics
	UpstreamRequestsTotal *prometheus.CounterVec
	UpstreamFailuresTotal *prometheus.CounterVec
	UpstreamDuration      *prometheus.HistogramVec
	FallbacksTotal        *prometheus.CounterVec

	// Response cache metrics
	CacheRequestsTotal *prometheus.CounterVec

	// Ticker metrics
	TickerRefreshesTotal *prometheus.CounterVec
	TickerEntries        prometheus.Gauge

	// Search flow metrics
	SearchSessionsActive prometheus.Gauge
	SearchRequestsTotal  *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// globalMetrics is the global metrics instance. Handlers of long-lived
// connections read it while tests swap it.
var globalMetrics atomic.Pointer[Metrics]

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	m := &Metrics{
		UpstreamRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Total number of upstream API requests",
			},
			[]string{"operation"},
		),
		// exposed as stockpro_upstream_failures_total
		UpstreamFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "failures_total",
				Help:      "Total number of upstream requests that yielded no data, by cause",
			},
			[]string{"operation", "cause"},
		),
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "duration_seconds",
				Help:      "Duration of upstream API calls in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation"},
		),
		FallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "fallbacks_total",
				Help:      "Total number of responses served from generated fallback data",
			},
			[]string{"operation"},
		),

		CacheRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "requests_total",
				Help:      "Response cache lookups by result",
			},
			[]string{"result"},
		),

		TickerRefreshesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ticker",
				Name:      "refreshes_total",
				Help:      "Ticker refreshes by outcome",
			},
			[]string{"outcome"},
		),
		TickerEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ticker",
				Name:      "entries",
				Help:      "Number of entries currently displayed by the ticker",
			},
		),

		SearchSessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "sessions_active",
				Help:      "Number of open search websocket sessions",
			},
		),
		SearchRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "requests_total",
				Help:      "Debounced searches by outcome",
			},
			[]string{"outcome"},
		),

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Size of HTTP responses in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),

		// Circuit breaker metrics
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"service"},
		),
	}

	return m
}

// InitMetrics initializes the global metrics instance on the default
// registry. The default instance is built once.
func InitMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(nil)
	})
	globalMetrics.Store(defaultMetrics)
	return defaultMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if m := globalMetrics.Load(); m != nil {
		return m
	}
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(nil)
	})
	globalMetrics.CompareAndSwap(nil, defaultMetrics)
	return globalMetrics.Load()
}

// SetMetrics replaces the global instance; tests use it with a private registry
func SetMetrics(m *Metrics) {
	globalMetrics.Store(m)
}

// RecordUpstreamRequest records an upstream API request
func (m *Metrics) RecordUpstreamRequest(operation string) {
	m.UpstreamRequestsTotal.WithLabelValues(operation).Inc()
}

// RecordUpstreamFailure records an upstream request that produced no data
func (m *Metrics) RecordUpstreamFailure(operation, cause string) {
	m.UpstreamFailuresTotal.WithLabelValues(operation, cause).Inc()
}

// RecordUpstreamDuration records the duration of an upstream API call
func (m *Metrics) RecordUpstreamDuration(operation string, duration time.Duration) {
	m.UpstreamDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFallback records a response served from generated data
func (m *Metrics) RecordFallback(operation string) {
	m.FallbacksTotal.WithLabelValues(operation).Inc()
}

// RecordCacheLookup records a response cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequestsTotal.WithLabelValues(result).Inc()
}

// RecordTickerRefresh records one poll and the number of entries on display
func (m *Metrics) RecordTickerRefresh(outcome string, entries int) {
	m.TickerRefreshesTotal.WithLabelValues(outcome).Inc()
	m.TickerEntries.Set(float64(entries))
}

// RecordSearch records a debounced search outcome
func (m *Metrics) RecordSearch(outcome string) {
	m.SearchRequestsTotal.WithLabelValues(outcome).Inc()
}

// SearchSessionOpened increments the active session gauge
func (m *Metrics) SearchSessionOpened() {
	m.SearchSessionsActive.Inc()
}

// SearchSessionClosed decrements the active session gauge
func (m *Metrics) SearchSessionClosed() {
	m.SearchSessionsActive.Dec()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration, responseSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// SetCircuitBreakerState sets the current state of a circuit breaker
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(service string) {
	m.CircuitBreakerTrips.WithLabelValues(service).Inc()
}

// Timer is a helper for timing operations
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer creates a new timer
func (m *Metrics) NewTimer() *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: m,
	}
}

// ObserveUpstream records the upstream call duration
func (t *Timer) ObserveUpstream(operation string) {
	t.metrics.RecordUpstreamDuration(operation, time.Since(t.start))
}

// Duration returns the elapsed time
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
