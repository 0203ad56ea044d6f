// Package mocks provides an HTTP mock of the upstream quote API used in E2E tests.
package mocks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Endpoint names used for failure injection and request counting.
const (
	EndpointSearch  = "search"
	EndpointPrices  = "prices"
	EndpointMovers  = "movers"
	EndpointDetails = "details"
)

// MockServer serves configurable upstream responses.
type MockServer struct {
	mu     sync.RWMutex
	server *httptest.Server

	// Response configurations
	searchResults []SearchItem
	prices        map[string][]PriceRow // key: upper-case symbol
	movers        []Mover
	quotes        map[string]Quote

	// Error injection, keyed by endpoint name
	failures map[string]Failure

	// Request tracking for assertions
	requestLog []RequestLog
}

// RequestLog records incoming requests for test assertions.
type RequestLog struct {
	Endpoint  string
	Path      string
	Query     string
	UserAgent string
}

// NewMockServer creates a new mock server with default responses.
func NewMockServer() *MockServer {
	m := &MockServer{
		prices:     make(map[string][]PriceRow),
		quotes:     make(map[string]Quote),
		failures:   make(map[string]Failure),
		requestLog: make([]RequestLog, 0),
	}
	m.setDefaults()
	m.server = httptest.NewServer(m)
	return m
}

// URL returns the mock server's base URL.
func (m *MockServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	m.server.Close()
}

func (m *MockServer) setDefaults() {
	m.searchResults = []SearchItem{
		{Symbol: "TCS", Name: "Tata Consultancy Services Ltd."},
		{Symbol: "TATAMOTORS", CompanyName: "Tata Motors Ltd."},
		{Symbol: "TATASTEEL", Name: "Tata Steel Ltd."},
	}
	m.prices["TCS"] = []PriceRow{
		{Date: "2024-03-13", Close: 3850.4, Volume: 1200000},
		{Date: "2024-03-14", Close: 3921.25, Volume: 1350000},
		{Date: "2024-03-15", Close: 3897.5, Volume: 990000},
	}
	m.movers = []Mover{
		{Symbol: "RELIANCE", LastPrice: 2856.15, NetChange: 42.35, PChange: 1.51},
		{Symbol: "TCS", LastPrice: 3897.5, NetChange: -23.75, PChange: -0.61},
		{Symbol: "ITC", LastPrice: 435.75, NetChange: 5.25},
	}
}

// ServeHTTP implements http.Handler to route requests to the mocked endpoints.
func (m *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	endpoint, symbol := classify(r.URL.Path)

	m.mu.Lock()
	m.requestLog = append(m.requestLog, RequestLog{
		Endpoint:  endpoint,
		Path:      r.URL.Path,
		Query:     r.URL.RawQuery,
		UserAgent: r.UserAgent(),
	})
	failure, failing := m.failures[endpoint]
	m.mu.Unlock()

	if failing {
		ct := failure.ContentType
		if ct == "" {
			ct = "application/json"
		}
		w.Header().Set("Content-Type", ct)
		w.WriteHeader(failure.Status)
		w.Write([]byte(failure.Body))
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	switch endpoint {
	case EndpointSearch:
		keyword := strings.ToLower(r.URL.Query().Get("keyword"))
		matches := make([]SearchItem, 0)
		for _, item := range m.searchResults {
			name := item.Name + item.CompanyName
			if strings.Contains(strings.ToLower(item.Symbol), keyword) || strings.Contains(strings.ToLower(name), keyword) {
				matches = append(matches, item)
			}
		}
		writeJSON(w, matches)
	case EndpointPrices:
		rows, ok := m.prices[symbol]
		if !ok {
			rows = []PriceRow{}
		}
		writeJSON(w, rows)
	case EndpointMovers:
		writeJSON(w, map[string]any{"data": m.movers})
	case EndpointDetails:
		quote, ok := m.quotes[symbol]
		if !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		writeJSON(w, quote)
	default:
		http.NotFound(w, r)
	}
}

// classify maps an upstream path to its endpoint name and symbol
func classify(path string) (endpoint, symbol string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "search":
		return EndpointSearch, ""
	case len(parts) == 3 && parts[0] == "stock" && parts[2] == "prices":
		return EndpointPrices, strings.ToUpper(parts[1])
	case len(parts) == 3 && parts[0] == "index" && parts[2] == "movers":
		return EndpointMovers, ""
	case len(parts) == 2 && parts[0] == "stock":
		return EndpointDetails, strings.ToUpper(parts[1])
	}
	return "", ""
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// SetSearchResults replaces the search catalogue.
func (m *MockServer) SetSearchResults(items []SearchItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchResults = items
}

// SetPrices sets the price rows served for symbol.
func (m *MockServer) SetPrices(symbol string, rows []PriceRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[strings.ToUpper(symbol)] = rows
}

// SetMovers replaces the index movers.
func (m *MockServer) SetMovers(movers []Mover) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movers = movers
}

// SetQuote sets the details served for symbol.
func (m *MockServer) SetQuote(symbol string, q Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[strings.ToUpper(symbol)] = q
}

// Fail makes endpoint answer with f until Recover is called.
func (m *MockServer) Fail(endpoint string, f Failure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[endpoint] = f
}

// Recover clears the failure injected for endpoint.
func (m *MockServer) Recover(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, endpoint)
}

// Requests returns the logged requests to endpoint, or all of them when
// endpoint is empty.
func (m *MockServer) Requests(endpoint string) []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RequestLog, 0, len(m.requestLog))
	for _, r := range m.requestLog {
		if endpoint == "" || r.Endpoint == endpoint {
			out = append(out, r)
		}
	}
	return out
}

// Reset restores the defaults and clears failures and the request log.
func (m *MockServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices = make(map[string][]PriceRow)
	m.quotes = make(map[string]Quote)
	m.failures = make(map[string]Failure)
	m.requestLog = make([]RequestLog, 0)
	m.setDefaults()
}
