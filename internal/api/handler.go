package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"stockpro/config"
	"stockpro/internal/app"
	"stockpro/models"
	"stockpro/observability"
	"stockpro/services"
	"stockpro/views"

	"github.com/creasty/defaults"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9&.-]{1,20}$`)

var validate = validator.New()

// TickerFeed publishes ticker snapshots to live search sessions
type TickerFeed interface {
	Subscribe() (<-chan models.TickerSnapshot, func())
}

// Handler handles HTTP API requests
type Handler struct {
	app      *app.App
	cfg      *config.Config
	feed     TickerFeed
	upgrader websocket.Upgrader
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	h := &Handler{app: application, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(cfg.Server.CORSAllowedOrigins, r.Header.Get("Origin"))
		},
	}
	return h
}

// SetTickerFeed enables ticker pushes on search sockets
func (h *Handler) SetTickerFeed(feed TickerFeed) {
	h.feed = feed
}

// HandleLanding serves the landing page
func (h *Handler) HandleLanding(w http.ResponseWriter, r *http.Request) {
	h.htmlResponse(w, views.Landing(views.LandingData{Ticker: h.app.Ticker()}), r)
}

// HandleSearchPage serves the search page
func (h *Handler) HandleSearchPage(w http.ResponseWriter, r *http.Request) {
	h.htmlResponse(w, views.Search(views.SearchData{
		Ticker:         h.app.Ticker(),
		Popular:        h.app.PopularStocks(),
		MinQueryLength: h.cfg.Search.MinQueryLength,
	}), r)
}

// HandleStockPage serves the detail page of one symbol
func (h *Handler) HandleStockPage(w http.ResponseWriter, r *http.Request) {
	symbol, err := h.ValidateSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		h.htmlPageError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	view := h.app.StockView(r.Context(), symbol)
	h.htmlResponse(w, views.Stock(views.StockData{Ticker: h.app.Ticker(), View: view}), r)
}

// HandleTickerPartial serves the ticker bar fragment polled by htmx
func (h *Handler) HandleTickerPartial(w http.ResponseWriter, r *http.Request) {
	h.htmlResponse(w, views.TickerBar(h.app.Ticker()), r)
}

// HandleNotFound answers unknown routes with JSON under /api and a page elsewhere
func (h *Handler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	h.htmlPageError(w, r, "Page not found", http.StatusNotFound)
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ticker := h.app.Ticker()
	status := map[string]interface{}{
		"status": "ok",
		"ticker": map[string]interface{}{
			"index":   h.tickerIndex(),
			"state":   ticker.State,
			"entries": len(ticker.Entries),
		},
	}

	cbStatus := services.GetGlobalRegistry().Status()
	status["circuit_breakers"] = cbStatus

	// An open breaker means pages are being served from fallback data
	if open := services.GetGlobalRegistry().OpenBreakers(); len(open) > 0 {
		status["status"] = "degraded"
		status["open_breakers"] = open
	}

	h.jsonResponse(w, status)
}

// HandleSearch returns upstream search results for ?keyword=
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	h.jsonResponse(w, h.app.SearchStocks(r.Context(), keyword))
}

// HandleCatalog filters the popular stock list with ?q=
func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		h.jsonResponse(w, h.app.PopularStocks())
		return
	}

	stocks, err := h.app.SearchCatalog(q)
	if err != nil {
		observability.WithError(err).Error("catalog search failed", "query", q)
		h.jsonError(w, "catalog unavailable", http.StatusServiceUnavailable)
		return
	}
	h.jsonResponse(w, stocks)
}

// HandleStockDetails returns the quote of one symbol
func (h *Handler) HandleStockDetails(w http.ResponseWriter, r *http.Request) {
	symbol, err := h.ValidateSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.jsonResponse(w, h.app.Market().GetStockDetails(r.Context(), symbol))
}

// PricesQuery holds the query parameters of the price history endpoint
type PricesQuery struct {
	Days  *int   `default:"7" validate:"gte=1,lte=3650"`
	Type  string `default:"DAILY" validate:"alpha,max=16"`
	Limit *int   `default:"50" validate:"gte=1,lte=1000"`
}

// HandleStockPrices returns the price history of one symbol
func (h *Handler) HandleStockPrices(w http.ResponseWriter, r *http.Request) {
	symbol, err := h.ValidateSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	q, err := ParsePricesQuery(r.URL.Query())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.jsonResponse(w, h.app.Market().GetStockPrices(r.Context(), symbol, *q.Days, q.Type, *q.Limit))
}

// HandleTicker returns the poller's current snapshot
func (h *Handler) HandleTicker(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.Ticker())
}

// ParsePricesQuery reads days, type and limit, filling in defaults for
// absent values
func ParsePricesQuery(values url.Values) (*PricesQuery, error) {
	q := &PricesQuery{Type: strings.ToUpper(strings.TrimSpace(values.Get("type")))}

	for name, dst := range map[string]**int{"days": &q.Days, "limit": &q.Limit} {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s parameter: %q is not a number", name, raw)
		}
		*dst = &n
	}

	if err := defaults.Set(q); err != nil {
		return nil, fmt.Errorf("apply query defaults: %w", err)
	}

	if err := validate.Struct(q); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			fe := fieldErrors[0]
			return nil, fmt.Errorf("invalid %s parameter: must satisfy %s", strings.ToLower(fe.Field()), queryRule(fe))
		}
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	return q, nil
}

func queryRule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

func (h *Handler) tickerIndex() string {
	return h.cfg.Ticker.Index
}

// Helper functions

// isHTMXRequest checks if the request is from HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// templComponent matches the templ.Component interface
type templComponent interface {
	Render(ctx context.Context, w io.Writer) error
}

// htmlResponse renders a templ component as HTML
func (h *Handler) htmlResponse(w http.ResponseWriter, component templComponent, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		observability.WithError(err).Error("render failed", "path", r.URL.Path)
	}
}

// htmlPageError renders a full error page, or only the error state for htmx swaps
func (h *Handler) htmlPageError(w http.ResponseWriter, r *http.Request, message string, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	var component templComponent = views.ErrorPage(views.ErrorData{Status: status, Message: message})
	if isHTMXRequest(r) {
		component = views.ErrorState(message)
	}
	if err := component.Render(r.Context(), w); err != nil {
		observability.WithError(err).Error("render failed", "path", r.URL.Path)
	}
}

// ValidateSymbol checks a path symbol and returns it uppercased
func (h *Handler) ValidateSymbol(symbol string) (string, error) {
	if unescaped, err := url.PathUnescape(symbol); err == nil {
		symbol = unescaped
	}
	symbol = strings.TrimSpace(symbol)

	if symbol == "" {
		return "", fmt.Errorf("symbol is required")
	}
	if len(symbol) > 20 {
		return "", fmt.Errorf("symbol too long (max 20 characters)")
	}
	if !symbolPattern.MatchString(symbol) {
		return "", fmt.Errorf("invalid symbol format (letters, digits, '&', '.' and '-' only)")
	}

	return strings.ToUpper(symbol), nil
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		observability.WithError(err).Warn("encode response failed")
	}
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
