package api

import (
	"net/http"
	"strings"

	"stockpro/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(cfg.Server.CORSAllowedOrigins))
	r.Use(MetricsMiddleware)

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	// Long-lived search sessions are exempt from the request timeout
	r.Get("/ws/search", h.HandleSearchSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout()))

		// Pages
		r.Get("/", h.HandleLanding)
		r.Get("/search", h.HandleSearchPage)
		r.Get("/stock/{symbol}", h.HandleStockPage)
		r.Get("/partials/ticker", h.HandleTickerPartial)

		// API routes
		r.Route("/api", func(r chi.Router) {
			r.Get("/health", h.HandleHealth)
			r.Get("/search", h.HandleSearch)
			r.Get("/catalog", h.HandleCatalog)
			r.Get("/ticker", h.HandleTicker)

			r.Route("/stock/{symbol}", func(r chi.Router) {
				r.Get("/", h.HandleStockDetails)
				r.Get("/prices", h.HandleStockPrices)
			})
		})
	})

	r.NotFound(h.HandleNotFound)

	return r
}

// CORSMiddleware returns CORS middleware with the specified allowed origins
func CORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, HX-Request, HX-Trigger, HX-Target, HX-Current-URL")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// originAllowed reports whether a websocket handshake from origin may proceed
func originAllowed(allowedOrigins, origin string) bool {
	if origin == "" || allowedOrigins == "*" {
		return true
	}
	for _, o := range strings.Split(allowedOrigins, ",") {
		if strings.EqualFold(strings.TrimSpace(o), origin) {
			return true
		}
	}
	return false
}
