// Package main runs the StockPro web server: pages, JSON API, websocket
// search sessions and the background ticker poller.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockpro/config"
	"stockpro/internal/api"
	"stockpro/internal/app"
	"stockpro/internal/catalog"
	"stockpro/internal/ticker"
	"stockpro/observability"
	"stockpro/services"
	"stockpro/services/cache"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	memoryCacheSize = 1000
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to $CONFIG_FILE)")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	observability.InitLoggerFromConfig(cfg.Log.Level, cfg.Log.Format)
	observability.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		observability.Fatal("server stopped with error", "error", err)
	}
	observability.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	responseCache := newCache(ctx, cfg)
	defer responseCache.Close()

	market := services.NewMarketDataService(
		services.WithBaseURL(cfg.Upstream.BaseURL),
		services.WithUserAgent(cfg.Upstream.UserAgent),
		services.WithHTTPClient(&http.Client{Timeout: cfg.Upstream.Timeout()}),
		services.WithTimeout(cfg.Upstream.Timeout()),
		services.WithRetryConfig(services.RetryConfig{
			MaxRetries:     cfg.Upstream.MaxRetries,
			InitialBackoff: services.DefaultRetryConfig.InitialBackoff,
			MaxBackoff:     services.DefaultRetryConfig.MaxBackoff,
		}),
		services.WithDetailsEndpoint(cfg.Upstream.DetailsEnabled),
		services.WithCache(responseCache, cfg.Upstream.CacheTTL()),
	)

	popular, err := catalog.NewPopular()
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	defer popular.Close()

	poller := ticker.NewPoller(market,
		ticker.WithIndex(cfg.Ticker.Index),
		ticker.WithInterval(cfg.Ticker.Interval()),
	)

	application := app.New(cfg, market, popular, poller)

	handler := api.NewHandler(application, cfg)
	handler.SetTickerFeed(poller)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler, cfg),
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return poller.Run(gctx)
	})

	g.Go(func() error {
		observability.Info("starting server", "port", cfg.Server.Port, "url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		observability.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// newCache picks Redis when configured and falls back to process memory
// when it is not or cannot be reached
func newCache(ctx context.Context, cfg *config.Config) cache.BytesCache {
	if !cfg.HasResponseCache() || !cfg.HasRedis() {
		return cache.NewMemoryCache(memoryCacheSize)
	}

	rc, err := cache.NewRedisCacheFromURL(ctx, cfg.Cache.RedisURL)
	if err != nil {
		observability.WithError(err).Warn("redis unavailable, using in-memory cache")
		return cache.NewMemoryCache(memoryCacheSize)
	}
	observability.Info("using redis response cache")
	return rc
}
