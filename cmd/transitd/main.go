// Command transitd serves transit light curves: it samples every catalog
// system into a rolling frame cache and exposes occlusion evaluation, curves,
// transit predictions and a live SSE stream over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/transitlight/internal/api"
	"github.com/star/transitlight/internal/catalog"
	"github.com/star/transitlight/internal/curve"
	"github.com/star/transitlight/internal/logging"
	"github.com/star/transitlight/internal/metrics"
	"github.com/star/transitlight/internal/orbit"
	"github.com/star/transitlight/internal/plot"
	"github.com/star/transitlight/internal/stream"
	"github.com/star/transitlight/internal/tracing"
	"github.com/star/transitlight/web"
)

func main() {
	logger, logCloser := logging.New(logging.ConfigFromEnv(), os.Stdout)
	defer logCloser.Close()

	addr := os.Getenv("TRANSIT_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}
	trustProxy := envBool(logger, "TRANSIT_TRUST_PROXY", false)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.ConfigFromEnv(), logger)
	if err != nil {
		logger.Error("invalid tracing configuration", "error", err)
		os.Exit(1)
	}

	catalogCfg := loadCatalogConfig(logger)
	store := catalog.NewStore()
	catalogCache := catalog.NewCache(catalogCfg.CacheDir, catalogCfg.MaxFiles)
	store.Set(loadInitialCatalog(logger, os.Getenv("TRANSIT_CATALOG_FILE"), catalogCache))
	metrics.SetCatalogSystems(len(store.Get().Systems))

	sampleCfg := loadSampleConfig(logger)
	sampler := orbit.NewSampler(store, sampleCfg, logger)

	frames := curve.NewFrameCache(loadCacheConfig(logger, sampleCfg), sampler, store, logger)
	viewport := plot.Default()
	streamHandler := stream.NewHandler(frames, store, loadStreamConfig(logger, trustProxy), viewport, logger)

	refresher := api.NewRefresher(store, catalogCache, catalogCfg, logger)
	srv, err := api.NewServer(api.Options{
		Addr:       addr,
		Auth:       authCfg,
		TrustProxy: trustProxy,
		Viewport:   viewport,
	}, logger, store, refresher, frames, streamHandler, web.Content)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	go frames.Start(ctx)
	go refresher.Run(ctx)

	// Background goroutine to update the catalog age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age, ok := store.Age(time.Now()); ok {
					metrics.SetCatalogAge(age.Seconds())
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"auth_enabled", authCfg.Enabled,
			"catalog_fetch_enabled", catalogCfg.EnableFetch,
			"systems", len(store.Get().Systems),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	tracing.ShutdownWithTimeout(shutdownCtx, shutdownTracing, logger)

	logger.Info("server stopped")
}

// loadInitialCatalog picks the startup catalog: an explicit file, then the
// newest on-disk snapshot, then the built-in demonstration system.
func loadInitialCatalog(logger *slog.Logger, file string, cache *catalog.Cache) *catalog.Dataset {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			logger.Warn("failed to read catalog file", "file", file, "error", err)
		} else if ds, err := catalog.NewDataset(data, file, time.Now().UTC(), logger); err != nil {
			logger.Warn("failed to parse catalog file", "file", file, "error", err)
		} else {
			logger.Info("loaded catalog from file", "file", file, "systems", len(ds.Systems))
			return ds
		}
	}

	data, ts, err := cache.LoadLatest()
	if err != nil {
		logger.Info("no catalog cache found", "error", err)
	} else if ds, err := catalog.NewDataset(data, "cache", ts, logger); err != nil {
		logger.Warn("failed to parse cached catalog", "error", err)
	} else {
		logger.Info("loaded catalog from cache", "systems", len(ds.Systems), "cached_at", ts.Format(time.RFC3339))
		return ds
	}

	logger.Info("using built-in catalog", "system", catalog.DefaultSystemName)
	return catalog.Default()
}
