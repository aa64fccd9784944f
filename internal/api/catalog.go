package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/transitlight/internal/catalog"
	"github.com/star/transitlight/internal/httputil"
	"github.com/star/transitlight/internal/metrics"
	"github.com/star/transitlight/internal/occlusion"
)

// CatalogConfig holds catalog fetch configuration.
type CatalogConfig struct {
	EnableFetch     bool
	SourceURL       string
	ExtraSourceURLs []string
	CacheDir        string
	MaxFiles        int
	MaxAge          time.Duration // refetch once the catalog is older than this
}

// ErrFetchDisabled is returned by Refresh when fetching is turned off.
var ErrFetchDisabled = errors.New("catalog fetch disabled")

// Refresher fetches catalogs from the configured sources, snapshots them to
// the on-disk cache and publishes them to the store.
type Refresher struct {
	store   *catalog.Store
	cache   *catalog.Cache
	fetcher *catalog.Fetcher
	config  CatalogConfig
	logger  *slog.Logger
}

// NewRefresher creates a Refresher.
func NewRefresher(store *catalog.Store, cache *catalog.Cache, config CatalogConfig, logger *slog.Logger) *Refresher {
	return &Refresher{
		store:   store,
		cache:   cache,
		fetcher: catalog.NewFetcher(config.SourceURL, logger, config.ExtraSourceURLs...),
		config:  config,
		logger:  logger,
	}
}

// Refresh fetches and installs a new catalog. Concurrent calls are serialized
// by the store; a failed fetch leaves the served catalog untouched.
func (r *Refresher) Refresh(ctx context.Context) (*catalog.Dataset, error) {
	if !r.config.EnableFetch {
		return nil, ErrFetchDisabled
	}

	ds, err := r.store.Replace(func(*catalog.Dataset) (*catalog.Dataset, error) {
		data, err := r.fetcher.Fetch(ctx)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		ds, err := catalog.NewDataset(data, r.fetcher.SourceURL(), now, r.logger)
		if err != nil {
			return nil, err
		}

		if r.cache != nil {
			if err := r.cache.Write(data, now); err != nil {
				r.logger.Warn("failed to write catalog cache", "error", err)
			}
		}
		return ds, nil
	})
	if err != nil {
		return nil, err
	}

	metrics.SetCatalogSystems(len(ds.Systems))
	metrics.SetCatalogAge(0)
	r.logger.Info("catalog refreshed", "source", ds.Source, "systems", len(ds.Systems))
	return ds, nil
}

// Run refreshes the catalog whenever it is missing or older than MaxAge,
// checking every MaxAge/4. Blocks until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	if !r.config.EnableFetch {
		return
	}
	maxAge := r.config.MaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}

	check := func() {
		if !r.store.Stale(time.Now(), maxAge) {
			return
		}
		if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("background catalog refresh failed", "error", err)
		}
	}

	check()
	ticker := time.NewTicker(max(maxAge/4, time.Minute))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

type systemPayload struct {
	Name           string         `json:"name"`
	Star           occlusion.Disc `json:"star"`
	PlanetDiameter float64        `json:"planet_diameter"`
	OrbitRadius    float64        `json:"orbit_radius"`
	PeriodSeconds  float64        `json:"period_seconds"`
	Epoch          time.Time      `json:"epoch"`
}

type systemsResponse struct {
	Source     string          `json:"source"`
	FetchedAt  time.Time       `json:"fetched_at"`
	AgeSeconds int             `json:"age_seconds"`
	Count      int             `json:"count"`
	Systems    []systemPayload `json:"systems"`
}

func systemsHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := store.Get()
		if ds == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "no catalog loaded")
			return
		}

		resp := systemsResponse{
			Source:     ds.Source,
			FetchedAt:  ds.FetchedAt,
			AgeSeconds: int(time.Since(ds.FetchedAt).Seconds()),
			Count:      len(ds.Systems),
			Systems:    make([]systemPayload, len(ds.Systems)),
		}
		for i, sys := range ds.Systems {
			resp.Systems[i] = systemPayload{
				Name:           sys.Name,
				Star:           sys.Star,
				PlanetDiameter: sys.PlanetDiameter,
				OrbitRadius:    sys.OrbitRadius,
				PeriodSeconds:  sys.Period.Seconds(),
				Epoch:          sys.Epoch,
			}
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

func fetchHandler(logger *slog.Logger, refresher *Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if refresher == nil {
			httputil.WriteError(w, http.StatusForbidden, ErrFetchDisabled.Error())
			return
		}

		ds, err := refresher.Refresh(r.Context())
		switch {
		case errors.Is(err, ErrFetchDisabled):
			httputil.WriteError(w, http.StatusForbidden, err.Error())
			return
		case errors.Is(err, catalog.ErrNoSource):
			httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			logger.Warn("catalog fetch failed", "error", err)
			httputil.WriteError(w, http.StatusBadGateway, "catalog fetch failed: "+err.Error())
			return
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"source":     ds.Source,
			"fetched_at": ds.FetchedAt,
			"count":      len(ds.Systems),
		})
	}
}
