package main

import (
	"errors"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/star/transitlight/internal/api"
	"github.com/star/transitlight/internal/auth"
	"github.com/star/transitlight/internal/curve"
	"github.com/star/transitlight/internal/orbit"
	"github.com/star/transitlight/internal/stream"
)

// envSeconds reads a positive whole number of seconds from name, warning and
// keeping def when the value is malformed.
func envSeconds(logger *slog.Logger, name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", def.Seconds())
		return def
	}
	return time.Duration(n) * time.Second
}

// envBool reads a boolean from name, warning and keeping def when malformed.
func envBool(logger *slog.Logger, name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", def)
		return def
	}
	return b
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	if v := os.Getenv("TRANSIT_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New("TRANSIT_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("TRANSIT_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("TRANSIT_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadSampleConfig(logger *slog.Logger) orbit.Config {
	cfg := orbit.Config{
		Workers: runtime.NumCPU(),
		Step:    time.Second,
		Horizon: 120 * time.Second,
	}

	if v := os.Getenv("TRANSIT_SAMPLE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid TRANSIT_SAMPLE_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}
	cfg.Step = envSeconds(logger, "TRANSIT_FRAME_STEP", cfg.Step)
	cfg.Horizon = envSeconds(logger, "TRANSIT_FRAME_HORIZON", cfg.Horizon)

	logger.Info("sampling config",
		"workers", cfg.Workers,
		"step_seconds", cfg.Step.Seconds(),
		"horizon_seconds", cfg.Horizon.Seconds(),
	)

	return cfg
}

func loadCacheConfig(logger *slog.Logger, sampleCfg orbit.Config) curve.Config {
	cfg := curve.Config{
		Step:        envSeconds(logger, "TRANSIT_CACHE_STEP", sampleCfg.Step),
		Horizon:     envSeconds(logger, "TRANSIT_CACHE_HORIZON", sampleCfg.Horizon),
		GracePeriod: envSeconds(logger, "TRANSIT_CACHE_GRACE_PERIOD", 30*time.Second),
		Buffer:      envSeconds(logger, "TRANSIT_CACHE_BUFFER", 60*time.Second),
	}

	logger.Info("cache config",
		"step_seconds", cfg.Step.Seconds(),
		"horizon_seconds", cfg.Horizon.Seconds(),
		"grace_period_seconds", cfg.GracePeriod.Seconds(),
		"buffer_seconds", cfg.Buffer.Seconds(),
	)

	return cfg
}

func loadStreamConfig(logger *slog.Logger, trustProxy bool) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		MaxTotal:           1000,
		KeepaliveInterval:  envSeconds(logger, "TRANSIT_STREAM_KEEPALIVE_INTERVAL", 30*time.Second),
		TrustProxy:         trustProxy,
	}

	if v := os.Getenv("TRANSIT_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid TRANSIT_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}

func loadCatalogConfig(logger *slog.Logger) api.CatalogConfig {
	cfg := api.CatalogConfig{
		EnableFetch: envBool(logger, "TRANSIT_CATALOG_FETCH_ENABLED", false),
		SourceURL:   os.Getenv("TRANSIT_CATALOG_URL"),
		CacheDir:    "/tmp/transitlight/catalog",
		MaxFiles:    5,
		MaxAge:      envSeconds(logger, "TRANSIT_CATALOG_MAX_AGE", 24*time.Hour),
	}

	if v := os.Getenv("TRANSIT_CATALOG_EXTRA_URLS"); v != "" {
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.ExtraSourceURLs = append(cfg.ExtraSourceURLs, u)
			}
		}
	}

	if v := os.Getenv("TRANSIT_CATALOG_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if cfg.EnableFetch && cfg.SourceURL == "" {
		logger.Warn("catalog fetch enabled without TRANSIT_CATALOG_URL, disabling fetch")
		cfg.EnableFetch = false
	}

	logger.Info("catalog config",
		"fetch_enabled", cfg.EnableFetch,
		"source_url", cfg.SourceURL,
		"extra_urls", cfg.ExtraSourceURLs,
		"cache_dir", cfg.CacheDir,
		"max_age_seconds", cfg.MaxAge.Seconds(),
	)

	return cfg
}
