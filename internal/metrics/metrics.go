package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitlight_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transitlight_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	occlusionEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitlight_occlusion_evaluations_total",
			Help: "Occlusion evaluations by geometric case.",
		},
		[]string{"case"},
	)

	samplingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transitlight_sampling_duration_seconds",
			Help:    "Time to sample every system at one instant.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	samplingSystemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitlight_sampling_systems_total",
			Help: "Systems sampled, by outcome.",
		},
		[]string{"result"},
	)

	samplingWorkersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "transitlight_sampling_workers_active",
			Help: "Configured number of sampling workers.",
		},
	)

	transitPredictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transitlight_transit_predictions_total",
			Help: "Transit prediction requests served.",
		},
	)

	transitPredictionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transitlight_transit_prediction_duration_seconds",
			Help:    "Time to predict transits for one request.",
			Buckets: prometheus.DefBuckets,
		},
	)

	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transitlight_cache_entries",
		Help: "Frames currently held in the frame cache.",
	})
	cacheSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transitlight_cache_size_bytes",
		Help: "Estimated memory held by the frame cache.",
	})
	cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transitlight_cache_hits_total",
		Help: "Frame cache lookups that found a frame.",
	})
	cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transitlight_cache_misses_total",
		Help: "Frame cache lookups that found nothing.",
	})
	cacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transitlight_cache_evictions_total",
		Help: "Frames evicted from the cache.",
	})
	cacheGracePeriodActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transitlight_cache_grace_period_active",
		Help: "1 while stale frames are being served after a catalog change.",
	})
	cacheRegenerationDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "transitlight_cache_regeneration_duration_seconds",
		Help:    "Time to regenerate the frame window after a catalog change.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
	cacheRegenerationErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transitlight_cache_regeneration_errors_total",
		Help: "Frame window regenerations that failed.",
	})

	curveCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transitlight_curve_cache_requests_total",
		Help: "Light curve cache lookups by result.",
	}, []string{"result"})

	streamConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transitlight_stream_connections_total",
		Help: "SSE connections accepted.",
	})
	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transitlight_streams_active",
		Help: "SSE connections currently open.",
	})
	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transitlight_stream_messages_total",
		Help: "SSE messages written.",
	})
	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transitlight_stream_bytes_total",
		Help: "SSE bytes written.",
	})
	streamErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transitlight_stream_errors_total",
		Help: "SSE errors by kind.",
	}, []string{"kind"})

	catalogSystems = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transitlight_catalog_systems",
		Help: "Systems in the loaded catalog.",
	})
	catalogAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transitlight_catalog_age_seconds",
		Help: "Seconds since the loaded catalog was fetched.",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		occlusionEvaluationsTotal,
		samplingDurationSeconds,
		samplingSystemsTotal,
		samplingWorkersActive,
		transitPredictionsTotal,
		transitPredictionDurationSeconds,
		cacheEntries,
		cacheSizeBytes,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheEvictionsTotal,
		cacheGracePeriodActive,
		cacheRegenerationDurationSeconds,
		cacheRegenerationErrorsTotal,
		curveCacheTotal,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
		catalogSystems,
		catalogAgeSeconds,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOcclusion counts one evaluation. kind is apart, contained, partial,
// behind or invalid.
func RecordOcclusion(kind string) {
	occlusionEvaluationsTotal.WithLabelValues(kind).Inc()
}

// RecordSampling records one batch sampling run.
func RecordSampling(d time.Duration, success, failed int) {
	samplingDurationSeconds.Observe(d.Seconds())
	samplingSystemsTotal.WithLabelValues("success").Add(float64(success))
	samplingSystemsTotal.WithLabelValues("error").Add(float64(failed))
}

func SetSamplingWorkersActive(n int) { samplingWorkersActive.Set(float64(n)) }

// RecordTransitPrediction records one transit prediction request.
func RecordTransitPrediction(d time.Duration) {
	transitPredictionsTotal.Inc()
	transitPredictionDurationSeconds.Observe(d.Seconds())
}

func SetCacheEntries(n int) { cacheEntries.Set(float64(n)) }
func SetCacheSizeBytes(n int64) { cacheSizeBytes.Set(float64(n)) }
func IncCacheHits() { cacheHitsTotal.Inc() }
func IncCacheMisses() { cacheMissesTotal.Inc() }
func AddCacheEvictions(n int) { cacheEvictionsTotal.Add(float64(n)) }
func IncCacheRegenerationErrors() { cacheRegenerationErrorsTotal.Inc() }
func ObserveCacheRegenerationDuration(d time.Duration) { cacheRegenerationDurationSeconds.Observe(d.Seconds()) }

func SetCacheGracePeriodActive(active bool) {
	if active {
		cacheGracePeriodActive.Set(1)
		return
	}
	cacheGracePeriodActive.Set(0)
}

// RecordCurveCache counts a light curve cache lookup.
func RecordCurveCache(hit bool) {
	if hit {
		curveCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	curveCacheTotal.WithLabelValues("miss").Inc()
}

func IncStreamConnections() { streamConnectionsTotal.Inc() }
func IncStreamsActive() { streamsActive.Inc() }
func DecStreamsActive() { streamsActive.Dec() }
func IncStreamMessages() { streamMessagesTotal.Inc() }
func AddStreamBytes(n int) { streamBytesTotal.Add(float64(n)) }
func IncStreamErrors(kind string) { streamErrorsTotal.WithLabelValues(kind).Inc() }

func SetCatalogSystems(n int) { catalogSystems.Set(float64(n)) }
func SetCatalogAge(seconds float64) { catalogAgeSeconds.Set(seconds) }

// knownRoutes are exact paths that keep their own label.
var knownRoutes = map[string]bool{
	"/":                     true,
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/api/v1/occlusion":     true,
	"/api/v1/systems":       true,
	"/api/v1/systems/fetch": true,
	"/api/v1/frames/latest": true,
	"/api/v1/frames/at":     true,
	"/api/v1/cache/stats":   true,
	"/api/v1/stream/frames": true,
}

// paramRoutes collapse every path under a prefix to one label.
var paramRoutes = []struct {
	prefix string
	label  string
}{
	{"/api/v1/curve/", "/api/v1/curve/{name}"},
	{"/api/v1/transits/", "/api/v1/transits/{name}"},
}

// normalizeRoute bounds the path label cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	for _, r := range paramRoutes {
		if strings.HasPrefix(path, r.prefix) && len(path) > len(r.prefix) {
			return r.label
		}
	}
	if strings.HasPrefix(path, "/static/") || path == "/app.js" || path == "/styles.css" || path == "/index.html" {
		return "static"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers stream through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
