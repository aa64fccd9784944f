// Package api wires the HTTP surface of the service: occlusion evaluation,
// catalog management, light curves, transit predictions, cached frames and
// the SSE stream.
package api

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/transitlight/internal/auth"
	"github.com/star/transitlight/internal/catalog"
	"github.com/star/transitlight/internal/curve"
	"github.com/star/transitlight/internal/health"
	"github.com/star/transitlight/internal/httputil"
	"github.com/star/transitlight/internal/metrics"
	"github.com/star/transitlight/internal/plot"
	"github.com/star/transitlight/internal/stream"
	"github.com/star/transitlight/internal/tracing"
)

// Options configures the HTTP server.
type Options struct {
	Addr           string
	Auth           auth.Config
	TrustProxy     bool
	Viewport       plot.Viewport
	CurveCacheSize int // full-orbit curves kept in the LRU (default: 128)
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(opts Options, logger *slog.Logger, store *catalog.Store, refresher *Refresher,
	frames *curve.FrameCache, streamHandler *stream.Handler, static fs.FS) (*Server, error) {
	curves, err := curve.NewCurves(opts.CurveCacheSize)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(store))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/v1/occlusion", occlusionHandler(logger))
	mux.HandleFunc("GET /api/v1/systems", systemsHandler(store))
	mux.HandleFunc("POST /api/v1/systems/fetch", fetchHandler(logger, refresher))
	mux.HandleFunc("GET /api/v1/curve/{name}", curveHandler(store, curves, opts.Viewport))
	mux.HandleFunc("GET /api/v1/transits/{name}", transitsHandler(store))
	mux.HandleFunc("GET /api/v1/frames/latest", latestFrameHandler(frames))
	mux.HandleFunc("GET /api/v1/frames/at", frameAtHandler(frames))
	mux.HandleFunc("GET /api/v1/cache/stats", cacheStatsHandler(frames, curves))
	if streamHandler != nil {
		mux.HandleFunc("GET /api/v1/stream/frames", streamHandler.HandleFrames)
	}
	if static != nil {
		mux.Handle("GET /", http.FileServerFS(static))
	}

	// Build middleware chain: metrics -> logging -> tracing -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(opts.Auth)(handler)
	handler = tracing.Middleware(handler)
	handler = loggingMiddleware(logger, opts.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}, nil
}

// Handler returns the root handler including all middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
