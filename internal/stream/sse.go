// Package stream implements Server-Sent Events (SSE) streaming of sampled
// frames. Clients connect via GET /api/v1/stream/frames and receive the
// planet position, illumination and light curve point of every system once
// per step, read from the frame cache.
//
// SSE message format:
//
//	data: {"type":"frame","seq":12,"t":"2026-02-06T04:00:00Z","sys":[...]}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","catalog_source":"...","catalog_age_seconds":1800,"systems":[...],"viewport":{...}}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent timeout.
// Reconnecting clients receive a fresh metadata message and restart the curve
// at x = 0.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/star/transitlight/internal/catalog"
	"github.com/star/transitlight/internal/curve"
	"github.com/star/transitlight/internal/httputil"
	"github.com/star/transitlight/internal/metrics"
	"github.com/star/transitlight/internal/occlusion"
	"github.com/star/transitlight/internal/orbit"
	"github.com/star/transitlight/internal/plot"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10)
	MaxTotal           int           // Max concurrent streams overall (default: 1000)
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s)
	TrustProxy         bool          // Take the client IP from X-Forwarded-For
}

// Handler manages SSE streaming connections.
type Handler struct {
	cache    *curve.FrameCache
	store    *catalog.Store
	config   Config
	viewport plot.Viewport
	limiter  *connLimiter
	logger   *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(frames *curve.FrameCache, store *catalog.Store, config Config, viewport plot.Viewport, logger *slog.Logger) *Handler {
	if config.MaxTotal <= 0 {
		config.MaxTotal = 1000
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		cache:    frames,
		store:    store,
		config:   config,
		viewport: viewport,
		limiter:  newConnLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:   logger,
	}
}

// streamParams are the validated query parameters of one stream.
type streamParams struct {
	step   int    // seconds between frames
	trail  int    // light fractions of the last frames sent, per sample
	system string // only this system when set
}

func parseParams(r *http.Request) (streamParams, error) {
	p := streamParams{step: 1, trail: 20}
	q := r.URL.Query()
	if v := q.Get("step"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			return p, fmt.Errorf("invalid step parameter, must be 1-60")
		}
		p.step = n
	}
	if v := q.Get("trail"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 120 {
			return p, fmt.Errorf("invalid trail parameter, must be 0-120")
		}
		p.trail = n
	}
	p.system = q.Get("system")
	return p, nil
}

// HandleFrames serves the SSE frame stream.
// GET /api/v1/stream/frames?step=1&trail=20&system=DEMO-1
func (h *Handler) HandleFrames(w http.ResponseWriter, r *http.Request) {
	params, err := parseParams(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if params.system != "" {
		if _, ok := h.store.Get().Find(params.system); !ok {
			httputil.WriteError(w, http.StatusNotFound, "unknown system: "+params.system)
			return
		}
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if reason := h.limiter.acquire(ip); reason != "" {
		metrics.IncStreamErrors(reason)
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"reason", reason,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections()
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"step", params.step,
		"trail", params.trail,
		"system", params.system,
	)

	var c *client
	defer func() {
		h.limiter.release(ip)
		metrics.DecStreamsActive()
		attrs := []any{
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		}
		if c != nil {
			attrs = append(attrs, "messages_sent", c.messagesSent, "bytes_sent", c.bytesSent)
		}
		h.logger.Info("stream disconnected", attrs...)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The server's WriteTimeout would otherwise cut long-lived streams.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c = newClient(w, flusher, rc, h.logger)

	// Jittered 3-7s so a restart does not bring every client back at once.
	if err := c.sendRetry(3000 + rand.Intn(4000)); err != nil {
		return
	}

	if ds := h.store.Get(); ds != nil {
		if err := c.sendJSON(buildMetadataMessage(ds, h.viewport, params.system)); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
			return
		}
	}

	ticker := time.NewTicker(time.Duration(params.step) * time.Second)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	seq := 0
	trails := newTrailBuffer(params.trail)

	for {
		select {
		case <-ctx.Done():
			return

		case t := <-ticker.C:
			f := h.cache.Get(t)
			if f == nil {
				metrics.IncStreamErrors("cache_miss")
				h.logger.Debug("stream cache miss",
					"timestamp", h.cache.RoundToStep(t).UTC().Format(time.RFC3339),
					"remote_ip", ip,
				)
				continue
			}

			msg := buildFrameMessage(f, trails.push(f), seq, h.viewport, params.system)
			data, err := json.Marshal(msg)
			if err != nil {
				metrics.IncStreamErrors("marshal_error")
				h.logger.Warn("stream marshal error", "remote_ip", ip, "error", err)
				continue
			}
			if err := c.sendData(data); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			seq++

			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// buildMetadataMessage describes the catalog the stream is drawn from.
func buildMetadataMessage(ds *catalog.Dataset, vp plot.Viewport, only string) metadataMessage {
	msg := metadataMessage{
		Type:          "metadata",
		CatalogSource: ds.Source,
		FetchedAt:     ds.FetchedAt.UTC().Format(time.RFC3339),
		CatalogAge:    int(time.Since(ds.FetchedAt).Seconds()),
		Viewport:      vp,
	}
	for _, sys := range ds.Systems {
		if only != "" && sys.Name != only {
			continue
		}
		msg.Systems = append(msg.Systems, systemInfo{
			Name:           sys.Name,
			Star:           sys.Star,
			PlanetDiameter: sys.PlanetDiameter,
			PeriodSeconds:  sys.Period.Seconds(),
		})
	}
	return msg
}

// buildFrameMessage formats a frame into the SSE payload. seq is the
// connection's frame counter and sets the curve x. Systems with an entry in
// trails carry their recent light fractions, oldest first.
func buildFrameMessage(f *orbit.Frame, trails map[string][]float64, seq int, vp plot.Viewport, only string) frameMessage {
	systems := make([]samplePayload, 0, len(f.Samples))
	for _, s := range f.Samples {
		if only != "" && s.Name != only {
			continue
		}
		systems = append(systems, samplePayload{
			Name:    s.Name,
			Phase:   s.Phase,
			X:       s.Planet.CenterX,
			Y:       s.Planet.CenterY,
			D:       s.Planet.Diameter,
			Behind:  s.Behind,
			Overlap: s.OverlapArea,
			Light:   s.LightFraction,
			Lit:     plot.Illuminate(s.Phase),
			Pt:      vp.Point(seq, s.LightFraction),
			Tr:      trails[s.Name],
		})
	}
	return frameMessage{
		Type: "frame",
		Seq:  seq,
		T:    f.Timestamp.UTC().Format(time.RFC3339),
		Sys:  systems,
	}
}

// SSE message payload types.

type metadataMessage struct {
	Type          string        `json:"type"`
	CatalogSource string        `json:"catalog_source"`
	FetchedAt     string        `json:"catalog_fetched_at"`
	CatalogAge    int           `json:"catalog_age_seconds"`
	Systems       []systemInfo  `json:"systems"`
	Viewport      plot.Viewport `json:"viewport"`
}

type systemInfo struct {
	Name           string         `json:"name"`
	Star           occlusion.Disc `json:"star"`
	PlanetDiameter float64        `json:"planet_d"`
	PeriodSeconds  float64        `json:"period_seconds"`
}

type frameMessage struct {
	Type string          `json:"type"`
	Seq  int             `json:"seq"`
	T    string          `json:"t"`
	Sys  []samplePayload `json:"sys"`
}

type samplePayload struct {
	Name    string            `json:"name"`
	Phase   float64           `json:"phase"`
	X       float64           `json:"x"`
	Y       float64           `json:"y"`
	D       float64           `json:"d"`
	Behind  bool              `json:"behind"`
	Overlap float64           `json:"overlap"`
	Light   float64           `json:"light"`
	Lit     plot.Illumination `json:"lit"`
	Pt      plot.Coord        `json:"pt"`
	Tr      []float64         `json:"tr,omitempty"`
}
