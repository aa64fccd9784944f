package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
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
	"github.com/star/transitlight/internal/transits"
)

const (
	maxBodyBytes   = 1 << 20
	maxCurvePoints = 3600
	maxScanSamples = 1_000_000

	minStepDeg = 0.1
	maxStepDeg = 90

	defaultTransitHorizon = time.Hour
	maxTransitHorizon     = 7 * 24 * time.Hour
	defaultMaxTransits    = 10
	maxMaxTransits        = 100
)

type occlusionRequest struct {
	Star   *occlusion.Disc `json:"star"`
	Planet *occlusion.Disc `json:"planet"`
	Behind bool            `json:"behind"`
}

type occlusionResponse struct {
	OverlapArea   float64 `json:"overlap_area" msgpack:"overlap_area"`
	LightFraction float64 `json:"light_fraction" msgpack:"light_fraction"`
	Case          string  `json:"case" msgpack:"case"`
}

// occlusionHandler evaluates one star/planet configuration.
// POST /api/v1/occlusion {"star":{"x":0,"y":0,"d":10},"planet":{...},"behind":false}
func occlusionHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req occlusionRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Star == nil || req.Planet == nil {
			httputil.WriteError(w, http.StatusBadRequest, "star and planet are required")
			return
		}

		res, err := occlusion.Evaluate(*req.Star, *req.Planet, req.Behind)
		if err != nil {
			metrics.RecordOcclusion("invalid")
			if errors.Is(err, occlusion.ErrInvalidGeometry) {
				httputil.WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			logger.Error("occlusion evaluation failed", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "evaluation failed")
			return
		}

		kind := res.Case.String()
		if req.Behind {
			kind = "behind"
		}
		metrics.RecordOcclusion(kind)

		httputil.Write(w, r, http.StatusOK, occlusionResponse{
			OverlapArea:   res.OverlapArea,
			LightFraction: res.LightFraction,
			Case:          res.Case.String(),
		})
	}
}

type curveResponse struct {
	Name             string         `json:"name" msgpack:"name"`
	StepDeg          float64        `json:"step_deg" msgpack:"step_deg"`
	Points           int            `json:"points" msgpack:"points"`
	CatalogFetchedAt time.Time      `json:"catalog_fetched_at" msgpack:"catalog_fetched_at"`
	MinLightFraction float64        `json:"min_light_fraction" msgpack:"min_light_fraction"`
	Samples          []orbit.Sample `json:"samples" msgpack:"samples"`
	Plot             []plot.Coord   `json:"plot" msgpack:"plot"`
}

// curveHandler serves one full orbit of a system's light curve.
// GET /api/v1/curve/{name}?step_deg=1
func curveHandler(store *catalog.Store, curves *curve.Curves, vp plot.Viewport) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		stepDeg := 1.0
		if v := r.URL.Query().Get("step_deg"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || math.IsNaN(f) || f < minStepDeg || f > maxStepDeg {
				httputil.WriteError(w, http.StatusBadRequest, "invalid step_deg parameter, must be 0.1-90")
				return
			}
			stepDeg = f
		}

		if points := int(math.Ceil(360 / stepDeg)); points > maxCurvePoints {
			httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
				"error":      "request exceeds point budget",
				"points":     points,
				"max_points": maxCurvePoints,
			})
			return
		}

		ds := store.Get()
		if ds == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "no catalog loaded")
			return
		}

		samples, err := curves.Get(ds, name, stepDeg)
		switch {
		case errors.Is(err, curve.ErrUnknownSystem):
			httputil.WriteError(w, http.StatusNotFound, "unknown system: "+name)
			return
		case err != nil:
			httputil.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp := curveResponse{
			Name:             name,
			StepDeg:          stepDeg,
			Points:           len(samples),
			CatalogFetchedAt: ds.FetchedAt,
			MinLightFraction: 1,
			Samples:          samples,
			Plot:             make([]plot.Coord, len(samples)),
		}
		for i, s := range samples {
			resp.MinLightFraction = min(resp.MinLightFraction, s.LightFraction)
			resp.Plot[i] = vp.Point(i, s.LightFraction)
		}
		httputil.Write(w, r, http.StatusOK, resp)
	}
}

type transitsResponse struct {
	Name           string           `json:"name" msgpack:"name"`
	Start          time.Time        `json:"start" msgpack:"start"`
	HorizonSeconds float64          `json:"horizon_seconds" msgpack:"horizon_seconds"`
	Transits       []transits.Event `json:"transits" msgpack:"transits"`
}

// transitsHandler predicts the transits of one system.
// GET /api/v1/transits/{name}?horizon=3600&max=10&min_depth=0&start=RFC3339
func transitsHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		horizon := defaultTransitHorizon
		if v := q.Get("horizon"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || time.Duration(n)*time.Second > maxTransitHorizon {
				httputil.WriteError(w, http.StatusBadRequest, "invalid horizon parameter, must be 1-604800")
				return
			}
			horizon = time.Duration(n) * time.Second
		}

		maxTransits := defaultMaxTransits
		if v := q.Get("max"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxMaxTransits {
				httputil.WriteError(w, http.StatusBadRequest, "invalid max parameter, must be 1-100")
				return
			}
			maxTransits = n
		}

		var minDepth float64
		if v := q.Get("min_depth"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || !(f >= 0 && f <= 1) {
				httputil.WriteError(w, http.StatusBadRequest, "invalid min_depth parameter, must be 0-1")
				return
			}
			minDepth = f
		}

		start := time.Now().UTC()
		if v := q.Get("start"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				httputil.WriteError(w, http.StatusBadRequest, "invalid start parameter, must be RFC3339")
				return
			}
			start = t.UTC()
		}

		if store.Get() == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "no catalog loaded")
			return
		}
		name := r.PathValue("name")
		sys, ok := store.Find(name)
		if !ok {
			httputil.WriteError(w, http.StatusNotFound, "unknown system: "+name)
			return
		}

		if samples := transits.ScanSamples(sys, horizon); samples > maxScanSamples {
			httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
				"error":       "request exceeds sample budget",
				"samples":     samples,
				"max_samples": maxScanSamples,
			})
			return
		}

		results := transits.Predict(r.Context(), transits.Request{
			Systems:     []catalog.System{sys},
			Start:       start,
			Horizon:     horizon,
			MinDepth:    minDepth,
			MaxTransits: maxTransits,
		})
		if res := results[0]; res.Error != "" {
			httputil.WriteError(w, http.StatusInternalServerError, res.Error)
			return
		}

		events := results[0].Transits
		if events == nil {
			events = []transits.Event{}
		}
		httputil.Write(w, r, http.StatusOK, transitsResponse{
			Name:           name,
			Start:          start,
			HorizonSeconds: horizon.Seconds(),
			Transits:       events,
		})
	}
}

// latestFrameHandler serves the cached frame closest to now.
func latestFrameHandler(frames *curve.FrameCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := frames.GetLatest()
		if f == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "no frame cached")
			return
		}
		httputil.Write(w, r, http.StatusOK, f)
	}
}

// frameAtHandler serves the cached frame for a timestamp.
// GET /api/v1/frames/at?t=2026-02-06T04:00:00Z
func frameAtHandler(frames *curve.FrameCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := r.URL.Query().Get("t")
		if v == "" {
			httputil.WriteError(w, http.StatusBadRequest, "missing t parameter")
			return
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid t parameter, must be RFC3339")
			return
		}

		f := frames.Get(t)
		if f == nil {
			httputil.WriteError(w, http.StatusNotFound, "frame not cached")
			return
		}
		httputil.Write(w, r, http.StatusOK, f)
	}
}

type cacheStatsResponse struct {
	curve.Stats
	StepSeconds  float64 `json:"step_seconds"`
	CurveEntries int     `json:"curve_entries"`
}

func cacheStatsHandler(frames *curve.FrameCache, curves *curve.Curves) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, cacheStatsResponse{
			Stats:        frames.Stats(),
			StepSeconds:  frames.Step().Seconds(),
			CurveEntries: curves.Len(),
		})
	}
}
