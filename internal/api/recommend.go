package api

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/af-corp/aegis-advisor/internal/discovery"
	"github.com/af-corp/aegis-advisor/internal/httputil"
	"github.com/af-corp/aegis-advisor/internal/recommend"
	"github.com/af-corp/aegis-advisor/internal/scoring"
	"github.com/af-corp/aegis-advisor/internal/types"
)

type recommendRequest struct {
	Weights types.Weights    `json:"weights"`
	Filter  recommend.Filter `json:"filter"`
	Limit   int              `json:"limit"`
	// Window is a Go duration such as "1h"; empty uses the configured window.
	Window string `json:"window"`
	// Query is the user's task text; the capabilities it implies are added
	// to the filter.
	Query string `json:"query,omitempty"`
}

type recommendResponse struct {
	*recommend.Ranking
	Excluded             []types.Exclusion `json:"excluded"`
	InferredCapabilities []string          `json:"inferred_capabilities,omitempty"`
}

// Recommend handles POST /v1/recommendations
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	started := time.Now()
	cfg := h.Config()

	var req recommendRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}
	if req.Limit < 0 {
		httputil.WriteBadRequestError(w, reqID, "limit must not be negative")
		return
	}
	window := cfg.Scoring.MetricWindow
	if req.Window != "" {
		d, err := time.ParseDuration(req.Window)
		if err != nil || d <= 0 {
			httputil.WriteBadRequestError(w, reqID, "window must be a positive duration such as 1h")
			return
		}
		window = d
	}
	inferred := recommend.CapabilitiesFromQuery(req.Query)
	for _, c := range inferred {
		if !slices.Contains(req.Filter.Capabilities, c) {
			req.Filter.Capabilities = append(req.Filter.Capabilities, c)
		}
	}
	limit := req.Limit
	if limit == 0 {
		limit = cfg.Scoring.DefaultLimit
	}

	pool, err := h.pool(r.Context())
	if err != nil {
		h.Logger.Error("failed to load candidate pool", "request_id", reqID, "error", err)
		httputil.WriteServiceUnavailableError(w, reqID, "Candidate pool unavailable")
		return
	}
	eligible, excluded := h.Gate.Split(r.Context(), pool)
	eligible = req.Filter.Apply(eligible, cfg.Scoring.CapabilityKeywords)

	samples, err := discovery.FetchAll(r.Context(), h.Metrics, eligible, window)
	if err != nil {
		h.Logger.Error("failed to fetch metric samples", "request_id", reqID, "error", err)
		httputil.WriteServiceUnavailableError(w, reqID, "Metric samples unavailable")
		return
	}

	ranking, err := h.Ranker.RankWith(eligible, samples, req.Weights, recommend.Options{
		Tolerance:  cfg.Scoring.Tolerance,
		MaxReasons: cfg.Scoring.MaxReasons,
		Limit:      limit,
	})
	elapsedMs := float64(time.Since(started).Microseconds()) / 1000

	var invalid *scoring.InvalidWeightsError
	var insufficient *scoring.InsufficientDataError
	switch {
	case errors.As(err, &invalid):
		h.Telemetry.RecordRanking("invalid", elapsedMs)
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	case errors.As(err, &insufficient):
		h.Telemetry.RecordRanking("insufficient_data", elapsedMs)
		httputil.WriteInsufficientDataError(w, reqID, err.Error())
		return
	case err != nil:
		h.Telemetry.RecordRanking("error", elapsedMs)
		h.Logger.Error("ranking failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Ranking failed")
		return
	}

	h.Telemetry.RecordRanking("ok", elapsedMs)
	h.Logger.Debug("ranking computed",
		"request_id", reqID,
		"candidates", len(eligible),
		"results", len(ranking.Results),
		"duration_ms", elapsedMs,
	)
	httputil.WriteJSON(w, http.StatusOK, recommendResponse{
		Ranking:              ranking,
		Excluded:             excluded,
		InferredCapabilities: inferred,
	})
}
