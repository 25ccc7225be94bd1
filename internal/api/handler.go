package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/af-corp/aegis-advisor/internal/budget"
	"github.com/af-corp/aegis-advisor/internal/config"
	"github.com/af-corp/aegis-advisor/internal/discovery"
	"github.com/af-corp/aegis-advisor/internal/eligibility"
	"github.com/af-corp/aegis-advisor/internal/health"
	"github.com/af-corp/aegis-advisor/internal/httputil"
	"github.com/af-corp/aegis-advisor/internal/recommend"
	"github.com/af-corp/aegis-advisor/internal/selection"
	"github.com/af-corp/aegis-advisor/internal/telemetry"
	"github.com/af-corp/aegis-advisor/internal/types"
	"github.com/go-chi/chi/v5"
)

// MetricService is the metric collaborator: it serves samples for scoring
// and accepts newly observed ones.
type MetricService interface {
	discovery.MetricSource
	Ingest(ctx context.Context, samples []types.MetricSample) error
}

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Candidates discovery.CandidateSource
	Metrics    MetricService
	Gate       *eligibility.Chain
	Ranker     *recommend.Ranker
	Selection  *selection.Service
	Budgets    *budget.Tracker
	Health     *health.Tracker
	Config     func() *config.Config
	Telemetry  *telemetry.Metrics
	Logger     *slog.Logger
	Version    string
}

// Handler serves the advisor HTTP API. It only decodes requests, calls the
// engine and encodes results.
type Handler struct {
	Deps
	now func() time.Time
}

func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Handler{Deps: d, now: time.Now}
}

// Routes mounts the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/advisor/v1/health", h.HealthCheck)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/candidates", h.ListCandidates)
		r.Post("/candidates/{candidateID}/outcome", h.RecordOutcome)
		r.Post("/recommendations", h.Recommend)
		r.Post("/metrics", h.IngestMetrics)

		r.Route("/sessions/{sessionID}/selection", func(r chi.Router) {
			r.Get("/", h.GetSelection)
			r.Put("/choice", h.PutChoice)
			r.Delete("/choice", h.DeleteChoice)
			r.Put("/default", h.PutDefault)
		})

		r.Post("/spend", h.RecordSpend)
		r.Get("/budgets", h.ListBudgets)
		r.Put("/budgets", h.PutBudgets)
		r.Post("/budgets/evaluate", h.EvaluateBudgets)
		r.Get("/budgets/{budgetID}/status", h.BudgetStatus)
		r.Get("/alerts", h.ListAlerts)
		r.Post("/alerts/{alertID}/dismiss", h.DismissAlert)
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"version":  h.Version,
		"breakers": h.Health.States(),
	})
}

// CandidateView is a candidate with its current eligibility.
type CandidateView struct {
	types.Candidate
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons,omitempty"`
}

// ListCandidates handles GET /v1/candidates
func (h *Handler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	pool, err := h.Candidates.Candidates(r.Context())
	if err != nil {
		h.Logger.Error("failed to load candidate pool", "request_id", reqID, "error", err)
		httputil.WriteServiceUnavailableError(w, reqID, "Candidate pool unavailable")
		return
	}

	verdicts := h.Gate.EvaluatePool(r.Context(), pool)
	out := make([]CandidateView, 0, len(pool))
	for _, c := range pool {
		v := verdicts[c.ID]
		out = append(out, CandidateView{Candidate: c, Eligible: v.Eligible, Reasons: v.Reasons})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"candidates": out})
}

type outcomeRequest struct {
	Success bool `json:"success"`
	// LatencyMs is the observed response time of a successful request.
	LatencyMs *float64 `json:"latency_ms,omitempty"`
}

// Outcome metrics fed back into ranking. A success counts as 100 and a
// failure as 0, so the window average is the success percentage.
const (
	metricSuccessRate = "success_rate"
	metricLatencyMs   = "latency_ms"
)

// outcomeSamples leaves ObservedAt unset for the metric service to stamp.
func outcomeSamples(candidateID string, req outcomeRequest) []types.MetricSample {
	rate := 0.0
	if req.Success {
		rate = 100
	}
	samples := []types.MetricSample{{
		CandidateID: candidateID,
		Name:        metricSuccessRate,
		Value:       rate,
		Direction:   types.HigherIsBetter,
	}}
	if req.Success && req.LatencyMs != nil && *req.LatencyMs >= 0 {
		samples = append(samples, types.MetricSample{
			CandidateID: candidateID,
			Name:        metricLatencyMs,
			Value:       *req.LatencyMs,
			Direction:   types.LowerIsBetter,
			})
	}
	return samples
}

// RecordOutcome handles POST /v1/candidates/{candidateID}/outcome
func (h *Handler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	id := chi.URLParam(r, "candidateID")

	var req outcomeRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}

	if req.LatencyMs != nil && *req.LatencyMs < 0 {
		httputil.WriteBadRequestError(w, reqID, "latency_ms must not be negative")
		return
	}

	changed := h.Health.RecordOutcome(id, req.Success)
	metricsRecorded := true
	if err := h.Metrics.Ingest(r.Context(), outcomeSamples(id, req)); err != nil {
		metricsRecorded = false
		h.Logger.Warn("failed to record outcome metrics", "request_id", reqID, "candidate_id", id, "error", err)
	}
	state := h.Health.Breaker(id).State().String()
	if changed {
		h.Logger.Info("candidate health changed", "request_id", reqID, "candidate_id", id, "circuit", state)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"candidate_id": id,
		"circuit":      state,
		"healthy":      h.Health.Healthy(id),
		"changed":      changed,
		"metrics":      metricsRecorded,
	})
}

type ingestRequest struct {
	Samples []types.MetricSample `json:"samples"`
}

// IngestMetrics handles POST /v1/metrics
func (h *Handler) IngestMetrics(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}
	if len(req.Samples) == 0 {
		httputil.WriteBadRequestError(w, reqID, "samples is required")
		return
	}
	if err := h.Metrics.Ingest(r.Context(), req.Samples); err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]int{"accepted": len(req.Samples)})
}

// RequestID assigns every request an id, reusing an incoming X-Request-ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func generateRequestID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}

func requestID(w http.ResponseWriter) string {
	return w.Header().Get("X-Request-ID")
}

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	defer r.Body.Close()
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func (h *Handler) pool(ctx context.Context) ([]types.Candidate, error) {
	pool, err := h.Candidates.Candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load candidate pool: %w", err)
	}
	return pool, nil
}
