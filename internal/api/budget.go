package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/af-corp/aegis-advisor/internal/budget"
	"github.com/af-corp/aegis-advisor/internal/httputil"
	"github.com/af-corp/aegis-advisor/internal/store"
	"github.com/af-corp/aegis-advisor/internal/types"
	"github.com/go-chi/chi/v5"
)

type spendResponse struct {
	Event       types.SpendEvent    `json:"event"`
	Evaluations []budget.Evaluation `json:"evaluations"`
}

// RecordSpend handles POST /v1/spend. Budgets are evaluated right after the
// event is appended so thresholds fire on the spend that crossed them.
func (h *Handler) RecordSpend(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	var ev types.SpendEvent
	if err := decodeJSON(r, &ev); err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}
	if ev.CostUSD < 0 {
		httputil.WriteBadRequestError(w, reqID, "cost_usd must not be negative")
		return
	}

	recorded, err := h.Budgets.Record(r.Context(), ev)
	if err != nil {
		h.Logger.Error("failed to record spend", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to record spend")
		return
	}

	evals, err := h.Budgets.EvaluateAll(r.Context(), h.now())
	if err != nil {
		h.Logger.Error("budget evaluation failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Budget evaluation failed")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, spendResponse{Event: recorded, Evaluations: evals})
}

// ListBudgets handles GET /v1/budgets
func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	cfgs, err := h.Budgets.Configs(r.Context())
	if err != nil {
		h.Logger.Error("failed to load budgets", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to load budgets")
		return
	}
	if cfgs == nil {
		cfgs = []types.BudgetConfig{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"budgets": cfgs})
}

type budgetsRequest struct {
	Budgets []types.BudgetConfig `json:"budgets"`
}

// PutBudgets handles PUT /v1/budgets and replaces the whole budget set.
func (h *Handler) PutBudgets(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	var req budgetsRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}

	err := h.Budgets.SaveConfigs(r.Context(), req.Budgets)
	var invalid *budget.InvalidBudgetConfigError
	if errors.As(err, &invalid) {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}
	if err != nil {
		h.Logger.Error("failed to save budgets", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to save budgets")
		return
	}
	h.Logger.Info("budgets updated", "request_id", reqID, "count", len(req.Budgets))
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"budgets": req.Budgets})
}

// BudgetStatus handles GET /v1/budgets/{budgetID}/status
func (h *Handler) BudgetStatus(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	id := chi.URLParam(r, "budgetID")

	cfg, ok, err := h.Budgets.Config(r.Context(), id)
	if err != nil {
		h.Logger.Error("failed to load budgets", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to load budgets")
		return
	}
	if !ok {
		httputil.WriteNotFoundError(w, reqID, "budget "+id+" not found")
		return
	}

	st, err := h.Budgets.Status(r.Context(), cfg, h.now())
	if err != nil {
		h.Logger.Error("failed to compute budget status", "request_id", reqID, "budget_id", id, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to compute budget status")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

type evaluateRequest struct {
	// Now overrides the evaluation clock, mainly for backfills.
	Now *time.Time `json:"now,omitempty"`
}

// EvaluateBudgets handles POST /v1/budgets/evaluate
func (h *Handler) EvaluateBudgets(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	var req evaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}
	now := h.now()
	if req.Now != nil {
		now = *req.Now
	}

	evals, err := h.Budgets.EvaluateAll(r.Context(), now)
	if err != nil {
		h.Logger.Error("budget evaluation failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Budget evaluation failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"evaluations": evals})
}

// ListAlerts handles GET /v1/alerts?include_dismissed=true
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	includeDismissed, _ := strconv.ParseBool(r.URL.Query().Get("include_dismissed"))

	alerts, err := h.Budgets.Alerts(r.Context(), includeDismissed)
	if err != nil {
		h.Logger.Error("failed to list alerts", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []types.BudgetAlert{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// DismissAlert handles POST /v1/alerts/{alertID}/dismiss
func (h *Handler) DismissAlert(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	id := chi.URLParam(r, "alertID")

	err := h.Budgets.Dismiss(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteNotFoundError(w, reqID, "alert "+id+" not found")
		return
	}
	if err != nil {
		h.Logger.Error("failed to dismiss alert", "request_id", reqID, "alert_id", id, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to dismiss alert")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
