package api

import (
	"errors"
	"net/http"

	"github.com/af-corp/aegis-advisor/internal/httputil"
	"github.com/af-corp/aegis-advisor/internal/selection"
	"github.com/af-corp/aegis-advisor/internal/store"
	"github.com/af-corp/aegis-advisor/internal/types"
	"github.com/go-chi/chi/v5"
)

type selectionResponse struct {
	SessionID string `json:"session_id"`
	types.Resolution
	DefaultID string `json:"default_id,omitempty"`
}

type pickRequest struct {
	CandidateID string `json:"candidate_id"`
}

// GetSelection handles GET /v1/sessions/{sessionID}/selection
func (h *Handler) GetSelection(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, func(sessionID string, pool []types.Candidate) (types.Resolution, error) {
		return h.Selection.Resolve(r.Context(), sessionID, pool)
	})
}

// PutChoice handles PUT /v1/sessions/{sessionID}/selection/choice
func (h *Handler) PutChoice(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if err := decodeJSON(r, &req); err != nil || req.CandidateID == "" {
		httputil.WriteBadRequestError(w, requestID(w), "candidate_id is required")
		return
	}
	h.resolve(w, r, func(sessionID string, pool []types.Candidate) (types.Resolution, error) {
		return h.Selection.Choose(r.Context(), sessionID, req.CandidateID, pool)
	})
}

// DeleteChoice handles DELETE /v1/sessions/{sessionID}/selection/choice
func (h *Handler) DeleteChoice(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, func(sessionID string, pool []types.Candidate) (types.Resolution, error) {
		return h.Selection.ClearChoice(r.Context(), sessionID, pool)
	})
}

// PutDefault handles PUT /v1/sessions/{sessionID}/selection/default. An
// empty candidate_id clears the default.
func (h *Handler) PutDefault(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteBadRequestError(w, requestID(w), err.Error())
		return
	}
	h.resolve(w, r, func(sessionID string, pool []types.Candidate) (types.Resolution, error) {
		return h.Selection.SetDefault(r.Context(), sessionID, req.CandidateID, pool)
	})
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, fn func(string, []types.Candidate) (types.Resolution, error)) {
	reqID := requestID(w)
	sessionID := chi.URLParam(r, "sessionID")

	pool, err := h.pool(r.Context())
	if err != nil {
		h.Logger.Error("failed to load candidate pool", "request_id", reqID, "error", err)
		httputil.WriteServiceUnavailableError(w, reqID, "Candidate pool unavailable")
		return
	}

	res, err := fn(sessionID, pool)
	switch {
	case errors.Is(err, selection.ErrUnknownCandidate):
		httputil.WriteNotFoundError(w, reqID, err.Error())
		return
	case errors.Is(err, store.ErrVersionConflict):
		httputil.WriteConflictError(w, reqID, "Selection changed concurrently, retry the request")
		return
	case err != nil:
		h.Logger.Error("selection failed", "request_id", reqID, "session_id", sessionID, "error", err)
		httputil.WriteInternalError(w, reqID, "Selection failed")
		return
	}

	st, err := h.Selection.State(r.Context(), sessionID)
	if err != nil {
		h.Logger.Error("failed to load selection state", "request_id", reqID, "session_id", sessionID, "error", err)
		httputil.WriteInternalError(w, reqID, "Selection failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, selectionResponse{SessionID: sessionID, Resolution: res, DefaultID: st.DefaultID})
}
