package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/af-corp/aegis-advisor/internal/eligibility"
	"github.com/af-corp/aegis-advisor/internal/store"
	"github.com/af-corp/aegis-advisor/internal/telemetry"
	"github.com/af-corp/aegis-advisor/internal/types"
)

// StateStore persists selection state per session.
type StateStore interface {
	// LoadSelectionState returns the stored state, or a zero state at
	// version 0 when the session has none.
	LoadSelectionState(ctx context.Context, sessionID string) (types.SelectionState, error)
	// SaveSelectionState writes state if the stored version still equals
	// state.Version and bumps it. It returns store.ErrVersionConflict
	// otherwise.
	SaveSelectionState(ctx context.Context, state types.SelectionState) error
}

// ErrUnknownCandidate is returned when a pick or default names a candidate
// that is not in the pool.
var ErrUnknownCandidate = errors.New("unknown candidate")

const defaultMaxRetries = 5

// Service resolves and persists the active model per session.
type Service struct {
	store      StateStore
	gate       *eligibility.Chain
	metrics    *telemetry.Metrics
	maxRetries int
	logger     *slog.Logger
}

func NewService(st StateStore, gate *eligibility.Chain, metrics *telemetry.Metrics, maxRetries int, logger *slog.Logger) *Service {
	if maxRetries < 1 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, gate: gate, metrics: metrics, maxRetries: maxRetries, logger: logger}
}

// Resolve recomputes the active model of a session against pool. It is
// the handler for every recompute trigger: pool changes, health changes and
// config changes all call it with the latest pool.
func (s *Service) Resolve(ctx context.Context, sessionID string, pool []types.Candidate) (types.Resolution, error) {
	return s.update(ctx, sessionID, pool, nil)
}

// Choose records an explicit pick and resolves.
func (s *Service) Choose(ctx context.Context, sessionID, candidateID string, pool []types.Candidate) (types.Resolution, error) {
	if !contains(pool, candidateID) {
		return types.Resolution{}, fmt.Errorf("choose %q: %w", candidateID, ErrUnknownCandidate)
	}
	return s.update(ctx, sessionID, pool, func(st *types.SelectionState) {
		st.ExplicitChoice = candidateID
	})
}

// ClearChoice drops the explicit pick and resolves.
func (s *Service) ClearChoice(ctx context.Context, sessionID string, pool []types.Candidate) (types.Resolution, error) {
	return s.update(ctx, sessionID, pool, func(st *types.SelectionState) {
		st.ExplicitChoice = ""
	})
}

// SetDefault sets the session default. An empty id clears it.
func (s *Service) SetDefault(ctx context.Context, sessionID, candidateID string, pool []types.Candidate) (types.Resolution, error) {
	if candidateID != "" && !contains(pool, candidateID) {
		return types.Resolution{}, fmt.Errorf("set default %q: %w", candidateID, ErrUnknownCandidate)
	}
	return s.update(ctx, sessionID, pool, func(st *types.SelectionState) {
		st.DefaultID = candidateID
	})
}

// State returns the persisted state of a session.
func (s *Service) State(ctx context.Context, sessionID string) (types.SelectionState, error) {
	st, err := s.store.LoadSelectionState(ctx, sessionID)
	if err != nil {
		return types.SelectionState{}, fmt.Errorf("load selection state: %w", err)
	}
	return st, nil
}

func (s *Service) update(ctx context.Context, sessionID string, pool []types.Candidate, mutate func(*types.SelectionState)) (types.Resolution, error) {
	verdicts := s.gate.EvaluatePool(ctx, pool)

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		prev, err := s.store.LoadSelectionState(ctx, sessionID)
		if err != nil {
			return types.Resolution{}, fmt.Errorf("load selection state: %w", err)
		}
		prev.SessionID = sessionID

		input := prev
		if mutate != nil {
			mutate(&input)
		}
		out := Resolve(pool, input, verdicts)

		if !out.Changed(prev) {
			s.record(sessionID, out.Resolution)
			return out.Resolution, nil
		}

		err = s.store.SaveSelectionState(ctx, out.Next)
		if errors.Is(err, store.ErrVersionConflict) {
			s.logger.Debug("selection state changed concurrently, retrying",
				"session_id", sessionID, "attempt", attempt)
			continue
		}
		if err != nil {
			return types.Resolution{}, fmt.Errorf("save selection state: %w", err)
		}
		s.record(sessionID, out.Resolution)
		return out.Resolution, nil
	}
	return types.Resolution{}, fmt.Errorf("save selection state after %d attempts: %w", s.maxRetries, store.ErrVersionConflict)
}

func (s *Service) record(sessionID string, res types.Resolution) {
	s.metrics.RecordSelection(string(res.Reason))
	if !res.Selected() {
		s.logger.Warn("no qualifying candidate", "session_id", sessionID, "excluded", len(res.Excluded))
		return
	}
	s.logger.Debug("active model resolved", "session_id", sessionID, "candidate_id", res.Active(), "reason", res.Reason)
}

func contains(pool []types.Candidate, id string) bool {
	for _, c := range pool {
		if c.ID == id {
			return true
		}
	}
	return false
}
