package store

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/af-corp/aegis-advisor/internal/types"
)

// MemoryStore keeps all advisor state in process memory. It implements the
// selection, ledger, alert, budget and metric stores.
type MemoryStore struct {
	mu         sync.RWMutex
	selections map[string]types.SelectionState
	ledger     []types.SpendEvent
	latest     time.Time
	marks      map[string]struct{}
	alerts     []types.BudgetAlert
	budgets    []types.BudgetConfig
	samples    map[string][]types.MetricSample
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		selections: make(map[string]types.SelectionState),
		marks:      make(map[string]struct{}),
		samples:    make(map[string][]types.MetricSample),
	}
}

func (m *MemoryStore) LoadSelectionState(_ context.Context, sessionID string) (types.SelectionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.selections[sessionID]
	if !ok {
		return types.SelectionState{SessionID: sessionID}, nil
	}
	return st, nil
}

func (m *MemoryStore) SaveSelectionState(_ context.Context, state types.SelectionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selections[state.SessionID].Version != state.Version {
		return ErrVersionConflict
	}
	state.Version++
	m.selections[state.SessionID] = state
	return nil
}

func (m *MemoryStore) AppendSpend(_ context.Context, ev types.SpendEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = append(m.ledger, ev)
	if ev.Timestamp.After(m.latest) {
		m.latest = ev.Timestamp
	}
	return nil
}

func (m *MemoryStore) SumSpend(_ context.Context, scope types.BudgetScope, from, to time.Time) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum float64
	for _, ev := range m.ledger {
		if ev.Timestamp.Before(from) || !ev.Timestamp.Before(to) {
			continue
		}
		if scope.Matches(ev.Provider, ev.Model) {
			sum += ev.CostUSD
		}
	}
	return sum, nil
}

func (m *MemoryStore) LatestSpend(_ context.Context) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, nil
}

func markKey(k types.AlertKey) string {
	return k.BudgetID + "|" + k.BucketStart.UTC().Format(time.RFC3339) + "|" + strconv.FormatFloat(k.Threshold, 'g', -1, 64)
}

// MarkAlerted records key. Marks are kept for the life of the process.
func (m *MemoryStore) MarkAlerted(_ context.Context, key types.AlertKey, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := markKey(key)
	if _, ok := m.marks[k]; ok {
		return false, nil
	}
	m.marks[k] = struct{}{}
	return true, nil
}

func (m *MemoryStore) UnmarkAlerted(_ context.Context, key types.AlertKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.marks, markKey(key))
	return nil
}

func (m *MemoryStore) SaveAlert(_ context.Context, alert types.BudgetAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *MemoryStore) ListAlerts(_ context.Context, includeDismissed bool) ([]types.BudgetAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.BudgetAlert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if a.Dismissed && !includeDismissed {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *MemoryStore) DismissAlert(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.alerts {
		if m.alerts[i].ID == id {
			m.alerts[i].Dismissed = true
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) LoadBudgetConfigs(_ context.Context) ([]types.BudgetConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.budgets), nil
}

func (m *MemoryStore) SaveBudgetConfigs(_ context.Context, cfgs []types.BudgetConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budgets = slices.Clone(cfgs)
	return nil
}

func (m *MemoryStore) AppendSamples(_ context.Context, samples []types.MetricSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range samples {
		m.samples[s.CandidateID] = append(m.samples[s.CandidateID], s)
	}
	return nil
}

// Samples returns samples of one candidate observed at or after since.
func (m *MemoryStore) Samples(_ context.Context, candidateID string, since time.Time) ([]types.MetricSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.MetricSample
	for _, s := range m.samples[candidateID] {
		if s.ObservedAt.Before(since) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
