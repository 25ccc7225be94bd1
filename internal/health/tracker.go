package health

import (
	"sync"
	"time"

	"github.com/af-corp/aegis-advisor/internal/types"
)

// IssueCircuitOpen is attached to candidates whose breaker is open.
const IssueCircuitOpen = "circuit open: recent requests failed"

// Tracker holds one breaker per candidate and overlays breaker health onto
// the health reported by discovery.
type Tracker struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker

	failureThreshold      int
	recoveryProbeInterval time.Duration
	now                   func() time.Time
}

func NewTracker(failureThreshold int, recoveryProbeInterval time.Duration) *Tracker {
	return &Tracker{
		breakers:              make(map[string]*Breaker),
		failureThreshold:      failureThreshold,
		recoveryProbeInterval: recoveryProbeInterval,
		now:                   time.Now,
	}
}

// Breaker returns (or lazily creates) the breaker for a candidate.
func (t *Tracker) Breaker(candidateID string) *Breaker {
	t.mu.RLock()
	b, ok := t.breakers[candidateID]
	t.mu.RUnlock()
	if ok {
		return b
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.breakers[candidateID]; ok {
		return b
	}
	b = NewBreaker(t.failureThreshold, t.recoveryProbeInterval, t.now)
	t.breakers[candidateID] = b
	return b
}

func (t *Tracker) Healthy(candidateID string) bool {
	t.mu.RLock()
	b, ok := t.breakers[candidateID]
	t.mu.RUnlock()
	return !ok || b.Healthy()
}

// RecordOutcome feeds a request result into the candidate's breaker and
// reports whether the candidate's health flipped.
func (t *Tracker) RecordOutcome(candidateID string, success bool) (changed bool) {
	b := t.Breaker(candidateID)
	before := b.Healthy()
	if success {
		b.RecordSuccess()
	} else {
		b.RecordFailure()
	}
	return before != b.Healthy()
}

// Overlay returns a copy of pool in which candidates with an open breaker are
// marked unhealthy.
func (t *Tracker) Overlay(pool []types.Candidate) []types.Candidate {
	out := make([]types.Candidate, len(pool))
	copy(out, pool)
	for i := range out {
		if t.Healthy(out[i].ID) {
			continue
		}
		issues := make([]string, 0, len(out[i].Health.Issues)+1)
		issues = append(issues, out[i].Health.Issues...)
		issues = append(issues, IssueCircuitOpen)
		out[i].Health = types.Health{Status: types.HealthUnhealthy, Issues: issues}
	}
	return out
}

// States reports the breaker state of every tracked candidate.
func (t *Tracker) States() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.breakers))
	for id, b := range t.breakers {
		out[id] = b.State().String()
	}
	return out
}
