package health

import (
	"sync"
	"time"
)

// CircuitState is the state of a candidate's circuit breaker.
type CircuitState int

const (
	StateClosed   CircuitState = iota // requests succeed, candidate healthy
	StateOpen                         // too many failures, candidate unhealthy
	StateHalfOpen                     // recovery probe allowed
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker counts consecutive failures of one candidate.
type Breaker struct {
	mu sync.Mutex

	state    CircuitState
	failures int
	openedAt time.Time
	now      func() time.Time

	failureThreshold      int
	recoveryProbeInterval time.Duration
}

func NewBreaker(failureThreshold int, recoveryProbeInterval time.Duration, now func() time.Time) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Breaker{
		state:                 StateClosed,
		failureThreshold:      failureThreshold,
		recoveryProbeInterval: recoveryProbeInterval,
		now:                   now,
	}
}

func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// currentState moves OPEN to HALF_OPEN once the probe interval has elapsed.
// Must be called with mu held.
func (b *Breaker) currentState() CircuitState {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.recoveryProbeInterval {
		b.state = StateHalfOpen
	}
	return b.state
}

// Healthy is false only while the circuit is open. A half-open circuit lets
// the candidate be selected again so that a probe can succeed.
func (b *Breaker) Healthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState() != StateOpen
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState() {
	case StateHalfOpen:
		b.state = StateClosed
		b.failures = 0
	case StateClosed:
		b.failures = 0
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch b.currentState() {
	case StateClosed:
		if b.failures >= b.failureThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
}
