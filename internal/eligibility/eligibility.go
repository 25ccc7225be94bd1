package eligibility

import (
	"context"

	"github.com/af-corp/aegis-advisor/internal/types"
)

// Result is returned by each check.
type Result struct {
	Check  string
	Pass   bool
	Reason string
}

// Check is the interface all eligibility checks implement.
type Check interface {
	Name() string
	Enabled() bool
	Evaluate(ctx context.Context, c types.Candidate) Result
}

// Verdict is the combined outcome of every enabled check for one candidate.
type Verdict struct {
	Eligible bool
	Reasons  []string
}

// Chain runs every enabled check and collects all rejection reasons, so a
// caller can explain exactly why a candidate was excluded.
type Chain struct {
	checks   []Check
	onReject func(check string)
}

func NewChain(checks ...Check) *Chain {
	return &Chain{checks: checks}
}

// OnReject registers a hook called once per failing check.
func (ch *Chain) OnReject(fn func(check string)) {
	ch.onReject = fn
}

func (ch *Chain) Evaluate(ctx context.Context, c types.Candidate) Verdict {
	v := Verdict{Eligible: true}
	for _, check := range ch.checks {
		if !check.Enabled() {
			continue
		}
		r := check.Evaluate(ctx, c)
		if r.Pass {
			continue
		}
		v.Eligible = false
		v.Reasons = append(v.Reasons, r.Reason)
		if ch.onReject != nil {
			ch.onReject(check.Name())
		}
	}
	return v
}

// EvaluatePool returns a verdict per candidate ID.
func (ch *Chain) EvaluatePool(ctx context.Context, pool []types.Candidate) map[string]Verdict {
	out := make(map[string]Verdict, len(pool))
	for _, c := range pool {
		if _, done := out[c.ID]; done {
			continue
		}
		out[c.ID] = ch.Evaluate(ctx, c)
	}
	return out
}

// Split partitions pool into eligible candidates (in pool order) and the
// exclusions of the rest.
func (ch *Chain) Split(ctx context.Context, pool []types.Candidate) ([]types.Candidate, []types.Exclusion) {
	verdicts := ch.EvaluatePool(ctx, pool)
	eligible := make([]types.Candidate, 0, len(pool))
	excluded := []types.Exclusion{}
	for _, c := range pool {
		v := verdicts[c.ID]
		if v.Eligible {
			eligible = append(eligible, c)
			continue
		}
		excluded = append(excluded, types.Exclusion{CandidateID: c.ID, Reasons: v.Reasons})
	}
	return eligible, excluded
}
