package config

import (
	"time"

	"github.com/af-corp/aegis-advisor/internal/types"
)

// CandidatesConfig is the discovery snapshot read from candidates.yaml. The
// order of Candidates is the discovery order used for first-available
// selection.
type CandidatesConfig struct {
	// Metrics declares the direction of every metric that may be scored.
	Metrics    map[string]types.Direction `yaml:"metrics"`
	Candidates []CandidateEntry           `yaml:"candidates"`
}

// CandidateEntry is a candidate plus metric values observed by discovery.
type CandidateEntry struct {
	types.Candidate `yaml:",inline"`
	Metrics         map[string]float64 `yaml:"metrics,omitempty"`
}

// Pool returns the candidates in file order.
func (c *CandidatesConfig) Pool() []types.Candidate {
	if c == nil {
		return nil
	}
	out := make([]types.Candidate, 0, len(c.Candidates))
	for _, e := range c.Candidates {
		out = append(out, e.Candidate)
	}
	return out
}

// Samples returns the static metric values of one candidate, tagged with
// the catalog direction. Metrics missing from the catalog are returned
// without direction so scoring excludes them.
func (c *CandidatesConfig) Samples(candidateID string, at time.Time) []types.MetricSample {
	if c == nil {
		return nil
	}
	for _, e := range c.Candidates {
		if e.ID != candidateID {
			continue
		}
		out := make([]types.MetricSample, 0, len(e.Metrics))
		for name, v := range e.Metrics {
			out = append(out, types.MetricSample{
				CandidateID: candidateID,
				Name:        name,
				Value:       v,
				Direction:   c.Metrics[name],
				ObservedAt:  at,
			})
		}
		return out
	}
	return nil
}

// BudgetsConfig seeds budget definitions from budgets.yaml.
type BudgetsConfig struct {
	Budgets []types.BudgetConfig `yaml:"budgets"`
}
