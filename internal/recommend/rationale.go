package recommend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/af-corp/aegis-advisor/internal/scoring"
)

// Reason is one human-readable line of a recommendation rationale.
type Reason struct {
	Criterion string  `json:"criterion"`
	Weight    float64 `json:"weight"`
	Score     float64 `json:"score"`
	TradeOff  bool    `json:"trade_off,omitempty"`
	Text      string  `json:"text"`
}

// buildRationale lists the highest-weighted strengths. Without strengths it
// falls back to the criterion contributing most to the candidate's fitness.
func buildRationale(cs scoring.CandidateScore, strengths []string, max int) []Reason {
	if len(cs.Criteria) == 0 {
		return []Reason{}
	}

	if len(strengths) > 0 {
		picked := make([]scoring.CriterionScore, 0, len(strengths))
		for _, name := range strengths {
			if c, ok := cs.Criterion(name); ok {
				picked = append(picked, c)
			}
		}
		sort.SliceStable(picked, func(i, j int) bool {
			if picked[i].Weight != picked[j].Weight {
				return picked[i].Weight > picked[j].Weight
			}
			return picked[i].Name < picked[j].Name
		})
		if len(picked) > max {
			picked = picked[:max]
		}

		reasons := make([]Reason, 0, len(picked))
		for _, c := range picked {
			reasons = append(reasons, Reason{
				Criterion: c.Name,
				Weight:    c.Weight,
				Score:     c.Normalized,
				Text: fmt.Sprintf("%s is among the best in the pool (%.0f/100, %.0f%% of weight)",
					c.Name, c.Normalized, c.Weight*100),
			})
		}
		return reasons
	}

	best := cs.Criteria[0]
	for _, c := range cs.Criteria[1:] {
		bc, cc := best.Weight*best.Normalized, c.Weight*c.Normalized
		if cc > bc || (cc == bc && c.Weight > best.Weight) {
			best = c
		}
	}
	return []Reason{{
		Criterion: best.Name,
		Weight:    best.Weight,
		Score:     best.Normalized,
		TradeOff:  true,
		Text: fmt.Sprintf("best available trade-off: %s (%.0f/100, %.0f%% of weight)",
			best.Name, best.Normalized, best.Weight*100),
	}}
}

func summarize(cs scoring.CandidateScore, reasons []Reason) string {
	parts := make([]string, 0, len(reasons)+1)
	for _, r := range reasons {
		parts = append(parts, r.Text)
	}
	if len(cs.Missing) > 0 {
		total := len(cs.Criteria) + len(cs.Missing)
		parts = append(parts, fmt.Sprintf("scored on %d of %d criteria; missing: %s",
			len(cs.Criteria), total, strings.Join(cs.Missing, ", ")))
	}
	return strings.Join(parts, "; ")
}
