package selection

import (
	"github.com/af-corp/aegis-advisor/internal/eligibility"
	"github.com/af-corp/aegis-advisor/internal/types"
)

// Outcome is a resolution plus the selection state that should be persisted
// after it.
type Outcome struct {
	Resolution types.Resolution
	Next       types.SelectionState
}

// Changed reports whether Next differs from prev in any persisted field.
func (o Outcome) Changed(prev types.SelectionState) bool {
	return o.Next.ExplicitChoice != prev.ExplicitChoice ||
		o.Next.LastUsedID != prev.LastUsedID ||
		o.Next.DefaultID != prev.DefaultID
}

// Resolve picks the active candidate for one session. Order: explicit
// choice, last used, default, then the first eligible candidate in pool
// order. A candidate without a verdict is treated as ineligible.
//
// Resolve has no side effects; the caller persists Outcome.Next.
func Resolve(pool []types.Candidate, state types.SelectionState, verdicts map[string]eligibility.Verdict) Outcome {
	next := state
	excluded := []types.Exclusion{}

	inPool := make(map[string]bool, len(pool))
	eligible := make(map[string]bool, len(pool))
	for _, c := range pool {
		if inPool[c.ID] {
			continue
		}
		inPool[c.ID] = true
		v, ok := verdicts[c.ID]
		switch {
		case !ok:
			excluded = append(excluded, types.Exclusion{CandidateID: c.ID, Reasons: []string{"not evaluated"}})
		case !v.Eligible:
			excluded = append(excluded, types.Exclusion{CandidateID: c.ID, Reasons: v.Reasons})
		default:
			eligible[c.ID] = true
		}
	}

	// An explicit pick only lives as long as its candidate is listed.
	if next.ExplicitChoice != "" && !inPool[next.ExplicitChoice] {
		next.ExplicitChoice = ""
	}

	res := types.Resolution{Reason: types.ReasonNone, Excluded: excluded}
	var active string
	switch {
	case eligible[next.ExplicitChoice]:
		active, res.Reason = next.ExplicitChoice, types.ReasonExplicit
	case eligible[next.LastUsedID]:
		active, res.Reason = next.LastUsedID, types.ReasonLastUsed
	case eligible[next.DefaultID]:
		active, res.Reason = next.DefaultID, types.ReasonDefault
	default:
		for _, c := range pool {
			if eligible[c.ID] {
				active, res.Reason = c.ID, types.ReasonFirstAvailable
				break
			}
		}
	}
	if active != "" {
		res.ActiveID = &active
	}

	if res.Reason.Sticky() {
		next.LastUsedID = active
	}
	return Outcome{Resolution: res, Next: next}
}
