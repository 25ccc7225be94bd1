package selection

import (
	"testing"

	"github.com/af-corp/aegis-advisor/internal/eligibility"
	"github.com/af-corp/aegis-advisor/internal/types"
)

func pool(ids ...string) []types.Candidate {
	out := make([]types.Candidate, len(ids))
	for i, id := range ids {
		out[i] = types.Candidate{ID: id}
	}
	return out
}

// verdicts marks every id eligible except those listed in bad.
func verdicts(p []types.Candidate, bad ...string) map[string]eligibility.Verdict {
	out := make(map[string]eligibility.Verdict, len(p))
	for _, c := range p {
		out[c.ID] = eligibility.Verdict{Eligible: true}
	}
	for _, id := range bad {
		out[id] = eligibility.Verdict{Reasons: []string{"unhealthy: " + id}}
	}
	return out
}

func TestResolve_Priority(t *testing.T) {
	p := pool("A", "B", "C", "D")

	tests := []struct {
		name       string
		state      types.SelectionState
		bad        []string
		wantID     string
		wantReason types.ReasonCode
		wantLast   string
	}{
		{
			name:       "explicit wins",
			state:      types.SelectionState{ExplicitChoice: "A", LastUsedID: "B", DefaultID: "C"},
			wantID:     "A",
			wantReason: types.ReasonExplicit,
			wantLast:   "A",
		},
		{
			name:       "unhealthy explicit falls back to last used",
			state:      types.SelectionState{ExplicitChoice: "A", LastUsedID: "B", DefaultID: "C"},
			bad:        []string{"A"},
			wantID:     "B",
			wantReason: types.ReasonLastUsed,
			wantLast:   "B",
		},
		{
			name:       "default after last used",
			state:      types.SelectionState{LastUsedID: "B", DefaultID: "C"},
			bad:        []string{"B"},
			wantID:     "C",
			wantReason: types.ReasonDefault,
			wantLast:   "C",
		},
		{
			name:       "first available is not sticky",
			state:      types.SelectionState{LastUsedID: "B", DefaultID: "C"},
			bad:        []string{"A", "B", "C"},
			wantID:     "D",
			wantReason: types.ReasonFirstAvailable,
			wantLast:   "B",
		},
		{
			name:       "nothing qualifies",
			state:      types.SelectionState{DefaultID: "C"},
			bad:        []string{"A", "B", "C", "D"},
			wantID:     "",
			wantReason: types.ReasonNone,
			wantLast:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Resolve(p, tt.state, verdicts(p, tt.bad...))
			if out.Resolution.Active() != tt.wantID {
				t.Errorf("expected active %q, got %q", tt.wantID, out.Resolution.Active())
			}
			if out.Resolution.Reason != tt.wantReason {
				t.Errorf("expected reason %q, got %q", tt.wantReason, out.Resolution.Reason)
			}
			if out.Next.LastUsedID != tt.wantLast {
				t.Errorf("expected last used %q, got %q", tt.wantLast, out.Next.LastUsedID)
			}
			if len(out.Resolution.Excluded) != len(tt.bad) {
				t.Errorf("expected %d exclusions, got %+v", len(tt.bad), out.Resolution.Excluded)
			}
		})
	}
}

func TestResolve_EmptyPool(t *testing.T) {
	out := Resolve(nil, types.SelectionState{LastUsedID: "gone"}, nil)
	if out.Resolution.Selected() {
		t.Errorf("expected no selection, got %q", out.Resolution.Active())
	}
	if out.Resolution.Reason != types.ReasonNone {
		t.Errorf("expected reason none, got %q", out.Resolution.Reason)
	}
	if out.Resolution.Excluded == nil || len(out.Resolution.Excluded) != 0 {
		t.Errorf("expected empty non-nil exclusions, got %#v", out.Resolution.Excluded)
	}
}

func TestResolve_ClearsVanishedExplicitChoice(t *testing.T) {
	p := pool("B", "C")
	state := types.SelectionState{ExplicitChoice: "A", LastUsedID: "A", DefaultID: "C"}

	out := Resolve(p, state, verdicts(p))
	if out.Next.ExplicitChoice != "" {
		t.Errorf("expected explicit choice to be cleared, got %q", out.Next.ExplicitChoice)
	}
	if out.Resolution.Active() != "C" || out.Resolution.Reason != types.ReasonDefault {
		t.Errorf("expected default C, got %+v", out.Resolution)
	}
	if !out.Changed(state) {
		t.Error("expected outcome to report a state change")
	}
}

func TestResolve_KeepsUnhealthyExplicitChoice(t *testing.T) {
	p := pool("A", "B")
	state := types.SelectionState{ExplicitChoice: "A"}

	out := Resolve(p, state, verdicts(p, "A"))
	if out.Next.ExplicitChoice != "A" {
		t.Errorf("expected listed explicit choice to survive, got %q", out.Next.ExplicitChoice)
	}
	if out.Resolution.Active() != "B" || out.Resolution.Reason != types.ReasonFirstAvailable {
		t.Errorf("expected first available B, got %+v", out.Resolution)
	}
	ex := out.Resolution.Excluded
	if len(ex) != 1 || ex[0].CandidateID != "A" || ex[0].Reasons[0] != "unhealthy: A" {
		t.Errorf("unexpected exclusions: %+v", ex)
	}
}

func TestResolve_MissingVerdictIsIneligible(t *testing.T) {
	p := pool("A", "B")
	out := Resolve(p, types.SelectionState{}, map[string]eligibility.Verdict{"B": {Eligible: true}})
	if out.Resolution.Active() != "B" {
		t.Errorf("expected B, got %q", out.Resolution.Active())
	}
}

func TestResolve_Idempotent(t *testing.T) {
	p := pool("A", "B")
	v := verdicts(p)
	first := Resolve(p, types.SelectionState{DefaultID: "B"}, v)
	second := Resolve(p, first.Next, v)

	if second.Resolution.Active() != "B" {
		t.Errorf("expected B, got %q", second.Resolution.Active())
	}
	if second.Resolution.Reason != types.ReasonLastUsed {
		t.Errorf("expected last_used on second resolution, got %q", second.Resolution.Reason)
	}
	if second.Changed(first.Next) {
		t.Error("expected no state change on repeated resolution")
	}
}
