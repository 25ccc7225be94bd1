package recommend

import (
	"errors"
	"math"
	"slices"
	"sort"
	"strings"
	"testing"

	"github.com/af-corp/aegis-advisor/internal/scoring"
	"github.com/af-corp/aegis-advisor/internal/types"
)

func candidates(ids ...string) []types.Candidate {
	out := make([]types.Candidate, len(ids))
	for i, id := range ids {
		out[i] = types.Candidate{ID: id}
	}
	return out
}

func lower(id, name string, v float64) types.MetricSample {
	return types.MetricSample{CandidateID: id, Name: name, Value: v, Direction: types.LowerIsBetter}
}

func higher(id, name string, v float64) types.MetricSample {
	return types.MetricSample{CandidateID: id, Name: name, Value: v, Direction: types.HigherIsBetter}
}

func newTestRanker() *Ranker {
	return NewRanker(nil, Options{}, nil)
}

func TestRank_ExampleScenario(t *testing.T) {
	samples := map[string][]types.MetricSample{
		"m1": {lower("m1", "latency", 100), lower("m1", "cost", 0.01)},
		"m2": {lower("m2", "latency", 50), lower("m2", "cost", 0.02)},
	}

	ranking, err := newTestRanker().Rank(candidates("m2", "m1"), samples, types.Weights{"latency": 0.5, "cost": 0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranking.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(ranking.Results))
	}

	first, second := ranking.Results[0], ranking.Results[1]
	if first.CandidateID != "m1" || first.Rank != 1 {
		t.Errorf("expected m1 at rank 1, got %s at rank %d", first.CandidateID, first.Rank)
	}
	if second.CandidateID != "m2" || second.Rank != 2 {
		t.Errorf("expected m2 at rank 2, got %s at rank %d", second.CandidateID, second.Rank)
	}
	for _, r := range ranking.Results {
		if math.Abs(r.Fitness-50) > 1e-9 {
			t.Errorf("%s: expected fitness 50, got %v", r.CandidateID, r.Fitness)
		}
	}

	if len(first.Strengths) != 1 || first.Strengths[0] != "cost" {
		t.Errorf("expected m1 strength [cost], got %v", first.Strengths)
	}
	if len(first.Weaknesses) != 1 || first.Weaknesses[0] != "latency" {
		t.Errorf("expected m1 weakness [latency], got %v", first.Weaknesses)
	}
	if len(second.Strengths) != 1 || second.Strengths[0] != "latency" {
		t.Errorf("expected m2 strength [latency], got %v", second.Strengths)
	}
}

func TestRank_TieBreakByID(t *testing.T) {
	samples := map[string][]types.MetricSample{
		"zeta":  {higher("zeta", "accuracy", 0.9)},
		"alpha": {higher("alpha", "accuracy", 0.9)},
		"mid":   {higher("mid", "accuracy", 0.9)},
	}

	ranking, err := newTestRanker().Rank(candidates("zeta", "mid", "alpha"), samples, types.Weights{"accuracy": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"alpha", "mid", "zeta"}
	for i, r := range ranking.Results {
		if r.CandidateID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], r.CandidateID)
		}
	}
}

func TestRank_EmptyPool(t *testing.T) {
	ranking, err := newTestRanker().Rank(nil, nil, types.Weights{"latency": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ranking.Results == nil || len(ranking.Results) != 0 {
		t.Errorf("expected empty non-nil results, got %#v", ranking.Results)
	}
}

func TestRank_SingleCandidate(t *testing.T) {
	samples := map[string][]types.MetricSample{
		"solo": {lower("solo", "latency", 80), higher("solo", "accuracy", 0.7)},
	}

	ranking, err := newTestRanker().Rank(candidates("solo"), samples, types.Weights{"latency": 1, "accuracy": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranking.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(ranking.Results))
	}
	r := ranking.Results[0]
	if r.Rank != 1 {
		t.Errorf("expected rank 1, got %d", r.Rank)
	}
	if r.Fitness != 100 {
		t.Errorf("expected fitness 100 for degenerate single pool, got %v", r.Fitness)
	}
	if len(r.Strengths) != 0 || len(r.Weaknesses) != 0 {
		t.Errorf("expected no comparisons for single pool, got strengths=%v weaknesses=%v", r.Strengths, r.Weaknesses)
	}
	if len(r.Rationale) != 1 || !r.Rationale[0].TradeOff {
		t.Errorf("expected a single trade-off rationale, got %+v", r.Rationale)
	}
}

func TestRank_RationaleTopWeightedStrengths(t *testing.T) {
	samples := map[string][]types.MetricSample{
		"best": {
			lower("best", "latency", 10), lower("best", "cost", 1), higher("best", "accuracy", 0.99),
			higher("best", "uptime", 99.9), higher("best", "throughput", 500),
		},
		"worst": {
			lower("worst", "latency", 100), lower("worst", "cost", 10), higher("worst", "accuracy", 0.5),
			higher("worst", "uptime", 90), higher("worst", "throughput", 50),
		},
	}
	weights := types.Weights{"latency": 5, "cost": 4, "accuracy": 3, "uptime": 2, "throughput": 1}

	ranking, err := newTestRanker().Rank(candidates("best", "worst"), samples, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	best := ranking.Results[0]
	if best.CandidateID != "best" {
		t.Fatalf("expected best first, got %s", best.CandidateID)
	}
	if len(best.Rationale) != 3 {
		t.Fatalf("expected 3 reasons, got %d", len(best.Rationale))
	}
	want := []string{"latency", "cost", "accuracy"}
	for i, r := range best.Rationale {
		if r.Criterion != want[i] {
			t.Errorf("reason %d: expected %s, got %s", i, want[i], r.Criterion)
		}
	}
	if !strings.Contains(best.Rationale[0].Text, "33% of weight") {
		t.Errorf("expected weight fraction in text, got %q", best.Rationale[0].Text)
	}

	worst := ranking.Results[1]
	if len(worst.Strengths) != 0 {
		t.Errorf("expected no strengths for worst, got %v", worst.Strengths)
	}
	if len(worst.Weaknesses) != 5 {
		t.Errorf("expected 5 weaknesses for worst, got %v", worst.Weaknesses)
	}
	if len(worst.Rationale) != 1 || !worst.Rationale[0].TradeOff {
		t.Errorf("expected trade-off rationale for worst, got %+v", worst.Rationale)
	}
}

func TestRank_PartialCoverageDisclosed(t *testing.T) {
	samples := map[string][]types.MetricSample{
		"a": {lower("a", "latency", 10)},
		"b": {lower("b", "latency", 20), higher("b", "accuracy", 0.8)},
		"c": {lower("c", "latency", 30), higher("c", "accuracy", 0.9)},
	}

	ranking, err := newTestRanker().Rank(candidates("a", "b", "c"), samples, types.Weights{"latency": 1, "accuracy": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, r := range ranking.Results {
		if r.CandidateID != "a" {
			continue
		}
		if len(r.Missing) != 1 || r.Missing[0] != "accuracy" {
			t.Errorf("expected accuracy missing, got %v", r.Missing)
		}
		if !strings.Contains(r.Summary, "scored on 1 of 2 criteria") {
			t.Errorf("expected coverage note in summary, got %q", r.Summary)
		}
		if r.Fitness != 100 {
			t.Errorf("expected a to score 100 on latency alone, got %v", r.Fitness)
		}
		return
	}
	t.Fatal("candidate a missing from ranking")
}

func TestRank_Limit(t *testing.T) {
	samples := map[string][]types.MetricSample{
		"a": {lower("a", "latency", 10)},
		"b": {lower("b", "latency", 20)},
		"c": {lower("c", "latency", 30)},
	}

	ranking, err := newTestRanker().RankWith(candidates("a", "b", "c"), samples, types.Weights{"latency": 1}, Options{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranking.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(ranking.Results))
	}
	if ranking.Results[1].Rank != 2 {
		t.Errorf("expected rank 2, got %d", ranking.Results[1].Rank)
	}
}

func TestRank_ZeroLiveWeights(t *testing.T) {
	samples := map[string][]types.MetricSample{"a": {lower("a", "latency", 10)}}

	_, err := newTestRanker().Rank(candidates("a"), samples, types.Weights{"latency": 0})
	var ide *scoring.InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestRank_Deterministic(t *testing.T) {
	samples := map[string][]types.MetricSample{
		"a": {lower("a", "latency", 12), higher("a", "accuracy", 0.7)},
		"b": {lower("b", "latency", 18), higher("b", "accuracy", 0.9)},
		"c": {lower("c", "latency", 15), higher("c", "accuracy", 0.8)},
	}
	weights := types.Weights{"latency": 1, "accuracy": 1}
	r := newTestRanker()

	base, err := r.Rank(candidates("a", "b", "c"), samples, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 25; i++ {
		again, _ := r.Rank(candidates("a", "b", "c"), samples, weights)
		for j := range base.Results {
			if base.Results[j].CandidateID != again.Results[j].CandidateID || base.Results[j].Fitness != again.Results[j].Fitness {
				t.Fatalf("run %d: ranking changed at %d", i, j)
			}
		}
	}
}

func TestRankBefore_NearTiesAreOrderIndependent(t *testing.T) {
	base := []scoring.CandidateScore{
		{CandidateID: "a", Fitness: 50},
		{CandidateID: "b", Fitness: 50 + 0.6e-9},
		{CandidateID: "c", Fitness: 50 + 1.2e-9},
		{CandidateID: "d", Fitness: 49},
	}
	want := []string{"b", "c", "a", "d"}

	orders := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {2, 0, 3, 1}, {1, 3, 0, 2}}
	for _, order := range orders {
		scores := make([]scoring.CandidateScore, len(order))
		for i, idx := range order {
			scores[i] = base[idx]
		}
		sort.Slice(scores, func(i, j int) bool { return rankBefore(scores[i], scores[j]) })

		got := make([]string, len(scores))
		for i, s := range scores {
			got[i] = s.CandidateID
		}
		if !slices.Equal(got, want) {
			t.Errorf("input order %v: expected %v, got %v", order, want, got)
		}
	}
}
