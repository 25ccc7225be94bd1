package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/af-corp/aegis-advisor/internal/config"
	"github.com/af-corp/aegis-advisor/internal/health"
	"github.com/af-corp/aegis-advisor/internal/store"
	"github.com/af-corp/aegis-advisor/internal/types"
)

func testCatalog() *config.CandidatesConfig {
	return &config.CandidatesConfig{
		Metrics: map[string]types.Direction{
			"latency_ms": types.LowerIsBetter,
			"accuracy":   types.HigherIsBetter,
		},
		Candidates: []config.CandidateEntry{
			{Candidate: types.Candidate{ID: "m1"}, Metrics: map[string]float64{"latency_ms": 100}},
			{Candidate: types.Candidate{ID: "m2"}},
		},
	}
}

func TestConfigSource_HealthOverlay(t *testing.T) {
	tracker := health.NewTracker(1, time.Hour)
	tracker.RecordOutcome("m2", false)

	src := NewConfigSource(testCatalog, tracker)
	pool, err := src.Candidates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool) != 2 || pool[0].ID != "m1" {
		t.Fatalf("unexpected pool: %+v", pool)
	}
	if !pool[0].Health.Healthy() || pool[1].Health.Healthy() {
		t.Errorf("expected only m2 to be unhealthy, got %+v", pool)
	}
}

func TestConfigSource_EmptySnapshot(t *testing.T) {
	src := NewConfigSource(func() *config.CandidatesConfig { return nil }, nil)
	pool, err := src.Candidates(context.Background())
	if err != nil || pool == nil || len(pool) != 0 {
		t.Errorf("expected empty non-nil pool, got %v, %v", pool, err)
	}
}

func TestMetrics_MergesIngestedSamples(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	mem := store.NewMemoryStore()
	m := NewMetrics(testCatalog, mem)
	m.now = func() time.Time { return now }

	err := m.Ingest(ctx, []types.MetricSample{
		{CandidateID: "m1", Name: "accuracy", Value: 0.9},
		{CandidateID: "m1", Name: "accuracy", Value: 0.5, ObservedAt: now.Add(-2 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	samples, err := m.Samples(ctx, "m1", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected static + one in-window sample, got %+v", samples)
	}
	for _, s := range samples {
		if s.Name == "accuracy" && (s.Value != 0.9 || s.Direction != types.HigherIsBetter) {
			t.Errorf("unexpected ingested sample: %+v", s)
		}
	}
}

func TestMetrics_IngestValidation(t *testing.T) {
	m := NewMetrics(testCatalog, store.NewMemoryStore())
	tests := []types.MetricSample{
		{Name: "x"},
		{CandidateID: "m1"},
		{CandidateID: "m1", Name: "x", Direction: "sideways"},
	}
	for _, s := range tests {
		if err := m.Ingest(context.Background(), []types.MetricSample{s}); err == nil {
			t.Errorf("expected %+v to be rejected", s)
		}
	}
}

type failingSource struct{}

func (failingSource) Samples(context.Context, string, time.Duration) ([]types.MetricSample, error) {
	return nil, errors.New("metrics backend down")
}

func TestFetchAll(t *testing.T) {
	src := NewMetrics(testCatalog, nil)
	pool := testCatalog().Pool()

	got, err := FetchAll(context.Background(), src, pool, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got["m1"]) != 1 || len(got["m2"]) != 0 {
		t.Errorf("unexpected samples: %+v", got)
	}

	if _, err := FetchAll(context.Background(), failingSource{}, pool, time.Hour); err == nil {
		t.Error("expected fetch error to propagate")
	}
}
