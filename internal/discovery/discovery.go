package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/af-corp/aegis-advisor/internal/config"
	"github.com/af-corp/aegis-advisor/internal/health"
	"github.com/af-corp/aegis-advisor/internal/types"
	"golang.org/x/sync/errgroup"
)

// CandidateSource supplies the current candidate pool in discovery order.
type CandidateSource interface {
	Candidates(ctx context.Context) ([]types.Candidate, error)
}

// MetricSource supplies metric samples of one candidate within a window.
type MetricSource interface {
	Samples(ctx context.Context, candidateID string, window time.Duration) ([]types.MetricSample, error)
}

// SampleStore holds ingested metric samples.
type SampleStore interface {
	AppendSamples(ctx context.Context, samples []types.MetricSample) error
	Samples(ctx context.Context, candidateID string, since time.Time) ([]types.MetricSample, error)
}

// ConfigSource serves the pool declared in candidates.yaml. The snapshot
// func is re-read on every call so hot reloads take effect immediately.
type ConfigSource struct {
	snapshot func() *config.CandidatesConfig
	health   *health.Tracker
}

// NewConfigSource creates a pool source. A non-nil tracker marks candidates
// with open circuit breakers unhealthy.
func NewConfigSource(snapshot func() *config.CandidatesConfig, tracker *health.Tracker) *ConfigSource {
	return &ConfigSource{snapshot: snapshot, health: tracker}
}

func (s *ConfigSource) Candidates(_ context.Context) ([]types.Candidate, error) {
	pool := s.snapshot().Pool()
	if pool == nil {
		pool = []types.Candidate{}
	}
	if s.health != nil {
		pool = s.health.Overlay(pool)
	}
	return pool, nil
}

// Metrics merges the static metrics of candidates.yaml with ingested
// samples. Ingested samples without a direction take the catalog direction.
type Metrics struct {
	catalog func() *config.CandidatesConfig
	store   SampleStore
	now     func() time.Time
}

func NewMetrics(catalog func() *config.CandidatesConfig, store SampleStore) *Metrics {
	return &Metrics{catalog: catalog, store: store, now: time.Now}
}

func (m *Metrics) Samples(ctx context.Context, candidateID string, window time.Duration) ([]types.MetricSample, error) {
	now := m.now()
	cat := m.catalog()
	out := cat.Samples(candidateID, now)
	if m.store == nil {
		return out, nil
	}

	ingested, err := m.store.Samples(ctx, candidateID, now.Add(-window))
	if err != nil {
		return nil, fmt.Errorf("load samples for %s: %w", candidateID, err)
	}
	for _, s := range ingested {
		if s.Direction == "" && cat != nil {
			s.Direction = cat.Metrics[s.Name]
		}
		out = append(out, s)
	}
	return out, nil
}

// Ingest validates and stores samples reported by the metrics collaborator.
func (m *Metrics) Ingest(ctx context.Context, samples []types.MetricSample) error {
	if m.store == nil {
		return fmt.Errorf("ingest samples: no sample store configured")
	}
	now := m.now()
	for i := range samples {
		s := &samples[i]
		if s.CandidateID == "" || s.Name == "" {
			return fmt.Errorf("ingest samples: sample %d needs candidate_id and name", i)
		}
		if s.Direction != "" && !s.Direction.Valid() {
			return fmt.Errorf("ingest samples: sample %d has unknown direction %q", i, s.Direction)
		}
		if s.ObservedAt.IsZero() {
			s.ObservedAt = now
		}
	}
	if err := m.store.AppendSamples(ctx, samples); err != nil {
		return fmt.Errorf("ingest samples: %w", err)
	}
	return nil
}

// maxConcurrentFetches bounds parallel metric lookups per request.
const maxConcurrentFetches = 8

// FetchAll loads samples for every candidate of pool concurrently.
func FetchAll(ctx context.Context, src MetricSource, pool []types.Candidate, window time.Duration) (map[string][]types.MetricSample, error) {
	results := make([][]types.MetricSample, len(pool))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, c := range pool {
		g.Go(func() error {
			samples, err := src.Samples(ctx, c.ID, window)
			if err != nil {
				return err
			}
			results[i] = samples
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]types.MetricSample, len(pool))
	for i, c := range pool {
		out[c.ID] = append(out[c.ID], results[i]...)
	}
	return out, nil
}
