package scoring

import (
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/af-corp/aegis-advisor/internal/types"
)

// CriterionScore is one evaluated criterion of a candidate.
type CriterionScore struct {
	Name       string  `json:"name"`
	Raw        float64 `json:"raw"`
	Normalized float64 `json:"normalized"`
	// Weight is the criterion's share of the weight this candidate was
	// actually evaluated on.
	Weight float64 `json:"weight"`
}

// CandidateScore is the fitness of one candidate.
type CandidateScore struct {
	CandidateID string           `json:"candidate_id"`
	Fitness     float64          `json:"fitness"`
	Criteria    []CriterionScore `json:"criteria"`
	Missing     []string         `json:"missing,omitempty"`
	Coverage    float64          `json:"coverage"`
}

// Criterion returns the evaluated criterion with the given name.
func (cs CandidateScore) Criterion(name string) (CriterionScore, bool) {
	for _, c := range cs.Criteria {
		if c.Name == name {
			return c, true
		}
	}
	return CriterionScore{}, false
}

// PoolScore is the result of scoring every candidate in a matrix.
type PoolScore struct {
	// Weights holds the live criteria weights normalized to sum to one.
	Weights map[string]float64
	// Dropped lists weighted criteria with no data anywhere in the pool.
	Dropped []string
	Scores  []CandidateScore
	// Unscored holds candidates that share no criterion with the weights.
	Unscored []*InsufficientDataError
}

// Engine combines normalized metrics with criterion weights.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// LiveWeights validates w and normalizes it over the criteria that have data
// for at least one candidate in m.
func (e *Engine) LiveWeights(m *Matrix, w types.Weights) (map[string]float64, []string, error) {
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Strings(names)

	var total float64
	var dropped []string
	live := make(map[string]float64, len(w))
	for _, name := range names {
		weight := w[name]
		if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
			return nil, nil, &InvalidWeightsError{Criterion: name, Weight: weight}
		}
		if weight == 0 {
			continue
		}
		if !m.Has(name) {
			dropped = append(dropped, name)
			reason := "no data in pool"
			if r, ok := m.Excluded()[name]; ok {
				reason = r
			}
			e.logger.Warn("criterion dropped from scoring", "criterion", name, "reason", reason)
			continue
		}
		live[name] = weight
		total += weight
	}

	if total == 0 {
		return nil, dropped, &InsufficientDataError{Reason: "no positive weight on a criterion with data"}
	}
	for name := range live {
		live[name] /= total
	}
	return live, dropped, nil
}

// ScoreCandidate computes the fitness of one candidate against live weights.
// Weights are re-normalized over the criteria the candidate actually has.
func (e *Engine) ScoreCandidate(m *Matrix, live map[string]float64, candidateID string) (CandidateScore, error) {
	names := make([]string, 0, len(live))
	for name := range live {
		names = append(names, name)
	}
	sort.Strings(names)

	score := CandidateScore{CandidateID: candidateID}
	var weightSum, weighted float64
	for _, name := range names {
		raw, ok := m.Value(candidateID, name)
		if !ok {
			score.Missing = append(score.Missing, name)
			continue
		}
		dir, _ := m.Direction(name)
		norm := Normalize(dir, raw, m.Column(name))
		score.Criteria = append(score.Criteria, CriterionScore{
			Name:       name,
			Raw:        raw,
			Normalized: norm,
			Weight:     live[name],
		})
		weightSum += live[name]
		weighted += live[name] * norm
	}

	if len(score.Criteria) == 0 {
		return score, &InsufficientDataError{CandidateID: candidateID, Reason: "no overlapping scored criteria"}
	}

	for i := range score.Criteria {
		score.Criteria[i].Weight /= weightSum
	}
	score.Fitness = clamp(weighted / weightSum)
	score.Coverage = float64(len(score.Criteria)) / float64(len(names))
	return score, nil
}

// ScorePool scores every candidate of m. Candidates without overlapping
// criteria are reported in Unscored instead of failing the request.
func (e *Engine) ScorePool(m *Matrix, w types.Weights) (*PoolScore, error) {
	live, dropped, err := e.LiveWeights(m, w)
	if err != nil {
		return nil, err
	}

	result := &PoolScore{Weights: live, Dropped: dropped}
	for _, id := range m.Candidates() {
		cs, err := e.ScoreCandidate(m, live, id)
		if err != nil {
			var ide *InsufficientDataError
			if errors.As(err, &ide) {
				e.logger.Debug("candidate not scored", "candidate_id", id, "reason", ide.Reason)
				result.Unscored = append(result.Unscored, ide)
				continue
			}
			return nil, err
		}
		result.Scores = append(result.Scores, cs)
	}
	return result, nil
}
