package recommend

import (
	"log/slog"
	"math"
	"sort"

	"github.com/af-corp/aegis-advisor/internal/scoring"
	"github.com/af-corp/aegis-advisor/internal/types"
)

const (
	DefaultTolerance  = 10.0
	DefaultMaxReasons = 3

	// fitnessPrecision is the granularity at which fitness values tie.
	fitnessPrecision = 1e-9
)

// Options tunes strength/weakness classification and output size.
type Options struct {
	// Tolerance is the distance in normalized points from the pool best
	// (worst) within which a criterion counts as a strength (weakness).
	Tolerance float64
	// MaxReasons caps the number of rationale entries per candidate.
	MaxReasons int
	// Limit truncates the ranking after sorting. Zero keeps every candidate.
	Limit int
}

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MaxReasons <= 0 {
		o.MaxReasons = DefaultMaxReasons
	}
	return o
}

// Result is the ranked recommendation for one candidate.
type Result struct {
	Rank        int                      `json:"rank"`
	CandidateID string                   `json:"candidate_id"`
	Fitness     float64                  `json:"fitness"`
	Criteria    []scoring.CriterionScore `json:"criteria"`
	Missing     []string                 `json:"missing,omitempty"`
	Coverage    float64                  `json:"coverage"`
	Strengths   []string                 `json:"strengths"`
	Weaknesses  []string                 `json:"weaknesses"`
	Rationale   []Reason                 `json:"rationale"`
	Summary     string                   `json:"summary"`
}

// Unscored is a candidate left out of the ranking for lack of data.
type Unscored struct {
	CandidateID string `json:"candidate_id"`
	Reason      string `json:"reason"`
}

// Ranking is the answer to one recommendation request.
type Ranking struct {
	Results         []Result           `json:"results"`
	Unscored        []Unscored         `json:"unscored,omitempty"`
	DroppedCriteria []string           `json:"dropped_criteria,omitempty"`
	Weights         map[string]float64 `json:"weights,omitempty"`
}

// Ranker orders candidates by fitness and explains the order.
type Ranker struct {
	engine *scoring.Engine
	opts   Options
	logger *slog.Logger
}

func NewRanker(engine *scoring.Engine, opts Options, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = scoring.NewEngine(logger)
	}
	return &Ranker{engine: engine, opts: opts.withDefaults(), logger: logger}
}

// Rank scores pool against weights and returns candidates best first. The
// pool is expected to be filtered for eligibility already. An empty pool
// yields an empty ranking, not an error.
// rankBefore orders by fitness rounded to fitnessPrecision, then by ID.
// Rounding keeps the order transitive where an epsilon comparison is not.
func rankBefore(a, b scoring.CandidateScore) bool {
	fa, fb := math.Round(a.Fitness/fitnessPrecision), math.Round(b.Fitness/fitnessPrecision)
	if fa != fb {
		return fa > fb
	}
	return a.CandidateID < b.CandidateID
}

func (r *Ranker) Rank(pool []types.Candidate, samples map[string][]types.MetricSample, weights types.Weights) (*Ranking, error) {
	return r.RankWith(pool, samples, weights, r.opts)
}

// RankWith is Rank with per-request options. Zero-valued fields fall back to
// the ranker defaults.
func (r *Ranker) RankWith(pool []types.Candidate, samples map[string][]types.MetricSample, weights types.Weights, opts Options) (*Ranking, error) {
	if opts.Tolerance <= 0 {
		opts.Tolerance = r.opts.Tolerance
	}
	if opts.MaxReasons <= 0 {
		opts.MaxReasons = r.opts.MaxReasons
	}
	if opts.Limit <= 0 {
		opts.Limit = r.opts.Limit
	}

	if len(pool) == 0 {
		return &Ranking{Results: []Result{}}, nil
	}

	m := scoring.BuildMatrix(pool, samples)
	ps, err := r.engine.ScorePool(m, weights)
	if err != nil {
		return nil, err
	}

	ranking := &Ranking{
		Results:         make([]Result, 0, len(ps.Scores)),
		DroppedCriteria: ps.Dropped,
		Weights:         ps.Weights,
	}
	for _, u := range ps.Unscored {
		ranking.Unscored = append(ranking.Unscored, Unscored{CandidateID: u.CandidateID, Reason: u.Reason})
	}

	scores := ps.Scores
	sort.Slice(scores, func(i, j int) bool { return rankBefore(scores[i], scores[j]) })

	ext := extremes(scores)
	for i, cs := range scores {
		res := Result{
			Rank:        i + 1,
			CandidateID: cs.CandidateID,
			Fitness:     cs.Fitness,
			Criteria:    cs.Criteria,
			Missing:     cs.Missing,
			Coverage:    cs.Coverage,
			Strengths:   []string{},
			Weaknesses:  []string{},
		}
		for _, c := range cs.Criteria {
			e := ext[c.Name]
			if e.count < 2 {
				continue
			}
			switch {
			case e.max-c.Normalized <= opts.Tolerance:
				res.Strengths = append(res.Strengths, c.Name)
			case c.Normalized-e.min <= opts.Tolerance:
				res.Weaknesses = append(res.Weaknesses, c.Name)
			}
		}
		res.Rationale = buildRationale(cs, res.Strengths, opts.MaxReasons)
		res.Summary = summarize(cs, res.Rationale)
		ranking.Results = append(ranking.Results, res)
	}

	if opts.Limit > 0 && len(ranking.Results) > opts.Limit {
		ranking.Results = ranking.Results[:opts.Limit]
	}

	r.logger.Debug("ranking computed",
		"candidates", len(pool),
		"scored", len(scores),
		"unscored", len(ranking.Unscored),
		"dropped_criteria", len(ranking.DroppedCriteria),
	)
	return ranking, nil
}

type extreme struct {
	min, max float64
	count    int
}

// extremes returns the best and worst normalized score per criterion across
// the candidates that carry it.
func extremes(scores []scoring.CandidateScore) map[string]extreme {
	out := make(map[string]extreme)
	for _, cs := range scores {
		for _, c := range cs.Criteria {
			e, ok := out[c.Name]
			if !ok {
				out[c.Name] = extreme{min: c.Normalized, max: c.Normalized, count: 1}
				continue
			}
			e.min = math.Min(e.min, c.Normalized)
			e.max = math.Max(e.max, c.Normalized)
			e.count++
			out[c.Name] = e
		}
	}
	return out
}
