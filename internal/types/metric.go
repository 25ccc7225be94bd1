package types

import "time"

// Direction declares whether larger or smaller raw values are preferable.
type Direction string

const (
	HigherIsBetter Direction = "higher_is_better"
	LowerIsBetter  Direction = "lower_is_better"
)

func (d Direction) Valid() bool {
	return d == HigherIsBetter || d == LowerIsBetter
}

func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case HigherIsBetter, LowerIsBetter:
		return Direction(s), true
	case "higher", "max":
		return HigherIsBetter, true
	case "lower", "min":
		return LowerIsBetter, true
	default:
		return "", false
	}
}

// MetricSample is a named numeric observation for one candidate.
type MetricSample struct {
	CandidateID string    `json:"candidate_id" yaml:"candidate_id"`
	Name        string    `json:"name" yaml:"name"`
	Value       float64   `json:"value" yaml:"value"`
	Direction   Direction `json:"direction,omitempty" yaml:"direction,omitempty"`
	ObservedAt  time.Time `json:"observed_at,omitempty" yaml:"observed_at,omitempty"`
}

// Weights maps a metric name to a non-negative criterion weight. Weights need
// not sum to one.
type Weights map[string]float64
