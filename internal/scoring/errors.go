package scoring

import "fmt"

// InsufficientDataError is returned when scoring has nothing to work with:
// either no live weights for the request, or a candidate without a single
// metric that overlaps the weighted criteria.
type InsufficientDataError struct {
	// CandidateID is empty when the whole request lacks live weights.
	CandidateID string
	Reason      string
}

func (e *InsufficientDataError) Error() string {
	if e.CandidateID == "" {
		return "insufficient data: " + e.Reason
	}
	return fmt.Sprintf("insufficient data for candidate %s: %s", e.CandidateID, e.Reason)
}

// InvalidWeightsError reports a malformed criterion weight.
type InvalidWeightsError struct {
	Criterion string
	Weight    float64
}

func (e *InvalidWeightsError) Error() string {
	return fmt.Sprintf("invalid weight %v for criterion %q: weights must be finite and non-negative", e.Weight, e.Criterion)
}
