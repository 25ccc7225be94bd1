package scoring

import "github.com/af-corp/aegis-advisor/internal/types"

// MaxScore is the normalized score of the best value in a pool.
const MaxScore = 100.0

// Normalize maps a raw metric value onto 0–100 relative to the values seen
// for the same metric across the pool. A degenerate pool (no spread) scores
// every value at MaxScore.
func Normalize(dir types.Direction, v float64, pool []float64) float64 {
	lo, hi, ok := bounds(pool)
	if !ok || hi == lo {
		return MaxScore
	}

	var s float64
	switch dir {
	case types.LowerIsBetter:
		s = MaxScore * (hi - v) / (hi - lo)
	default:
		s = MaxScore * (v - lo) / (hi - lo)
	}
	return clamp(s)
}

func bounds(values []float64) (lo, hi float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, true
}

func clamp(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}
