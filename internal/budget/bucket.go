package budget

import (
	"time"

	"github.com/af-corp/aegis-advisor/internal/types"
)

// BucketStart truncates t to the start of its period in loc. Weeks start on
// Monday.
func BucketStart(p types.Period, t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	switch p {
	case types.PeriodDaily:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case types.PeriodWeekly:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case types.PeriodMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case types.PeriodYearly:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// BucketEnd returns the exclusive end of the bucket starting at start.
func BucketEnd(p types.Period, start time.Time) time.Time {
	switch p {
	case types.PeriodWeekly:
		return start.AddDate(0, 0, 7)
	case types.PeriodMonthly:
		return start.AddDate(0, 1, 0)
	case types.PeriodYearly:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// Project extrapolates observed spend to the end of the bucket. Early in a
// bucket, before minElapsed has passed, observed is returned unscaled.
func Project(observed float64, start, end, now time.Time, minElapsed time.Duration) float64 {
	elapsed := now.Sub(start)
	if elapsed <= 0 || elapsed < minElapsed || !now.Before(end) {
		return observed
	}
	return observed * float64(end.Sub(start)) / float64(elapsed)
}
