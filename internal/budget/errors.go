package budget

import (
	"fmt"
	"time"
)

// InvalidBudgetConfigError reports a budget definition that cannot be
// evaluated.
type InvalidBudgetConfigError struct {
	BudgetID string
	Reason   string
}

func (e *InvalidBudgetConfigError) Error() string {
	if e.BudgetID == "" {
		return "invalid budget config: " + e.Reason
	}
	return fmt.Sprintf("invalid budget config %q: %s", e.BudgetID, e.Reason)
}

// ClockSkewWarning is raised when an evaluation clock is earlier than the
// newest recorded spend event. Evaluation still uses the supplied clock.
type ClockSkewWarning struct {
	Now       time.Time
	LastEvent time.Time
}

func (w *ClockSkewWarning) Error() string {
	return fmt.Sprintf("clock skew: evaluation time %s is %s before last spend event %s",
		w.Now.Format(time.RFC3339), w.LastEvent.Sub(w.Now), w.LastEvent.Format(time.RFC3339))
}
