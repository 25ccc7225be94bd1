package budget

import (
	"math"

	"github.com/af-corp/aegis-advisor/internal/types"
)

// ValidateConfig checks a single budget definition.
func ValidateConfig(cfg types.BudgetConfig) error {
	invalid := func(reason string) error {
		return &InvalidBudgetConfigError{BudgetID: cfg.ID, Reason: reason}
	}
	if cfg.ID == "" {
		return invalid("id is required")
	}
	if !(cfg.LimitUSD > 0) || math.IsInf(cfg.LimitUSD, 0) {
		return invalid("limit must be positive")
	}
	if !cfg.Period.Valid() {
		return invalid("unknown period " + string(cfg.Period))
	}
	if len(cfg.Thresholds) == 0 {
		return invalid("at least one threshold is required")
	}
	for i, t := range cfg.Thresholds {
		if !(t > 0) || math.IsInf(t, 0) {
			return invalid("thresholds must be positive fractions of the limit")
		}
		if i > 0 && t <= cfg.Thresholds[i-1] {
			return invalid("thresholds must be strictly ascending")
		}
	}
	return nil
}

// ValidateConfigs checks every definition and rejects duplicate ids.
func ValidateConfigs(cfgs []types.BudgetConfig) error {
	seen := make(map[string]bool, len(cfgs))
	for _, cfg := range cfgs {
		if err := ValidateConfig(cfg); err != nil {
			return err
		}
		if seen[cfg.ID] {
			return &InvalidBudgetConfigError{BudgetID: cfg.ID, Reason: "duplicate id"}
		}
		seen[cfg.ID] = true
	}
	return nil
}

// severityFor maps a threshold to an alert severity. Thresholds at or above
// the limit are critical. With InfoTier the lowest threshold below the limit
// is info.
func severityFor(cfg types.BudgetConfig, idx int) types.Severity {
	t := cfg.Thresholds[idx]
	switch {
	case t >= 1:
		return types.SeverityCritical
	case cfg.InfoTier && idx == 0:
		return types.SeverityInfo
	default:
		return types.SeverityWarning
	}
}
