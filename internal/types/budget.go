package types

import "time"

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	default:
		return false
	}
}

// BudgetScope restricts a budget to a subset of providers and models. Empty
// lists match everything.
type BudgetScope struct {
	Providers []string `json:"providers,omitempty" yaml:"providers,omitempty"`
	Models    []string `json:"models,omitempty" yaml:"models,omitempty"`
}

func (s BudgetScope) Matches(provider, model string) bool {
	return matchAny(s.Providers, provider) && matchAny(s.Models, model)
}

func matchAny(list []string, v string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// BudgetConfig is a spend limit per period with ascending alert thresholds
// expressed as fractions of the limit.
type BudgetConfig struct {
	ID         string      `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	LimitUSD   float64     `json:"limit_usd" yaml:"limit_usd"`
	Period     Period      `json:"period" yaml:"period"`
	Scope      BudgetScope `json:"scope" yaml:"scope"`
	Thresholds []float64   `json:"thresholds" yaml:"thresholds"`
	// InfoTier maps the lowest threshold below 100% to info severity.
	InfoTier bool `json:"info_tier" yaml:"info_tier"`
	Enabled  bool `json:"enabled" yaml:"enabled"`
}

// SpendEvent is one ledger entry.
type SpendEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	CostUSD   float64   `json:"cost_usd"`
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertKey identifies the (budget, bucket, threshold) triple that may alert
// at most once.
type AlertKey struct {
	BudgetID    string    `json:"budget_id"`
	BucketStart time.Time `json:"bucket_start"`
	Threshold   float64   `json:"threshold"`
}

type BudgetAlert struct {
	ID           string    `json:"id"`
	BudgetID     string    `json:"budget_id"`
	BudgetName   string    `json:"budget_name"`
	BucketStart  time.Time `json:"bucket_start"`
	Threshold    float64   `json:"threshold"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	ObservedUSD  float64   `json:"observed_usd"`
	ProjectedUSD float64   `json:"projected_usd"`
	LimitUSD     float64   `json:"limit_usd"`
	CreatedAt    time.Time `json:"created_at"`
	Dismissed    bool      `json:"dismissed"`
}

func (a BudgetAlert) Key() AlertKey {
	return AlertKey{BudgetID: a.BudgetID, BucketStart: a.BucketStart, Threshold: a.Threshold}
}
