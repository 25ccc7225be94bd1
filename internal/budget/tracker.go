package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/af-corp/aegis-advisor/internal/telemetry"
	"github.com/af-corp/aegis-advisor/internal/types"
	"github.com/google/uuid"
)

// Ledger is the append-only spend log.
type Ledger interface {
	AppendSpend(ctx context.Context, ev types.SpendEvent) error
	// SumSpend totals events matching scope with from <= timestamp < to.
	SumSpend(ctx context.Context, scope types.BudgetScope, from, to time.Time) (float64, error)
	// LatestSpend returns the newest event timestamp, or the zero time.
	LatestSpend(ctx context.Context) (time.Time, error)
}

// AlertStore records which thresholds have fired and the alerts themselves.
type AlertStore interface {
	// MarkAlerted atomically records key and reports whether it was new.
	MarkAlerted(ctx context.Context, key types.AlertKey, expiresAt time.Time) (bool, error)
	// UnmarkAlerted releases key so the threshold can fire again.
	UnmarkAlerted(ctx context.Context, key types.AlertKey) error
	SaveAlert(ctx context.Context, alert types.BudgetAlert) error
	ListAlerts(ctx context.Context, includeDismissed bool) ([]types.BudgetAlert, error)
	// DismissAlert returns store.ErrNotFound for an unknown id.
	DismissAlert(ctx context.Context, id string) error
}

type ConfigStore interface {
	LoadBudgetConfigs(ctx context.Context) ([]types.BudgetConfig, error)
	SaveBudgetConfigs(ctx context.Context, cfgs []types.BudgetConfig) error
}

// Status is the spend position of one budget in its current bucket.
type Status struct {
	BudgetID     string    `json:"budget_id"`
	BucketStart  time.Time `json:"bucket_start"`
	BucketEnd    time.Time `json:"bucket_end"`
	ObservedUSD  float64   `json:"observed_usd"`
	ProjectedUSD float64   `json:"projected_usd"`
	LimitUSD     float64   `json:"limit_usd"`
	Fraction     float64   `json:"fraction"`
	RemainingUSD float64   `json:"remaining_usd"`
}

// Evaluation is the result of evaluating one budget.
type Evaluation struct {
	Status   Status              `json:"status"`
	Alerts   []types.BudgetAlert `json:"alerts"`
	Warnings []string            `json:"warnings,omitempty"`
}

type Options struct {
	// Location is the reference zone buckets are cut in. Defaults to UTC.
	Location   *time.Location
	MinElapsed time.Duration
}

// fractionEpsilon absorbs float error when summing many small costs.
const fractionEpsilon = 1e-9

// Tracker accumulates spend and fires threshold alerts once per bucket.
type Tracker struct {
	ledger     Ledger
	alerts     AlertStore
	configs    ConfigStore
	loc        *time.Location
	minElapsed time.Duration
	metrics    *telemetry.Metrics
	logger     *slog.Logger
	newID      func() string
}

func NewTracker(ledger Ledger, alerts AlertStore, configs ConfigStore, opts Options, metrics *telemetry.Metrics, logger *slog.Logger) *Tracker {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		ledger:     ledger,
		alerts:     alerts,
		configs:    configs,
		loc:        loc,
		minElapsed: opts.MinElapsed,
		metrics:    metrics,
		logger:     logger,
		newID:      uuid.NewString,
	}
}

// Record appends a spend event. Missing ids and timestamps are filled in.
func (t *Tracker) Record(ctx context.Context, ev types.SpendEvent) (types.SpendEvent, error) {
	if ev.CostUSD < 0 {
		return types.SpendEvent{}, fmt.Errorf("record spend: negative cost %v", ev.CostUSD)
	}
	if ev.ID == "" {
		ev.ID = t.newID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if err := t.ledger.AppendSpend(ctx, ev); err != nil {
		return types.SpendEvent{}, fmt.Errorf("append spend event: %w", err)
	}
	t.metrics.RecordSpend(ev.Provider, ev.Model, ev.CostUSD)
	return ev, nil
}

// Status computes the current bucket totals of cfg at now.
func (t *Tracker) Status(ctx context.Context, cfg types.BudgetConfig, now time.Time) (Status, error) {
	if err := ValidateConfig(cfg); err != nil {
		return Status{}, err
	}
	start := BucketStart(cfg.Period, now, t.loc)
	end := BucketEnd(cfg.Period, start)

	observed, err := t.ledger.SumSpend(ctx, cfg.Scope, start, end)
	if err != nil {
		return Status{}, fmt.Errorf("sum spend for budget %s: %w", cfg.ID, err)
	}
	return Status{
		BudgetID:     cfg.ID,
		BucketStart:  start,
		BucketEnd:    end,
		ObservedUSD:  observed,
		ProjectedUSD: Project(observed, start, end, now, t.minElapsed),
		LimitUSD:     cfg.LimitUSD,
		Fraction:     observed / cfg.LimitUSD,
		RemainingUSD: max(cfg.LimitUSD-observed, 0),
	}, nil
}

// CheckClock returns a warning when now is earlier than the newest spend
// event.
func (t *Tracker) CheckClock(ctx context.Context, now time.Time) (*ClockSkewWarning, error) {
	latest, err := t.ledger.LatestSpend(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest spend: %w", err)
	}
	if latest.IsZero() || !now.Before(latest) {
		return nil, nil
	}
	w := &ClockSkewWarning{Now: now, LastEvent: latest}
	t.logger.Warn("budget evaluation clock is behind ledger", "now", now, "last_event", latest)
	t.metrics.RecordClockSkew()
	return w, nil
}

// Evaluate fires every crossed threshold of cfg that has not yet alerted in
// the current bucket. Several thresholds can fire in one call.
func (t *Tracker) Evaluate(ctx context.Context, cfg types.BudgetConfig, now time.Time) (Evaluation, error) {
	skew, err := t.CheckClock(ctx, now)
	if err != nil {
		return Evaluation{}, err
	}
	return t.evaluate(ctx, cfg, now, skew)
}

func (t *Tracker) evaluate(ctx context.Context, cfg types.BudgetConfig, now time.Time, skew *ClockSkewWarning) (Evaluation, error) {
	status, err := t.Status(ctx, cfg, now)
	if err != nil {
		return Evaluation{}, err
	}
	eval := Evaluation{Status: status, Alerts: []types.BudgetAlert{}}
	if skew != nil {
		eval.Warnings = append(eval.Warnings, skew.Error())
	}
	if !cfg.Enabled {
		return eval, nil
	}

	for i, threshold := range cfg.Thresholds {
		if status.Fraction+fractionEpsilon < threshold {
			break
		}
		key := types.AlertKey{BudgetID: cfg.ID, BucketStart: status.BucketStart, Threshold: threshold}
		fresh, err := t.alerts.MarkAlerted(ctx, key, status.BucketEnd)
		if err != nil {
			return eval, fmt.Errorf("mark alert for budget %s: %w", cfg.ID, err)
		}
		if !fresh {
			continue
		}

		alert := t.newAlert(cfg, i, status, now)
		if err := t.alerts.SaveAlert(ctx, alert); err != nil {
			// The mark must not outlive a lost alert or the threshold never fires.
			if uerr := t.alerts.UnmarkAlerted(ctx, key); uerr != nil {
				t.logger.Error("failed to release alert mark", "budget_id", cfg.ID, "threshold", threshold, "error", uerr)
			}
			return eval, fmt.Errorf("save alert for budget %s: %w", cfg.ID, err)
		}
		t.metrics.RecordBudgetAlert(string(alert.Severity))
		t.logger.Info("budget threshold crossed",
			"budget_id", cfg.ID,
			"threshold", threshold,
			"severity", alert.Severity,
			"observed_usd", status.ObservedUSD,
			"bucket_start", status.BucketStart,
		)
		eval.Alerts = append(eval.Alerts, alert)
	}
	return eval, nil
}

// EvaluateAll evaluates every stored budget. Invalid definitions are
// skipped with an error log so one bad budget cannot block the rest.
func (t *Tracker) EvaluateAll(ctx context.Context, now time.Time) ([]Evaluation, error) {
	cfgs, err := t.configs.LoadBudgetConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load budget configs: %w", err)
	}
	skew, err := t.CheckClock(ctx, now)
	if err != nil {
		return nil, err
	}

	out := make([]Evaluation, 0, len(cfgs))
	for _, cfg := range cfgs {
		eval, err := t.evaluate(ctx, cfg, now, skew)
		if err != nil {
			var invalid *InvalidBudgetConfigError
			if errors.As(err, &invalid) {
				t.logger.Error("skipping invalid budget", "budget_id", cfg.ID, "error", err)
				continue
			}
			return out, err
		}
		out = append(out, eval)
	}
	return out, nil
}

func (t *Tracker) newAlert(cfg types.BudgetConfig, idx int, st Status, now time.Time) types.BudgetAlert {
	threshold := cfg.Thresholds[idx]
	name := cfg.Name
	if name == "" {
		name = cfg.ID
	}
	return types.BudgetAlert{
		ID:          t.newID(),
		BudgetID:    cfg.ID,
		BudgetName:  name,
		BucketStart: st.BucketStart,
		Threshold:   threshold,
		Severity:    severityFor(cfg, idx),
		Message: fmt.Sprintf("%s reached %.0f%% of its %s limit: $%.2f of $%.2f spent, projected $%.2f",
			name, threshold*100, cfg.Period, st.ObservedUSD, cfg.LimitUSD, st.ProjectedUSD),
		ObservedUSD:  st.ObservedUSD,
		ProjectedUSD: st.ProjectedUSD,
		LimitUSD:     cfg.LimitUSD,
		CreatedAt:    now,
	}
}

func (t *Tracker) Configs(ctx context.Context) ([]types.BudgetConfig, error) {
	cfgs, err := t.configs.LoadBudgetConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load budget configs: %w", err)
	}
	return cfgs, nil
}

// Config returns the stored budget with the given id.
func (t *Tracker) Config(ctx context.Context, id string) (types.BudgetConfig, bool, error) {
	cfgs, err := t.Configs(ctx)
	if err != nil {
		return types.BudgetConfig{}, false, err
	}
	for _, cfg := range cfgs {
		if cfg.ID == id {
			return cfg, true, nil
		}
	}
	return types.BudgetConfig{}, false, nil
}

// SaveConfigs validates and replaces the stored budget set.
func (t *Tracker) SaveConfigs(ctx context.Context, cfgs []types.BudgetConfig) error {
	if err := ValidateConfigs(cfgs); err != nil {
		return err
	}
	if err := t.configs.SaveBudgetConfigs(ctx, cfgs); err != nil {
		return fmt.Errorf("save budget configs: %w", err)
	}
	return nil
}

func (t *Tracker) Alerts(ctx context.Context, includeDismissed bool) ([]types.BudgetAlert, error) {
	alerts, err := t.alerts.ListAlerts(ctx, includeDismissed)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// Dismiss hides an alert. Its threshold stays marked for the bucket.
func (t *Tracker) Dismiss(ctx context.Context, id string) error {
	if err := t.alerts.DismissAlert(ctx, id); err != nil {
		return fmt.Errorf("dismiss alert %s: %w", id, err)
	}
	return nil
}
