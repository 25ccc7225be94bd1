package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/af-corp/aegis-advisor/internal/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists advisor state in PostgreSQL. The schema lives in
// migrations/.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) LoadSelectionState(ctx context.Context, sessionID string) (types.SelectionState, error) {
	st := types.SelectionState{SessionID: sessionID}
	err := s.db.QueryRow(ctx, `
		SELECT explicit_choice, last_used_id, default_id, version
		FROM selection_states
		WHERE session_id = $1
	`, sessionID).Scan(&st.ExplicitChoice, &st.LastUsedID, &st.DefaultID, &st.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return types.SelectionState{}, fmt.Errorf("query selection_states: %w", err)
	}
	return st, nil
}

// SaveSelectionState writes state when the row is still at state.Version.
// Version 0 means the row must not exist yet.
func (s *PostgresStore) SaveSelectionState(ctx context.Context, state types.SelectionState) error {
	var sql string
	if state.Version == 0 {
		sql = `
			INSERT INTO selection_states (session_id, explicit_choice, last_used_id, default_id, version, updated_at)
			VALUES ($1, $2, $3, $4, 1, NOW())
			ON CONFLICT (session_id) DO NOTHING`
	} else {
		sql = `
			UPDATE selection_states
			SET explicit_choice = $2, last_used_id = $3, default_id = $4, version = version + 1, updated_at = NOW()
			WHERE session_id = $1 AND version = $5`
	}
	args := []any{state.SessionID, state.ExplicitChoice, state.LastUsedID, state.DefaultID}
	if state.Version != 0 {
		args = append(args, state.Version)
	}

	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("write selection_states: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *PostgresStore) AppendSpend(ctx context.Context, ev types.SpendEvent) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO spend_events (id, ts, provider, model, cost_usd)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.ID, ev.Timestamp, ev.Provider, ev.Model, ev.CostUSD)
	if err != nil {
		return fmt.Errorf("insert spend_events: %w", err)
	}
	return nil
}

func (s *PostgresStore) SumSpend(ctx context.Context, scope types.BudgetScope, from, to time.Time) (float64, error) {
	var sum float64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(cost_usd), 0)
		FROM spend_events
		WHERE ts >= $1 AND ts < $2
		  AND (cardinality($3::text[]) = 0 OR provider = ANY($3))
		  AND (cardinality($4::text[]) = 0 OR model = ANY($4))
	`, from, to, orEmpty(scope.Providers), orEmpty(scope.Models)).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum spend_events: %w", err)
	}
	return sum, nil
}

func (s *PostgresStore) LatestSpend(ctx context.Context) (time.Time, error) {
	var latest *time.Time
	if err := s.db.QueryRow(ctx, `SELECT MAX(ts) FROM spend_events`).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("query latest spend: %w", err)
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return *latest, nil
}

func (s *PostgresStore) MarkAlerted(ctx context.Context, key types.AlertKey, expiresAt time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO budget_alert_marks (budget_id, bucket_start, threshold, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (budget_id, bucket_start, threshold) DO NOTHING
	`, key.BudgetID, key.BucketStart, key.Threshold, expiresAt.Add(markGrace))
	if err != nil {
		return false, fmt.Errorf("insert budget_alert_marks: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) UnmarkAlerted(ctx context.Context, key types.AlertKey) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM budget_alert_marks
		WHERE budget_id = $1 AND bucket_start = $2 AND threshold = $3
	`, key.BudgetID, key.BucketStart, key.Threshold)
	if err != nil {
		return fmt.Errorf("delete budget_alert_marks: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveAlert(ctx context.Context, a types.BudgetAlert) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO budget_alerts (id, budget_id, budget_name, bucket_start, threshold, severity, message,
		                           observed_usd, projected_usd, limit_usd, created_at, dismissed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, a.ID, a.BudgetID, a.BudgetName, a.BucketStart, a.Threshold, string(a.Severity), a.Message,
		a.ObservedUSD, a.ProjectedUSD, a.LimitUSD, a.CreatedAt, a.Dismissed)
	if err != nil {
		return fmt.Errorf("insert budget_alerts: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAlerts(ctx context.Context, includeDismissed bool) ([]types.BudgetAlert, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, budget_id, budget_name, bucket_start, threshold, severity, message,
		       observed_usd, projected_usd, limit_usd, created_at, dismissed
		FROM budget_alerts
		WHERE $1 OR NOT dismissed
		ORDER BY created_at, id
	`, includeDismissed)
	if err != nil {
		return nil, fmt.Errorf("query budget_alerts: %w", err)
	}
	defer rows.Close()

	out := []types.BudgetAlert{}
	for rows.Next() {
		var a types.BudgetAlert
		var severity string
		if err := rows.Scan(&a.ID, &a.BudgetID, &a.BudgetName, &a.BucketStart, &a.Threshold, &severity, &a.Message,
			&a.ObservedUSD, &a.ProjectedUSD, &a.LimitUSD, &a.CreatedAt, &a.Dismissed); err != nil {
			return nil, fmt.Errorf("scan budget_alerts: %w", err)
		}
		a.Severity = types.Severity(severity)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DismissAlert(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `UPDATE budget_alerts SET dismissed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update budget_alerts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) LoadBudgetConfigs(ctx context.Context) ([]types.BudgetConfig, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, limit_usd, period, scope_providers, scope_models, thresholds, info_tier, enabled
		FROM budgets
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []types.BudgetConfig
	for rows.Next() {
		var c types.BudgetConfig
		var period string
		if err := rows.Scan(&c.ID, &c.Name, &c.LimitUSD, &period, &c.Scope.Providers, &c.Scope.Models,
			&c.Thresholds, &c.InfoTier, &c.Enabled); err != nil {
			return nil, fmt.Errorf("scan budgets: %w", err)
		}
		c.Period = types.Period(period)
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveBudgetConfigs replaces the whole budget set in one transaction.
func (s *PostgresStore) SaveBudgetConfigs(ctx context.Context, cfgs []types.BudgetConfig) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM budgets`); err != nil {
			return fmt.Errorf("clear budgets: %w", err)
		}
		batch := &pgx.Batch{}
		for i, c := range cfgs {
			batch.Queue(`
				INSERT INTO budgets (id, name, limit_usd, period, scope_providers, scope_models, thresholds, info_tier, enabled, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`, c.ID, c.Name, c.LimitUSD, string(c.Period), orEmpty(c.Scope.Providers), orEmpty(c.Scope.Models),
				c.Thresholds, c.InfoTier, c.Enabled, i)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert budgets: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) AppendSamples(ctx context.Context, samples []types.MetricSample) error {
	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"metric_samples"},
		[]string{"candidate_id", "name", "value", "direction", "observed_at"},
		pgx.CopyFromSlice(len(samples), func(i int) ([]any, error) {
			sm := samples[i]
			return []any{sm.CandidateID, sm.Name, sm.Value, string(sm.Direction), sm.ObservedAt}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy metric_samples: %w", err)
	}
	return nil
}

func (s *PostgresStore) Samples(ctx context.Context, candidateID string, since time.Time) ([]types.MetricSample, error) {
	rows, err := s.db.Query(ctx, `
		SELECT name, value, direction, observed_at
		FROM metric_samples
		WHERE candidate_id = $1 AND observed_at >= $2
		ORDER BY observed_at
	`, candidateID, since)
	if err != nil {
		return nil, fmt.Errorf("query metric_samples: %w", err)
	}
	defer rows.Close()

	var out []types.MetricSample
	for rows.Next() {
		sm := types.MetricSample{CandidateID: candidateID}
		var direction string
		if err := rows.Scan(&sm.Name, &sm.Value, &direction, &sm.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan metric_samples: %w", err)
		}
		sm.Direction = types.Direction(direction)
		out = append(out, sm)
	}
	return out, rows.Err()
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
