package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/vigilops/vigil/internal/alerting/model"
)

// PgAlertStore persists alert instances so firing state survives restarts.
// Expected table:
//
//	CREATE TABLE alerts (
//	    id            TEXT PRIMARY KEY,
//	    rule_id       TEXT NOT NULL,
//	    rule_name     TEXT NOT NULL,
//	    fired_at      TIMESTAMPTZ NOT NULL,
//	    severity      TEXT NOT NULL,
//	    status        TEXT NOT NULL,
//	    labels        JSONB NOT NULL DEFAULT '{}',
//	    annotations   JSONB NOT NULL DEFAULT '{}',
//	    metric_values JSONB NOT NULL DEFAULT '{}',
//	    fingerprint   TEXT NOT NULL,
//	    resolved_at   TIMESTAMPTZ
//	)
type PgAlertStore struct {
	DB *Database
}

func NewPgAlertStore(db *Database) *PgAlertStore { return &PgAlertStore{DB: db} }

// UpsertAlert writes the alert keyed by id, updating status and resolution
// fields on conflict.
func (s *PgAlertStore) UpsertAlert(ctx context.Context, a *model.Alert) error {
	labels, _ := json.Marshal(a.Labels)
	annotations, _ := json.Marshal(a.Annotations)
	values, _ := json.Marshal(a.Values)

	var resolvedAt pgtype.Timestamptz
	if a.ResolvedAt != nil {
		resolvedAt = pgtype.Timestamptz{Time: *a.ResolvedAt, Valid: true}
	}

	const q = `
	INSERT INTO alerts(id, rule_id, rule_name, fired_at, severity, status, labels, annotations, metric_values, fingerprint, resolved_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9::jsonb, $10, $11)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		annotations = EXCLUDED.annotations,
		metric_values = EXCLUDED.metric_values,
		resolved_at = EXCLUDED.resolved_at
	`
	_, err := s.DB.ExecContext(ctx, q,
		a.ID, a.RuleID, a.RuleName, a.Timestamp, string(a.Severity), string(a.Status),
		string(labels), string(annotations), string(values), a.Fingerprint, resolvedAt)
	if err != nil {
		return fmt.Errorf("upsert alert: %w", err)
	}
	return nil
}

// LoadFiringAlerts returns all alerts still marked firing, used to resume
// evaluator state after a restart.
func (s *PgAlertStore) LoadFiringAlerts(ctx context.Context) ([]*model.Alert, error) {
	const q = `
	SELECT id, rule_id, rule_name, fired_at, severity, status, labels::text, annotations::text, metric_values::text, fingerprint, resolved_at
	FROM alerts
	WHERE status = 'firing'
	ORDER BY fired_at ASC
	`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load firing alerts: %w", err)
	}
	defer rows.Close()

	var out []*model.Alert
	for rows.Next() {
		var (
			a           model.Alert
			severity    string
			status      string
			labels      string
			annotations string
			values      string
			resolvedAt  pgtype.Timestamptz
		)
		if err := rows.Scan(&a.ID, &a.RuleID, &a.RuleName, &a.Timestamp, &severity, &status,
			&labels, &annotations, &values, &a.Fingerprint, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Severity = model.Severity(severity)
		a.Status = model.AlertStatus(status)
		a.Labels = map[string]string{}
		a.Annotations = map[string]string{}
		a.Values = map[string]float64{}
		_ = json.Unmarshal([]byte(labels), &a.Labels)
		_ = json.Unmarshal([]byte(annotations), &a.Annotations)
		_ = json.Unmarshal([]byte(values), &a.Values)
		if resolvedAt.Valid {
			t := resolvedAt.Time
			a.ResolvedAt = &t
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// PurgeResolvedBefore deletes resolved alerts whose resolution is older
// than cutoff and reports how many rows went away.
func (s *PgAlertStore) PurgeResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM alerts WHERE status = 'resolved' AND resolved_at < $1`
	res, err := s.DB.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge resolved alerts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
