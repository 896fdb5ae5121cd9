package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"horse.fit/kerkhof/internal/match"
)

// RunSummary is the read model of one stored reconciliation run.
type RunSummary struct {
	RunID           int64     `json:"run_id"`
	RunUUID         string    `json:"run_uuid"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	TotalCanonical  int       `json:"total_canonical"`
	TotalDiscovered int       `json:"total_discovered"`
	Matched         int       `json:"matched"`
	Unmatched       int       `json:"unmatched"`
	Quarantined     int       `json:"quarantined"`
	TieBreaks       int       `json:"tie_breaks"`
	RecordsUpdated  int       `json:"records_updated"`
}

// InsertReconcileRun stores the run header and one match event per accepted
// match, returning the new run_id.
func (p *Pool) InsertReconcileRun(ctx context.Context, runUUID string, startedAt, finishedAt time.Time, outcome *match.Outcome) (int64, error) {
	trimmedUUID := strings.TrimSpace(runUUID)
	if trimmedUUID == "" {
		return 0, errors.New("run UUID is required")
	}
	if outcome == nil {
		return 0, errors.New("outcome is nil")
	}

	stats, err := json.Marshal(outcome.Stats)
	if err != nil {
		return 0, fmt.Errorf("encode run stats: %w", err)
	}

	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const runQuery = `
INSERT INTO kerkhof.reconcile_runs (
	run_uuid,
	started_at,
	finished_at,
	total_canonical,
	total_discovered,
	matched,
	unmatched,
	quarantined,
	tie_breaks,
	records_updated,
	stats,
	created_at
)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, now())
RETURNING run_id
`

	var runID int64
	if err := tx.QueryRow(ctx, runQuery,
		trimmedUUID,
		startedAt.UTC(),
		finishedAt.UTC(),
		outcome.Stats.TotalCanonical,
		outcome.Stats.TotalDiscovered,
		outcome.Stats.Matched,
		outcome.Stats.Unmatched,
		outcome.Stats.Quarantined,
		outcome.Stats.TieBreaks,
		outcome.Stats.RecordsUpdated,
		string(stats),
	).Scan(&runID); err != nil {
		return 0, fmt.Errorf("insert reconcile run: %w", err)
	}

	const eventQuery = `
INSERT INTO kerkhof.match_events (
	run_id,
	canonical_slug,
	discovered_id,
	match_type,
	confidence,
	tie_break,
	fields_filled,
	fields_refreshed,
	created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, now())
`

	for _, result := range outcome.Results {
		filled, err := encodeFields(result.FieldsFilled)
		if err != nil {
			return 0, err
		}
		refreshed, err := encodeFields(result.FieldsRefreshed)
		if err != nil {
			return 0, err
		}
		if _, err := tx.Exec(ctx, eventQuery,
			runID,
			result.CanonicalSlug,
			nullableString(result.DiscoveredID),
			string(result.MatchType),
			result.Confidence,
			result.TieBreak,
			filled,
			refreshed,
		); err != nil {
			return 0, fmt.Errorf("insert match event for %s: %w", result.CanonicalSlug, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return runID, nil
}

// ListReconcileRuns returns the most recent runs first.
func (p *Pool) ListReconcileRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	const q = `
SELECT
	run_id,
	run_uuid::text,
	started_at,
	finished_at,
	total_canonical,
	total_discovered,
	matched,
	unmatched,
	quarantined,
	tie_breaks,
	records_updated
FROM kerkhof.reconcile_runs
ORDER BY started_at DESC, run_id DESC
LIMIT $1
`

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query reconcile runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0, limit)
	for rows.Next() {
		var run RunSummary
		if err := rows.Scan(
			&run.RunID,
			&run.RunUUID,
			&run.StartedAt,
			&run.FinishedAt,
			&run.TotalCanonical,
			&run.TotalDiscovered,
			&run.Matched,
			&run.Unmatched,
			&run.Quarantined,
			&run.TieBreaks,
			&run.RecordsUpdated,
		); err != nil {
			return nil, fmt.Errorf("scan reconcile run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reconcile run rows: %w", err)
	}
	return runs, nil
}

func encodeFields(fields []match.Field) (string, error) {
	if fields == nil {
		fields = []match.Field{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode match fields: %w", err)
	}
	return string(raw), nil
}
