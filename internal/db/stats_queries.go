package db

import (
	"context"
	"fmt"
	"time"
)

// StoreStats is the read model behind /api/v1/stats.
type StoreStats struct {
	Cemeteries     int64      `json:"cemeteries"`
	Municipalities int64      `json:"municipalities"`
	Redirects      int64      `json:"redirects"`
	ReconcileRuns  int64      `json:"reconcile_runs"`
	MatchEvents    int64      `json:"match_events"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
}

func (p *Pool) QueryStats(ctx context.Context) (*StoreStats, error) {
	const q = `
SELECT
	(SELECT COUNT(*) FROM kerkhof.cemeteries) AS cemeteries,
	(SELECT COUNT(DISTINCT lower(municipality)) FROM kerkhof.cemeteries) AS municipalities,
	(SELECT COUNT(*) FROM kerkhof.redirects) AS redirects,
	(SELECT COUNT(*) FROM kerkhof.reconcile_runs) AS reconcile_runs,
	(SELECT COUNT(*) FROM kerkhof.match_events) AS match_events,
	(SELECT MAX(finished_at) FROM kerkhof.reconcile_runs) AS last_run_at
`

	var stats StoreStats
	if err := p.QueryRow(ctx, q).Scan(
		&stats.Cemeteries,
		&stats.Municipalities,
		&stats.Redirects,
		&stats.ReconcileRuns,
		&stats.MatchEvents,
		&stats.LastRunAt,
	); err != nil {
		return nil, fmt.Errorf("query store stats: %w", err)
	}
	if stats.LastRunAt != nil {
		utc := stats.LastRunAt.UTC()
		stats.LastRunAt = &utc
	}
	return &stats, nil
}
