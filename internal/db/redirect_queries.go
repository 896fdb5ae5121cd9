package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"horse.fit/kerkhof/internal/redirect"
)

// ReplaceRedirects swaps the stored redirect table for entries in a single
// transaction so readers never observe a partial build.
func (p *Pool) ReplaceRedirects(ctx context.Context, buildID string, entries []redirect.Entry) (int64, error) {
	trimmedBuildID := strings.TrimSpace(buildID)
	if trimmedBuildID == "" {
		return 0, errors.New("build ID is required")
	}

	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM kerkhof.redirects`); err != nil {
		return 0, fmt.Errorf("clear redirects: %w", err)
	}

	const q = `
INSERT INTO kerkhof.redirects (
	source,
	destination,
	permanent,
	build_id,
	created_at
)
VALUES ($1, $2, $3, $4::uuid, now())
ON CONFLICT (source) DO NOTHING
`

	var inserted int64
	for _, entry := range entries {
		tag, err := tx.Exec(ctx, q, entry.Source, entry.Destination, entry.Permanent, trimmedBuildID)
		if err != nil {
			return 0, fmt.Errorf("insert redirect %s: %w", entry.Source, err)
		}
		inserted += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return inserted, nil
}

// ListRedirects returns the stored table ordered by source.
func (p *Pool) ListRedirects(ctx context.Context) ([]redirect.Entry, error) {
	const q = `
SELECT
	source,
	destination,
	permanent
FROM kerkhof.redirects
ORDER BY source
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query redirects: %w", err)
	}
	defer rows.Close()

	entries := make([]redirect.Entry, 0, 1024)
	for rows.Next() {
		var entry redirect.Entry
		if err := rows.Scan(&entry.Source, &entry.Destination, &entry.Permanent); err != nil {
			return nil, fmt.Errorf("scan redirect row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redirect rows: %w", err)
	}
	return entries, nil
}
