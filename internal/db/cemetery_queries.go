package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"horse.fit/kerkhof/internal/place"
)

// UpsertCemeteries inserts or refreshes canonical records by slug in one
// transaction and returns the number of rows written.
func (p *Pool) UpsertCemeteries(ctx context.Context, records []place.CanonicalRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const q = `
INSERT INTO kerkhof.cemeteries (
	slug,
	name,
	municipality,
	province,
	place,
	document,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, now(), now())
ON CONFLICT (slug) DO UPDATE
SET
	name = EXCLUDED.name,
	municipality = EXCLUDED.municipality,
	province = EXCLUDED.province,
	place = EXCLUDED.place,
	document = EXCLUDED.document,
	updated_at = now()
`

	var written int64
	for _, record := range records {
		slug := strings.TrimSpace(record.Slug)
		if slug == "" {
			return 0, errors.New("cemetery slug is required")
		}
		document, err := json.Marshal(record)
		if err != nil {
			return 0, fmt.Errorf("encode cemetery %s: %w", slug, err)
		}
		tag, err := tx.Exec(ctx, q,
			slug,
			strings.TrimSpace(record.Name),
			strings.TrimSpace(record.Municipality),
			nullableString(record.Province),
			nullableString(record.Place),
			string(document),
		)
		if err != nil {
			return 0, fmt.Errorf("upsert cemetery %s: %w", slug, err)
		}
		written += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return written, nil
}

// GetCemeteryBySlug returns the stored canonical record. A missing slug
// yields an error matching IsNoRows.
func (p *Pool) GetCemeteryBySlug(ctx context.Context, slug string) (*place.CanonicalRecord, error) {
	const q = `
SELECT document
FROM kerkhof.cemeteries
WHERE slug = $1
LIMIT 1
`

	var document []byte
	if err := p.QueryRow(ctx, q, strings.TrimSpace(slug)).Scan(&document); err != nil {
		return nil, fmt.Errorf("get cemetery %s: %w", slug, err)
	}

	var record place.CanonicalRecord
	if err := json.Unmarshal(document, &record); err != nil {
		return nil, fmt.Errorf("decode cemetery %s: %w", slug, err)
	}
	return &record, nil
}

// ListCemeteries returns every stored canonical record ordered by slug.
func (p *Pool) ListCemeteries(ctx context.Context) ([]place.CanonicalRecord, error) {
	const q = `
SELECT document
FROM kerkhof.cemeteries
ORDER BY slug
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query cemeteries: %w", err)
	}
	defer rows.Close()

	records := make([]place.CanonicalRecord, 0, 256)
	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("scan cemetery row: %w", err)
		}
		var record place.CanonicalRecord
		if err := json.Unmarshal(document, &record); err != nil {
			return nil, fmt.Errorf("decode cemetery row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cemetery rows: %w", err)
	}
	return records, nil
}

func nullableString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
