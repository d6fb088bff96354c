package db

import (
	"context"
	"fmt"
	"time"

	"github.com/thesavant42/omnidash/internal/models"
)

// CacheCDXRecords replaces the cached CDX listing for queryURL.
// Row order is preserved so cached timelines match the live ones.
func (db *DB) CacheCDXRecords(ctx context.Context, queryURL string, records []models.CDXRecord) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteCDXCache, queryURL); err != nil {
		return fmt.Errorf("failed to clear cdx cache: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertCDXCache)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, queryURL, i,
			r.URLKey, r.Timestamp, r.Original, r.MimeType, r.StatusCode, r.Digest, r.Length,
		); err != nil {
			return fmt.Errorf("failed to cache cdx record %s: %w", r.Timestamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetCachedCDX returns the cached listing for queryURL and when it was fetched.
// A URL that was never cached returns ErrNotFound.
func (db *DB) GetCachedCDX(ctx context.Context, queryURL string) ([]models.CDXRecord, time.Time, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}

	rows, err := conn.QueryContext(ctx, selectCDXCache, queryURL)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to query cdx cache: %w", err)
	}
	defer rows.Close()

	var records []models.CDXRecord
	var fetchedAt time.Time
	for rows.Next() {
		var r models.CDXRecord
		var fetched string
		if err := rows.Scan(&r.URLKey, &r.Timestamp, &r.Original, &r.MimeType,
			&r.StatusCode, &r.Digest, &r.Length, &fetched); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan cdx record: %w", err)
		}
		if fetchedAt.IsZero() {
			fetchedAt, _ = parseTimestamp(fetched)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read cdx cache: %w", err)
	}

	if records == nil {
		return nil, time.Time{}, fmt.Errorf("cdx cache for %s: %w", queryURL, ErrNotFound)
	}
	return records, fetchedAt, nil
}
