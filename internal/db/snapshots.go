package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/thesavant42/omnidash/internal/models"
)

// SaveSnapshot inserts or replaces a snapshot by id.
// It returns once the transaction has committed.
func (db *DB) SaveSnapshot(ctx context.Context, s models.SavedSnapshot) error {
	if s.ID == "" {
		return fmt.Errorf("snapshot id is required")
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, upsertSnapshot,
		s.ID, s.URL, s.OriginalURL, s.Timestamp, s.SavedAt, s.Content, s.MimeType,
	); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", s.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetAllSnapshots returns every stored snapshot, newest save first
func (db *DB) GetAllSnapshots(ctx context.Context) ([]models.SavedSnapshot, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, selectAllSnapshots)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]models.SavedSnapshot, 0)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].SavedAt > snapshots[j].SavedAt
	})
	return snapshots, nil
}

// GetSnapshot returns one snapshot, or ErrNotFound
func (db *DB) GetSnapshot(ctx context.Context, id string) (*models.SavedSnapshot, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	s, err := scanSnapshot(conn.QueryRowContext(ctx, selectSnapshot, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSnapshot removes a snapshot by id. Unknown ids return ErrNotFound.
func (db *DB) DeleteSnapshot(ctx context.Context, id string) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}

	result, err := conn.ExecContext(ctx, deleteSnapshot, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (models.SavedSnapshot, error) {
	var s models.SavedSnapshot
	err := row.Scan(&s.ID, &s.URL, &s.OriginalURL, &s.Timestamp, &s.SavedAt, &s.Content, &s.MimeType)
	if errors.Is(err, sql.ErrNoRows) {
		return s, err
	}
	if err != nil {
		return s, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	return s, nil
}

// SnapshotCountsBySite groups stored snapshots by registrable domain, largest first
func (db *DB) SnapshotCountsBySite(ctx context.Context) ([]models.SiteStats, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, selectSnapshotOriginals)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var original string
		if err := rows.Scan(&original); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[SiteOf(original)]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}

	stats := make([]models.SiteStats, 0, len(counts))
	for site, n := range counts {
		stats = append(stats, models.SiteStats{Site: site, SnapshotCount: n})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].SnapshotCount != stats[j].SnapshotCount {
			return stats[i].SnapshotCount > stats[j].SnapshotCount
		}
		return stats[i].Site < stats[j].Site
	})
	return stats, nil
}

// SiteOf returns the registrable domain of a URL or hostname.
// Uses publicsuffix to handle complex TLDs like .co.uk; falls back to the bare host.
//   - "https://www.bbc.co.uk/news" -> "bbc.co.uk"
//   - "example.com" -> "example.com"
//   - "http://localhost:8080/" -> "localhost"
func SiteOf(raw string) string {
	raw = strings.TrimSpace(raw)
	host := raw
	if strings.Contains(raw, "://") {
		if parsed, err := url.Parse(raw); err == nil {
			host = parsed.Hostname()
		}
	} else if i := strings.IndexAny(raw, "/:?"); i >= 0 {
		host = raw[:i]
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return raw
	}

	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}
