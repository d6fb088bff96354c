package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// DB wraps the SQLite database connection.
// The connection is opened on first use; concurrent first callers share one open.
type DB struct {
	path   string
	logger *log.Logger

	mu    sync.Mutex
	conn  *sql.DB
	group singleflight.Group
}

// Open prepares a database handle for dbPath without touching the disk
func Open(dbPath string, logger *log.Logger) *DB {
	return &DB{path: dbPath, logger: logger}
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Conn returns the open connection, opening and migrating it on first use.
// A failed open is not remembered; the next call tries again.
func (db *DB) Conn(ctx context.Context) (*sql.DB, error) {
	db.mu.Lock()
	conn := db.conn
	db.mu.Unlock()
	if conn != nil {
		return conn, nil
	}

	ch := db.group.DoChan("open", func() (interface{}, error) {
		db.mu.Lock()
		existing := db.conn
		db.mu.Unlock()
		if existing != nil {
			return existing, nil
		}

		opened, err := db.open()
		if err != nil {
			return nil, err
		}

		db.mu.Lock()
		db.conn = opened
		db.mu.Unlock()
		return opened, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*sql.DB), nil
	}
}

func (db *DB) open() (*sql.DB, error) {
	// Ensure the directory exists
	dir := filepath.Dir(db.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", db.path+connPragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; SQLite would otherwise report SQLITE_BUSY under load
	conn.SetMaxOpenConns(1)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}

	if db.logger != nil {
		db.logger.Debug("Database opened", "path", db.path, "schema", schemaVersion)
	}
	return conn, nil
}

func migrate(conn *sql.DB) error {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
	}

	tables := []struct{ name, stmt string }{
		{"snapshots", createSnapshotsTable},
		{"cdx cache", createCDXCacheTable},
		{"settings", createSettingsTable},
	}
	for _, t := range tables {
		if _, err := conn.Exec(t.stmt); err != nil {
			return fmt.Errorf("failed to create %s schema: %w", t.name, err)
		}
	}

	if version < schemaVersion {
		if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}
	return nil
}

// SchemaVersion reports the stored PRAGMA user_version
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return 0, err
	}
	var version int
	if err := conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Close closes the database connection if it was opened
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}

// parseTimestamp parses SQLite timestamp formats
func parseTimestamp(ts string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
	}
	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", ts)
}
