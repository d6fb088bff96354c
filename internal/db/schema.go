package db

// schemaVersion is stored in PRAGMA user_version
const schemaVersion = 1

// connPragmas are applied by the driver to every new connection
const connPragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS snapshots (
    id TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    original_url TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    saved_at INTEGER NOT NULL,
    content TEXT,
    mimetype TEXT
);

CREATE INDEX IF NOT EXISTS idx_snapshots_timestamp ON snapshots(timestamp);
CREATE INDEX IF NOT EXISTS idx_snapshots_original_url ON snapshots(original_url);
`

const upsertSnapshot = `
INSERT INTO snapshots (id, url, original_url, timestamp, saved_at, content, mimetype)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    url = excluded.url,
    original_url = excluded.original_url,
    timestamp = excluded.timestamp,
    saved_at = excluded.saved_at,
    content = excluded.content,
    mimetype = excluded.mimetype
`

const selectAllSnapshots = `
SELECT id, url, original_url, timestamp, saved_at, COALESCE(content, ''), COALESCE(mimetype, '')
FROM snapshots
`

const selectSnapshot = selectAllSnapshots + `WHERE id = ?`

const deleteSnapshot = `DELETE FROM snapshots WHERE id = ?`

const selectSnapshotOriginals = `SELECT original_url FROM snapshots`

// CDX listings cached per queried URL for offline timelines
const createCDXCacheTable = `
CREATE TABLE IF NOT EXISTS cdx_cache (
    query_url TEXT NOT NULL,
    position INTEGER NOT NULL,
    urlkey TEXT,
    timestamp TEXT,
    original TEXT,
    mimetype TEXT,
    statuscode TEXT,
    digest TEXT,
    length TEXT,
    fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (query_url, position)
);
`

const deleteCDXCache = `DELETE FROM cdx_cache WHERE query_url = ?`

const insertCDXCache = `
INSERT INTO cdx_cache (query_url, position, urlkey, timestamp, original, mimetype, statuscode, digest, length)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectCDXCache = `
SELECT COALESCE(urlkey, ''), COALESCE(timestamp, ''), COALESCE(original, ''), COALESCE(mimetype, ''),
       COALESCE(statuscode, ''), COALESCE(digest, ''), COALESCE(length, ''), fetched_at
FROM cdx_cache
WHERE query_url = ?
ORDER BY position
`

// Schema for application settings (key-value store)
const createSettingsTable = `
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const upsertSetting = `
INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
`

const selectSetting = `SELECT value FROM settings WHERE key = ?`

const selectAllSettings = `SELECT key, value FROM settings ORDER BY key`

const deleteSetting = `DELETE FROM settings WHERE key = ?`
