package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/pagemirror/internal/model"
)

// FileName is the name of the database file inside the cache directory.
const FileName = "pagemirror.db"

// CacheDB provides SQLite-based storage for mirrored assets and run history.
// One database is shared by every project; rows are keyed by project name.
type CacheDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CacheDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CacheDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CacheDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; concurrent resources queue on
	// the single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CacheDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CacheDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CacheDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CacheDB) createTables() error {
	schema := `
	-- Assets remember where a URL was saved by the last run of a project
	CREATE TABLE IF NOT EXISTS assets (
		project TEXT NOT NULL,
		url TEXT NOT NULL,
		path TEXT NOT NULL,
		kind TEXT NOT NULL,
		status_code INTEGER,
		digest TEXT,
		bytes INTEGER DEFAULT 0,
		fetched_at TEXT NOT NULL,
		PRIMARY KEY (project, url)
	);

	CREATE INDEX IF NOT EXISTS idx_assets_fetched ON assets(fetched_at);

	-- Runs store the summary of every finished run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		project TEXT NOT NULL,
		start_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		duration_ms INTEGER DEFAULT 0,
		total INTEGER DEFAULT 0,
		bytes INTEGER DEFAULT 0,
		counts TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// AssetRecord represents a stored asset.
type AssetRecord struct {
	Project    string
	URL        string
	Path       string
	Kind       string
	StatusCode int
	Digest     string
	Bytes      int64
	FetchedAt  time.Time
}

// PutAsset inserts or updates an asset record.
// Uses UPSERT to handle duplicates (same project + URL).
func (cdb *CacheDB) PutAsset(ctx context.Context, rec *AssetRecord) error {
	fetchedAt := rec.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	query := `
	INSERT INTO assets (project, url, path, kind, status_code, digest, bytes, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(project, url) DO UPDATE SET
		path = excluded.path,
		kind = excluded.kind,
		status_code = excluded.status_code,
		digest = excluded.digest,
		bytes = excluded.bytes,
		fetched_at = excluded.fetched_at
	`

	_, err := cdb.db.ExecContext(ctx, query,
		rec.Project,
		rec.URL,
		rec.Path,
		rec.Kind,
		rec.StatusCode,
		rec.Digest,
		rec.Bytes,
		formatTimestamp(fetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to put asset: %w", err)
	}
	return nil
}

// GetAsset retrieves an asset record by project and URL.
// It returns nil without an error when the asset is unknown.
func (cdb *CacheDB) GetAsset(ctx context.Context, project, url string) (*AssetRecord, error) {
	query := `
	SELECT project, url, path, kind, status_code, digest, bytes, fetched_at
	FROM assets
	WHERE project = ? AND url = ?
	`

	var rec AssetRecord
	var fetchedAt string
	err := cdb.db.QueryRowContext(ctx, query, project, url).Scan(
		&rec.Project,
		&rec.URL,
		&rec.Path,
		&rec.Kind,
		&rec.StatusCode,
		&rec.Digest,
		&rec.Bytes,
		&fetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	rec.FetchedAt = parseTimestamp(fetchedAt)
	return &rec, nil
}

// DeleteAsset forgets an asset.
func (cdb *CacheDB) DeleteAsset(ctx context.Context, project, url string) error {
	if _, err := cdb.db.ExecContext(ctx, `DELETE FROM assets WHERE project = ? AND url = ?`, project, url); err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}

// CountAssets returns the number of assets stored for project.
func (cdb *CacheDB) CountAssets(ctx context.Context, project string) (int, error) {
	var n int
	if err := cdb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets WHERE project = ?`, project).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return n, nil
}

// RunRecord contains the stored summary of a run.
type RunRecord struct {
	// ID is the run identifier.
	ID string

	// Project is the project the run mirrored into.
	Project string

	// StartURL is the run's start page.
	StartURL string

	// StartedAt is when the run started.
	StartedAt time.Time

	// Duration is how long the run took.
	Duration time.Duration

	// Total is the number of processed resources.
	Total int

	// Bytes is the number of bytes written.
	Bytes int64

	// Counts maps outcome names to resource counts.
	Counts map[string]int

	// Error is the fatal error of a failed run.
	Error string
}

// SaveRun stores the summary of a finished run.
func (cdb *CacheDB) SaveRun(ctx context.Context, s model.Summary) error {
	countsJSON, err := json.Marshal(s.Counts)
	if err != nil {
		return fmt.Errorf("failed to serialize counts: %w", err)
	}

	query := `
	INSERT INTO runs (id, project, start_url, started_at, duration_ms, total, bytes, counts, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		duration_ms = excluded.duration_ms,
		total = excluded.total,
		bytes = excluded.bytes,
		counts = excluded.counts,
		error = excluded.error
	`

	_, err = cdb.db.ExecContext(ctx, query,
		s.RunID,
		s.Project,
		s.StartURL,
		formatTimestamp(s.StartedAt),
		s.Duration.Milliseconds(),
		s.Total,
		s.Bytes,
		string(countsJSON),
		s.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// ListRuns returns the runs of project, newest first. An empty project
// lists every run. A limit of zero or less returns all runs.
func (cdb *CacheDB) ListRuns(ctx context.Context, project string, limit int) ([]RunRecord, error) {
	query := `
	SELECT id, project, start_url, started_at, duration_ms, total, bytes, counts, error
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if project != "" {
		query += " AND project = ?"
		args = append(args, project)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunRecord
	for rows.Next() {
		var rec RunRecord
		var startedAt string
		var durationMS int64
		var countsJSON, runErr sql.NullString

		if err := rows.Scan(
			&rec.ID,
			&rec.Project,
			&rec.StartURL,
			&startedAt,
			&durationMS,
			&rec.Total,
			&rec.Bytes,
			&countsJSON,
			&runErr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		rec.StartedAt = parseTimestamp(startedAt)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.Error = runErr.String
		rec.Counts = make(map[string]int)
		if countsJSON.Valid && countsJSON.String != "" {
			if err := json.Unmarshal([]byte(countsJSON.String), &rec.Counts); err != nil {
				rec.Counts = make(map[string]int)
			}
		}
		results = append(results, rec)
	}

	return results, rows.Err()
}

// storedLayout has a fixed-width fraction so stored timestamps sort
// lexicographically.
const storedLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storedLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // Format written by formatTimestamp
	time.RFC3339,              // Full RFC3339 format
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
