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

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/jsfinder/internal/model"
)

// DBFileName is the name of the SQLite database file inside the data directory.
const DBFileName = "jsfinder.db"

// ErrNilReport is returned by SaveReport when no report is given.
var ErrNilReport = errors.New("report is nil")

// ScriptDB provides SQLite-based storage for discovery runs.
// Each run is stored once as a JSON report and once as one row per
// confirmed script, so history queries do not need to decode reports.
//
// Design decision: We use a single database file for every domain rather
// than one file per domain. This keeps cross-domain listing a single query.
type ScriptDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ScriptDB behavior.
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

// Open opens or creates a ScriptDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ScriptDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite takes the open mode as a DSN parameter.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &ScriptDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Close closes the database connection.
func (sdb *ScriptDB) Close() error {
	return sdb.db.Close()
}

// Path returns the path of the database file.
func (sdb *ScriptDB) Path() string {
	return sdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (sdb *ScriptDB) createTables() error {
	schema := `
	-- One row per discovery run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		script_count INTEGER NOT NULL DEFAULT 0,
		timed_out INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_domain ON runs(domain);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Confirmed scripts of each run
	CREATE TABLE IF NOT EXISTS scripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		domain TEXT NOT NULL,
		url TEXT NOT NULL,
		status_code INTEGER,
		content_type TEXT,
		size INTEGER,
		hash TEXT,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_scripts_domain_url ON scripts(domain, url);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport stores a report and its scripts in one transaction and
// returns the generated run ID.
func (sdb *ScriptDB) SaveReport(ctx context.Context, report *model.Report) (string, error) {
	if report == nil {
		return "", ErrNilReport
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to serialize report: %w", err)
	}

	runID := uuid.New().String()

	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after Commit
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, domain, started_at, finished_at, script_count, timed_out, error, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		report.Domain,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		len(report.Scripts),
		report.TimedOut,
		nullString(report.ErrorMessage),
		string(reportJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR IGNORE INTO scripts (run_id, domain, url, status_code, content_type, size, hash)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare script insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range report.Scripts {
		if _, err := stmt.ExecContext(ctx, runID, report.Domain, s.URL, s.StatusCode, s.ContentType, s.Size, s.Hash); err != nil {
			return "", fmt.Errorf("failed to insert script %s: %w", s.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	return runID, nil
}

// GetLatestReport retrieves the most recent report for domain.
// It returns nil without error when the domain has no runs.
func (sdb *ScriptDB) GetLatestReport(ctx context.Context, domain string) (*model.Report, error) {
	query := `
	SELECT report_json FROM runs
	WHERE domain = ?
	ORDER BY started_at DESC
	LIMIT 1
	`
	return sdb.queryReport(ctx, query, domain)
}

// GetLatestCompleteReport retrieves the most recent report for domain that
// neither failed nor was cancelled. It is the baseline for new-script
// detection. It returns nil without error when there is no such run.
func (sdb *ScriptDB) GetLatestCompleteReport(ctx context.Context, domain string) (*model.Report, error) {
	query := `
	SELECT report_json FROM runs
	WHERE domain = ? AND error IS NULL AND timed_out = 0
	ORDER BY started_at DESC
	LIMIT 1
	`
	return sdb.queryReport(ctx, query, domain)
}

// GetReportByID retrieves the report of a run.
// It returns nil without error when no such run exists.
func (sdb *ScriptDB) GetReportByID(ctx context.Context, runID string) (*model.Report, error) {
	return sdb.queryReport(ctx, `SELECT report_json FROM runs WHERE id = ?`, runID)
}

func (sdb *ScriptDB) queryReport(ctx context.Context, query string, args ...any) (*model.Report, error) {
	var reportJSON string
	err := sdb.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report model.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ListDomains returns every domain with at least one stored run.
func (sdb *ScriptDB) ListDomains(ctx context.Context) ([]string, error) {
	rows, err := sdb.db.QueryContext(ctx, `SELECT DISTINCT domain FROM runs ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	domains := make([]string, 0)
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		domains = append(domains, domain)
	}

	return domains, rows.Err()
}

// RunMetadata contains summary information about a stored run.
// It is used for displaying history without loading the full report.
type RunMetadata struct {
	// ID is the run's UUID.
	ID string `json:"id"`

	// Domain is the scanned domain.
	Domain string `json:"domain"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run finished.
	FinishedAt time.Time `json:"finished_at"`

	// ScriptCount is the number of confirmed scripts.
	ScriptCount int `json:"script_count"`

	// TimedOut is true if the run was cancelled before completion.
	TimedOut bool `json:"timed_out"`

	// Error is the run's error message, if any.
	Error string `json:"error,omitempty"`
}

// ListRuns returns the runs of domain, newest first.
func (sdb *ScriptDB) ListRuns(ctx context.Context, domain string) ([]RunMetadata, error) {
	query := `
	SELECT id, domain, started_at, finished_at, script_count, timed_out, error
	FROM runs
	WHERE domain = ?
	ORDER BY started_at DESC
	`

	rows, err := sdb.db.QueryContext(ctx, query, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var (
			meta              RunMetadata
			started, finished string
			runErr            sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.Domain, &started, &finished, &meta.ScriptCount, &meta.TimedOut, &runErr); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		meta.StartedAt = parseTimestamp(started)
		meta.FinishedAt = parseTimestamp(finished)
		meta.Error = runErr.String
		runs = append(runs, meta)
	}

	return runs, rows.Err()
}

// ListScripts returns the scripts confirmed in a run, sorted by URL.
func (sdb *ScriptDB) ListScripts(ctx context.Context, runID string) ([]model.Script, error) {
	query := `
	SELECT url, status_code, content_type, size, hash
	FROM scripts
	WHERE run_id = ?
	ORDER BY url
	`

	rows, err := sdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}
	defer rows.Close()

	scripts := make([]model.Script, 0)
	for rows.Next() {
		var (
			s           model.Script
			contentType sql.NullString
			hash        sql.NullString
		)
		if err := rows.Scan(&s.URL, &s.StatusCode, &contentType, &s.Size, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan script: %w", err)
		}
		s.ContentType = contentType.String
		s.Hash = hash.String
		scripts = append(scripts, s)
	}

	return scripts, rows.Err()
}

// timestampLayout has a fixed-width fraction so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTimestamp stores times as sortable UTC text.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, it returns the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
