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

	"github.com/nao1215/spider/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "spider.db"

// storedTimeFormat is how timestamps are written. It has a fixed width so
// that string order equals time order.
const storedTimeFormat = "2006-01-02 15:04:05.000000000"

// CrawlDB provides SQLite-based storage for crawl reports.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
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

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

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

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
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
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl of a root URL
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		root TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		cancelled INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		summary_json TEXT NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_root ON crawl_runs(root);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	-- One row per requested URL of a run
	CREATE TABLE IF NOT EXISTS crawl_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		state TEXT NOT NULL,
		status_code INTEGER,
		error TEXT,
		content_type TEXT,
		location TEXT,
		body_hash TEXT,
		body_size INTEGER,
		links_found INTEGER,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_results_run ON crawl_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_url ON crawl_results(url);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveCrawlReport stores a report and its results in one transaction.
// On success the report's ID is set and returned.
func (cdb *CrawlDB) SaveCrawlReport(ctx context.Context, report *model.CrawlReport) (id int64, err error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	summaryJSON, err := json.Marshal(report.Summary())
	if err != nil {
		return 0, fmt.Errorf("failed to serialize summary: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var finishedAt sql.NullString
	if !report.FinishedAt.IsZero() {
		finishedAt = sql.NullString{String: formatTime(report.FinishedAt), Valid: true}
	}

	result, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (root, started_at, finished_at, cancelled, error, summary_json, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		report.Root,
		formatTime(report.StartedAt),
		finishedAt,
		report.Cancelled,
		report.Error,
		string(summaryJSON),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save crawl run: %w", err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO crawl_results (run_id, position, url, state, status_code, error, content_type, location, body_hash, body_size, links_found)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, res := range report.Results {
		if _, err = stmt.ExecContext(ctx,
			id,
			i,
			res.URL,
			string(res.State),
			res.StatusCode,
			res.Error,
			res.ContentType,
			res.Location,
			res.BodyHash,
			res.BodySize,
			res.LinksFound,
		); err != nil {
			return 0, fmt.Errorf("failed to save result %s: %w", res.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl report: %w", err)
	}

	report.ID = id
	return id, nil
}

// GetLatestCrawlReport retrieves the most recent report for a root.
// It returns nil without error when the root was never crawled.
func (cdb *CrawlDB) GetLatestCrawlReport(ctx context.Context, root string) (*model.CrawlReport, error) {
	query := `
	SELECT id, report_json FROM crawl_runs
	WHERE root = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`

	report, err := scanReport(cdb.db.QueryRowContext(ctx, query, root))
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}
	return report, nil
}

// GetCrawlReportByID retrieves a report by its database ID.
// It returns nil without error when no such run exists.
func (cdb *CrawlDB) GetCrawlReportByID(ctx context.Context, id int64) (*model.CrawlReport, error) {
	query := `
	SELECT id, report_json FROM crawl_runs
	WHERE id = ?
	`

	report, err := scanReport(cdb.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report %d: %w", id, err)
	}
	return report, nil
}

func scanReport(row *sql.Row) (*model.CrawlReport, error) {
	var id int64
	var reportJSON string
	if err := row.Scan(&id, &reportJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	report.ID = id
	return &report, nil
}

// GetCrawlHistory retrieves all reports for a root, newest first.
// Rows whose JSON cannot be parsed are skipped.
func (cdb *CrawlDB) GetCrawlHistory(ctx context.Context, root string) ([]*model.CrawlReport, error) {
	query := `
	SELECT id, report_json FROM crawl_runs
	WHERE root = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, root)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var reports []*model.CrawlReport
	for rows.Next() {
		var id int64
		var reportJSON string
		if err := rows.Scan(&id, &reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		var report model.CrawlReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue
		}
		report.ID = id
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// CrawlRunMetadata contains summary information about a stored crawl.
// This is used for displaying history without loading the full report.
type CrawlRunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// Root is the crawled root URL.
	Root string

	// StartedAt is when the crawl started.
	StartedAt time.Time

	// FinishedAt is when the crawl ended. Zero if it never finished.
	FinishedAt time.Time

	// Cancelled is true when the crawl was interrupted.
	Cancelled bool

	// Summary holds the outcome counts of the run.
	Summary model.Summary
}

// GetCrawlHistoryWithMetadata retrieves run metadata for a root, newest first.
func (cdb *CrawlDB) GetCrawlHistoryWithMetadata(ctx context.Context, root string) ([]CrawlRunMetadata, error) {
	query := `
	SELECT id, root, started_at, finished_at, cancelled, summary_json
	FROM crawl_runs
	WHERE root = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, root)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var results []CrawlRunMetadata
	for rows.Next() {
		var meta CrawlRunMetadata
		var startedAt string
		var finishedAt sql.NullString
		var summaryJSON string

		if err := rows.Scan(&meta.ID, &meta.Root, &startedAt, &finishedAt, &meta.Cancelled, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			meta.FinishedAt = parseTimestamp(finishedAt.String)
		}
		// A broken summary leaves the counts at zero.
		_ = json.Unmarshal([]byte(summaryJSON), &meta.Summary) //nolint:errcheck

		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListCrawledRoots returns every root that has at least one stored run.
func (cdb *CrawlDB) ListCrawledRoots(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT root FROM crawl_runs
	ORDER BY root
	`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list roots: %w", err)
	}
	defer rows.Close()

	var roots []string
	for rows.Next() {
		var root string
		if err := rows.Scan(&root); err != nil {
			return nil, fmt.Errorf("failed to scan root: %w", err)
		}
		roots = append(roots, root)
	}

	return roots, rows.Err()
}

// GetResults returns the per-URL rows of a run in request order.
func (cdb *CrawlDB) GetResults(ctx context.Context, runID int64) ([]model.Result, error) {
	query := `
	SELECT url, state, status_code, error, content_type, location, body_hash, body_size, links_found
	FROM crawl_results
	WHERE run_id = ?
	ORDER BY position
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	results := make([]model.Result, 0)
	for rows.Next() {
		var res model.Result
		var state string
		var errText, contentType, location, bodyHash sql.NullString
		var statusCode, bodySize, linksFound sql.NullInt64

		if err := rows.Scan(&res.URL, &state, &statusCode, &errText, &contentType, &location, &bodyHash, &bodySize, &linksFound); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		res.State = model.State(state)
		res.StatusCode = int(statusCode.Int64)
		res.Error = errText.String
		res.ContentType = contentType.String
		res.Location = location.String
		res.BodyHash = bodyHash.String
		res.BodySize = int(bodySize.Int64)
		res.LinksFound = int(linksFound.Int64)
		results = append(results, res)
	}

	return results, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeFormat)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	storedTimeFormat,
	"2006-01-02 15:04:05",  // SQLite default datetime format
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	time.RFC3339Nano,
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
