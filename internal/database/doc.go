// Package database provides SQLite-based storage for crawl reports.
//
// Every finished crawl is stored as one row in crawl_runs, holding the
// complete report as JSON, plus one row per requested URL in crawl_results.
// The compare command reads two runs of the same root back to show what
// changed between them.
//
// The driver is modernc.org/sqlite, which needs no cgo, and the database is
// a single file under the XDG data directory.
package database
