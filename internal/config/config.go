package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultBatchSize is the number of root URLs crawled at the same time.
	// Each crawl is single-threaded on its own; the batch only runs several
	// independent crawls side by side.
	DefaultBatchSize = 1

	// DefaultMaxRequests of 0 means a crawl issues as many requests as the
	// reachable link graph requires.
	DefaultMaxRequests = 0

	// DefaultChunkSize is the number of bytes read from a ready socket at a time.
	DefaultChunkSize = 4096

	// AppName is the application name used for XDG directory paths.
	AppName = "spider"
)

// Config holds all configuration options for spider.
// It is populated from CLI flags and passed through the application
// rather than kept in global state.
type Config struct {
	// Targets is the list of root URLs to crawl.
	Targets []string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of root URLs crawled concurrently.
	BatchSize int

	// MaxRequests caps the number of requests per root. 0 means unlimited.
	// A per-site maxRequests in the config file takes precedence.
	MaxRequests int

	// ChunkSize is the read size used by the multiplexer.
	ChunkSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .spider in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	// This is populated by LoadConfigFile and used when building each crawl.
	SiteConfigs *File

	// JSONReport enables JSON report output instead of the text format.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of the text format.
	// The Markdown report contains result tables and a status pie chart.
	MarkdownReport bool

	// XLSXReport writes an Excel workbook to ReportFile.
	XLSXReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// DBDir is the directory path for storing the SQLite database.
	// Defaults to XDG data directory (~/.local/share/spider on Linux).
	DBDir string

	// SaveToDB indicates whether crawl reports are stored for later comparison.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		BatchSize:   DefaultBatchSize,
		MaxRequests: DefaultMaxRequests,
		ChunkSize:   DefaultChunkSize,
		DBDir:       XDGDataDir(),
		SaveToDB:    true,
	}
}

// XDGDataDir returns the XDG data directory for spider.
// On Linux: ~/.local/share/spider
// On macOS: ~/Library/Application Support/spider
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for spider.
// On Linux: ~/.config/spider
// On macOS: ~/Library/Application Support/spider
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// SiteConfigFor returns the site configuration for an authority, merged
// with the file defaults. The global MaxRequests applies when neither the
// site nor the defaults set one.
func (c *Config) SiteConfigFor(authority string) SiteConfig {
	var site SiteConfig
	if c.SiteConfigs != nil {
		site = c.SiteConfigs.GetSiteConfig(authority)
	}
	if site.MaxRequests == 0 {
		site.MaxRequests = c.MaxRequests
	}
	return site
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}

	if c.MaxRequests < 0 {
		return ErrInvalidMaxRequests
	}

	formats := 0
	for _, on := range []bool{c.JSONReport, c.MarkdownReport, c.XLSXReport} {
		if on {
			formats++
		}
	}
	if formats > 1 {
		return ErrConflictingReportFormats
	}

	if c.XLSXReport && c.ReportFile == "" {
		return ErrXLSXRequiresOutput
	}

	return nil
}
