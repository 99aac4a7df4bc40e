package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/spider/internal/batch"
	"github.com/nao1215/spider/internal/config"
	"github.com/nao1215/spider/internal/crawler"
	"github.com/nao1215/spider/internal/database"
	"github.com/nao1215/spider/internal/log"
	"github.com/nao1215/spider/internal/model"
	"github.com/nao1215/spider/internal/report"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>...",
		Short: "Crawl a web site and report the status of every URL",
		Long: `Crawl fetches the root URL and every URL reachable from it.

Links in text/html pages of the root's authority are followed. Links to
other authorities are requested once but not scanned. 301 and 302
redirects are followed wherever they point. Every URL is requested at
most once, and the final report maps each requested URL to its status
code, FAILED when no usable response arrived, or PENDING when the crawl
was interrupted first.

Roots without a scheme are crawled over http://. Only plain HTTP/1.0 is
spoken; https:// roots are fetched over plain HTTP on port 80 unless a
port is given.

Reports are stored in a local database for 'spider compare' unless
--no-db is given.

Examples:
  # Crawl a single site
  spider crawl http://example.com/

  # Crawl several sites, two at a time
  spider crawl -b 2 example.com example.org

  # Stop after 100 requests
  spider crawl -n 100 http://example.com/

  # Write a Markdown report
  spider crawl -m -o report.md http://example.com/

  # Write a spreadsheet
  spider crawl -x -o report.xlsx http://example.com/

Configuration file (.spider) example:
  defaults:
    ignorePatterns:
      - "*.pdf"
  sites:
    "example.com":
      maxRequests: 500
      followPatterns:
        - "/docs/*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of root URLs crawled concurrently")
	cmd.Flags().IntP("max-requests", "n", config.DefaultMaxRequests,
		"Maximum number of requests per root, root included (0 = unlimited)")
	cmd.Flags().Int("chunk-size", config.DefaultChunkSize,
		"Number of bytes read from a ready socket at a time")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .spider in current or home directory)")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report")
	cmd.Flags().BoolP("xlsx", "x", false,
		"Write an Excel report (requires --output)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	cmd.Flags().Bool("no-db", false,
		"Do not store the report in the crawl history database")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// newLogger creates the stderr logger, in JSON when --log-json is set.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	asJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		asJSON, _ = cmd.Root().PersistentFlags().GetBool("log-json")
	}
	if asJSON {
		return log.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return log.NewSecureLogger(cmd.ErrOrStderr(), verbose)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	flags := cmd.Flags()

	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.MaxRequests, err = flags.GetInt("max-requests"); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = flags.GetInt("chunk-size"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.XLSXReport, err = flags.GetBool("xlsx"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	// An explicitly named config file must exist; otherwise a missing file
	// means an empty configuration.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	cfg.Targets = make([]string, 0, len(args))
	for _, arg := range args {
		cfg.Targets = append(cfg.Targets, normalizeRoot(arg))
	}

	return cfg, nil
}

// normalizeRoot prefixes http:// to a root given without a scheme.
func normalizeRoot(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	return "http://" + raw
}

// newSpiderFactory returns a factory that builds a Spider configured for
// the site of each root.
func newSpiderFactory(cfg *config.Config, logger *slog.Logger, extra ...crawler.SpiderOption) batch.CrawlerFactory {
	return func(root string) (batch.Crawler, error) {
		parsed, err := model.ParseURL(root)
		if err != nil {
			return nil, fmt.Errorf("invalid root URL %q: %w", root, err)
		}
		if !parsed.HasAuthority {
			return nil, fmt.Errorf("invalid root URL %q: %w", root, model.ErrRejected)
		}

		site := cfg.SiteConfigFor(parsed.Authority.String())
		logger.Debug("site configuration",
			"root", root,
			"maxRequests", site.MaxRequests,
			"ignorePatterns", site.IgnorePatterns,
			"followPatterns", site.FollowPatterns,
		)

		opts := []crawler.SpiderOption{
			crawler.WithLogger(logger),
			crawler.WithChunkSize(cfg.ChunkSize),
			crawler.WithMaxRequests(site.MaxRequests),
			crawler.WithIgnorePatterns(site.IgnorePatterns),
			crawler.WithFollowPatterns(site.FollowPatterns),
		}
		return crawler.NewSpider(append(opts, extra...)...), nil
	}
}

// runCrawl crawls every target, writes the reports and stores them.
// Progress messages go to progress; reports go to stdout unless
// cfg.ReportFile is set.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, progress io.Writer, extra ...crawler.SpiderOption) error {
	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"batchSize", cfg.BatchSize,
		"maxRequests", cfg.MaxRequests,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	out, err := newReportOutput(cfg, stdout)
	if err != nil {
		return err
	}
	defer out.Close()

	bp := batch.NewBatchProcessor(
		newSpiderFactory(cfg, logger, extra...),
		batch.WithConcurrency(cfg.BatchSize),
		batch.WithBatchLogger(logger),
	)

	startTime := time.Now()
	total := len(cfg.Targets)

	var mu sync.Mutex
	var reportErrs []error
	batchErr := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(res *batch.Result, index int) {
		mu.Lock()
		defer mu.Unlock()

		status := "done"
		switch {
		case res.Report.Cancelled:
			status = "interrupted"
		case res.Err != nil:
			status = "failed: " + res.Err.Error()
		}
		fmt.Fprintf(progress, "[%d/%d] %s %s\n", index+1, total, res.Root, status)

		if err := out.write(res.Report, index, total); err != nil {
			logger.Error("report failed", "root", res.Root, "error", err)
			reportErrs = append(reportErrs, err)
		}

		// A cancelled crawl is still stored, so the store must outlive ctx.
		if err := saveCrawlReport(context.WithoutCancel(ctx), db, res.Report, logger); err != nil {
			logger.Error("failed to save crawl report", "root", res.Root, "error", err)
		}
	})

	fmt.Fprintf(progress, "Crawl completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	if batchErr != nil {
		return fmt.Errorf("crawl interrupted: %w", batchErr)
	}
	return errors.Join(reportErrs...)
}

// reportOutput routes reports to stdout or to the report file.
type reportOutput struct {
	cfg    *config.Config
	stdout io.Writer
	file   *os.File
}

func newReportOutput(cfg *config.Config, stdout io.Writer) (*reportOutput, error) {
	out := &reportOutput{cfg: cfg, stdout: stdout}
	if cfg.ReportFile == "" || cfg.XLSXReport {
		return out, nil
	}

	f, err := createReportFile(cfg.ReportFile)
	if err != nil {
		return nil, err
	}
	out.file = f
	return out, nil
}

// write renders one report. Text formats share one destination; every
// spreadsheet goes to its own file.
func (o *reportOutput) write(r *model.CrawlReport, index, total int) error {
	if o.cfg.XLSXReport {
		f, err := createReportFile(xlsxPath(o.cfg.ReportFile, index, total))
		if err != nil {
			return err
		}
		_, werr := report.NewXLSXWriter(f).Write(r)
		return errors.Join(werr, f.Close())
	}

	var dest io.Writer = o.stdout
	if o.file != nil {
		dest = o.file
	}
	_, err := newReportWriter(o.cfg, dest).Write(r)
	return err
}

func (o *reportOutput) Close() error {
	if o.file == nil {
		return nil
	}
	return o.file.Close()
}

// newReportWriter selects the writer for the configured text format.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// createReportFile creates or truncates path with owner-only permissions,
// creating parent directories as needed.
func createReportFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // path is user supplied on purpose
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// xlsxPath returns the spreadsheet path for the root at index.
// With several roots, "report.xlsx" becomes "report-1.xlsx", "report-2.xlsx"...
func xlsxPath(base string, index, total int) string {
	if total <= 1 {
		return base
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "-" + strconv.Itoa(index+1) + ext
}

// saveCrawlReport stores the report if db is not nil.
func saveCrawlReport(ctx context.Context, db *database.CrawlDB, r *model.CrawlReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	id, err := db.SaveCrawlReport(ctx, r)
	if err != nil {
		return fmt.Errorf("failed to save crawl report: %w", err)
	}

	logger.Info("crawl report saved to database", "root", r.Root, "id", id)
	return nil
}
