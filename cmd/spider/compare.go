package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/spider/internal/config"
	"github.com/nao1215/spider/internal/database"
	"github.com/nao1215/spider/internal/model"
	"github.com/spf13/cobra"
)

// Output formats of the compare command.
const (
	formatText     = "text"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [url]",
		Short: "Compare the latest crawl of a root with an earlier one",
		Long: `Compare shows what changed between two stored crawls of the same root:

- URLs requested in the latest crawl but not in the earlier one
- URLs that are no longer requested
- URLs whose status changed
- URLs whose body changed while the status stayed the same

By default the latest crawl is compared with the one before it.

Examples:
  # Compare the latest two crawls
  spider compare http://example.com/

  # List stored crawls of a root
  spider compare --list http://example.com/

  # Compare with a specific crawl
  spider compare --with-run-id 5 http://example.com/

  # List every crawled root
  spider compare --list-roots`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List crawl history for the specified root")
	cmd.Flags().BoolP("list-roots", "L", false,
		"List all crawled roots in the database")
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare with a specific crawl by ID (use --list to see available IDs)")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

func runCompareCmd(cmd *cobra.Command, args []string) error {
	listRoots, err := cmd.Flags().GetBool("list-roots")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var root string
	if !listRoots {
		if len(args) == 0 {
			return errors.New("root URL is required (use --list-roots to see crawled roots)")
		}
		root, err = canonicalRoot(args[0])
		if err != nil {
			return err
		}
	}

	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	withRunID, err := cmd.Flags().GetInt64("with-run-id")
	if err != nil {
		return err
	}
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case listRoots:
		return listCrawledRoots(ctx, db, out)
	case listHistory:
		return listCrawlHistory(ctx, db, root, out)
	default:
		return runComparison(ctx, db, root, withRunID, format, out)
	}
}

func outputFormat(cmd *cobra.Command) (string, error) {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return "", err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return "", err
	}
	switch {
	case jsonOutput && markdownOutput:
		return "", errors.New("--json and --markdown cannot be used together")
	case jsonOutput:
		return formatJSON, nil
	case markdownOutput:
		return formatMarkdown, nil
	default:
		return formatText, nil
	}
}

// canonicalRoot turns a command line root into the form stored in reports.
func canonicalRoot(raw string) (string, error) {
	u, err := model.Resolve(normalizeRoot(raw), model.Authority{})
	if err != nil {
		return "", fmt.Errorf("invalid root URL %q: %w", raw, err)
	}
	return u.String(), nil
}

func listCrawledRoots(ctx context.Context, db *database.CrawlDB, w io.Writer) error {
	roots, err := db.ListCrawledRoots(ctx)
	if err != nil {
		return fmt.Errorf("failed to list roots: %w", err)
	}

	if len(roots) == 0 {
		fmt.Fprintln(w, "No crawled roots found in the database.")
		fmt.Fprintln(w, "\nUse 'spider crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(w, "Crawled roots (%d):\n\n", len(roots))
	for _, root := range roots {
		fmt.Fprintf(w, "  • %s\n", root)
	}
	fmt.Fprintln(w, "\nUse 'spider compare --list <url>' to see the crawl history of a root.")
	return nil
}

func listCrawlHistory(ctx context.Context, db *database.CrawlDB, root string, w io.Writer) error {
	runs, err := db.GetCrawlHistoryWithMetadata(ctx, root)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(w, "No crawl history found for %s\n", root)
		return nil
	}

	fmt.Fprintf(w, "Crawl history for %s (%d crawls):\n\n", root, len(runs))
	fmt.Fprintf(w, "  %-6s  %-20s  %s\n", "ID", "Date", "Summary")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 60))
	for _, run := range runs {
		summary := formatSummary(run.Summary)
		if run.Cancelled {
			summary += " (cancelled)"
		}
		fmt.Fprintf(w, "  %-6d  %-20s  %s\n", run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), summary)
	}

	fmt.Fprintln(w, "\nUse 'spider compare <url>' to compare the latest two crawls.")
	fmt.Fprintln(w, "Use 'spider compare --with-run-id <id> <url>' to compare with a specific crawl.")
	return nil
}

// formatSummary renders outcome counts compactly, e.g. "2xx:5 4xx:1 FAILED:2".
func formatSummary(s model.Summary) string {
	counts := []struct {
		label string
		n     int
	}{
		{"2xx", s.Success},
		{"3xx", s.Redirect},
		{"4xx", s.ClientError},
		{"5xx", s.ServerError},
		{"other", s.Other},
		{"FAILED", s.Failed},
		{"PENDING", s.Pending},
	}

	var parts []string
	for _, c := range counts {
		if c.n > 0 {
			parts = append(parts, c.label+":"+strconv.Itoa(c.n))
		}
	}
	if len(parts) == 0 {
		return "No URLs"
	}
	return strings.Join(parts, " ")
}

// runComparison compares the latest run of root with the previous run, or
// with withRunID when it is set.
func runComparison(ctx context.Context, db *database.CrawlDB, root string, withRunID int64, format string, w io.Writer) error {
	current, err := db.GetLatestCrawlReport(ctx, root)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("no crawl history found for %s", root)
	}

	var previous *model.CrawlReport
	if withRunID > 0 {
		previous, err = db.GetCrawlReportByID(ctx, withRunID)
		if err != nil {
			return err
		}
		if previous == nil {
			return fmt.Errorf("crawl with ID %d not found", withRunID)
		}
		if previous.Root != root {
			return fmt.Errorf("crawl ID %d belongs to %s, not %s", withRunID, previous.Root, root)
		}
	} else {
		runs, err := db.GetCrawlHistoryWithMetadata(ctx, root)
		if err != nil {
			return fmt.Errorf("failed to get crawl history: %w", err)
		}
		if len(runs) < 2 {
			return fmt.Errorf("at least 2 crawls are required for comparison (found %d)", len(runs))
		}
		if previous, err = db.GetCrawlReportByID(ctx, runs[1].ID); err != nil {
			return err
		}
		if previous == nil {
			return fmt.Errorf("crawl with ID %d not found", runs[1].ID)
		}
	}

	for _, r := range []*model.CrawlReport{previous, current} {
		if r.Results, err = db.GetResults(ctx, r.ID); err != nil {
			return err
		}
	}

	comparison := compareReports(previous, current)

	switch format {
	case formatJSON:
		return outputComparisonJSON(w, comparison)
	case formatMarkdown:
		return outputComparisonMarkdown(w, comparison)
	default:
		return outputComparisonText(w, comparison)
	}
}

// ComparisonResult holds the differences between two crawls of one root.
type ComparisonResult struct {
	Root string `json:"root"`

	PreviousRun RunMetadata `json:"previous_run"`
	CurrentRun  RunMetadata `json:"current_run"`

	// NewURLs were requested only in the current run.
	NewURLs []model.Result `json:"new_urls,omitempty"`

	// GoneURLs were requested only in the previous run.
	GoneURLs []model.Result `json:"gone_urls,omitempty"`

	// StatusChanges lists URLs whose status text differs.
	StatusChanges []URLChange `json:"status_changes,omitempty"`

	// ContentChanges lists URLs with the same status but a different body hash.
	ContentChanges []URLChange `json:"content_changes,omitempty"`

	UnchangedCount int `json:"unchanged_count"`
}

// RunMetadata identifies one side of a comparison.
type RunMetadata struct {
	ID        int64         `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Cancelled bool          `json:"cancelled,omitempty"`
	Summary   model.Summary `json:"summary"`
}

// URLChange is a URL present in both runs with a different outcome.
type URLChange struct {
	URL      string `json:"url"`
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

func newRunMetadata(r *model.CrawlReport) RunMetadata {
	return RunMetadata{
		ID:        r.ID,
		StartedAt: r.StartedAt,
		Cancelled: r.Cancelled,
		Summary:   r.Summary(),
	}
}

// compareReports diffs two reports. Lists follow the request order of the
// run they come from.
func compareReports(previous, current *model.CrawlReport) *ComparisonResult {
	result := &ComparisonResult{
		Root:        current.Root,
		PreviousRun: newRunMetadata(previous),
		CurrentRun:  newRunMetadata(current),
	}

	prev := make(map[string]model.Result, len(previous.Results))
	for _, res := range previous.Results {
		prev[res.URL] = res
	}
	cur := make(map[string]struct{}, len(current.Results))

	for _, res := range current.Results {
		cur[res.URL] = struct{}{}

		old, ok := prev[res.URL]
		switch {
		case !ok:
			result.NewURLs = append(result.NewURLs, res)
		case old.StatusText() != res.StatusText():
			result.StatusChanges = append(result.StatusChanges, URLChange{
				URL:      res.URL,
				Previous: old.StatusText(),
				Current:  res.StatusText(),
			})
		case old.BodyHash != res.BodyHash:
			result.ContentChanges = append(result.ContentChanges, URLChange{
				URL:      res.URL,
				Previous: shortHash(old.BodyHash),
				Current:  shortHash(res.BodyHash),
			})
		default:
			result.UnchangedCount++
		}
	}

	for _, res := range previous.Results {
		if _, ok := cur[res.URL]; !ok {
			result.GoneURLs = append(result.GoneURLs, res)
		}
	}

	return result
}

// shortHash abbreviates a body digest for display.
func shortHash(h string) string {
	if h == "" {
		return "(empty)"
	}
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// HasChanges reports whether the two runs differ at all.
func (c *ComparisonResult) HasChanges() bool {
	return len(c.NewURLs)+len(c.GoneURLs)+len(c.StatusChanges)+len(c.ContentChanges) > 0
}

func outputComparisonJSON(w io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputComparisonText(w io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(w, "Crawl Comparison: %s\n", result.Root)
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintf(w, "\nPrevious crawl: #%d %s  %s\n", result.PreviousRun.ID,
		result.PreviousRun.StartedAt.Format("2006-01-02 15:04:05"), formatSummary(result.PreviousRun.Summary))
	fmt.Fprintf(w, "Current crawl:  #%d %s  %s\n", result.CurrentRun.ID,
		result.CurrentRun.StartedAt.Format("2006-01-02 15:04:05"), formatSummary(result.CurrentRun.Summary))

	if !result.HasChanges() {
		fmt.Fprintf(w, "\nNo changes (%d URLs unchanged)\n", result.UnchangedCount)
		return nil
	}

	if len(result.NewURLs) > 0 {
		fmt.Fprintf(w, "\nNew URLs (%d):\n", len(result.NewURLs))
		for _, res := range result.NewURLs {
			fmt.Fprintf(w, "  [+] %s -> %s\n", res.URL, res.StatusText())
		}
	}

	if len(result.GoneURLs) > 0 {
		fmt.Fprintf(w, "\nGone URLs (%d):\n", len(result.GoneURLs))
		for _, res := range result.GoneURLs {
			fmt.Fprintf(w, "  [-] %s (was %s)\n", res.URL, res.StatusText())
		}
	}

	if len(result.StatusChanges) > 0 {
		fmt.Fprintf(w, "\nStatus Changes (%d):\n", len(result.StatusChanges))
		for _, c := range result.StatusChanges {
			fmt.Fprintf(w, "  [~] %s: %s -> %s\n", c.URL, c.Previous, c.Current)
		}
	}

	if len(result.ContentChanges) > 0 {
		fmt.Fprintf(w, "\nContent Changes (%d):\n", len(result.ContentChanges))
		for _, c := range result.ContentChanges {
			fmt.Fprintf(w, "  [*] %s: %s -> %s\n", c.URL, c.Previous, c.Current)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(w, "\nUnchanged: %d URLs\n", result.UnchangedCount)
	}
	return nil
}

func outputComparisonMarkdown(w io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(w)

	md.H1("Crawl Comparison: " + result.Root)
	md.PlainText("")

	prev, cur := result.PreviousRun, result.CurrentRun
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Run", "#" + strconv.FormatInt(prev.ID, 10), "#" + strconv.FormatInt(cur.ID, 10), "-"},
			{"Date", prev.StartedAt.Format("2006-01-02 15:04"), cur.StartedAt.Format("2006-01-02 15:04"), "-"},
			deltaRow("2xx", prev.Summary.Success, cur.Summary.Success),
			deltaRow("3xx", prev.Summary.Redirect, cur.Summary.Redirect),
			deltaRow("4xx", prev.Summary.ClientError, cur.Summary.ClientError),
			deltaRow("5xx", prev.Summary.ServerError, cur.Summary.ServerError),
			deltaRow("Failed", prev.Summary.Failed, cur.Summary.Failed),
			deltaRow("**Total**", prev.Summary.Total, cur.Summary.Total),
		},
	})
	md.PlainText("")

	if !result.HasChanges() {
		md.Tip("No changes between the two crawls.")
		return md.Build()
	}

	if len(result.NewURLs) > 0 {
		md.H2(fmt.Sprintf("New URLs (%d)", len(result.NewURLs)))
		items := make([]string, len(result.NewURLs))
		for i, res := range result.NewURLs {
			items[i] = fmt.Sprintf("`%s` %s", res.URL, res.StatusText())
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(result.GoneURLs) > 0 {
		md.H2(fmt.Sprintf("Gone URLs (%d)", len(result.GoneURLs)))
		items := make([]string, len(result.GoneURLs))
		for i, res := range result.GoneURLs {
			items[i] = fmt.Sprintf("~~`%s`~~ (was %s)", res.URL, res.StatusText())
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if changes := append(append([]URLChange{}, result.StatusChanges...), result.ContentChanges...); len(changes) > 0 {
		md.H2(fmt.Sprintf("Changed URLs (%d)", len(changes)))
		rows := make([][]string, len(changes))
		for i, c := range changes {
			rows[i] = []string{"`" + c.URL + "`", c.Previous, c.Current}
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Previous", "Current"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainTextf("*%d URLs unchanged*", result.UnchangedCount)
	}

	return md.Build()
}

func deltaRow(label string, previous, current int) []string {
	return []string{label, strconv.Itoa(previous), strconv.Itoa(current), formatDelta(current - previous)}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
