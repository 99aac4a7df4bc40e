package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/spider/internal/model"
)

// SimpleWriter outputs the crawl result as plain text.
// The body is one "url -> status" line per requested URL in discovery order,
// where status is the response code, FAILED or PENDING.
type SimpleWriter struct {
	baseWriter

	// verbose adds the failure reason, content type, redirect target and
	// link count.
	verbose bool

	// showSummary controls whether the outcome counts are printed.
	showSummary bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithSummary toggles the summary section. It is on by default.
func WithSummary(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showSummary = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter:  newBaseWriter(output),
		showSummary: true,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeResults(&sb, report)
	if w.showSummary {
		w.writeSummary(&sb, report)
	}

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Root:     %s\n", report.Root)
	fmt.Fprintf(sb, "Started:  %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration: %s\n", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:   %s\n", reportStatus(report))
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeResults(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Results) == 0 {
		sb.WriteString("No URLs were requested\n")
		return
	}

	for _, res := range report.Results {
		fmt.Fprintf(sb, "%s -> %s\n", res.URL, res.StatusText())
		if !w.verbose {
			continue
		}
		if res.Error != "" {
			fmt.Fprintf(sb, "    error: %s\n", res.Error)
		}
		if res.ContentType != "" {
			fmt.Fprintf(sb, "    content-type: %s\n", res.ContentType)
		}
		if res.Location != "" {
			fmt.Fprintf(sb, "    location: %s\n", res.Location)
		}
		if res.LinksFound > 0 {
			fmt.Fprintf(sb, "    links: %d\n", res.LinksFound)
		}
	}
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.CrawlReport) {
	s := report.Summary()

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  2xx:     %d\n", s.Success)
	fmt.Fprintf(sb, "  3xx:     %d\n", s.Redirect)
	fmt.Fprintf(sb, "  4xx:     %d\n", s.ClientError)
	fmt.Fprintf(sb, "  5xx:     %d\n", s.ServerError)
	if s.Other > 0 {
		fmt.Fprintf(sb, "  other:   %d\n", s.Other)
	}
	fmt.Fprintf(sb, "  FAILED:  %d\n", s.Failed)
	if s.Pending > 0 {
		fmt.Fprintf(sb, "  PENDING: %d\n", s.Pending)
	}
	fmt.Fprintf(sb, "  TOTAL:   %d URLs\n", s.Total)
}
