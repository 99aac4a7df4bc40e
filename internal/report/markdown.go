package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/spider/internal/model"
)

// MarkdownWriter outputs reports in Markdown format for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := report.Summary()

	w.writeHeader(md, report)
	w.writeSummary(md, report, summary)
	w.writeResults(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Root", "`" + report.Root + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(time.Millisecond).String()},
			{"URLs Requested", strconv.Itoa(len(report.Results))},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) getStatusText(report *model.CrawlReport) string {
	switch {
	case report.Error != "":
		return "❌ Error - " + report.Error
	case report.Cancelled:
		return "⚠️ Cancelled (partial results)"
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport, s model.Summary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"🟢 2xx", strconv.Itoa(s.Success)},
			{"🔵 3xx", strconv.Itoa(s.Redirect)},
			{"🟡 4xx", strconv.Itoa(s.ClientError)},
			{"🔴 5xx", strconv.Itoa(s.ServerError)},
			{"⚪ Other", strconv.Itoa(s.Other)},
			{"❌ Failed", strconv.Itoa(s.Failed)},
			{"⏳ Pending", strconv.Itoa(s.Pending)},
			{"**Total**", "**" + strconv.Itoa(s.Total) + "**"},
		},
	})
	md.PlainText("")

	if s.Total > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, report, s)
}

// writePieChart writes a mermaid pie chart of the outcome distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Response Status Distribution"),
		piechart.WithShowData(true),
	)

	slices := []struct {
		label string
		count int
	}{
		{"2xx", s.Success},
		{"3xx", s.Redirect},
		{"4xx", s.ClientError},
		{"5xx", s.ServerError},
		{"Other", s.Other},
		{"Failed", s.Failed},
		{"Pending", s.Pending},
	}
	for _, sl := range slices {
		if sl.count > 0 {
			chart.LabelAndIntValue(sl.label, uint64(sl.count)) //nolint:gosec // count is never negative
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport, s model.Summary) {
	switch {
	case report.Error != "":
		md.Cautionf("The crawl could not run: %s", report.Error)
	case report.Cancelled:
		md.Warningf("The crawl was cancelled. %d URL(s) never received a response.", s.Pending)
	case s.Failed > 0 || s.ServerError > 0:
		md.Importantf("%d request(s) failed and %d returned a server error.", s.Failed, s.ServerError)
	case s.ClientError > 0:
		md.Note(fmt.Sprintf("%d URL(s) returned a client error.", s.ClientError))
	default:
		md.Tip("Every requested URL responded.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeResults(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Results")
	md.PlainText("")

	if len(report.Results) == 0 {
		md.PlainText("No URLs were requested.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Results))
	for i, res := range report.Results {
		rows[i] = []string{
			"`" + res.URL + "`",
			res.StatusText(),
			orDash(res.ContentType),
			linkCount(res.LinksFound),
			orDash(truncateString(res.Location, 60)),
			orDash(truncateString(res.Error, 60)),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Content-Type", "Links", "Location", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// linkCount renders zero as a dash, since unscanned pages report no links.
func linkCount(n int) string {
	if n == 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [spider](https://github.com/nao1215/spider)*")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
