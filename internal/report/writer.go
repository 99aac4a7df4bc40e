package report

import (
	"io"

	"github.com/nao1215/spider/internal/model"
)

// Writer is the interface for crawl report output.
// Implementations format a CrawlReport and write it to their destination.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *model.CrawlReport) (int, error)
}

// MultiWriter writes to multiple writers simultaneously.
// It is used when one crawl should produce several report formats at once.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a writer that outputs to all provided writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all writers.
// It returns the total bytes written and stops at the first error.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	total := 0
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides the output destination shared by all writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// reportStatus describes how the crawl ended.
func reportStatus(report *model.CrawlReport) string {
	switch {
	case report.Error != "":
		return "ERROR - " + report.Error
	case report.Cancelled:
		return "CANCELLED (partial results)"
	default:
		return "Complete"
	}
}
