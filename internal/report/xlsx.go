package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/spider/internal/model"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the spreadsheet report.
const (
	ResultsSheet = "Results"
	SummarySheet = "Summary"
)

// excelize names the first sheet of a new workbook "Sheet1".
const defaultSheet = "Sheet1"

var resultsHeader = []any{"URL", "State", "Status", "Content-Type", "Location", "Error", "Body Hash", "Body Size", "Links"}

// XLSXWriter outputs reports as an Excel workbook.
// The output is binary, so it should be a file rather than a terminal.
type XLSXWriter struct {
	baseWriter
}

// NewXLSXWriter creates an XLSXWriter that outputs to the given writer.
func NewXLSXWriter(output io.Writer) *XLSXWriter {
	return &XLSXWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write builds the workbook and streams it to the output.
func (w *XLSXWriter) Write(report *model.CrawlReport) (n int, err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	if err := w.buildWorkbook(f, report); err != nil {
		return 0, fmt.Errorf("failed to build workbook: %w", err)
	}

	written, err := f.WriteTo(w.output)
	if err != nil {
		return int(written), fmt.Errorf("failed to write workbook: %w", err)
	}
	return int(written), nil
}

func (w *XLSXWriter) buildWorkbook(f *excelize.File, report *model.CrawlReport) error {
	if err := f.SetSheetName(defaultSheet, ResultsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := w.writeResultsSheet(f, report, bold); err != nil {
		return err
	}
	return w.writeSummarySheet(f, report, bold)
}

func (w *XLSXWriter) writeResultsSheet(f *excelize.File, report *model.CrawlReport, bold int) error {
	if err := f.SetSheetRow(ResultsSheet, "A1", &resultsHeader); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(resultsHeader))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(ResultsSheet, "A1", lastCol+"1", bold); err != nil {
		return err
	}

	for i, res := range report.Results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		var status any = ""
		if res.State == model.StateResolved {
			status = res.StatusCode
		}
		row := []any{
			res.URL,
			string(res.State),
			status,
			res.ContentType,
			res.Location,
			res.Error,
			res.BodyHash,
			res.BodySize,
			res.LinksFound,
		}
		if err := f.SetSheetRow(ResultsSheet, cell, &row); err != nil {
			return err
		}
	}

	return f.SetColWidth(ResultsSheet, "A", "A", 60)
}

func (w *XLSXWriter) writeSummarySheet(f *excelize.File, report *model.CrawlReport, bold int) error {
	s := report.Summary()
	rows := [][]any{
		{"Root", report.Root},
		{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Duration", report.Duration().String()},
		{"Status", reportStatus(report)},
		{"2xx", s.Success},
		{"3xx", s.Redirect},
		{"4xx", s.ClientError},
		{"5xx", s.ServerError},
		{"Other", s.Other},
		{"Failed", s.Failed},
		{"Pending", s.Pending},
		{"Total", s.Total},
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
		if err := f.SetCellStyle(SummarySheet, cell, cell, bold); err != nil {
			return err
		}
	}

	return f.SetColWidth(SummarySheet, "A", "B", 24)
}
