// Package report renders crawl reports.
//
// Writers for the supported formats:
//   - SimpleWriter: one "url -> status" line per requested URL
//   - JSONWriter: the report as JSON for tool integration
//   - MarkdownWriter: tables and a mermaid pie chart of status classes
//   - XLSXWriter: a spreadsheet with Results and Summary sheets
//
// All writers implement Writer and can be combined with MultiWriter.
package report
