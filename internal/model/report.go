package model

import (
	"strconv"
	"time"
)

// CrawlReport is the result of crawling from one root URL.
// It is serialized to JSON for report output and database storage.
type CrawlReport struct {
	// ID is the database identifier. Zero until the report is stored.
	ID int64 `json:"id,omitempty"`

	// Root is the canonical root URL.
	Root string `json:"root"`

	// StartedAt is when the first request was issued.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the event loop returned.
	FinishedAt time.Time `json:"finished_at"`

	// Cancelled is true when the crawl was interrupted before the
	// multiplexer ran out of sockets. Results may contain pending entries.
	Cancelled bool `json:"cancelled,omitempty"`

	// Error is set when the crawl itself could not run.
	Error string `json:"error,omitempty"`

	// Results lists every requested URL in the order it was discovered.
	Results []Result `json:"results"`
}

// Result is the final state of one requested URL.
type Result struct {
	// URL is the canonical URL.
	URL string `json:"url"`

	// State is resolved, failed or (only after cancellation) pending.
	State State `json:"state"`

	// StatusCode is set for resolved URLs.
	StatusCode int `json:"status_code,omitempty"`

	// Error describes why a failed URL failed.
	Error string `json:"error,omitempty"`

	// ContentType is the Content-Type header of the response.
	ContentType string `json:"content_type,omitempty"`

	// Location is the Location header of a redirect response.
	Location string `json:"location,omitempty"`

	// BodyHash is the SHA3-256 digest of the response body.
	BodyHash string `json:"body_hash,omitempty"`

	// BodySize is the response body length in bytes.
	BodySize int `json:"body_size,omitempty"`

	// LinksFound is the number of distinct hrefs extracted from an in-scope
	// HTML page. Zero for pages that were not scanned.
	LinksFound int `json:"links_found,omitempty"`
}

// NewCrawlReport creates an empty report for the given root.
func NewCrawlReport(root string) *CrawlReport {
	return &CrawlReport{
		Root:      root,
		StartedAt: time.Now(),
		Results:   make([]Result, 0),
	}
}

// Duration returns how long the crawl ran.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StatusOf returns the result recorded for url.
func (r *CrawlReport) StatusOf(url string) (Result, bool) {
	for _, res := range r.Results {
		if res.URL == url {
			return res, true
		}
	}
	return Result{}, false
}

// StatusText renders the outcome the way the text report prints it:
// the status code for resolved URLs, FAILED or PENDING otherwise.
func (res Result) StatusText() string {
	switch res.State {
	case StateResolved:
		return strconv.Itoa(res.StatusCode)
	case StateFailed:
		return "FAILED"
	default:
		return "PENDING"
	}
}

// Summary counts results by outcome.
type Summary struct {
	Total       int `json:"total"`
	Success     int `json:"success"`
	Redirect    int `json:"redirect"`
	ClientError int `json:"client_error"`
	ServerError int `json:"server_error"`
	Other       int `json:"other"`
	Failed      int `json:"failed"`
	Pending     int `json:"pending"`
}

// Summary computes the outcome counts of the report.
func (r *CrawlReport) Summary() Summary {
	s := Summary{Total: len(r.Results)}
	for _, res := range r.Results {
		switch res.State {
		case StateFailed:
			s.Failed++
			continue
		case StatePending:
			s.Pending++
			continue
		case StateResolved:
		}
		switch StatusClass(res.StatusCode) {
		case "2xx":
			s.Success++
		case "3xx":
			s.Redirect++
		case "4xx":
			s.ClientError++
		case "5xx":
			s.ServerError++
		default:
			s.Other++
		}
	}
	return s
}

// Resolved returns the number of URLs that received a response.
func (s Summary) Resolved() int {
	return s.Success + s.Redirect + s.ClientError + s.ServerError + s.Other
}

// StatusClass returns "2xx", "3xx", "4xx" or "5xx" for the code,
// and "other" for anything outside 200-599.
func StatusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "other"
	}
}
