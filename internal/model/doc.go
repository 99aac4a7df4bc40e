// Package model defines the core data structures of the crawler.
//
// This package contains the following main types:
//   - Authority and AbsoluteURL: immutable URL values and the canonical
//     form used as the dedup key
//   - VisitedMap: the per-crawl record of every requested URL
//   - Page: what was learned from one parsed response
//   - CrawlReport: the final result of one crawl
//
// The URL functions are pure and hold no shared state, so they can be used
// from any goroutine. VisitedMap is owned by exactly one crawl.
package model
