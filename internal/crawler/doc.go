// Package crawler implements the crawl engine.
//
// # Architecture
//
// A Spider crawls from one root URL using a single goroutine. Every request
// is a fresh HTTP/1.0 connection registered with a reactor.Multiplexer;
// responses are handled in the multiplexer's completion callbacks, which
// may issue further requests. The crawl ends when no connection is left.
//
// # Per-URL lifecycle
//
// Each canonical URL moves through Unseen, Pending and then Resolved or
// Failed. A URL is marked Pending before its connection is opened, so a
// link that reappears while the first request is in flight is never
// fetched twice. Nothing is ever removed from the visited map.
//
// # Response handling
//
// The status code selects one action from a fixed table:
//
//   - 200: if the page shares the root's authority and its Content-Type is
//     exactly text/html, links are extracted and followed
//   - 301, 302: the Location header is followed
//   - anything else: nothing further
//
// Pages on other authorities are fetched when linked but never scanned, so
// the crawl reaches exactly one hop outside the root site.
//
// # Components
//
//   - Spider: the engine and its options
//   - Dialer: opens connections; NetDialer is the TCP implementation
//   - LinkExtractor: pulls href values out of HTML; HTMLExtractor uses goquery
//
// # Usage
//
//	spider := crawler.NewSpider(crawler.WithLogger(logger))
//	report, err := spider.Crawl(ctx, "http://example.com/")
package crawler
