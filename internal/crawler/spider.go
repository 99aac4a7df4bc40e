package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/spider/internal/httpwire"
	"github.com/nao1215/spider/internal/model"
	"github.com/nao1215/spider/internal/reactor"
)

// Spider crawls every page reachable from a root URL on the root's
// authority, plus the pages those link to directly on other authorities.
//
// A Spider holds configuration only. Each Crawl call builds its own
// multiplexer and visited map, so one Spider may run several crawls one
// after another, but a single crawl must not be shared between goroutines.
type Spider struct {
	// dialer opens connections. Defaults to NetDialer.
	dialer Dialer

	// extractor finds links in HTML pages. Defaults to HTMLExtractor.
	extractor LinkExtractor

	// logger receives progress events.
	logger *slog.Logger

	// ignorePatterns are URL path patterns that are never requested.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns restrict requests to matching paths when non-empty.
	followPatterns []string

	// maxRequests caps the number of requests per crawl. 0 means unlimited.
	maxRequests int

	// chunkSize is the read size handed to the multiplexer.
	chunkSize int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithDialer replaces the connection dialer.
func WithDialer(d Dialer) SpiderOption {
	return func(s *Spider) {
		s.dialer = d
	}
}

// WithLinkExtractor replaces the HTML link extractor.
func WithLinkExtractor(e LinkExtractor) SpiderOption {
	return func(s *Spider) {
		s.extractor = e
	}
}

// WithLogger sets the logger for progress events.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
// The root URL is always requested.
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are requested.
// Empty slice means all URLs are allowed (default behavior).
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithMaxRequests caps how many URLs a crawl requests. 0 means unlimited.
func WithMaxRequests(n int) SpiderOption {
	return func(s *Spider) {
		s.maxRequests = n
	}
}

// WithChunkSize sets how many bytes are read from a socket at a time.
func WithChunkSize(n int) SpiderOption {
	return func(s *Spider) {
		s.chunkSize = n
	}
}

// NewSpider creates a Spider that dials real TCP connections.
func NewSpider(opts ...SpiderOption) *Spider {
	s := &Spider{
		dialer:    NetDialer{},
		extractor: HTMLExtractor{},
		logger:    slog.New(slog.DiscardHandler),
		chunkSize: reactor.DefaultChunkSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// action is what happens after a response has been recorded.
type action int

const (
	actionLeaf action = iota
	actionParseLinks
	actionFollowRedirect
)

// statusActions maps status codes to actions. Codes not listed are leaves.
var statusActions = map[int]action{
	200: actionParseLinks,
	301: actionFollowRedirect,
	302: actionFollowRedirect,
}

func actionFor(statusCode int) action {
	if a, ok := statusActions[statusCode]; ok {
		return a
	}
	return actionLeaf
}

// crawl is the state of one Crawl call. It is only touched from the
// goroutine running the multiplexer.
type crawl struct {
	spider   *Spider
	ctx      context.Context
	root     model.AbsoluteURL
	mux      *reactor.Multiplexer
	visited  *model.VisitedMap
	pages    map[string]*model.Page
	requests int
}

// Crawl requests rootURL and everything reachable from it, and returns the
// outcome of every request that was issued.
//
// A URL without a scheme or authority, such as "/x", is not a valid root.
// Individual request failures never abort the crawl; they appear in the
// report as failed results. When ctx is cancelled the partial report is
// returned, marked Cancelled, together with ctx.Err().
func (s *Spider) Crawl(ctx context.Context, rootURL string) (*model.CrawlReport, error) {
	root, err := model.Resolve(rootURL, model.Authority{})
	if err != nil {
		return nil, fmt.Errorf("invalid root URL %q: %w", rootURL, err)
	}

	mux, err := reactor.New(
		reactor.WithChunkSize(s.chunkSize),
		reactor.WithLogger(s.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create multiplexer: %w", err)
	}
	defer mux.Close()

	c := &crawl{
		spider:  s,
		ctx:     ctx,
		root:    root,
		mux:     mux,
		visited: model.NewVisitedMap(),
		pages:   make(map[string]*model.Page),
	}
	report := model.NewCrawlReport(root.String())

	c.request(root)
	runErr := mux.Run(ctx)
	report.FinishedAt = time.Now()
	report.Results = c.results()

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(runErr, ctxErr) {
			report.Cancelled = true
			s.logger.Warn("crawl cancelled",
				"root", report.Root,
				"requested", c.visited.Len(),
				"pending", c.visited.PendingCount())
			return report, ctxErr
		}
		report.Error = runErr.Error()
		return report, fmt.Errorf("crawl %s: %w", report.Root, runErr)
	}

	s.logger.Info("crawl finished",
		"root", report.Root,
		"requested", c.visited.Len(),
		"duration", report.Duration())
	return report, nil
}

// maybeRequest resolves raw against base and requests it unless it is
// rejected, filtered, already known or over the request limit.
func (c *crawl) maybeRequest(raw string, base model.Authority) {
	logger := c.spider.logger

	target, err := model.Resolve(raw, base)
	if err != nil {
		logger.Debug("skipping link", "href", raw, "error", err)
		return
	}
	key := target.String()
	if c.visited.Has(key) {
		return
	}
	if !c.spider.shouldCrawl(target.Path()) {
		logger.Debug("skipping filtered link", "url", key)
		return
	}
	if c.spider.maxRequests > 0 && c.requests >= c.spider.maxRequests {
		logger.Debug("request limit reached", "url", key, "limit", c.spider.maxRequests)
		return
	}
	c.request(target)
}

// request issues a GET for target and registers its socket.
func (c *crawl) request(target model.AbsoluteURL) {
	key := target.String()
	if !c.visited.MarkPending(key) {
		return
	}
	c.requests++
	c.spider.logger.Info("requesting", "url", key)

	sock, err := c.spider.dialer.Dial(c.ctx, target.Authority())
	if err != nil {
		c.fail(key, err)
		return
	}

	req := httpwire.FormatRequest(target.Authority().Host(), target.Path())
	if err := c.mux.Send(sock, req, func(buf []byte, err error) {
		c.handleResponse(target, buf, err)
	}); err != nil {
		_ = sock.Close()
		c.fail(key, err)
	}
}

func (c *crawl) fail(key string, err error) {
	c.spider.logger.Warn("request failed", "url", key, "error", err)
	c.visited.Fail(key, err)
}

// handleResponse records the outcome of target and runs its action.
func (c *crawl) handleResponse(target model.AbsoluteURL, buf []byte, readErr error) {
	key := target.String()
	if readErr != nil {
		c.fail(key, fmt.Errorf("exchange with %s: %w", target.Authority(), readErr))
		return
	}

	resp, err := httpwire.ParseResponse(buf)
	if err != nil {
		c.spider.logger.Warn("malformed response", "url", key, "bytes", len(buf), "error", err)
		c.visited.Fail(key, err)
		return
	}

	page := &model.Page{
		URL:         key,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Location:    resp.Header.Get("Location"),
	}
	page.ComputeHash(resp.Body)
	c.pages[key] = page
	c.visited.Resolve(key, resp.StatusCode)
	c.spider.logger.Info("got response", "url", key, "status", resp.StatusCode, "bytes", len(buf))

	switch actionFor(resp.StatusCode) {
	case actionParseLinks:
		c.parseLinks(target, page, resp)
	case actionFollowRedirect:
		c.followRedirect(target, resp)
	case actionLeaf:
	}
}

// parseLinks follows the links of an in-scope HTML page.
func (c *crawl) parseLinks(target model.AbsoluteURL, page *model.Page, resp *httpwire.Response) {
	if !model.SameAuthority(target.Authority(), c.root.Authority()) || !page.IsHTML() {
		return
	}

	links, err := c.spider.extractor.ExtractLinks(resp.Body, page.ContentType)
	if err != nil {
		c.spider.logger.Warn("link extraction failed", "url", page.URL, "error", err)
		return
	}
	page.LinksFound = len(links)
	for _, href := range links {
		c.maybeRequest(href, target.Authority())
	}
}

func (c *crawl) followRedirect(target model.AbsoluteURL, resp *httpwire.Response) {
	location := resp.Header.Get("Location")
	if location == "" {
		c.spider.logger.Warn("redirect without location", "url", target.String(), "status", resp.StatusCode)
		return
	}
	if hasSkippedScheme(location) {
		c.spider.logger.Debug("skipping redirect", "url", target.String(), "location", location)
		return
	}
	c.maybeRequest(location, target.Authority())
}

// results builds report rows in request order.
func (c *crawl) results() []model.Result {
	results := make([]model.Result, 0, c.visited.Len())
	for _, key := range c.visited.Keys() {
		outcome, _ := c.visited.Get(key)
		res := model.Result{
			URL:        key,
			State:      outcome.State,
			StatusCode: outcome.StatusCode,
			Error:      outcome.Err,
		}
		if page, ok := c.pages[key]; ok {
			res.ContentType = page.ContentType
			res.Location = page.Location
			res.BodyHash = page.BodyHash
			res.BodySize = page.BodySize
			res.LinksFound = page.LinksFound
		}
		results = append(results, res)
	}
	return results
}

// shouldCrawl checks if a path should be requested based on ignore/follow patterns.
//
// Logic:
//  1. If the path matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and the path matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func (s *Spider) shouldCrawl(path string) bool {
	path = stripQuery(path)

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// stripQuery drops a query string or fragment so patterns see the bare path.
func stripQuery(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		ext := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a slash also apply to the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
