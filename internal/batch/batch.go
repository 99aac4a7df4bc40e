package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/spider/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of roots crawled at once unless
// WithConcurrency says otherwise.
const DefaultConcurrency = 1

// Crawler crawls the site reachable from one root URL.
// *crawler.Spider satisfies this interface.
type Crawler interface {
	Crawl(ctx context.Context, rootURL string) (*model.CrawlReport, error)
}

// CrawlerFactory returns a fresh Crawler for the given root.
// It is called once per root, which lets the caller apply per-site settings.
type CrawlerFactory func(root string) (Crawler, error)

// Result pairs a root with the outcome of crawling it.
type Result struct {
	// Root is the root URL as given to the processor.
	Root string

	// Report is never nil. When the crawl could not start, it carries only
	// the root and Error.
	Report *model.CrawlReport

	// Err is the error returned by the crawl, if any.
	Err error
}

// BatchProcessor runs one crawl per root URL with bounded concurrency.
type BatchProcessor struct {
	factory     CrawlerFactory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Values below one are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor that obtains crawlers from factory.
func NewBatchProcessor(factory CrawlerFactory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// Concurrency returns the configured concurrency limit.
func (bp *BatchProcessor) Concurrency() int {
	return bp.concurrency
}

// ProcessBatch crawls all roots and returns their results in input order.
//
// A failing crawl does not stop the others. Roots that were never started
// because ctx was cancelled have a nil entry. The returned error is ctx's
// error when the batch was cancelled, nil otherwise.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, roots []string) ([]*Result, error) {
	results := make([]*Result, len(roots))
	var mu sync.Mutex

	err := bp.ProcessBatchWithCallback(ctx, roots, func(res *Result, index int) {
		mu.Lock()
		results[index] = res
		mu.Unlock()
	})

	return results, err
}

// ProcessBatchWithCallback crawls all roots and calls callback as each crawl
// finishes. The callback runs on the goroutine that ran the crawl, so it must
// be safe for concurrent use when the concurrency limit is above one.
// A cancelled crawl still reaches the callback with its partial report.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	roots []string,
	callback func(res *Result, index int),
) error {
	bp.logger.Info("starting batch crawl",
		"total_roots", len(roots),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	// Crawl failures are recorded in results; the group never fails, so a
	// plain group with a limit is enough.
	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, root := range roots {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			bp.logger.Info("crawling root",
				"root", root,
				"index", i+1,
				"total", len(roots),
			)

			res := bp.crawlOne(ctx, root)
			callback(res, i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines always return nil

	bp.logger.Info("batch crawl complete",
		"total_roots", len(roots),
		"elapsed", time.Since(startTime),
	)

	return ctx.Err()
}

func (bp *BatchProcessor) crawlOne(ctx context.Context, root string) *Result {
	res := &Result{Root: root}

	c, err := bp.factory(root)
	if err != nil {
		res.Err = fmt.Errorf("failed to create crawler for %s: %w", root, err)
		res.Report = failedReport(root, res.Err)
		bp.logger.Warn("crawl failed", "root", root, "error", res.Err)
		return res
	}

	report, err := c.Crawl(ctx, root)
	res.Err = err
	if report == nil {
		report = failedReport(root, err)
	}
	res.Report = report

	switch {
	case err == nil:
		bp.logger.Info("crawl completed", "root", root, "urls", len(report.Results))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		bp.logger.Warn("crawl interrupted", "root", root, "urls", len(report.Results))
	default:
		bp.logger.Warn("crawl failed", "root", root, "error", err)
	}
	return res
}

func failedReport(root string, err error) *model.CrawlReport {
	report := model.NewCrawlReport(root)
	report.FinishedAt = report.StartedAt
	if err != nil {
		report.Error = err.Error()
	}
	return report
}
