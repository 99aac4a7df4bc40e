package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/spider/internal/model"
)

type mockCrawler struct {
	crawlFunc func(ctx context.Context, root string) (*model.CrawlReport, error)
}

func (m *mockCrawler) Crawl(ctx context.Context, root string) (*model.CrawlReport, error) {
	return m.crawlFunc(ctx, root)
}

func okFactory(counter *atomic.Int32) CrawlerFactory {
	return func(string) (Crawler, error) {
		return &mockCrawler{crawlFunc: func(_ context.Context, root string) (*model.CrawlReport, error) {
			if counter != nil {
				counter.Add(1)
			}
			report := model.NewCrawlReport(root)
			report.Results = append(report.Results, model.Result{URL: root, State: model.StateResolved, StatusCode: 200})
			report.FinishedAt = time.Now()
			return report, nil
		}}, nil
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNewBatchProcessor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []BatchOption
		want int
	}{
		{"defaults to sequential", nil, DefaultConcurrency},
		{"applies WithConcurrency", []BatchOption{WithConcurrency(4)}, 4},
		{"ignores non-positive concurrency", []BatchOption{WithConcurrency(0)}, DefaultConcurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bp := NewBatchProcessor(okFactory(nil), tt.opts...)
			if bp.Concurrency() != tt.want {
				t.Errorf("expected concurrency %d, got %d", tt.want, bp.Concurrency())
			}
			if bp.logger == nil {
				t.Error("expected non-nil logger")
			}
		})
	}
}

func TestBatchProcessor_ProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("crawls every root in order", func(t *testing.T) {
		t.Parallel()

		var count atomic.Int32
		bp := NewBatchProcessor(okFactory(&count), WithBatchLogger(quietLogger()))
		roots := []string{"http://a.test/", "http://b.test/", "http://c.test/"}

		results, err := bp.ProcessBatch(context.Background(), roots)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count.Load() != 3 {
			t.Errorf("expected 3 crawls, got %d", count.Load())
		}
		for i, res := range results {
			if res == nil {
				t.Fatalf("result %d is nil", i)
			}
			if res.Root != roots[i] || res.Report.Root != roots[i] {
				t.Errorf("result %d has root %q, want %q", i, res.Root, roots[i])
			}
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		factory := func(string) (Crawler, error) {
			return &mockCrawler{crawlFunc: func(_ context.Context, root string) (*model.CrawlReport, error) {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				current.Add(-1)
				return model.NewCrawlReport(root), nil
			}}, nil
		}

		bp := NewBatchProcessor(factory, WithConcurrency(2), WithBatchLogger(quietLogger()))
		roots := []string{"http://a.test/", "http://b.test/", "http://c.test/", "http://d.test/", "http://e.test/"}

		if _, err := bp.ProcessBatch(context.Background(), roots); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent crawls, saw %d", peak.Load())
		}
	})

	t.Run("failed crawl does not stop the others", func(t *testing.T) {
		t.Parallel()

		errDial := errors.New("dial failed")
		factory := func(string) (Crawler, error) {
			return &mockCrawler{crawlFunc: func(_ context.Context, root string) (*model.CrawlReport, error) {
				if root == "http://bad.test/" {
					return nil, errDial
				}
				return model.NewCrawlReport(root), nil
			}}, nil
		}

		bp := NewBatchProcessor(factory, WithBatchLogger(quietLogger()))
		results, err := bp.ProcessBatch(context.Background(), []string{"http://bad.test/", "http://good.test/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !errors.Is(results[0].Err, errDial) {
			t.Errorf("expected dial error, got %v", results[0].Err)
		}
		if results[0].Report == nil || results[0].Report.Error != "dial failed" {
			t.Errorf("expected placeholder report with error, got %+v", results[0].Report)
		}
		if results[1].Err != nil {
			t.Errorf("expected second crawl to succeed, got %v", results[1].Err)
		}
	})

	t.Run("factory error is recorded", func(t *testing.T) {
		t.Parallel()

		errConfig := errors.New("bad config")
		factory := func(string) (Crawler, error) { return nil, errConfig }

		bp := NewBatchProcessor(factory, WithBatchLogger(quietLogger()))
		results, err := bp.ProcessBatch(context.Background(), []string{"http://a.test/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !errors.Is(results[0].Err, errConfig) {
			t.Errorf("expected factory error, got %v", results[0].Err)
		}
	})

	t.Run("cancelled context skips remaining roots", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		factory := func(string) (Crawler, error) {
			return &mockCrawler{crawlFunc: func(ctx context.Context, root string) (*model.CrawlReport, error) {
				cancel()
				report := model.NewCrawlReport(root)
				report.Cancelled = true
				return report, ctx.Err()
			}}, nil
		}

		bp := NewBatchProcessor(factory, WithBatchLogger(quietLogger()))
		results, err := bp.ProcessBatch(ctx, []string{"http://a.test/", "http://b.test/"})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if results[0] == nil || !results[0].Report.Cancelled {
			t.Error("expected partial report for the interrupted root")
		}
		if results[1] != nil {
			t.Error("expected the second root to be skipped")
		}
	})
}

func TestBatchProcessor_ProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := make(map[int]string)

	bp := NewBatchProcessor(okFactory(nil), WithConcurrency(3), WithBatchLogger(quietLogger()))
	roots := []string{"http://a.test/", "http://b.test/", "http://c.test/"}

	err := bp.ProcessBatchWithCallback(context.Background(), roots, func(res *Result, index int) {
		mu.Lock()
		defer mu.Unlock()
		seen[index] = res.Report.Root
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seen) != len(roots) {
		t.Fatalf("expected %d callbacks, got %d", len(roots), len(seen))
	}
	for i, root := range roots {
		if seen[i] != root {
			t.Errorf("index %d reported %q, want %q", i, seen[i], root)
		}
	}
}
