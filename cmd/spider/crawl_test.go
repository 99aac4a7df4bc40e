package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/spider/internal/config"
	"github.com/nao1215/spider/internal/database"
	"github.com/nao1215/spider/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newTestSite serves a root page linking to /about and /missing.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/about">about</a> <a href="/missing">x</a></body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "about")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, targets ...string) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Targets = targets
	cfg.DBDir = t.TempDir()
	cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	return cfg
}

func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{"batch", "b", "1"},
		{"max-requests", "n", "0"},
		{"chunk-size", "", "4096"},
		{"config", "c", ""},
		{"json", "j", "false"},
		{"markdown", "m", "false"},
		{"xlsx", "x", "false"},
		{"output", "o", ""},
		{"no-db", "", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.def {
				t.Errorf("expected default %q, got %q", tt.def, flag.DefValue)
			}
		})
	}
}

func TestNormalizeRoot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"example.com", "http://example.com"},
		{"example.com:8080/docs", "http://example.com:8080/docs"},
		{"http://example.com/", "http://example.com/"},
		{"https://example.com/", "https://example.com/"},
		{"  example.com  ", "http://example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := normalizeRoot(tt.in); got != tt.want {
				t.Errorf("normalizeRoot(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestXLSXPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		base         string
		index, total int
		want         string
	}{
		{"out/report.xlsx", 0, 1, "out/report.xlsx"},
		{"out/report.xlsx", 0, 2, "out/report-1.xlsx"},
		{"out/report.xlsx", 1, 2, "out/report-2.xlsx"},
		{"report", 2, 3, "report-3"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := xlsxPath(tt.base, tt.index, tt.total); got != tt.want {
				t.Errorf("xlsxPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("reads flags and config file", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "spider.yaml")
		content := "defaults:\n  maxRequests: 20\nsites:\n  \"example.com\":\n    ignorePatterns:\n      - \"*.pdf\"\n"
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-b", "3", "-n", "7", "--chunk-size", "512", "-j", "--no-db", "-c", configPath}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd, []string{"example.com", "http://example.org/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.BatchSize != 3 || cfg.MaxRequests != 7 || cfg.ChunkSize != 512 {
			t.Errorf("unexpected numeric settings: %+v", cfg)
		}
		if !cfg.JSONReport || cfg.SaveToDB {
			t.Errorf("expected json output without database, got %+v", cfg)
		}
		if cfg.Targets[0] != "http://example.com" || cfg.Targets[1] != "http://example.org/" {
			t.Errorf("unexpected targets %v", cfg.Targets)
		}

		site := cfg.SiteConfigFor("example.com")
		if len(site.IgnorePatterns) != 1 || site.MaxRequests != 20 {
			t.Errorf("unexpected site config %+v", site)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", filepath.Join(t.TempDir(), "absent.yaml")}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		_, err := buildConfig(cmd, []string{"example.com"})
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

func TestRunCrawlCmd_ValidationError(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"crawl", "-j", "-m", "--no-db", "-c", os.DevNull, "example.com"})

	err := cmd.Execute()
	if !errors.Is(err, config.ErrConflictingReportFormats) {
		t.Errorf("expected ErrConflictingReportFormats, got %v", err)
	}
}

func TestNewSpiderFactory(t *testing.T) {
	t.Parallel()

	t.Run("rejects root without authority", func(t *testing.T) {
		t.Parallel()

		factory := newSpiderFactory(testConfig(t), quietLogger())
		if _, err := factory("/just/a/path"); !errors.Is(err, model.ErrRejected) {
			t.Errorf("expected ErrRejected, got %v", err)
		}
	})

	t.Run("applies site request limit", func(t *testing.T) {
		t.Parallel()

		srv := newTestSite(t)
		cfg := testConfig(t)
		authority := strings.TrimPrefix(srv.URL, "http://")
		cfg.SiteConfigs.Sites[authority] = config.SiteConfig{MaxRequests: 1}

		c, err := newSpiderFactory(cfg, quietLogger())(srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		report, err := c.Crawl(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if len(report.Results) != 1 {
			t.Errorf("expected only the root to be requested, got %d results", len(report.Results))
		}
	})
}

func TestRunCrawl(t *testing.T) {
	t.Parallel()

	t.Run("prints mapping and stores report", func(t *testing.T) {
		t.Parallel()

		srv := newTestSite(t)
		cfg := testConfig(t, srv.URL)

		var stdout, progress bytes.Buffer
		if err := runCrawl(context.Background(), cfg, quietLogger(), &stdout, &progress); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := stdout.String()
		for _, line := range []string{
			srv.URL + "/ -> 200",
			srv.URL + "/about -> 200",
			srv.URL + "/missing -> 404",
		} {
			if !strings.Contains(output, line) {
				t.Errorf("expected output to contain %q\n%s", line, output)
			}
		}
		if !strings.Contains(progress.String(), "[1/1]") {
			t.Errorf("expected progress line, got %q", progress.String())
		}

		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		stored, err := db.GetLatestCrawlReport(context.Background(), srv.URL+"/")
		if err != nil || stored == nil {
			t.Fatalf("expected stored report, got %v, %v", stored, err)
		}
		if len(stored.Results) != 3 {
			t.Errorf("expected 3 stored results, got %d", len(stored.Results))
		}
	})

	t.Run("writes json report to file", func(t *testing.T) {
		t.Parallel()

		srv := newTestSite(t)
		cfg := testConfig(t, srv.URL)
		cfg.SaveToDB = false
		cfg.JSONReport = true
		cfg.ReportFile = filepath.Join(t.TempDir(), "out", "report.json")

		var stdout bytes.Buffer
		if err := runCrawl(context.Background(), cfg, quietLogger(), &stdout, &bytes.Buffer{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout.Len() != 0 {
			t.Errorf("expected nothing on stdout, got %q", stdout.String())
		}

		data, err := os.ReadFile(cfg.ReportFile)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		var parsed model.CrawlReport
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("report is not JSON: %v", err)
		}
		if parsed.Root != srv.URL+"/" || len(parsed.Results) != 3 {
			t.Errorf("unexpected report %+v", parsed)
		}
	})

	t.Run("writes one spreadsheet per root", func(t *testing.T) {
		t.Parallel()

		srv1, srv2 := newTestSite(t), newTestSite(t)
		cfg := testConfig(t, srv1.URL, srv2.URL)
		cfg.SaveToDB = false
		cfg.XLSXReport = true
		cfg.BatchSize = 2
		cfg.ReportFile = filepath.Join(t.TempDir(), "report.xlsx")

		if err := runCrawl(context.Background(), cfg, quietLogger(), &bytes.Buffer{}, &bytes.Buffer{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, name := range []string{"report-1.xlsx", "report-2.xlsx"} {
			info, err := os.Stat(filepath.Join(filepath.Dir(cfg.ReportFile), name))
			if err != nil {
				t.Errorf("expected %s: %v", name, err)
				continue
			}
			if info.Size() == 0 {
				t.Errorf("%s is empty", name)
			}
		}
	})

	t.Run("unreachable root is reported as failed", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		cfg := testConfig(t, url)
		cfg.SaveToDB = false

		var stdout bytes.Buffer
		if err := runCrawl(context.Background(), cfg, quietLogger(), &stdout, &bytes.Buffer{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout.String(), url+"/ -> FAILED") {
			t.Errorf("expected FAILED root, got:\n%s", stdout.String())
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t, "http://example.com/")
		cfg.SaveToDB = false

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := runCrawl(ctx, cfg, quietLogger(), &bytes.Buffer{}, &bytes.Buffer{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
