package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default BatchSize is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 1 {
			t.Errorf("expected BatchSize to be 1, got %d", cfg.BatchSize)
		}
	})

	t.Run("default MaxRequests is unlimited", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxRequests != 0 {
			t.Errorf("expected MaxRequests to be 0, got %d", cfg.MaxRequests)
		}
	})

	t.Run("default ChunkSize is 4096", func(t *testing.T) {
		t.Parallel()
		if cfg.ChunkSize != 4096 {
			t.Errorf("expected ChunkSize to be 4096, got %d", cfg.ChunkSize)
		}
	})

	t.Run("reports are stored in the XDG data dir", func(t *testing.T) {
		t.Parallel()
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB to be true")
		}
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir %q, got %q", XDGDataDir(), cfg.DBDir)
		}
	})

	t.Run("defaults pass validation once a target is set", func(t *testing.T) {
		t.Parallel()
		c := NewConfig()
		c.Targets = []string{"http://example.com/"}
		if err := c.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		return &Config{
			Targets:   []string{"http://example.com/"},
			BatchSize: 1,
			ChunkSize: 4096,
		}
	}

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr error
	}{
		{
			name:   "valid config returns nil",
			modify: func(_ *Config) {},
		},
		{
			name:   "multiple targets is valid",
			modify: func(c *Config) { c.Targets = []string{"http://a.test/", "http://b.test/"} },
		},
		{
			name:    "empty targets returns ErrNoTarget",
			modify:  func(c *Config) { c.Targets = []string{} },
			wantErr: ErrNoTarget,
		},
		{
			name:    "nil targets returns ErrNoTarget",
			modify:  func(c *Config) { c.Targets = nil },
			wantErr: ErrNoTarget,
		},
		{
			name:    "zero batch size returns ErrInvalidBatchSize",
			modify:  func(c *Config) { c.BatchSize = 0 },
			wantErr: ErrInvalidBatchSize,
		},
		{
			name:    "negative chunk size returns ErrInvalidChunkSize",
			modify:  func(c *Config) { c.ChunkSize = -1 },
			wantErr: ErrInvalidChunkSize,
		},
		{
			name:    "negative max requests returns ErrInvalidMaxRequests",
			modify:  func(c *Config) { c.MaxRequests = -5 },
			wantErr: ErrInvalidMaxRequests,
		},
		{
			name:   "positive max requests is valid",
			modify: func(c *Config) { c.MaxRequests = 10 },
		},
		{
			name: "json and markdown conflict",
			modify: func(c *Config) {
				c.JSONReport = true
				c.MarkdownReport = true
			},
			wantErr: ErrConflictingReportFormats,
		},
		{
			name: "markdown and xlsx conflict",
			modify: func(c *Config) {
				c.MarkdownReport = true
				c.XLSXReport = true
				c.ReportFile = "out.xlsx"
			},
			wantErr: ErrConflictingReportFormats,
		},
		{
			name:    "xlsx without output file",
			modify:  func(c *Config) { c.XLSXReport = true },
			wantErr: ErrXLSXRequiresOutput,
		},
		{
			name: "xlsx with output file",
			modify: func(c *Config) {
				c.XLSXReport = true
				c.ReportFile = "out.xlsx"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestFileGetSiteConfig tests merging of defaults and site sections.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	file := &File{
		Defaults: SiteConfig{
			IgnorePatterns: []string{"*.pdf"},
			MaxRequests:    50,
		},
		Sites: map[string]SiteConfig{
			"example.com": {
				FollowPatterns: []string{"/docs/*"},
			},
			"example.com:8080": {
				IgnorePatterns: []string{"/admin/*"},
				MaxRequests:    5,
			},
		},
	}

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()

		cfg := file.GetSiteConfig("unknown.test")
		if cfg.MaxRequests != 50 {
			t.Errorf("expected max requests 50, got %d", cfg.MaxRequests)
		}
		if len(cfg.IgnorePatterns) != 1 || cfg.IgnorePatterns[0] != "*.pdf" {
			t.Errorf("expected default ignore patterns, got %v", cfg.IgnorePatterns)
		}
	})

	t.Run("keeps defaults for fields the site leaves empty", func(t *testing.T) {
		t.Parallel()

		cfg := file.GetSiteConfig("example.com")
		if cfg.MaxRequests != 50 {
			t.Errorf("expected max requests 50, got %d", cfg.MaxRequests)
		}
		if len(cfg.FollowPatterns) != 1 || cfg.FollowPatterns[0] != "/docs/*" {
			t.Errorf("expected site follow patterns, got %v", cfg.FollowPatterns)
		}
		if len(cfg.IgnorePatterns) != 1 {
			t.Errorf("expected default ignore patterns, got %v", cfg.IgnorePatterns)
		}
	})

	t.Run("authority keys include the port", func(t *testing.T) {
		t.Parallel()

		cfg := file.GetSiteConfig("example.com:8080")
		if cfg.MaxRequests != 5 {
			t.Errorf("expected max requests 5, got %d", cfg.MaxRequests)
		}
		if len(cfg.IgnorePatterns) != 1 || cfg.IgnorePatterns[0] != "/admin/*" {
			t.Errorf("expected site ignore patterns, got %v", cfg.IgnorePatterns)
		}
	})
}

func TestConfigSiteConfigFor(t *testing.T) {
	t.Parallel()

	t.Run("falls back to the global limit", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.MaxRequests = 20
		if got := cfg.SiteConfigFor("example.com").MaxRequests; got != 20 {
			t.Errorf("expected 20, got %d", got)
		}
	})

	t.Run("site limit wins over the global limit", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.MaxRequests = 20
		cfg.SiteConfigs = &File{Sites: map[string]SiteConfig{"example.com": {MaxRequests: 3}}}
		if got := cfg.SiteConfigFor("example.com").MaxRequests; got != 3 {
			t.Errorf("expected 3, got %d", got)
		}
	})
}

// TestLoadConfigFile tests loading the YAML config file.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	writeConfig := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), ".spider")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		return path
	}

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.spider")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `defaults:
  maxRequests: 100
  ignorePatterns:
    - "*.pdf"
sites:
  "example.com:8080":
    maxRequests: 10
    followPatterns:
      - "/api/*"
`)

		cfg, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Defaults.MaxRequests != 100 {
			t.Errorf("expected default max requests 100, got %d", cfg.Defaults.MaxRequests)
		}
		site, ok := cfg.Sites["example.com:8080"]
		if !ok {
			t.Fatal("expected example.com:8080 in sites")
		}
		if site.MaxRequests != 10 {
			t.Errorf("expected site max requests 10, got %d", site.MaxRequests)
		}
		if len(site.FollowPatterns) != 1 || site.FollowPatterns[0] != "/api/*" {
			t.Errorf("unexpected follow patterns %v", site.FollowPatterns)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `invalid: yaml: content: [}`)
		_, err := LoadConfigFile(path)
		if err == nil {
			t.Fatal("expected error for invalid YAML")
		}
		if !strings.Contains(err.Error(), path) {
			t.Errorf("expected error to name the file, got %v", err)
		}
	})

	t.Run("rejects a malformed glob", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `sites:
  example.com:
    ignorePatterns:
      - "/[broken"
`)
		_, err := LoadConfigFile(path)
		if !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("expected ErrInvalidPattern, got %v", err)
		}
	})

	t.Run("rejects a negative request limit", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `defaults:
  maxRequests: -1
`)
		_, err := LoadConfigFile(path)
		if !errors.Is(err, ErrInvalidMaxRequests) {
			t.Errorf("expected ErrInvalidMaxRequests, got %v", err)
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `defaults:
  maxRequests: 25
`)
		cfg, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{
		"data":   XDGDataDir(),
		"config": XDGConfigDir(),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if filepath.Base(dir) != AppName {
				t.Errorf("expected %s dir to end in %q, got %q", name, AppName, dir)
			}
		})
	}
}
