package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	if cmd.Use != "spider" {
		t.Errorf("expected use 'spider', got %q", cmd.Use)
	}
	if cmd.Short == "" || cmd.Long == "" {
		t.Error("expected non-empty descriptions")
	}
	if cmd.Version == "" {
		t.Error("expected non-empty version")
	}

	flag := cmd.PersistentFlags().Lookup("verbose")
	if flag == nil {
		t.Fatal("expected verbose flag")
	}
	if flag.Shorthand != "v" || flag.DefValue != "false" {
		t.Errorf("unexpected verbose flag %q/%q", flag.Shorthand, flag.DefValue)
	}

	want := map[string]bool{"crawl": false, "compare": false, "init": false, "version": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected %s subcommand", name)
		}
	}
}

func TestGetVerboseFlag(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	if err := root.PersistentFlags().Set("verbose", "true"); err != nil {
		t.Fatal(err)
	}

	crawl, _, err := root.Find([]string{"crawl"})
	if err != nil {
		t.Fatalf("failed to find crawl command: %v", err)
	}
	if !getVerboseFlag(crawl) {
		t.Error("expected verbose to be inherited from the root command")
	}

	if getVerboseFlag(NewInitCmd()) {
		t.Error("expected false for a command without the flag")
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		jsonFlag bool
		want     string
	}{
		{name: "text by default", jsonFlag: false, want: "level=WARN"},
		{name: "json when requested", jsonFlag: true, want: `"level":"WARN"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := NewRootCmd()
			if tt.jsonFlag {
				if err := root.PersistentFlags().Set("log-json", "true"); err != nil {
					t.Fatal(err)
				}
			}
			crawl, _, err := root.Find([]string{"crawl"})
			if err != nil {
				t.Fatalf("failed to find crawl command: %v", err)
			}
			var buf bytes.Buffer
			crawl.SetErr(&buf)

			newLogger(crawl, false).Warn("request failed", "url", "http://x.test/")
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, buf.String())
			}
		})
	}
}
