package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for spider.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spider",
		Short: "Single-threaded non-blocking web crawler",
		Long: `spider crawls a web site starting from a root URL.

Every page of the root's authority is fetched with a minimal HTTP/1.0 GET,
links of text/html pages are followed, 301/302 redirects are followed, and
links to other authorities are requested once without descending further.
All sockets are driven by a single readiness loop.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write log output as JSON")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
