// Package main provides the entry point for the spider CLI.
//
// spider crawls a web site over plain HTTP/1.0 from one or more root URLs
// and prints the status code of every URL it requested.
//
// Usage:
//
//	spider crawl http://example.com/
//	spider compare http://example.com/
//
// See --help for all available options.
package main

func main() {
	Execute()
}
