// Package config provides configuration structures and utilities for spider.
// It defines the crawl limits, report output preferences and the optional
// per-site settings read from a .spider YAML file.
package config
