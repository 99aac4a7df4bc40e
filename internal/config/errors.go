package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
var (
	// ErrNoTarget is returned when no root URL is given.
	ErrNoTarget = errors.New("no target specified: provide at least one root URL")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidChunkSize is returned when the read chunk size is not positive.
	ErrInvalidChunkSize = errors.New("invalid chunk size: must be positive")

	// ErrInvalidMaxRequests is returned when the request limit is negative.
	// Use 0 for no limit.
	ErrInvalidMaxRequests = errors.New("invalid max requests: must be non-negative")

	// ErrConflictingReportFormats is returned when more than one of --json,
	// --markdown and --xlsx is specified. Only one output format can be used
	// at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json, --markdown and --xlsx cannot be used together")

	// ErrXLSXRequiresOutput is returned when --xlsx is given without --output.
	// A spreadsheet is binary and is never written to stdout.
	ErrXLSXRequiresOutput = errors.New("xlsx report requires --output")
)
