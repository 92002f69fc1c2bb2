package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate().
//
// Design decision: We use package-level sentinel errors so callers can use
// errors.Is() while the messages stay human-readable.
var (
	// ErrNoTarget is returned when no domain is given.
	ErrNoTarget = errors.New("no target specified: provide at least one domain")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the fetch pool width is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxCandidates is returned when the candidate cap is negative.
	ErrInvalidMaxCandidates = errors.New("invalid max candidates: must be non-negative")

	// ErrInvalidMaxDepth is returned when the depth cap is negative.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to keep the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
