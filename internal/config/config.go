package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultTimeout bounds every single request, body included.
	// Script bundles are static files, so a short timeout drops dead hosts
	// quickly without losing real results.
	DefaultTimeout = 3 * time.Second

	// DefaultConcurrency is the width of the fetch pool per domain.
	DefaultConcurrency = 5

	// DefaultMaxCandidates caps the distinct URLs queued per domain.
	// Generated bundles can reference thousands of chunks; the cap keeps a
	// single hostile or broken site from growing the run without bound.
	DefaultMaxCandidates = 10000

	// DefaultMaxDepth of 0 means reference chains are not limited.
	DefaultMaxDepth = 0

	// DefaultBatchSize is the number of domains scanned concurrently.
	DefaultBatchSize = 4

	// AppName is the application name used for XDG directory paths.
	AppName = "jsfinder"

	// DefaultUserAgent is a fixed desktop Firefox User-Agent.
	// Some sites only serve their bundles to browsers.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.6; rv:2.0.1) Gecko/20100101 Firefox/4.0.1"

	// DefaultMaxBodySize limits how much of each response is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// DefaultPlugins are the second-phase plugins enabled when none are given.
var DefaultPlugins = []string{"chunkmap", "scripttag"}

// Config holds all configuration options for jsfinder.
// It is populated from CLI flags and the configuration file and passed
// through the application explicitly.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., FetchConfig, ReportConfig). The number of options is manageable.
type Config struct {
	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	// When empty, requests go out directly.
	ProxyAddress string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Concurrency is the number of concurrent fetches per domain.
	Concurrency int

	// MaxCandidates caps the distinct URLs queued per domain.
	// 0 means unlimited.
	MaxCandidates int

	// MaxDepth caps the reference chain length from a seed.
	// 0 means unlimited.
	MaxDepth int

	// RateLimit is the maximum number of requests per second per domain.
	// 0 disables throttling.
	RateLimit float64

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of domains scanned concurrently.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, .jsfinder is searched in the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds per-domain settings loaded from the config file.
	SiteConfigs *File

	// Plugins names the second-phase plugins to run.
	Plugins []string

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// Targets is the list of domains to scan.
	Targets []string

	// DBDir is the directory of the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/jsfinder on Linux).
	DBDir string

	// SaveToDB indicates whether scan results are persisted.
	SaveToDB bool

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero. This also serves as
// documentation of what the defaults are.
func NewConfig() *Config {
	plugins := make([]string, len(DefaultPlugins))
	copy(plugins, DefaultPlugins)

	return &Config{
		Timeout:       DefaultTimeout,
		Concurrency:   DefaultConcurrency,
		MaxCandidates: DefaultMaxCandidates,
		MaxDepth:      DefaultMaxDepth,
		BatchSize:     DefaultBatchSize,
		Plugins:       plugins,
		UserAgent:     DefaultUserAgent,
		MaxBodySize:   DefaultMaxBodySize,
		DBDir:         XDGDataDir(),
		SaveToDB:      true,
	}
}

// XDGDataDir returns the XDG data directory for jsfinder.
// On Linux: ~/.local/share/jsfinder
// On macOS: ~/Library/Application Support/jsfinder
// On Windows: %LOCALAPPDATA%\jsfinder
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for jsfinder.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Site returns the effective per-domain settings for domain.
// It returns the zero SiteConfig when no configuration file was loaded.
func (c *Config) Site(domain string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(domain)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
//
// Design decision: We validate once after CLI parsing, before any network
// activity, so that mistakes fail fast with a clear message.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxCandidates < 0 {
		return ErrInvalidMaxCandidates
	}

	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}

	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}
