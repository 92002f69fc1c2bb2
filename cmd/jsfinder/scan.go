package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/jsfinder/internal/config"
	"github.com/nao1215/jsfinder/internal/crawler"
	"github.com/nao1215/jsfinder/internal/database"
	"github.com/nao1215/jsfinder/internal/fetch"
	seclog "github.com/nao1215/jsfinder/internal/log"
	"github.com/nao1215/jsfinder/internal/model"
	"github.com/nao1215/jsfinder/internal/pipeline"
	"github.com/nao1215/jsfinder/internal/report"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [domain]...",
		Short: "Discover the script files of one or more domains",
		Long: `Scan fetches the root page of each domain, then recursively follows every
script reference it finds, staying on that domain.

After the references are exhausted, plugins look for paths that only
exist at runtime (webpack chunk maps, script tags with unquoted
attributes) and their results are followed the same way.

Every run is stored in a local database, and scripts that were not
present in the previous run of a domain are reported as new.

Examples:
  # Scan a single domain
  jsfinder scan example.com

  # Scan several domains, two at a time
  jsfinder scan -b 2 example.com example.org example.net

  # Route requests through a SOCKS5 proxy and throttle to 5 req/s
  jsfinder scan --proxy 127.0.0.1:9050 --rate-limit 5 example.com

  # Only run the chunk map plugin and output JSON
  jsfinder scan --plugins chunkmap --json example.com

  # Use a custom configuration file
  jsfinder scan -c myconfig.yaml example.com

Configuration file (.jsfinder) example:
  defaults:
    seeds:
      - /login
  sites:
    example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      maxDepth: 5`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Fetch behavior flags
	cmd.Flags().StringP("proxy", "x", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:9050)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Float64P("rate-limit", "r", 0,
		"Maximum requests per second per domain (0 = unlimited)")
	cmd.Flags().StringP("user-agent", "A", config.DefaultUserAgent,
		"User-Agent header")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")

	// Discovery flags
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of concurrent fetches per domain")
	cmd.Flags().Int("max-candidates", config.DefaultMaxCandidates,
		"Maximum distinct URLs queued per domain (0 = unlimited)")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum reference depth from a seed (0 = unlimited)")
	cmd.Flags().StringSliceP("plugins", "p", config.DefaultPlugins,
		"Second-phase plugins to run (empty to disable)")

	// Batch scanning flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of domains scanned concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .jsfinder in the current directory, the XDG config directory or home)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON")

	// Storage flags
	cmd.Flags().Bool("no-db", false,
		"Do not store the run in the database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run database")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return err
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, logJSON)
	slog.SetDefault(logger)

	// Interrupts stop new fetches; partial results are still reported.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate-limit"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.MaxCandidates, err = flags.GetInt("max-candidates"); err != nil {
		return nil, err
	}
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.Plugins, err = flags.GetStringSlice("plugins"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.Verbose = getVerboseFlag(cmd)

	// If the user explicitly specified a config file path, error if not found.
	// If no path was specified, silently use an empty config.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	targets := make([]string, 0, len(args))
	for _, arg := range args {
		if domain := crawler.NormalizeDomain(arg); domain != "" {
			targets = append(targets, domain)
		}
	}
	cfg.Targets = targets

	return cfg, nil
}

// setupLogger creates the secure structured logger.
func setupLogger(w io.Writer, verbose, asJSON bool) *slog.Logger {
	if asJSON {
		return seclog.NewSecureJSONLogger(w, verbose)
	}
	return seclog.NewSecureLogger(w, verbose)
}

// runScan scans every target and writes one report per target to out,
// or to cfg.ReportFile when set.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	logger.Info("starting scan",
		"targets", cfg.Targets,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.ScriptDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	output, closeOutput, err := openReportOutput(cfg.ReportFile, out)
	if err != nil {
		return err
	}
	defer closeOutput()
	writer := newReportWriter(cfg, output)

	bp := pipeline.NewBatchProcessor(
		func(domain string) (*pipeline.Pipeline, error) {
			return createPipelineForTarget(cfg, domain, logger)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()

	// Reports are finalized and written one at a time so that output from
	// concurrent domains does not interleave.
	var mu sync.Mutex
	err = bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(r *model.Report, index int) {
		mu.Lock()
		defer mu.Unlock()

		logger.Info("scan finished",
			"domain", r.Domain,
			"index", index+1,
			"total", len(cfg.Targets),
			"scripts", len(r.Scripts),
		)

		// Storage must not observe a canceled context, or the partial
		// result of an interrupted run would be lost.
		storeCtx := context.WithoutCancel(ctx)
		if err := markNewScripts(storeCtx, db, r); err != nil {
			logger.Error("failed to load previous run", "domain", r.Domain, "error", err)
		}
		if err := saveReport(storeCtx, db, r, logger); err != nil {
			logger.Error("failed to save report", "domain", r.Domain, "error", err)
		}
		if _, err := writer.Write(r); err != nil {
			logger.Error("failed to write report", "domain", r.Domain, "error", err)
		}
	})

	logger.Info("scan complete",
		"targets", len(cfg.Targets),
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	return err
}

// createPipelineForTarget builds the fetcher and pipeline for one domain,
// applying its settings from the configuration file.
func createPipelineForTarget(cfg *config.Config, domain string, logger *slog.Logger) (*pipeline.Pipeline, error) {
	site := cfg.Site(domain)

	client, err := fetch.NewClient(
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithRateLimit(cfg.RateLimit),
		fetch.WithProxy(cfg.ProxyAddress),
		fetch.WithHeaders(site.Headers),
		fetch.WithCookie(site.Cookie),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	plugins := cfg.Plugins
	if len(site.Plugins) > 0 {
		plugins = site.Plugins
	}
	maxCandidates := cfg.MaxCandidates
	if site.MaxCandidates > 0 {
		maxCandidates = site.MaxCandidates
	}
	maxDepth := cfg.MaxDepth
	if site.MaxDepth > 0 {
		maxDepth = site.MaxDepth
	}

	return pipeline.DefaultPipeline(client,
		[]pipeline.Option{pipeline.WithLogger(logger.With("domain", domain))},
		pipeline.WithPipelineExtraSeeds(site.Seeds),
		pipeline.WithPipelineConcurrency(cfg.Concurrency),
		pipeline.WithPipelineMaxCandidates(maxCandidates),
		pipeline.WithPipelineMaxDepth(maxDepth),
		pipeline.WithPipelinePlugins(plugins),
	)
}

// openReportOutput returns the report destination. When path is empty the
// fallback writer is used and the returned close function does nothing.
func openReportOutput(path string, fallback io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Script URLs may carry signed tokens, so reports are owner-only.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // best effort
}

// newReportWriter selects the report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// markNewScripts sets r.NewScripts to the scripts absent from the most
// recent complete stored run of the domain. It is a no-op without a
// database or a previous run.
func markNewScripts(ctx context.Context, db *database.ScriptDB, r *model.Report) error {
	if db == nil {
		return nil
	}

	previous, err := db.GetLatestCompleteReport(ctx, r.Domain)
	if err != nil {
		return err
	}
	if previous == nil {
		return nil
	}

	added, _ := model.DiffScriptURLs(previous.ScriptURLs(), r.ScriptURLs())
	r.NewScripts = added
	return nil
}

// saveReport stores the report if a database is open.
func saveReport(ctx context.Context, db *database.ScriptDB, r *model.Report, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	id, err := db.SaveReport(ctx, r)
	if err != nil {
		if errors.Is(err, database.ErrNilReport) {
			return nil
		}
		return err
	}

	logger.Info("report saved", "domain", r.Domain, "run", id)
	return nil
}
