package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/jsfinder/internal/config"
	"github.com/nao1215/jsfinder/internal/crawler"
	"github.com/nao1215/jsfinder/internal/database"
	"github.com/nao1215/jsfinder/internal/model"
)

// historyDateLayout is the date format of history listings.
const historyDateLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
// It reads the runs stored by the scan command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [domain]",
		Short: "Show stored scan runs and compare them",
		Long: `History displays the runs stored by 'jsfinder scan'.

Without flags it lists the runs of a domain, newest first. With --run it
prints the scripts found by one run, and with --diff it shows which
scripts appeared or disappeared between two runs.

Examples:
  # List the runs of a domain
  jsfinder history example.com

  # Show the scripts of one run
  jsfinder history --run 0b7c6f1e-0d8a-4d38-9a63-6c1f3f0b5b7e example.com

  # Compare the latest two runs
  jsfinder history --diff example.com

  # Compare the latest run with a specific older run
  jsfinder history --diff --with-run 0b7c6f1e-0d8a-4d38-9a63-6c1f3f0b5b7e example.com

  # List every domain in the database
  jsfinder history --list-domains`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-domains", "L", false,
		"List all domains in the database")
	cmd.Flags().StringP("run", "r", "",
		"Show the scripts of the run with this ID")
	cmd.Flags().BoolP("diff", "D", false,
		"Compare the latest run with the previous one")
	cmd.Flags().StringP("with-run", "w", "",
		"With --diff, compare against the run with this ID instead of the previous one")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run database")

	return cmd
}

// historyOptions holds the parsed flags of the history command.
type historyOptions struct {
	domain      string
	listDomains bool
	runID       string
	diff        bool
	withRun     string
	jsonOutput  bool
	dbDir       string
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case opts.listDomains:
		return listDomains(ctx, db, out, opts.jsonOutput)
	case opts.runID != "":
		return showRun(ctx, db, out, opts.runID, opts.jsonOutput)
	case opts.diff:
		return diffRuns(ctx, db, out, opts)
	default:
		return listRuns(ctx, db, out, opts.domain, opts.jsonOutput)
	}
}

// parseHistoryOptions reads and validates the history flags. Validation
// happens before the database is opened.
func parseHistoryOptions(cmd *cobra.Command, args []string) (*historyOptions, error) {
	flags := cmd.Flags()
	opts := &historyOptions{}

	var err error
	if opts.listDomains, err = flags.GetBool("list-domains"); err != nil {
		return nil, err
	}
	if opts.runID, err = flags.GetString("run"); err != nil {
		return nil, err
	}
	if opts.diff, err = flags.GetBool("diff"); err != nil {
		return nil, err
	}
	if opts.withRun, err = flags.GetString("with-run"); err != nil {
		return nil, err
	}
	if opts.jsonOutput, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	if len(args) > 0 {
		opts.domain = crawler.NormalizeDomain(args[0])
	}

	if opts.withRun != "" && !opts.diff {
		return nil, errors.New("--with-run requires --diff")
	}
	if !opts.listDomains && opts.runID == "" && opts.domain == "" {
		return nil, errors.New("domain is required (use --list-domains to see stored domains)")
	}

	return opts, nil
}

// listDomains prints every domain with stored runs.
func listDomains(ctx context.Context, db *database.ScriptDB, out io.Writer, jsonOutput bool) error {
	domains, err := db.ListDomains(ctx)
	if err != nil {
		return fmt.Errorf("failed to list domains: %w", err)
	}

	if jsonOutput {
		return writeJSON(out, domains)
	}

	if len(domains) == 0 {
		fmt.Fprintln(out, "No domains found in the database.")
		fmt.Fprintln(out, "\nUse 'jsfinder scan <domain>' to scan a domain.")
		return nil
	}

	fmt.Fprintf(out, "Scanned domains (%d):\n\n", len(domains))
	for _, domain := range domains {
		fmt.Fprintf(out, "  • %s\n", domain)
	}
	return nil
}

// listRuns prints the runs of domain, newest first.
func listRuns(ctx context.Context, db *database.ScriptDB, out io.Writer, domain string, jsonOutput bool) error {
	runs, err := db.ListRuns(ctx, domain)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if jsonOutput {
		return writeJSON(out, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs found for %s\n", domain)
		return nil
	}

	fmt.Fprintf(out, "Run history for %s (%d runs):\n\n", domain, len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-7s  %s\n", "ID", "Date", "Scripts", "Status")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 80))
	for _, run := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %-7d  %s\n",
			run.ID,
			run.StartedAt.Local().Format(historyDateLayout),
			run.ScriptCount,
			runStatus(run),
		)
	}
	return nil
}

// runStatus returns a short status of a stored run.
func runStatus(run database.RunMetadata) string {
	switch {
	case run.Error != "":
		return "error: " + run.Error
	case run.TimedOut:
		return "timed out"
	default:
		return "complete"
	}
}

// showRun prints the scripts of one run.
func showRun(ctx context.Context, db *database.ScriptDB, out io.Writer, runID string, jsonOutput bool) error {
	scripts, err := db.ListScripts(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get scripts: %w", err)
	}

	if jsonOutput {
		return writeJSON(out, scripts)
	}

	if len(scripts) == 0 {
		fmt.Fprintf(out, "No scripts stored for run %s\n", runID)
		return nil
	}

	fmt.Fprintf(out, "Scripts of run %s (%d):\n\n", runID, len(scripts))
	for _, s := range scripts {
		fmt.Fprintf(out, "  %s  (status=%d size=%d)\n", s.URL, s.StatusCode, s.Size)
	}
	return nil
}

// RunDiff is the difference between two runs of a domain.
type RunDiff struct {
	// Domain is the domain both runs belong to.
	Domain string `json:"domain"`

	// PreviousRun is the ID of the older run.
	PreviousRun string `json:"previous_run"`

	// PreviousDate is when the older run started.
	PreviousDate time.Time `json:"previous_date"`

	// CurrentRun is the ID of the newer run.
	CurrentRun string `json:"current_run"`

	// CurrentDate is when the newer run started.
	CurrentDate time.Time `json:"current_date"`

	// Added lists scripts present only in the newer run.
	Added []string `json:"added"`

	// Removed lists scripts present only in the older run.
	Removed []string `json:"removed"`

	// UnchangedCount is the number of scripts present in both runs.
	UnchangedCount int `json:"unchanged_count"`
}

// diffRuns compares the latest run of a domain with the previous run or
// with the run given by --with-run.
func diffRuns(ctx context.Context, db *database.ScriptDB, out io.Writer, opts *historyOptions) error {
	runs, err := db.ListRuns(ctx, opts.domain)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}
	if len(runs) == 0 {
		return fmt.Errorf("no runs found for %s", opts.domain)
	}

	current := runs[0]
	var previous database.RunMetadata
	switch {
	case opts.withRun != "":
		found := false
		for _, run := range runs {
			if run.ID == opts.withRun {
				previous, found = run, true
				break
			}
		}
		if !found {
			return fmt.Errorf("run %s not found for %s", opts.withRun, opts.domain)
		}
	case len(runs) < 2:
		return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	default:
		previous = runs[1]
	}

	prevReport, err := loadRun(ctx, db, previous.ID)
	if err != nil {
		return err
	}
	curReport, err := loadRun(ctx, db, current.ID)
	if err != nil {
		return err
	}

	diff := compareRuns(previous, prevReport, current, curReport)
	if opts.jsonOutput {
		return writeJSON(out, diff)
	}
	writeRunDiff(out, diff)
	return nil
}

// loadRun loads a stored report and fails if it does not exist.
func loadRun(ctx context.Context, db *database.ScriptDB, runID string) (*model.Report, error) {
	r, err := db.GetReportByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if r == nil {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return r, nil
}

// compareRuns builds the RunDiff of two stored runs.
func compareRuns(previous database.RunMetadata, prevReport *model.Report, current database.RunMetadata, curReport *model.Report) *RunDiff {
	added, removed := model.DiffScriptURLs(prevReport.ScriptURLs(), curReport.ScriptURLs())
	return &RunDiff{
		Domain:         current.Domain,
		PreviousRun:    previous.ID,
		PreviousDate:   previous.StartedAt,
		CurrentRun:     current.ID,
		CurrentDate:    current.StartedAt,
		Added:          added,
		Removed:        removed,
		UnchangedCount: len(curReport.Scripts) - len(added),
	}
}

// writeRunDiff prints a RunDiff in human-readable form.
func writeRunDiff(out io.Writer, diff *RunDiff) {
	fmt.Fprintf(out, "Run Comparison: %s\n", diff.Domain)
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "\nPrevious run: %s  (%s)\n", diff.PreviousRun, diff.PreviousDate.Local().Format(historyDateLayout))
	fmt.Fprintf(out, "Current run:  %s  (%s)\n", diff.CurrentRun, diff.CurrentDate.Local().Format(historyDateLayout))

	if len(diff.Added) > 0 {
		fmt.Fprintf(out, "\nAdded Scripts (%d):\n", len(diff.Added))
		for _, u := range diff.Added {
			fmt.Fprintf(out, "  [+] %s\n", u)
		}
	}
	if len(diff.Removed) > 0 {
		fmt.Fprintf(out, "\nRemoved Scripts (%d):\n", len(diff.Removed))
		for _, u := range diff.Removed {
			fmt.Fprintf(out, "  [-] %s\n", u)
		}
	}
	if len(diff.Added) == 0 && len(diff.Removed) == 0 {
		fmt.Fprintln(out, "\nNo changes.")
	}
	fmt.Fprintf(out, "\nUnchanged: %d scripts\n", diff.UnchangedCount)
}

// writeJSON writes v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
