package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anstrom/scanwrap/internal/errors"
	"github.com/anstrom/scanwrap/internal/logging"
	"github.com/anstrom/scanwrap/internal/scanning"
	"github.com/anstrom/scanwrap/internal/store"
)

var (
	scanFormat     string
	scanStore      bool
	scanExecutable string
	scanTempDir    string
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan TARGET... [-- NMAP_ARGS...]",
	Short: "Run nmap against targets and print the parsed report",
	Long: `Run nmap once with -oA pointing at a temporary base, parse the XML,
normal and grepable reports, then remove the report files.

Arguments after "--" are passed to nmap untouched and placed before the
targets. Leading hyphens are stripped from targets so a target can never
be read as an nmap option.`,
	Example: `  scanwrap scan 192.0.2.10
  scanwrap scan 192.0.2.0/24 scanme.example -- -sV -p 22,80,443
  scanwrap scan --format json 192.0.2.10 -- -sC
  scanwrap scan --store 192.0.2.0/28 -- -sn`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	addFormatFlag(scanCmd.Flags(), &scanFormat)
	scanCmd.Flags().BoolVar(&scanStore, "store", false, "Store the report in the configured database")
	scanCmd.Flags().StringVar(&scanExecutable, "executable", "", "Scanner executable (default: nmap on PATH)")
	scanCmd.Flags().StringVar(&scanTempDir, "temp-dir", "", "Directory for temporary report files")
}

// splitScanArgs separates targets from pass-through scanner arguments.
func splitScanArgs(cmd *cobra.Command, args []string) (targets, extra []string) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		return args, nil
	}
	return args[:dash], args[dash:]
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := validateFormat(scanFormat); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if scanExecutable != "" {
		cfg.Scanner.Executable = scanExecutable
	}
	if scanTempDir != "" {
		cfg.Scanner.TempDir = scanTempDir
	}
	if scanStore && !cfg.Database.Enabled {
		return fmt.Errorf("--store requires database.enabled in the configuration")
	}

	targets, extra := splitScanArgs(cmd, args)
	session, err := newSessionFactory(cfg, nil)(targets, extra)
	if err != nil {
		return err
	}

	logger := logging.Default().WithSession(session.ID())
	logger.Debug("Starting scan", "targets", session.Request().Targets(), "args", extra)

	report := session.Start()
	outcome := session.Outcome()
	if outcome.Err != nil {
		return outcome.Err
	}
	if verbose || !outcome.Success() {
		fmt.Fprint(cmd.ErrOrStderr(), outcome.Stderr)
	}
	for _, perr := range report.Errors {
		logger.Warn("Report file problem", "error", perr)
	}

	if err := writeReport(cmd.OutOrStdout(), report, scanFormat); err != nil {
		return err
	}

	if scanStore {
		err := withReportStore(cmd.Context(), cfg, func(ctx context.Context, reports *store.ReportStore) error {
			id, err := reports.SaveReport(ctx, session.ID(), report)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Stored report %s\n", id)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to store report: %w", err)
		}
	}

	if !outcome.Success() {
		return errors.ErrNonZeroExit(outcome.ExitCode)
	}
	return nil
}

// parseCmd reads reports written by an earlier "nmap -oA BASE" run.
var parseCmd = &cobra.Command{
	Use:   "parse BASE",
	Short: "Parse existing BASE.xml, BASE.nmap and BASE.gnmap files",
	Long: `Parse the three report files nmap writes for "-oA BASE" without
running a scan. Missing files are reported but do not stop the others
from being read. The files are left in place.`,
	Example: `  scanwrap parse /tmp/scan1
  scanwrap parse --format hosts ./results/weekly`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

var parseFormat string

func init() {
	rootCmd.AddCommand(parseCmd)

	addFormatFlag(parseCmd.Flags(), &parseFormat)
}

func runParse(cmd *cobra.Command, args []string) error {
	if err := validateFormat(parseFormat); err != nil {
		return err
	}

	report := scanning.NewParser(logging.Default(), nil).Parse(args[0])
	for _, perr := range report.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", perr)
	}
	if len(report.Errors) == 3 {
		return fmt.Errorf("no report files found for %s", args[0])
	}

	return writeReport(cmd.OutOrStdout(), report, parseFormat)
}
