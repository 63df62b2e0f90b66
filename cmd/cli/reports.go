package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/anstrom/scanwrap/internal/config"
	"github.com/anstrom/scanwrap/internal/store"
)

// reportStoreOperation works with an open report store.
type reportStoreOperation func(ctx context.Context, reports *store.ReportStore) error

// withReportStore connects to the configured database, makes sure the
// schema exists and runs operation. The connection is closed afterwards.
func withReportStore(ctx context.Context, cfg *config.Config, operation reportStoreOperation) error {
	if !cfg.Database.Enabled {
		return fmt.Errorf("database is not enabled in the configuration")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	database, err := store.Connect(ctx, &cfg.Database.Config)
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	defer func() {
		if closeErr := database.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database connection: %v\n", closeErr)
		}
	}()

	reports := store.NewReportStore(database)
	if err := reports.EnsureSchema(ctx); err != nil {
		return err
	}
	return operation(ctx, reports)
}

var reportsLimit int

// reportsCmd groups commands for stored reports.
var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Browse reports stored in the database",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reports, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		return withReportStore(cmd.Context(), cfg, func(ctx context.Context, reports *store.ReportStore) error {
			records, err := reports.ListReports(ctx, reportsLimit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stored reports")
				return nil
			}
			return writeReportRecords(cmd.OutOrStdout(), records)
		})
	},
}

var reportsShowCmd = &cobra.Command{
	Use:   "show REPORT_ID",
	Short: "Show the hosts of a stored report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid report id %q: %w", args[0], err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		return withReportStore(cmd.Context(), cfg, func(ctx context.Context, reports *store.ReportStore) error {
			record, err := reports.GetReport(ctx, id)
			if err != nil {
				return err
			}
			hosts, err := reports.ListHosts(ctx, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Report %s (session %s)\n", record.ID, record.SessionID)
			fmt.Fprintf(out, "Scanner: %s %s\n", record.Scanner, record.ScannerVersion)
			fmt.Fprintf(out, "Command: %s\n", record.Args)
			fmt.Fprintf(out, "Created: %s\n\n", record.CreatedAt.Format("2006-01-02 15:04:05"))
			return writeHostRecords(out, hosts)
		})
	},
}

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsShowCmd)

	reportsListCmd.Flags().IntVar(&reportsLimit, "limit", 0, "Maximum number of reports (default 50)")
}
