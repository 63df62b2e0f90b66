package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/scanwrap/internal/config"
	"github.com/anstrom/scanwrap/internal/metrics"
	"github.com/anstrom/scanwrap/internal/scanning"
	"github.com/anstrom/scanwrap/internal/scheduler"
	"github.com/anstrom/scanwrap/internal/store"
)

// scheduleCmd groups commands for the configured scan jobs.
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect and run scheduled scan jobs",
	Long: `Scheduled jobs are declared in the schedule section of the configuration
file. "scanwrap server" fires them on their cron expressions; these commands
list them or run one immediately.`,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured jobs and their next run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}

		sched, err := buildScheduler(cfg, scanning.NewLimiter(cfg.Scanner.MaxConcurrent), nil, nil)
		if err != nil {
			return err
		}

		jobs := sched.Jobs()
		if len(jobs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No scheduled jobs configured")
			return nil
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Name", "Cron", "Targets", "Args", "Store", "Next Run")
		for _, job := range jobs {
			_ = table.Append([]string{
				job.Name,
				job.Config.Cron,
				strings.Join(job.Config.Targets, ", "),
				strings.Join(job.Config.Args, " "),
				fmt.Sprintf("%t", job.Config.Store),
				job.NextRun.Format("2006-01-02 15:04"),
			})
		}
		return table.Render()
	},
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run JOB",
	Short: "Run one configured job now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}

		run := func(sink scheduler.ReportSink) error {
			sched, err := buildScheduler(cfg, scanning.NewLimiter(1), nil, sink)
			if err != nil {
				return err
			}
			if err := sched.RunJob(args[0]); err != nil {
				return err
			}
			for _, job := range sched.Jobs() {
				if job.Name != args[0] {
					continue
				}
				if job.LastError != "" {
					return fmt.Errorf("job %s failed: %s", job.Name, job.LastError)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s finished: %d hosts\n", job.Name, job.LastHosts)
			}
			return nil
		}

		if !cfg.Database.Enabled {
			return run(nil)
		}
		return withReportStore(cmd.Context(), cfg, func(_ context.Context, reports *store.ReportStore) error {
			return run(reports)
		})
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
}

// buildScheduler registers every configured job on a new scheduler.
func buildScheduler(cfg *config.Config, limiter *scanning.Limiter, recorder metrics.Recorder,
	sink scheduler.ReportSink) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler(limiter, newSessionFactory(cfg, recorder), sink)
	for _, job := range cfg.Schedule.Jobs {
		if err := sched.AddJob(job); err != nil {
			return nil, fmt.Errorf("failed to add job %q: %w", job.Name, err)
		}
	}
	return sched, nil
}
