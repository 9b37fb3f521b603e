package commands

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hollandm/slurmherd/batch"
	"github.com/hollandm/slurmherd/config"
	"github.com/hollandm/slurmherd/display"
	"github.com/hollandm/slurmherd/errors"
	"github.com/hollandm/slurmherd/logger"
)

// SubmitCmd submits every job spec in a directory
var SubmitCmd = &cobra.Command{
	Use:   "submit <spec-dir>",
	Short: "Submit all job specs in a directory to the scheduler",
	Long: `Discover job description files in the given directory and submit them
to the scheduler one by one, paced by the configured throttle limits.

Specs are submitted in filename order. A rejected submission is recorded
and the batch continues; Ctrl-C stops cleanly, marking the remaining
specs as skipped. The full outcome is persisted to the run history
database and printed as a report.

Examples:
  slurmherd submit ./specs                     # Submit with configured limits
  slurmherd submit ./specs --interval 30s      # One submission every 30s
  slurmherd submit ./specs --concurrency 4     # Up to 4 in flight
  slurmherd submit ./specs --dry-run           # Mock scheduler, no real jobs
  slurmherd submit ./specs --clean-logs        # Clear old *.out logs first`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		specDir := args[0]

		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}

		interval, _ := cmd.Flags().GetDuration("interval")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		retries, _ := cmd.Flags().GetInt("retries")
		backend, _ := cmd.Flags().GetString("backend")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		cleanLogs, _ := cmd.Flags().GetBool("clean-logs")
		noStore, _ := cmd.Flags().GetBool("no-store")
		dbPath, _ := cmd.Flags().GetString("db")
		jsonOutput := display.ShouldOutputJSON(cmd)

		if dryRun {
			backend = "mock"
		}
		if retries < 0 {
			return errors.Newf("retries must not be negative: %d", retries)
		}
		if !cmd.Flags().Changed("retries") {
			retries = cfg.Submit.Retries
		}

		if cleanLogs {
			removed, err := cleanLogDir(specDir, cfg.Submit.LogDir)
			if err != nil {
				return err
			}
			if removed > 0 && !jsonOutput {
				pterm.Info.Printf("Removed %d old log file(s)", removed)
				pterm.Println()
			}
		}

		client, err := buildClient(cfg, backend)
		if err != nil {
			return err
		}

		throttler, err := buildThrottler(cfg, interval, concurrency)
		if err != nil {
			return err
		}

		var store *batch.RunStore
		if !noStore {
			database, err := openDatabase(cfg, dbPath)
			if err != nil {
				return err
			}
			defer database.Close()
			store = batch.NewRunStore(database)

			if pruned, err := store.PruneRuns(cfg.Database.RetainDays); err != nil {
				logger.Warnw("Failed to prune old runs", "error", err)
			} else if pruned > 0 {
				logger.Debugw("Pruned old runs", "count", pruned)
			}
		}

		opts := batch.CoordinatorOptions{Retries: retries}
		if !jsonOutput {
			opts.OnProgress = display.Progress
		}

		coord := batch.NewCoordinator(buildLoader(cfg), client, throttler, store, opts, logger.Logger)

		// Ctrl-C cancels the run; already-submitted jobs stay submitted
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if dryRun && !jsonOutput {
			pterm.Warning.Println("DRY RUN MODE: submissions go to the mock scheduler")
			pterm.Println()
		}

		report, err := coord.Run(ctx, specDir)
		if err != nil {
			return err
		}

		if jsonOutput {
			return display.OutputJSON(report)
		}

		pterm.Println()
		display.RenderReport(report)

		if report.Counts().Failed > 0 {
			// Failures were recorded, not fatal; signal them in the exit code
			cmd.SilenceUsage = true
			return errors.Newf("%d submission(s) failed", report.Counts().Failed)
		}
		return nil
	},
}

// cleanLogDir removes *.out files directly inside the run's log
// directory. Relative paths resolve against the spec directory; nothing
// outside that single directory is ever touched.
func cleanLogDir(specDir, logDir string) (int, error) {
	if logDir == "" {
		return 0, nil
	}
	if !filepath.IsAbs(logDir) {
		logDir = filepath.Join(specDir, logDir)
	}

	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "failed to read log directory %s", logDir)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".out" {
			continue
		}
		path := filepath.Join(logDir, entry.Name())
		if err := os.Remove(path); err != nil {
			return removed, errors.Wrapf(err, "failed to remove %s", path)
		}
		removed++
	}

	return removed, nil
}

func init() {
	SubmitCmd.Flags().DurationP("interval", "i", 0, "Minimum interval between submissions (e.g. 10s, 1m)")
	SubmitCmd.Flags().IntP("concurrency", "c", 0, "Maximum submissions in flight")
	SubmitCmd.Flags().IntP("retries", "r", 0, "Extra attempts after a scheduler rejection")
	SubmitCmd.Flags().String("backend", "", "Scheduler backend: slurm, rest, or mock")
	SubmitCmd.Flags().Bool("dry-run", false, "Use the mock scheduler instead of submitting real jobs")
	SubmitCmd.Flags().Bool("clean-logs", false, "Remove *.out files from the log directory before submitting")
	SubmitCmd.Flags().Bool("no-store", false, "Skip recording the run in the history database")
	SubmitCmd.Flags().String("db", "", "Path to the run history database")
	SubmitCmd.Flags().BoolP("json", "j", false, "Output the run report as JSON")
}
