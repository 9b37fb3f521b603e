package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hollandm/slurmherd/batch"
	"github.com/hollandm/slurmherd/config"
	"github.com/hollandm/slurmherd/display"
	"github.com/hollandm/slurmherd/errors"
	"github.com/hollandm/slurmherd/logger"
	"github.com/hollandm/slurmherd/spec"
)

// WatchCmd watches a directory and submits new job specs as they appear
var WatchCmd = &cobra.Command{
	Use:   "watch <spec-dir>",
	Short: "Watch a directory and submit new job specs as they arrive",
	Long: `Submit every job spec already in the directory, then keep watching it.
Each new spec file dropped into the directory is submitted under the
same throttle limits. Rapid file events are debounced so half-written
files are not picked up, and a file is submitted at most once.

Runs until interrupted with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		specDir := args[0]

		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}

		interval, _ := cmd.Flags().GetDuration("interval")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		backend, _ := cmd.Flags().GetString("backend")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		dbPath, _ := cmd.Flags().GetString("db")

		if dryRun {
			backend = "mock"
		}

		client, err := buildClient(cfg, backend)
		if err != nil {
			return err
		}

		throttler, err := buildThrottler(cfg, interval, concurrency)
		if err != nil {
			return err
		}

		database, err := openDatabase(cfg, dbPath)
		if err != nil {
			return err
		}
		defer database.Close()
		store := batch.NewRunStore(database)

		loader := buildLoader(cfg)
		coord := batch.NewCoordinator(loader, client, throttler, store, batch.CoordinatorOptions{
			Retries:    cfg.Submit.Retries,
			OnProgress: display.Progress,
		}, logger.Logger)

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		// Arrivals queue here; the loop below serializes runs so the
		// throttle limits hold across batches
		arrivals := make(chan []string, 16)

		debounce := time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
		watcher, err := spec.NewDirWatcher(specDir, loader, debounce, logger.Logger)
		if err != nil {
			return errors.Wrap(err, "failed to watch directory")
		}
		defer watcher.Stop()

		watcher.OnNewSpecs(func(paths []string) {
			select {
			case arrivals <- paths:
			case <-ctx.Done():
			}
		})
		watcher.Start()

		if dryRun {
			pterm.Warning.Println("DRY RUN MODE: submissions go to the mock scheduler")
		}
		pterm.Info.Printf("Watching %s (Ctrl-C to stop)", specDir)
		pterm.Println()

		// Initial pass over whatever is already there
		seen := make(map[string]bool)
		report, err := coord.Run(ctx, specDir)
		if err != nil {
			return err
		}
		markSeen(seen, report)
		pterm.Println()
		display.RenderReport(report)
		pterm.Println()

		for {
			var paths []string
			select {
			case <-ctx.Done():
				pterm.Println()
				pterm.Info.Println("Watch stopped")
				return nil
			case paths = <-arrivals:
			}

			fresh := paths[:0]
			for _, path := range paths {
				if !seen[path] {
					fresh = append(fresh, path)
				}
			}
			if len(fresh) == 0 {
				continue
			}

			logger.Infow("New spec files detected", "count", len(fresh))
			report, err := coord.RunPaths(ctx, specDir, fresh)
			if err != nil {
				logger.Errorw("Batch failed", "error", err)
				continue
			}
			markSeen(seen, report)
			pterm.Println()
			display.RenderReport(report)
			pterm.Println()
		}
	},
}

// markSeen records every path the run touched, including parse skips,
// so a file is never submitted twice
func markSeen(seen map[string]bool, report *batch.RunReport) {
	for _, res := range report.Results {
		seen[res.SpecPath] = true
	}
	for _, skip := range report.ParseSkips {
		seen[skip.Path] = true
	}
}

func init() {
	WatchCmd.Flags().DurationP("interval", "i", 0, "Minimum interval between submissions (e.g. 10s, 1m)")
	WatchCmd.Flags().IntP("concurrency", "c", 0, "Maximum submissions in flight")
	WatchCmd.Flags().String("backend", "", "Scheduler backend: slurm, rest, or mock")
	WatchCmd.Flags().Bool("dry-run", false, "Use the mock scheduler instead of submitting real jobs")
	WatchCmd.Flags().String("db", "", "Path to the run history database")
}
