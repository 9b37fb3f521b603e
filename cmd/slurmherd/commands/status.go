package commands

import (
	"github.com/spf13/cobra"

	"github.com/hollandm/slurmherd/batch"
	"github.com/hollandm/slurmherd/config"
	"github.com/hollandm/slurmherd/display"
	"github.com/hollandm/slurmherd/errors"
	"github.com/hollandm/slurmherd/logger"
	"github.com/hollandm/slurmherd/scheduler"
)

// StatusCmd shows live scheduler states for a run's jobs
var StatusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Query the scheduler for the current state of a run's jobs",
	Long: `Look up the run in the history database and ask the scheduler for the
current state of every job it submitted. Without a run ID the most
recent run is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}

		backend, _ := cmd.Flags().GetString("backend")
		dbPath, _ := cmd.Flags().GetString("db")

		database, err := openDatabase(cfg, dbPath)
		if err != nil {
			return err
		}
		defer database.Close()
		store := batch.NewRunStore(database)

		runID, results, err := resolveRun(store, args)
		if err != nil {
			return err
		}

		client, err := buildClient(cfg, backend)
		if err != nil {
			return err
		}

		var rows []display.JobStatusRow
		for _, res := range results {
			if res.Status != batch.StatusSubmitted || res.JobID == "" {
				continue
			}
			state, err := client.QueryStatus(cmd.Context(), res.JobID)
			if err != nil {
				logger.Warnw("Status query failed",
					"job_id", res.JobID,
					"error", err)
				state = scheduler.StateUnknown
			}
			rows = append(rows, display.JobStatusRow{Result: res, State: state})
		}

		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(map[string]interface{}{
				"run_id": runID,
				"jobs":   rows,
			})
		}

		display.RenderJobStatus(rows)
		return nil
	},
}

// resolveRun picks the named run, or the latest when args is empty, and
// loads its submissions
func resolveRun(store *batch.RunStore, args []string) (string, []batch.SubmissionResult, error) {
	var runID string
	if len(args) > 0 {
		runID = args[0]
	} else {
		latest, err := store.LatestRunID()
		if err != nil {
			return "", nil, err
		}
		runID = latest
	}

	// Validate the run exists before fetching submissions
	if _, err := store.GetRun(runID); err != nil {
		return "", nil, err
	}

	results, err := store.GetSubmissions(runID)
	if err != nil {
		return "", nil, err
	}

	return runID, results, nil
}

func init() {
	StatusCmd.Flags().String("backend", "", "Scheduler backend: slurm, rest, or mock")
	StatusCmd.Flags().String("db", "", "Path to the run history database")
	StatusCmd.Flags().BoolP("json", "j", false, "Output status as JSON")
}
