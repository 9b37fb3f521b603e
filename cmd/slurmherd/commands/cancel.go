package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hollandm/slurmherd/batch"
	"github.com/hollandm/slurmherd/config"
	"github.com/hollandm/slurmherd/display"
	"github.com/hollandm/slurmherd/errors"
	"github.com/hollandm/slurmherd/logger"
)

// CancelCmd cancels every submitted job of a run
var CancelCmd = &cobra.Command{
	Use:   "cancel [run-id]",
	Short: "Cancel all jobs submitted by a run",
	Long: `Ask the scheduler to cancel every job the run submitted. Jobs that
already finished are left alone. Without a run ID the most recent run
is used.`,
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

		cancelled := 0
		alreadyDone := 0
		failed := 0
		for _, res := range results {
			if res.Status != batch.StatusSubmitted || res.JobID == "" {
				continue
			}

			err := client.Cancel(cmd.Context(), res.JobID)
			switch {
			case err == nil:
				cancelled++
			case errors.Is(err, errors.ErrJobTerminal):
				alreadyDone++
			default:
				failed++
				logger.Warnw("Cancel failed",
					"job_id", res.JobID,
					"spec", res.SpecName,
					"error", err)
			}
		}

		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(map[string]interface{}{
				"run_id":       runID,
				"cancelled":    cancelled,
				"already_done": alreadyDone,
				"failed":       failed,
			})
		}

		if cancelled+alreadyDone+failed == 0 {
			pterm.Info.Println("No submitted jobs to cancel")
			return nil
		}

		pterm.Success.Printf("Cancelled %d job(s)", cancelled)
		pterm.Println()
		if alreadyDone > 0 {
			pterm.Info.Printf("%d job(s) had already finished", alreadyDone)
			pterm.Println()
		}
		if failed > 0 {
			cmd.SilenceUsage = true
			return errors.Newf("failed to cancel %d job(s)", failed)
		}
		return nil
	},
}

func init() {
	CancelCmd.Flags().String("backend", "", "Scheduler backend: slurm, rest, or mock")
	CancelCmd.Flags().String("db", "", "Path to the run history database")
	CancelCmd.Flags().BoolP("json", "j", false, "Output the cancel summary as JSON")
}
