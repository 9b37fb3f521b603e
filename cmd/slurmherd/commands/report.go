package commands

import (
	"github.com/spf13/cobra"

	"github.com/hollandm/slurmherd/batch"
	"github.com/hollandm/slurmherd/config"
	"github.com/hollandm/slurmherd/display"
	"github.com/hollandm/slurmherd/errors"
)

// ReportCmd shows the stored report of a past run
var ReportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Show the stored report of a past run",
	Long: `Print the per-spec outcome of a run from the history database. Without
a run ID the most recent run is shown. Use --list for an overview of
all stored runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}

		dbPath, _ := cmd.Flags().GetString("db")
		list, _ := cmd.Flags().GetBool("list")
		limit, _ := cmd.Flags().GetInt("limit")

		database, err := openDatabase(cfg, dbPath)
		if err != nil {
			return err
		}
		defer database.Close()
		store := batch.NewRunStore(database)

		if list {
			runs, err := store.ListRuns(limit)
			if err != nil {
				return err
			}
			if display.ShouldOutputJSON(cmd) {
				return display.OutputJSON(runs)
			}
			display.RenderRunList(runs)
			return nil
		}

		runID, results, err := resolveRun(store, args)
		if err != nil {
			return err
		}

		run, err := store.GetRun(runID)
		if err != nil {
			return err
		}

		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(map[string]interface{}{
				"run":     run,
				"results": results,
			})
		}

		display.RenderRunSummary(run, results)
		return nil
	},
}

func init() {
	ReportCmd.Flags().String("db", "", "Path to the run history database")
	ReportCmd.Flags().BoolP("list", "l", false, "List stored runs instead of showing one report")
	ReportCmd.Flags().Int("limit", 20, "Maximum runs to list")
	ReportCmd.Flags().BoolP("json", "j", false, "Output the report as JSON")
}
