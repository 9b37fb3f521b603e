package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hollandm/slurmherd/cmd/slurmherd/commands"
	"github.com/hollandm/slurmherd/logger"
)

var rootCmd = &cobra.Command{
	Use:   "slurmherd",
	Short: "slurmherd - paced batch job submission for Slurm clusters",
	Long: `slurmherd submits directories of batch job scripts to a Slurm cluster
without flooding the controller: submissions are spaced out, capped,
and every outcome is recorded so a failed batch can be inspected later.

Available commands:
  submit  - Submit all job specs in a directory
  watch   - Watch a directory and submit new specs as they arrive
  status  - Query the scheduler for a run's job states
  cancel  - Cancel all jobs submitted by a run
  report  - Show the stored report of a past run
  config  - Show or change configuration

Examples:
  slurmherd submit ./specs                  # Submit with configured limits
  slurmherd submit ./specs -i 30s -c 2      # 30s spacing, 2 in flight
  slurmherd watch ./specs                   # Keep submitting as files arrive
  slurmherd status                          # Live states of the latest run
  slurmherd report --list                   # Past runs overview`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit structured JSON logs instead of console output")
	rootCmd.PersistentFlags().Bool("json", false, "Output command results as JSON")

	rootCmd.AddCommand(commands.SubmitCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.CancelCmd)
	rootCmd.AddCommand(commands.ReportCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
