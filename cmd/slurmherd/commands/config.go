package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hollandm/slurmherd/config"
	"github.com/hollandm/slurmherd/display"
	"github.com/hollandm/slurmherd/errors"
)

// ConfigCmd manages slurmherd configuration
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change slurmherd configuration",
	Long: `Inspect the merged configuration or set values in the user config file.

Configuration merges, lowest precedence first: built-in defaults,
/etc/slurmherd/herd.toml, ~/.slurmherd/herd.toml, the nearest herd.toml
up the directory tree, and SLURMHERD_* environment variables.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the merged configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}

		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(cfg)
		}

		settings := config.GetViper().AllSettings()
		return display.OutputJSON(settings)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a value in the user config file",
	Long: `Write a dotted configuration key into ~/.slurmherd/herd.toml,
creating the file if needed. A rotating backup of the previous file is
kept alongside it.

Examples:
  slurmherd config set throttle.min_interval_seconds 30
  slurmherd config set scheduler.backend rest
  slurmherd config set scheduler.rest.base_url http://head-node:6820`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetValue(key, value); err != nil {
			return errors.Wrapf(err, "failed to set %s", key)
		}

		pterm.Success.Printf("Set %s = %s", key, value)
		pterm.Println()
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the user config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.UserConfigPath())
	},
}

func init() {
	configShowCmd.Flags().BoolP("json", "j", false, "Output configuration as JSON")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configSetCmd)
	ConfigCmd.AddCommand(configPathCmd)
}
