// Package display renders command output: pretty JSON for scripting,
// pterm tables and status lines for humans.
package display

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// MarshalJSON marshals with pretty formatting for terminal consumption
func MarshalJSON(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// OutputJSON marshals and prints JSON to stdout
func OutputJSON(v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// ShouldOutputJSON determines if a command should output JSON based on
// its own --json flag or the global one
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}

	if cmd.Flags().Changed("json") {
		jsonFlag, _ := cmd.Flags().GetBool("json")
		return jsonFlag
	}

	globalFlag, _ := cmd.Root().PersistentFlags().GetBool("json")
	return globalFlag
}
