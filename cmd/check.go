package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kidoz/display-priority-manager/internal/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Print the current display configuration without changing it",
	Long: `Query kscreen-doctor and print every output with its priority and
whether it is the internal panel, followed by whether a fix is needed.

Equivalent to --mode check. The hardware checks still apply unless
--force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		GetConfig().Fix.Mode = config.ModeCheck
		return runFix(cmd)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
