package commands

import (
	"fmt"

	"github.com/netxfw/netxmap/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Show the current version of netxmap`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "netxmap %s (commit %s)\n", version.Version, version.Commit)
	},
}
