package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "labglue %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
