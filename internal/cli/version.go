package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X ..."
var Version = "0.1.0"

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "symptra v%s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
