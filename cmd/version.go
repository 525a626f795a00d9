package cmd

import (
	"github.com/praetorian-inc/quasar/internal/message"
	"github.com/praetorian-inc/quasar/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Quasar",
	Long:  `All software has versions. This is Quasar's`,
	Run: func(cmd *cobra.Command, args []string) {
		message.Info(version.FullVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
