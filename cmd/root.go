package cmd

import (
	"log/slog"
	"os"

	"github.com/praetorian-inc/quasar/internal/logs"
	"github.com/praetorian-inc/quasar/internal/message"
	"github.com/spf13/cobra"
)

var (
	quietFlag   bool
	noColorFlag bool
	verboseFlag bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quasar",
	Short: "Quasar audits the effective permission surface of Azure and Entra ID principals.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logs.ConsoleLogger()
		message.SetQuiet(quietFlag)
		message.SetNoColor(noColorFlag)
		if verboseFlag {
			logs.SetLevel(slog.LevelDebug)
		}
		message.Banner()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "suppress status messages")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
	generateCommands(rootCmd)
}
