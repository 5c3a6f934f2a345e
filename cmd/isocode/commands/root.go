// Package commands defines the isocode CLI.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/isocode-ai/isocode/internal/logging"
)

var (
	flagWorkspace string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "isocode",
	Short: "Local agentic coding assistant runtime",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.Config{
			Level:  logging.ParseLevel(flagLogLevel),
			Pretty: true,
		})
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cwd, _ := os.Getwd()
	rootCmd.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "w", cwd, "workspace root directory")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(healthCmd)
}
