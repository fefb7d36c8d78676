// Package cli implements the sitecache command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quietriver/sitecache/pkg/logging"
)

// Global flags
var (
	configPath string
	logLevel   string
	logPretty  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitecache",
	Short: "Offline-first caching gateway for static sites",
	Long: `sitecache fronts a static site origin with a generation-based cache:
declared assets are precached at install, requests are classified into
routing tiers, and each tier is served by its own fetch strategy so the
site keeps working when the origin does not.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logging.Config{
			Level:  logging.LogLevel(logLevel),
			Pretty: logPretty,
		})
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sitecache.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "log-pretty", false, "Human-readable console log output instead of JSON")
}
