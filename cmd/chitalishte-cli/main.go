// Package main provides the chitalishte query engine CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chitalishte-ai/query-engine/internal/config"
	"github.com/chitalishte-ai/query-engine/internal/observability"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	noColor    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "chitalishte-cli",
	Short: "Chitalishte query engine CLI for routing and SQL guard checks",
	Long: `Chitalishte query engine CLI provides commands for inspecting the
question pipeline without running the API server.

Use this tool to:
- Classify a question into sql, rag, or hybrid intent
- Validate and rewrite a single SQL query against the schema catalog
- Audit a batch file of queries and report which ones the guard rejects

All commands support --json for automation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logFormat := "console"
		if outputJSON {
			logFormat = "json"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       "warn",
			Format:      logFormat,
			ServiceName: "chitalishte-cli",
		})

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newRouteCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newAuditCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
