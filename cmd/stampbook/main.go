package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stampbook/stampbook/cmd/stampbook/commands"
	"github.com/stampbook/stampbook/logger"
)

var jsonLogs bool

var rootCmd = &cobra.Command{
	Use:   "stampbook",
	Short: "Stampbook - travel history import service",
	Long: `Stampbook scans a user's Gmail and Google Calendar for travel evidence
and proposes countries to add to their visited map.

Available commands:
  serve - Start the HTTP API server and background job runner
  scan  - Run a one-shot synchronous scan for a user

Examples:
  stampbook serve                  # Start the API server
  stampbook scan --user user-123   # Scan one user's sources inline`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", "", "Path to a config file (default: search ./, $HOME/.stampbook, /etc/stampbook)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.ScanCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
