// Package cmd defines and implements the CLI commands for the websift
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "websift",
		Short: "Pull URLs out of text, fetch the pages, and sift the content.",
		Long: `websift extracts every URL from a text blob, retrieves the rendered
pages through a headless browser, reduces them to deduplicated text blocks,
and ranks the blocks against a query.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars use the WEBSIFT_ prefix)")

	cmd.AddCommand(newSiftCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
