// Package cmd holds the cobra commands of the site binary.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "site",
		Short: "Backend of the consulting website.",
		Long: `site serves the contact form pipeline, the publications feed,
the sitemap and the operational endpoints of the consulting website.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment variables with the SITE_ prefix override it")

	cmd.AddCommand(newServeCmd(&cfgFile))
	cmd.AddCommand(newCheckConfigCmd(&cfgFile))

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
