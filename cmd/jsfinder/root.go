package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for jsfinder.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jsfinder",
		Short: "Discover the JavaScript files of a website",
		Long: `jsfinder discovers the script resources of a website.

It fetches the seed pages of a domain, extracts script references from
them, and recursively follows the references found in every script it
confirms. Plugins then look for paths built at runtime, such as webpack
chunk maps, and their results are followed the same way.

Only references on the given domain are followed.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
