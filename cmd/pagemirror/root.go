package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pagemirror.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagemirror",
		Short: "Mirror web pages and their assets for offline browsing",
		Long: `pagemirror saves a web page with the stylesheets, scripts, images and
other files it references, and rewrites every reference so the copy can be
browsed offline.

With --crawl it also follows links to other pages of the same site,
bounded by depth and page count. robots.txt is honored unless
--bypass-robots is given.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewGetCmd())
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
