// Package cmd defines the CLI commands for the videoscan executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root command and attaches every subcommand.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "videoscan",
		Short: "Scans higher-ed homepages for hero videos and embedded iframes.",
		Long: `videoscan renders each homepage in a headless browser at a mobile and a
desktop viewport, picks the hero video and visible iframes, probes the video
sources, checks reduced-motion handling and writes one CSV row per site.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(newScanCmd(&cfgFile))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
