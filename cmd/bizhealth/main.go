// Package main provides the bizhealth CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var g globalOpts

	rootCmd := &cobra.Command{
		Use:   "bizhealth",
		Short: "Explainable health scores for small service businesses",
		Long: `Bizhealth turns aggregated business facts into a 0-100 health score across
profit, cash flow, efficiency and risk, with a breakdown tree explaining every
point and prioritized recommendations.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to config file (default: search for .bizhealth/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(
		newScoreCmd(&g),
		newClientsCmd(&g),
		newTreeCmd(&g),
		newCompareCmd(&g),
	)
	return rootCmd
}
