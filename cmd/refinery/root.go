package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "refinery",
	Short: "Refinery - rate-limited, cached AI resume refinement service",
	Long: `Refinery refines resume bullet points through an AI provider.

Every request is guarded by a per-user sliding-window rate limit and a
fingerprint cache: identical bullets are answered from cache without
consuming quota or paying for an AI call. The quota store is optional;
without it the service runs unmetered rather than refusing traffic.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
