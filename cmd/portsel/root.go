package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portsel",
		Short: "Portsel - select a compressor configuration portfolio",
		Long: `Portsel picks a small, fixed-size portfolio of compressor configurations
that minimizes aggregate compressed size over a benchmark corpus.

Each corpus sample reports the cost of every candidate configuration plus
reference baselines. Portsel greedily builds the portfolio, handles
incompressible samples, and reports savings against every baseline.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newSelectCommand())
	cmd.AddCommand(newCompareCommand())
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newCacheCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
