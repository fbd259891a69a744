package main

import (
	"fmt"
	"path/filepath"

	"github.com/spboyer/portsel/internal/cache"
	"github.com/spboyer/portsel/internal/projectconfig"
	"github.com/spf13/cobra"
)

var cacheDir string

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the parsed corpus cache",
		Long: `Manage the parsed corpus cache.

The cache stores decoded corpora so repeated selections over the same
benchmark log skip parsing. Entries are keyed by the input file's content
and the decoding options.`,
	}

	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the parsed corpus cache",
		Long: `Clear all cached corpora.

The next selection run will parse its input from scratch.`,
		RunE: cacheClearE,
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", projectconfig.DefaultCacheDir, "Cache directory to clear")

	return cmd
}

func cacheClearE(cmd *cobra.Command, args []string) error {
	// Resolve to absolute path
	absDir, err := filepath.Abs(cacheDir)
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}

	c := cache.New(absDir)
	if err := c.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared: %s\n", absDir) //nolint:errcheck
	return nil
}
