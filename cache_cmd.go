package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZacxDev/reelbatch/pkg/videoprocessor"
)

func newCacheCommand() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the downloaded asset cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage and entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := videoprocessor.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer proc.Close()

			fmt.Fprintln(cmd.OutOrStdout(), renderCacheStats(proc.CacheStats(), proc.CacheEntries()))
			return nil
		},
	}

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired cache entries and old rendered outputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := videoprocessor.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer proc.Close()

			expired, err := proc.CleanupCache()
			if err != nil {
				return err
			}
			outputs, err := proc.CleanupOutputs()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired cache entries and %d old outputs.\n", expired, outputs)
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <url>",
		Short: "Drop one URL from the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := videoprocessor.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer proc.Close()

			if err := proc.RemoveFromCache(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}

	cacheCmd.AddCommand(statsCmd, cleanupCmd, removeCmd)
	return cacheCmd
}
