package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/quietriver/sitecache/pkg/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the cache store",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print per-generation entry counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		registry, err := openRegistry(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer registry.Close()

		counts, err := registry.EntryCounts(cmd.Context())
		if err != nil {
			return err
		}
		if len(counts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "cache is empty")
			return nil
		}

		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "%-24s %d\n", name, counts[name])
		}
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every entry in every generation",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		registry, err := openRegistry(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer registry.Close()

		n, err := registry.PurgeAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d entries\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
