// storecachectl is the operator tool for the marketplace cache: inspect
// keys, reset a namespace, and print revenue stats without going through
// the application.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/modacart/storecache/config"
	"github.com/modacart/storecache/kv"
	"github.com/modacart/storecache/revenue"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storecachectl",
		Short:         "Inspect and administer the marketplace cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newKeysCmd(), newDropCmd(), newRevenueStatsCmd())
	return root
}

// connect loads config from the environment and returns a store plus a
// cleanup func closing the underlying client.
func connect() (kv.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	client := config.NewRedisClient(cfg)
	store := kv.NewRedis(client, kv.WithQueryTimeout(cfg.QueryTimeout))
	return store, func() { client.Close() }, nil
}

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys <pattern>",
		Short: "List cache keys matching a glob pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := connect()
			if err != nil {
				return err
			}
			defer cleanup()
			matches, err := store.Keys(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, k := range matches {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func newDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <pattern>",
		Short: "Delete every cache key matching a glob pattern",
		Long: "Administrative reset. The affected namespaces repopulate " +
			"lazily from the source of truth on the next read.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := connect()
			if err != nil {
				return err
			}
			defer cleanup()
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()
			matches, err := store.Keys(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := store.Del(cmd.Context(), matches...); err != nil {
				return err
			}
			logger.Info("dropped cache keys",
				zap.String("pattern", args[0]), zap.Int("count", len(matches)))
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %d keys\n", len(matches))
			return nil
		},
	}
}

func newRevenueStatsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "revenue-stats <brandID>",
		Short: "Print a brand's revenue stats as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := connect()
			if err != nil {
				return err
			}
			defer cleanup()
			ledger := revenue.New(store)
			stats, err := ledger.Stats(cmd.Context(), args[0], days)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "window length in days; compared against the preceding window of the same length")
	return cmd
}
