package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coregx/quarry/internal/reflector"
)

// cacheAction is CachedCollection.Build or CachedCollection.Clear.
type cacheAction func(c *reflector.CachedCollection, ctx context.Context, tables ...string) ([]string, error)

func newCacheCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the table metadata cache",
		Long: `The metadata cache stores described tables under <connection>_<table> keys.
Without table names, build and clear act on every table of the schema.`,
	}
	cmd.AddCommand(newCacheRunCommand(opts, "build", "Describe tables and store them in the cache",
		(*reflector.CachedCollection).Build, "Built"))
	cmd.AddCommand(newCacheRunCommand(opts, "clear", "Remove tables from the cache",
		(*reflector.CachedCollection).Clear, "Cleared"))
	return cmd
}

func newCacheRunCommand(opts *options, use, short string, run cacheAction, verb string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [table]...",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, c, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			cc, err := opts.cached(c)
			if err != nil {
				return err
			}
			names, err := run(cc, cmd.Context(), args...)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, cc.CacheKey(name))
			}
			return nil
		},
	}
}
