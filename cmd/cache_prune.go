package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/hlpipe/internal/infrastructure/sqlite"
	"github.com/zjrosen/hlpipe/internal/log"
)

var pruneOlderThan time.Duration

var cachePruneCmd = &cobra.Command{
	Use:   "cache:prune",
	Short: "Delete stale renders from the persistent cache",
	Long: `Delete renders from the persistent cache that have not been used within
the given age. The age defaults to cache.persistent.max_age.

Examples:
  hlpipe cache:prune
  hlpipe cache:prune --older-than 24h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := cfg.Cache.Persistent.Path
		if path == "" {
			return fmt.Errorf("cache.persistent.path is not set")
		}
		age := cfg.Cache.Persistent.MaxAge
		if cmd.Flags().Changed("older-than") {
			age = pruneOlderThan
		}
		if age <= 0 {
			return fmt.Errorf("prune age must be positive, got %s", age)
		}

		db, err := sqlite.NewDB(path)
		if err != nil {
			return fmt.Errorf("opening render store: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.ErrorErr(log.CatDB, "Failed to close render store", err)
			}
		}()

		store := db.RenderStore()
		removed, err := store.Prune(cmd.Context(), age)
		if err != nil {
			return err
		}
		remaining, err := store.Count(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "pruned %d renders, %d remaining\n", removed, remaining)
		return err
	},
}

func init() {
	cachePruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 0, "prune renders unused for this long (default: cache.persistent.max_age)")
	rootCmd.AddCommand(cachePruneCmd)
}
