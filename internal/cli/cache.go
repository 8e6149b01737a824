package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/carbonledger/esgscan/internal/cache"
	"github.com/carbonledger/esgscan/internal/config"
	"github.com/carbonledger/esgscan/internal/greenops"
)

// NewCacheCmd creates the cache command group for the extraction cache.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clean the extraction cache",
		Long: `analyze stores each extraction response under a key derived from the
document bytes and the model, so unchanged invoices are not sent again.`,
	}
	cmd.AddCommand(newCacheStatsCmd(), newCacheClearCmd(), newCachePruneCmd())
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache location and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetGlobalConfig()
			store, err := openCache(cfg)
			if err != nil {
				return err
			}
			st, err := store.Stats()
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Directory string `json:"directory"`
					Enabled   bool   `json:"enabled"`
					cache.Stats
				}{store.Dir(), cfg.Cache.Enabled, st})
			}
			cmd.Printf("Directory: %s\n", store.Dir())
			cmd.Printf("Enabled:   %t (ttl %s)\n", cfg.Cache.Enabled, cfg.Cache.TTL)
			cmd.Printf("Entries:   %d (%d expired)\n", st.Entries, st.Expired)
			cmd.Printf("Size:      %s bytes\n", greenops.FormatNumber(st.Bytes))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print stats as JSON")
	return cmd
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached extraction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCache(config.GetGlobalConfig())
			if err != nil {
				return err
			}
			n, err := store.Clear()
			if err != nil {
				return err
			}
			cmd.Printf("Removed %d cached extraction(s)\n", n)
			return nil
		},
	}
}

func newCachePruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove expired and unreadable cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCache(config.GetGlobalConfig())
			if err != nil {
				return err
			}
			n, err := store.Prune()
			if err != nil {
				return err
			}
			cmd.Printf("Pruned %d cache entries\n", n)
			return nil
		},
	}
}

func openCache(cfg *config.Config) (*cache.FileStore, error) {
	dir, err := cfg.CacheDir()
	if err != nil {
		return nil, err
	}
	return cache.NewFileStore(dir, cfg.Cache.TTL)
}
