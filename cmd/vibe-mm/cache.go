package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-mm/internal/duckdb"
	"github.com/inodb/vibe-mm/internal/output"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the local evidence cache",
		Long: `The evidence cache is a DuckDB database holding the results of earlier
lookups, keyed by assembly and allele, and the annotation jobs submitted
for local files.`,
		Example: `  vibe-mm cache stats
  vibe-mm cache search --gene KRAS
  vibe-mm cache clear --jobs`,
	}
	cmd.PersistentFlags().String("cache", DefaultCachePath(), "DuckDB evidence cache")

	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCacheSearchCmd())
	cmd.AddCommand(newCacheClearCmd())
	return cmd
}

// withStore binds the cache flag and opens the store for fn.
func withStore(cmd *cobra.Command, fn func(*duckdb.Store) error) error {
	bindFlags(cmd, map[string]string{"cache": "cache"})
	s, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	s.NoCache = false
	if s.Cache == "" {
		return &usageError{errors.New("no cache path set")}
	}
	store, err := openStore(s, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache contents",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *duckdb.Store) error {
				st, err := store.Stats()
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Cache:          %s\n", store.Path())
				fmt.Fprintf(w, "Queried keys:   %d\n", st.QueriedKeys)
				fmt.Fprintf(w, "  no evidence:  %d\n", st.EmptyKeys)
				fmt.Fprintf(w, "Evidence items: %d\n", st.EvidenceItems)
				fmt.Fprintf(w, "Recorded jobs:  %d\n", st.Jobs)
				return nil
			})
		},
	}
}

func newCacheSearchCmd() *cobra.Command {
	var gene, variant string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "List cached evidence for a gene or canonical variant",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *duckdb.Store) error {
				var (
					hits []duckdb.EvidenceHit
					err  error
				)
				if gene != "" {
					hits, err = store.SearchByGene(gene)
				} else {
					hits, err = store.SearchByVariant(variant)
				}
				if err != nil {
					return err
				}
				return writeHits(cmd.OutOrStdout(), hits)
			})
		},
	}
	cmd.Flags().StringVarP(&gene, "gene", "g", "", "Gene symbol")
	cmd.Flags().StringVar(&variant, "variant", "", "Canonical variant, e.g. KRAS:G12C")
	cmd.MarkFlagsMutuallyExclusive("gene", "variant")
	cmd.MarkFlagsOneRequired("gene", "variant")
	return cmd
}

func writeHits(w io.Writer, hits []duckdb.EvidenceHit) error {
	tw := output.NewTabWriter(w)
	if err := tw.WriteHeader(); err != nil {
		return err
	}
	for _, h := range hits {
		if err := tw.Write(output.EvidenceRow{
			Query:        h.Key.String(),
			Matched:      h.Evidence.Variant,
			Canonical:    h.Evidence.Variant,
			ArticleCount: h.Evidence.ArticleCount,
			URL:          h.Evidence.URL,
		}); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func newCacheClearCmd() *cobra.Command {
	var jobs bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all cached evidence",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *duckdb.Store) error {
				if err := store.ClearEvidence(); err != nil {
					return err
				}
				if jobs {
					if err := store.ClearJobs(); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", store.Path())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jobs, "jobs", false, "Also forget recorded annotation jobs")
	return cmd
}
