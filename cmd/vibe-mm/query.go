package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-mm/internal/mastermind"
	"github.com/inodb/vibe-mm/internal/output"
)

func newCountsCmd() *cobra.Command {
	var gene bool

	cmd := &cobra.Command{
		Use:   "counts <variant>",
		Short: "Show article counts for a variant or gene",
		Long: `Resolve a variant description (protein change, cDNA or genomic HGVS)
through Mastermind suggestions and print the article count of every
canonical match. With --gene the argument is looked up as a gene symbol.`,
		Example: `  vibe-mm counts BRAF:V600E
  vibe-mm counts NC_000007.14:g.140753336A>T
  vibe-mm counts --gene KRAS`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCounts(cmd.Context(), cmd.OutOrStdout(), args[0], gene)
		},
	}
	cmd.Flags().BoolVar(&gene, "gene", false, "Treat the argument as a gene symbol")
	return cmd
}

func runCounts(ctx context.Context, w io.Writer, query string, gene bool) error {
	s, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := newClient(s, logger)
	if err != nil {
		return err
	}

	tw := output.NewTabWriter(w)
	if err := tw.WriteHeader(); err != nil {
		return err
	}

	if gene {
		cnt, err := client.Counts(ctx, url.Values{"gene": {query}})
		if err != nil && !errors.Is(err, mastermind.ErrNotFound) {
			return err
		}
		if err := tw.Write(output.EvidenceRow{
			Query: query, Matched: query, Canonical: query,
			ArticleCount: cnt.ArticleCount, URL: cnt.URL,
		}); err != nil {
			return err
		}
		return tw.Flush()
	}

	suggestions, err := client.Suggestions(ctx, url.Values{"variant": {query}})
	if errors.Is(err, mastermind.ErrNotFound) {
		logger.Info("no match", zap.String("variant", query))
		return tw.Flush()
	}
	if err != nil {
		return err
	}

	for _, sg := range suggestions {
		cnt, err := client.Counts(ctx, url.Values{"variant": {sg.Canonical}})
		if err != nil && !errors.Is(err, mastermind.ErrNotFound) {
			return err
		}
		link := cnt.URL
		if link == "" {
			link = sg.URL
		}
		if err := tw.Write(output.EvidenceRow{
			Query:        query,
			Matched:      sg.Matched,
			Canonical:    sg.Canonical,
			ArticleCount: cnt.ArticleCount,
			URL:          link,
		}); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func newGeneVariantsCmd() *cobra.Command {
	var (
		gene      string
		inputFile string
		csvFile   string
		jsonFile  string
	)

	cmd := &cobra.Command{
		Use:   "gene-variants",
		Short: "List the cited variants of one or more genes",
		Long: `Page through every variant Mastermind knows for a gene and list its
citation count and link. Genes come from --gene or from a file with one
gene per line. Output goes to stdout unless --csv or --json is given.`,
		Example: `  vibe-mm gene-variants --gene BRCA1
  vibe-mm gene-variants --input genes.txt --csv variants.csv
  vibe-mm gene-variants --gene TP53 --json tp53.json`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			genes := []string{gene}
			if inputFile != "" {
				var err error
				if genes, err = readGenes(inputFile); err != nil {
					return err
				}
			}
			return runGeneVariants(cmd.Context(), cmd.OutOrStdout(), genes, csvFile, jsonFile)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&gene, "gene", "g", "", "Gene symbol")
	f.StringVarP(&inputFile, "input", "i", "", "File with one gene symbol per line")
	f.StringVar(&csvFile, "csv", "", "Write the listing to this CSV file")
	f.StringVar(&jsonFile, "json", "", "Write the listing to this JSON file")
	cmd.MarkFlagsMutuallyExclusive("gene", "input")
	cmd.MarkFlagsOneRequired("gene", "input")

	return cmd
}

func runGeneVariants(ctx context.Context, stdout io.Writer, genes []string, csvFile, jsonFile string) error {
	s, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := newClient(s, logger)
	if err != nil {
		return err
	}

	var all []mastermind.GeneVariant
	for _, gene := range genes {
		variants, err := client.GeneVariants(ctx, gene)
		if err != nil {
			return err
		}
		logger.Info("fetched gene variants", zap.String("gene", gene), zap.Int("variants", len(variants)))
		all = append(all, variants...)
	}

	if csvFile == "" && jsonFile == "" {
		return output.WriteVariantList(stdout, all)
	}
	if csvFile != "" {
		if err := writeFile(csvFile, func(w io.Writer) error { return output.WriteVariantList(w, all) }); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %d variants to %s\n", len(all), csvFile)
	}
	if jsonFile != "" {
		if err := writeFile(jsonFile, func(w io.Writer) error { return output.WriteVariantJSON(w, all) }); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %d variants to %s\n", len(all), jsonFile)
	}
	return nil
}

func newGeneCountsCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "gene-counts <genes.txt> <output.csv>",
		Short: "Write the article count of every gene in a list",
		Long: `Look up the Mastermind article count of each gene symbol in the input
file (one per line) and write gene,count rows. Genes unknown to the API
count as zero; genes whose lookup fails are logged and left out.`,
		Example: `  vibe-mm gene-counts genes.txt counts.csv
  vibe-mm gene-counts --concurrency 16 genes.txt counts.csv`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGeneCounts(cmd.Context(), args[0], args[1], concurrency)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 8, "Concurrent gene lookups")
	return cmd
}

func runGeneCounts(ctx context.Context, inputPath, outputPath string, concurrency int) error {
	s, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	genes, err := readGenes(inputPath)
	if err != nil {
		return err
	}
	client, err := newClient(s, logger)
	if err != nil {
		return err
	}

	counts, err := client.GeneCounts(ctx, genes, concurrency)
	if err != nil {
		return err
	}
	failed := 0
	for _, c := range counts {
		if c.Err != nil {
			failed++
			logger.Warn("gene lookup failed", zap.String("gene", c.Gene), zap.Error(c.Err))
		}
	}

	if err := writeFile(outputPath, func(w io.Writer) error { return output.WriteGeneCounts(w, counts) }); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %d of %d genes to %s\n", len(counts)-failed, len(counts), outputPath)
	return nil
}

func newFusionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fusion <geneA> <geneB>",
		Short: "List PMIDs of fusion articles citing both genes",
		Long: `Fetch all fusion and breakpoint articles for each gene and print the
PMIDs the two genes share, one per line.`,
		Example: `  vibe-mm fusion BCR ABL1`,
		Args:    usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFusion(cmd.Context(), cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func runFusion(ctx context.Context, w io.Writer, geneA, geneB string) error {
	s, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := newClient(s, logger)
	if err != nil {
		return err
	}

	pmids, err := client.FusionPMIDs(ctx, geneA, geneB)
	if err != nil {
		return err
	}
	for _, p := range pmids {
		if _, err := fmt.Fprintln(w, p); err != nil {
			return err
		}
	}
	logger.Info("fusion articles", zap.String("gene_a", geneA), zap.String("gene_b", geneB), zap.Int("shared", len(pmids)))
	return nil
}

// writeFile creates path and writes it with fn.
func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
