package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-mm/internal/annotate"
	"github.com/inodb/vibe-mm/internal/duckdb"
	"github.com/inodb/vibe-mm/internal/metrics"
	"github.com/inodb/vibe-mm/internal/vcf"
)

func newAnnotateCmd() *cobra.Command {
	var (
		outputFile  string
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "annotate <input.vcf>",
		Short: "Annotate VCF records with Mastermind literature evidence",
		Long: `Query Mastermind for every alternate allele and add the evidence to
each record's INFO column. Records whose queries fail are passed through
unannotated. Input may be plain or gzip-compressed; use '-' for stdin.`,
		Example: `  vibe-mm annotate input.vcf -o annotated.vcf
  vibe-mm annotate --assembly GRCh37 --workers 8 input.vcf.gz -o out.vcf.gz
  cat input.vcf | vibe-mm annotate - > annotated.vcf`,
		Args: usageArgs(cobra.ExactArgs(1)),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(cmd, map[string]string{
				"cache":         "cache",
				"no_cache":      "no-cache",
				"workers":       "workers",
				"query_timeout": "query-timeout",
				"info_key":      "info-key",
				"max_articles":  "max-articles",
				"diseases":      "diseases",
			})
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnnotate(cmd.Context(), args[0], outputFile, metricsFile)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&outputFile, "output", "o", "-", "Output VCF (.gz for compressed, '-' for stdout)")
	f.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	f.String("cache", DefaultCachePath(), "DuckDB evidence cache")
	f.Bool("no-cache", false, "Query the API for every allele, bypassing the cache")
	f.Int("workers", annotate.DefaultWorkers, "Concurrent queries (1 = sequential)")
	f.Duration("query-timeout", annotate.DefaultQueryTimeout, "Timeout for the evidence lookup of one allele")
	f.String("info-key", annotate.DefaultInfoKey, "INFO key evidence is written to")
	f.Int("max-articles", 0, "Maximum PMIDs kept per variant (default 1000)")
	f.Bool("diseases", false, "Add disease associations as evidence tags")

	return cmd
}

func runAnnotate(ctx context.Context, inputPath, outputPath, metricsFile string) error {
	s, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	assembly, err := s.assembly()
	if err != nil {
		return err
	}
	client, err := newClient(s, logger)
	if err != nil {
		return err
	}

	m := metrics.New()

	var querier annotate.Querier = client
	store, err := openStore(s, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		cq := duckdb.NewCachedQuerier(store, client)
		cq.SetTimeout(s.QueryTimeout)
		cq.SetLogger(logger)
		cq.SetMetrics(m)
		querier = cq
	}

	parser, err := vcf.NewParser(inputPath)
	if err != nil {
		return err
	}
	defer parser.Close()

	writer, err := vcf.Create(outputPath)
	if err != nil {
		return err
	}

	ann := annotate.NewAnnotator(querier, assembly)
	ann.SetLogger(logger)
	ann.SetMetrics(m)
	if s.Workers > 0 {
		ann.SetWorkers(s.Workers)
	}
	if s.QueryTimeout > 0 {
		ann.SetQueryTimeout(s.QueryTimeout)
	}
	if s.InfoKey != "" {
		ann.SetInfoKey(s.InfoKey)
	}

	logger.Info("annotating",
		zap.String("input", inputPath),
		zap.String("assembly", string(assembly)),
		zap.Int("workers", s.Workers))

	summary, runErr := ann.Run(ctx, parser, writer)
	if err := writer.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return runErr
	}

	logger.Info("annotation complete",
		zap.Int("records", summary.Records),
		zap.Int("annotated", summary.Annotated),
		zap.Int("unannotated", summary.Unannotated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("queries", summary.Queries))
	fmt.Fprintf(os.Stderr, "Annotated %d of %d records (%d skipped)\n",
		summary.Annotated, summary.Records, summary.Skipped)

	if metricsFile != "" {
		if err := m.WriteTextfile(metricsFile); err != nil {
			return err
		}
	}
	return nil
}
