// Package annotate merges literature evidence into VCF records.
package annotate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/vibe-mm/internal/metrics"
	"github.com/inodb/vibe-mm/internal/vcf"
)

const (
	DefaultWorkers      = 4
	DefaultQueryTimeout = 30 * time.Second
)

// Status is the per-record annotation outcome.
type Status int

const (
	// StatusUnannotated: every query succeeded but returned no evidence.
	StatusUnannotated Status = iota
	// StatusAnnotated: evidence was merged into the record's INFO.
	StatusAnnotated
	// StatusSkipped: a query failed; the record passes through unchanged.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusAnnotated:
		return metrics.StatusAnnotated
	case StatusSkipped:
		return metrics.StatusSkipped
	}
	return metrics.StatusUnannotated
}

// RecordResult describes what happened to one record.
type RecordResult struct {
	Status  Status
	Queries int
	Err     error // set when Status is StatusSkipped
}

// Summary counts record outcomes for a run.
type Summary struct {
	Records     int
	Annotated   int
	Unannotated int
	Skipped     int
	Queries     int
}

func (s *Summary) add(r RecordResult) {
	s.Records++
	s.Queries += r.Queries
	switch r.Status {
	case StatusAnnotated:
		s.Annotated++
	case StatusSkipped:
		s.Skipped++
	default:
		s.Unannotated++
	}
}

// Annotator annotates VCF records with evidence from a Querier.
type Annotator struct {
	querier  Querier
	assembly Assembly
	infoKey  string
	workers  int
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewAnnotator creates a new annotator for the given assembly.
func NewAnnotator(q Querier, assembly Assembly) *Annotator {
	return &Annotator{
		querier:  q,
		assembly: assembly,
		infoKey:  DefaultInfoKey,
		workers:  DefaultWorkers,
		timeout:  DefaultQueryTimeout,
		logger:   zap.NewNop(),
	}
}

// SetInfoKey sets the INFO key evidence is written to.
func (a *Annotator) SetInfoKey(key string) {
	a.infoKey = key
}

// SetWorkers sets the number of concurrent queries. 1 gives strictly
// sequential processing.
func (a *Annotator) SetWorkers(n int) {
	a.workers = n
}

// SetQueryTimeout bounds each individual query. Zero disables the bound.
func (a *Annotator) SetQueryTimeout(d time.Duration) {
	a.timeout = d
}

// SetLogger sets the logger for warning and info messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// SetMetrics sets the collectors updated during a run.
func (a *Annotator) SetMetrics(m *metrics.Metrics) {
	a.metrics = m
}

// AnnotateRecord queries every allele of r and merges the evidence into its
// INFO under the annotation key. If any query fails the record is left
// untouched and reported as skipped.
func (a *Annotator) AnnotateRecord(ctx context.Context, r *vcf.Record) RecordResult {
	var res RecordResult
	var entries []string

	for _, key := range KeysForRecord(r, a.assembly) {
		res.Queries++
		evs, err := a.query(ctx, key)
		if err != nil {
			res.Status = StatusSkipped
			res.Err = err
			return res
		}
		for _, ev := range evs {
			entries = append(entries, EncodeEvidence(key.Alt, ev))
		}
	}

	if len(entries) == 0 {
		res.Status = StatusUnannotated
		return res
	}

	r.SetInfo(a.infoKey, EncodeInfoValue(entries))
	res.Status = StatusAnnotated
	return res
}

func (a *Annotator) query(ctx context.Context, key VariantKey) ([]Evidence, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	evs, err := a.querier.Query(ctx, key)
	a.metrics.ObserveQuery(time.Since(start))

	switch {
	case err != nil:
		a.metrics.IncrementQueries(metrics.OutcomeError)
	case len(evs) == 0:
		a.metrics.IncrementQueries(metrics.OutcomeEmpty)
	default:
		a.metrics.IncrementQueries(metrics.OutcomeHit)
	}
	return evs, err
}

// Run annotates every record from src and writes them to dst in input order.
//
// The header is written lazily: records are held back until the first
// annotated record (whose declaration is then added to the header) or the
// end of input, so the ##INFO line is present exactly when it is used.
// Query failures never abort the run; read and write errors do.
func (a *Annotator) Run(ctx context.Context, src vcf.RecordSource, dst vcf.RecordSink) (Summary, error) {
	var summary Summary

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	header := src.Header()
	items := make(chan WorkItem, 2*max(a.workers, 1))
	var parseErr error

	go func() {
		defer close(items)
		for seq := 0; ctx.Err() == nil; seq++ {
			r, err := src.Next()
			if err != nil {
				parseErr = fmt.Errorf("read record: %w", err)
				return
			}
			if r == nil {
				return
			}
			select {
			case items <- WorkItem{Seq: seq, Record: r}:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := a.ParallelAnnotate(ctx, items, a.workers)

	headerWritten := false
	var held []*vcf.Record

	writeHeader := func() error {
		headerWritten = true
		if err := dst.WriteHeader(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for _, r := range held {
			if err := dst.Write(r); err != nil {
				return fmt.Errorf("write record: %w", err)
			}
		}
		held = nil
		return nil
	}

	collect := func(r WorkResult) error {
		summary.add(r.RecordResult)
		a.metrics.IncrementRecords(r.Status.String())

		if r.Status == StatusSkipped {
			a.logger.Warn("skipping record: evidence query failed",
				zap.String("chrom", r.Record.Chrom),
				zap.Int64("pos", r.Record.Pos),
				zap.String("ref", r.Record.Ref),
				zap.String("alt", r.Record.Alt),
				zap.Error(r.Err))
		}

		if headerWritten {
			if err := dst.Write(r.Record); err != nil {
				return fmt.Errorf("write record: %w", err)
			}
			return nil
		}

		held = append(held, r.Record)
		if r.Status == StatusAnnotated {
			if header.AddInfo(InfoDefinition(a.infoKey)) {
				a.logger.Debug("added INFO declaration", zap.String("key", a.infoKey))
			}
			return writeHeader()
		}
		return nil
	}

	// A write failure stops the reader and the workers before the
	// collector drains what is already in flight.
	err := OrderedCollect(results, func(r WorkResult) error {
		if err := collect(r); err != nil {
			cancel()
			return err
		}
		return nil
	})
	if err != nil {
		return summary, err
	}

	if parseErr != nil {
		return summary, parseErr
	}

	if !headerWritten {
		if err := writeHeader(); err != nil {
			return summary, err
		}
	}

	if err := dst.Flush(); err != nil {
		return summary, fmt.Errorf("flush output: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	if summary.Records == 0 {
		a.logger.Info("0 records processed")
	}

	return summary, nil
}
