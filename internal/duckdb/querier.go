package duckdb

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/inodb/vibe-mm/internal/annotate"
	"github.com/inodb/vibe-mm/internal/metrics"
)

// CachedQuerier answers queries from the store and falls back to an
// upstream Querier on a miss. Successful upstream results, empty ones
// included, are written back; failures are not cached. Concurrent misses
// for the same key share one upstream call, which is detached from the
// callers' contexts and bounded by its own timeout.
type CachedQuerier struct {
	store    *Store
	upstream annotate.Querier
	group    singleflight.Group
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewCachedQuerier wraps upstream with the store's evidence cache.
func NewCachedQuerier(store *Store, upstream annotate.Querier) *CachedQuerier {
	return &CachedQuerier{
		store:    store,
		upstream: upstream,
		timeout:  annotate.DefaultQueryTimeout,
		logger:   zap.NewNop(),
	}
}

// SetTimeout bounds a shared upstream call. Zero disables the bound.
func (q *CachedQuerier) SetTimeout(d time.Duration) {
	q.timeout = d
}

// SetLogger sets the logger for cache read and write failures.
func (q *CachedQuerier) SetLogger(l *zap.Logger) {
	q.logger = l
}

// SetMetrics sets the collectors that count cache hits.
func (q *CachedQuerier) SetMetrics(m *metrics.Metrics) {
	q.metrics = m
}

func (q *CachedQuerier) Query(ctx context.Context, key annotate.VariantKey) ([]annotate.Evidence, error) {
	evs, found, err := q.store.LookupEvidence(key)
	switch {
	case err != nil:
		q.logger.Warn("evidence cache lookup failed", zap.Stringer("key", key), zap.Error(err))
	case found:
		q.metrics.IncrementQueries(metrics.OutcomeCacheHit)
		return evs, nil
	}

	ch := q.group.DoChan(key.String(), func() (any, error) {
		// One caller giving up must not fail the others waiting on this key.
		ctx := context.WithoutCancel(ctx)
		if q.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, q.timeout)
			defer cancel()
		}
		evs, err := q.upstream.Query(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := q.store.WriteEvidence(key, evs); err != nil {
			q.logger.Warn("evidence cache write failed", zap.Stringer("key", key), zap.Error(err))
		}
		return evs, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]annotate.Evidence), nil
	case <-ctx.Done():
		return nil, &annotate.QueryError{Kind: annotate.Transient, Key: key, Err: ctx.Err()}
	}
}
