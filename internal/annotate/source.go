package annotate

import (
	"context"
	"errors"
	"fmt"
)

// Evidence is one literature-evidence item returned for a variant.
type Evidence struct {
	Variant      string   // canonical variant, e.g. "BRAF:V600E"
	Genes        []string // gene symbols
	ArticleCount int      // number of citing articles
	PMIDs        []string // PubMed identifiers of citing articles
	Tags         []string // classification tags (e.g. disease keys)
	URL          string   // link to the variant detail page
}

// Querier looks up evidence for a single variant allele.
// An empty result with a nil error means the service knows nothing about it.
type Querier interface {
	Query(ctx context.Context, key VariantKey) ([]Evidence, error)
}

// QueryFunc adapts a plain function to the Querier interface.
type QueryFunc func(ctx context.Context, key VariantKey) ([]Evidence, error)

func (f QueryFunc) Query(ctx context.Context, key VariantKey) ([]Evidence, error) {
	return f(ctx, key)
}

// ErrorKind classifies a query failure.
type ErrorKind int

const (
	// Transient failures (timeouts, 5xx, network) may succeed on retry.
	Transient ErrorKind = iota
	// Permanent failures (bad request, schema mismatch) will not.
	Permanent
)

func (k ErrorKind) String() string {
	if k == Permanent {
		return "permanent"
	}
	return "transient"
}

// QueryError reports a failed evidence query.
type QueryError struct {
	Kind ErrorKind
	Key  VariantKey
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s query error for %s: %v", e.Kind, e.Key, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a transient QueryError.
func IsTransient(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.Kind == Transient
}
