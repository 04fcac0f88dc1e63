package mastermind

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/inodb/vibe-mm/internal/annotate"
)

// Query implements annotate.Querier. The allele's genomic description is
// resolved through suggestions; every canonical match with at least one
// citation becomes one Evidence item carrying its first page of PMIDs and,
// when enabled, its disease keys as tags.
func (c *Client) Query(ctx context.Context, key annotate.VariantKey) ([]annotate.Evidence, error) {
	evs, err := c.query(ctx, key)
	if err != nil {
		return nil, &annotate.QueryError{Kind: errorKind(err), Key: key, Err: err}
	}
	return evs, nil
}

func (c *Client) query(ctx context.Context, key annotate.VariantKey) ([]annotate.Evidence, error) {
	suggestions, err := c.Suggestions(ctx, url.Values{"variant": {key.Descriptor()}})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var evs []annotate.Evidence
	seen := make(map[string]bool)
	for _, s := range suggestions {
		if seen[s.Canonical] {
			continue
		}
		seen[s.Canonical] = true

		ev, ok, err := c.evidence(ctx, s.Canonical)
		if err != nil {
			return nil, err
		}
		if ok {
			evs = append(evs, ev)
		}
	}
	return evs, nil
}

// evidence collects counts, PMIDs and disease tags for one canonical
// variant. ok is false when the API does not know it or counts no
// articles for it.
func (c *Client) evidence(ctx context.Context, canonical string) (annotate.Evidence, bool, error) {
	params := url.Values{"variant": {canonical}}

	cnt, err := c.Counts(ctx, params)
	if errors.Is(err, ErrNotFound) {
		return annotate.Evidence{}, false, nil
	}
	if err != nil {
		return annotate.Evidence{}, false, err
	}

	if cnt.ArticleCount == 0 {
		return annotate.Evidence{}, false, nil
	}

	ev := annotate.Evidence{
		Variant:      canonical,
		ArticleCount: cnt.ArticleCount,
		URL:          cnt.URL,
	}
	if gene, _, ok := strings.Cut(canonical, ":"); ok {
		ev.Genes = []string{gene}
	}
	page, err := c.Articles(ctx, params)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return annotate.Evidence{}, false, err
	default:
		for _, a := range page.Articles {
			if len(ev.PMIDs) >= c.cfg.MaxArticles {
				break
			}
			ev.PMIDs = append(ev.PMIDs, string(a.PMID))
		}
	}

	if c.cfg.Diseases {
		diseases, err := c.Diseases(ctx, params)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return annotate.Evidence{}, false, err
		}
		for _, d := range diseases {
			ev.Tags = append(ev.Tags, d.Key)
		}
	}
	return ev, true, nil
}
