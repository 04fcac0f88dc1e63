package mastermind

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PMID is a PubMed identifier. The API returns it either as a JSON number
// or a string.
type PMID string

func (p *PMID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PMID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("pmid: %w", err)
	}
	*p = PMID(n.String())
	return nil
}

// Suggestion maps a query to one canonical variant.
type Suggestion struct {
	Matched   string `json:"matched"`
	Canonical string `json:"canonical"`
	URL       string `json:"url"`
}

// Counts is the article count for a variant or gene.
type Counts struct {
	ArticleCount int
	URL          string
}

type countsResponse struct {
	ArticleCount *int   `json:"article_count"`
	URL          string `json:"url"`
}

// Article is one entry of an articles page.
type Article struct {
	PMID PMID `json:"pmid"`
}

// ArticlesPage is one page of an articles listing.
type ArticlesPage struct {
	ArticleCount int       `json:"article_count"`
	Pages        int       `json:"pages"`
	Articles     []Article `json:"articles"`
}

// Disease is a disease association with its citation count.
type Disease struct {
	Key          string `json:"key"`
	ArticleCount int    `json:"article_count"`
}

// GeneVariant is one row of a gene's variant listing.
type GeneVariant struct {
	Gene         string `json:"gene"`
	Key          string `json:"key"`
	ArticleCount int    `json:"article_count"`
	URL          string `json:"url"`
}

// GeneCount is the article count for one gene. Err is set when the
// lookup failed; the count is then zero.
type GeneCount struct {
	Gene         string
	ArticleCount int
	Err          error
}

// Suggestions resolves a free-form variant (e.g. an HGVS genomic
// description) into canonical variants.
func (c *Client) Suggestions(ctx context.Context, params url.Values) ([]Suggestion, error) {
	var out []Suggestion
	if err := c.getJSON(ctx, "suggestions", params, &out); err != nil {
		return nil, err
	}
	for _, s := range out {
		if s.Canonical == "" {
			return nil, &SchemaError{Endpoint: "suggestions", Msg: "suggestion missing canonical"}
		}
	}
	return out, nil
}

// Counts returns the article count for the given variant or gene.
func (c *Client) Counts(ctx context.Context, params url.Values) (Counts, error) {
	var raw countsResponse
	if err := c.getJSON(ctx, "counts", params, &raw); err != nil {
		return Counts{}, err
	}
	if raw.ArticleCount == nil {
		return Counts{}, &SchemaError{Endpoint: "counts", Msg: "response missing article_count"}
	}
	return Counts{ArticleCount: *raw.ArticleCount, URL: raw.URL}, nil
}

// Articles fetches a single page of articles.
func (c *Client) Articles(ctx context.Context, params url.Values) (*ArticlesPage, error) {
	var page ArticlesPage
	if err := c.getJSON(ctx, "articles", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ArticlePMIDs pages through articles and returns up to limit PMIDs
// (all when limit <= 0).
func (c *Client) ArticlePMIDs(ctx context.Context, params url.Values, limit int) ([]string, error) {
	var pmids []string
	last := MaxPageCount
	for page := 1; page <= last; page++ {
		p := cloneValues(params)
		p.Set("page", strconv.Itoa(page))

		ap, err := c.Articles(ctx, p)
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, a := range ap.Articles {
			pmids = append(pmids, string(a.PMID))
			if limit > 0 && len(pmids) >= limit {
				return pmids, nil
			}
		}
		last = min(ap.Pages, MaxPageCount)
	}
	return pmids, nil
}

// Diseases returns disease associations for a canonical variant.
func (c *Client) Diseases(ctx context.Context, params url.Values) ([]Disease, error) {
	var out struct {
		Diseases []Disease `json:"diseases"`
	}
	if err := c.getJSON(ctx, "diseases", params, &out); err != nil {
		return nil, err
	}
	return out.Diseases, nil
}

// GeneVariants lists every variant of gene with its citation count.
func (c *Client) GeneVariants(ctx context.Context, gene string) ([]GeneVariant, error) {
	var variants []GeneVariant
	last := MaxPageCount
	for page := 1; page <= last; page++ {
		var out struct {
			Pages    int           `json:"pages"`
			Variants []GeneVariant `json:"variants"`
		}
		params := url.Values{"gene": {gene}, "page": {strconv.Itoa(page)}}
		err := c.getJSON(ctx, "variants", params, &out)
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("variants for %s page %d: %w", gene, page, err)
		}
		c.logger.Debug("fetched variants page",
			zap.String("gene", gene), zap.Int("page", page), zap.Int("pages", out.Pages))
		variants = append(variants, out.Variants...)
		last = min(out.Pages, MaxPageCount)
	}
	return variants, nil
}

// GeneCounts looks up the article count of every gene, at most
// concurrency at a time. A 404 counts as zero articles. Per-gene failures
// are reported in GeneCount.Err; only cancellation aborts the call.
// Results are in input order.
func (c *Client) GeneCounts(ctx context.Context, genes []string, concurrency int) ([]GeneCount, error) {
	results := make([]GeneCount, len(genes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for i, gene := range genes {
		g.Go(func() error {
			results[i].Gene = gene
			cnt, err := c.Counts(ctx, url.Values{"gene": {gene}})
			switch {
			case errors.Is(err, ErrNotFound):
			case err != nil:
				if ctx.Err() != nil {
					return ctx.Err()
				}
				results[i].Err = err
			default:
				results[i].ArticleCount = cnt.ArticleCount
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// FusionPMIDs returns the PMIDs of fusion or breakpoint articles that
// mention both genes, sorted.
func (c *Client) FusionPMIDs(ctx context.Context, geneA, geneB string) ([]string, error) {
	var a, b []string

	g, ctx := errgroup.WithContext(ctx)
	fetch := func(gene string, dst *[]string) func() error {
		return func() error {
			params := url.Values{
				"gene":         {gene},
				"categories[]": {"fusion", "breakpoint"},
			}
			pmids, err := c.ArticlePMIDs(ctx, params, 0)
			if err != nil {
				return fmt.Errorf("fusion articles for %s: %w", gene, err)
			}
			*dst = pmids
			return nil
		}
	}
	g.Go(fetch(geneA, &a))
	g.Go(fetch(geneB, &b))
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inA := make(map[string]bool, len(a))
	for _, p := range a {
		inA[p] = true
	}
	seen := make(map[string]bool)
	var shared []string
	for _, p := range b {
		if inA[p] && !seen[p] {
			seen[p] = true
			shared = append(shared, p)
		}
	}
	sort.Strings(shared)
	return shared, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
