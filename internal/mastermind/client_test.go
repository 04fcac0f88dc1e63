package mastermind

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-mm/internal/annotate"
)

const testToken = "test-token"

func newTestClient(t *testing.T, handler http.Handler, mods ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{BaseURL: srv.URL, Token: testToken, PollInterval: time.Millisecond}
	for _, m := range mods {
		m(&cfg)
	}
	c, err := New(cfg, WithRetryInterval(time.Millisecond))
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

var krasKey = annotate.VariantKey{Chrom: "12", Pos: 25245351, Ref: "C", Alt: "A", Assembly: annotate.GRCh38}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	c, err := New(Config{Token: "x"})
	require.NoError(t, err)
	cfg := c.Config()
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, annotate.GRCh38, cfg.Assembly)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultRetries, cfg.Retries)
	assert.Equal(t, DefaultMaxArticles, cfg.MaxArticles)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
}

func TestClient_SendsToken(t *testing.T) {
	var gotHeader, gotParam string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /counts", func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-API-TOKEN")
		gotParam = r.URL.Query().Get("api_token")
		writeJSON(t, w, map[string]any{"article_count": 7, "url": "u"})
	})
	c := newTestClient(t, mux)

	cnt, err := c.Counts(context.Background(), url.Values{"gene": {"BRAF"}})
	require.NoError(t, err)
	assert.Equal(t, 7, cnt.ArticleCount)
	assert.Equal(t, testToken, gotHeader)
	assert.Equal(t, testToken, gotParam)
}

func TestClient_UnknownEndpoint(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	var out any
	err := c.getJSON(context.Background(), "admin/users", nil, &out)
	assert.ErrorIs(t, err, ErrUnknownEndpoint)
	assert.Equal(t, annotate.Permanent, errorKind(err))
}

func TestQuery_Evidence(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /suggestions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "NC_000012.12:g.25245351C>A", r.URL.Query().Get("variant"))
		writeJSON(t, w, []map[string]string{
			{"matched": "NC_000012.12:g.25245351C>A", "canonical": "KRAS:G12C", "url": "https://x/kras"},
			{"matched": "NC_000012.12:g.25245351C>A", "canonical": "KRAS:G12C", "url": "https://x/kras"},
		})
	})
	mux.HandleFunc("GET /counts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "KRAS:G12C", r.URL.Query().Get("variant"))
		writeJSON(t, w, map[string]any{"article_count": 3, "url": "https://x/kras-g12c"})
	})
	mux.HandleFunc("GET /articles", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"article_count":3,"pages":1,"articles":[{"pmid":111},{"pmid":"222"},{"pmid":333}]}`))
	})
	mux.HandleFunc("GET /diseases", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"diseases": []map[string]any{
			{"key": "lung cancer", "article_count": 2},
			{"key": "colorectal neoplasms", "article_count": 1},
		}})
	})

	c := newTestClient(t, mux, func(cfg *Config) {
		cfg.MaxArticles = 2
		cfg.Diseases = true
	})

	evs, err := c.Query(context.Background(), krasKey)
	require.NoError(t, err)
	require.Len(t, evs, 1, "duplicate canonical matches collapse")

	ev := evs[0]
	assert.Equal(t, "KRAS:G12C", ev.Variant)
	assert.Equal(t, []string{"KRAS"}, ev.Genes)
	assert.Equal(t, 3, ev.ArticleCount)
	assert.Equal(t, []string{"111", "222"}, ev.PMIDs)
	assert.Equal(t, []string{"lung cancer", "colorectal neoplasms"}, ev.Tags)
	assert.Equal(t, "https://x/kras-g12c", ev.URL)
}

func TestQuery_ZeroCountIsNoEvidence(t *testing.T) {
	var articleCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /suggestions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]string{
			{"matched": "m", "canonical": "TP53:R175H"},
			{"matched": "m", "canonical": "KRAS:G12C"},
		})
	})
	mux.HandleFunc("GET /counts", func(w http.ResponseWriter, r *http.Request) {
		n := 0
		if r.URL.Query().Get("variant") == "KRAS:G12C" {
			n = 4
		}
		writeJSON(t, w, map[string]any{"article_count": n})
	})
	mux.HandleFunc("GET /articles", func(w http.ResponseWriter, r *http.Request) {
		articleCalls.Add(1)
		assert.Equal(t, "KRAS:G12C", r.URL.Query().Get("variant"))
		w.Write([]byte(`{"article_count":4,"pages":1,"articles":[{"pmid":1}]}`))
	})
	c := newTestClient(t, mux)

	evs, err := c.Query(context.Background(), krasKey)
	require.NoError(t, err)
	require.Len(t, evs, 1, "uncited matches are dropped")
	assert.Equal(t, "KRAS:G12C", evs[0].Variant)
	assert.Equal(t, int32(1), articleCalls.Load())
}

func TestQuery_OnlyUncitedMatchesIsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /suggestions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]string{{"matched": "m", "canonical": "TP53:R175H"}})
	})
	mux.HandleFunc("GET /counts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"article_count": 0})
	})
	c := newTestClient(t, mux)

	evs, err := c.Query(context.Background(), krasKey)
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestQuery_NotFoundIsEmpty(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	evs, err := c.Query(context.Background(), krasKey)
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestQuery_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   annotate.ErrorKind
	}{
		{"server error", http.StatusInternalServerError, "", annotate.Transient},
		{"bad gateway", http.StatusBadGateway, "", annotate.Transient},
		{"request timeout", http.StatusRequestTimeout, "", annotate.Transient},
		{"rate limited", http.StatusTooManyRequests, "", annotate.Transient},
		{"bad request", http.StatusBadRequest, "bad variant", annotate.Permanent},
		{"unauthorized", http.StatusUnauthorized, "", annotate.Permanent},
		{"undecodable", http.StatusOK, "<html>", annotate.Permanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}), func(cfg *Config) { cfg.Retries = -1 })

			_, err := c.Query(context.Background(), krasKey)
			var qe *annotate.QueryError
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, tt.want, qe.Kind)
			assert.Equal(t, krasKey, qe.Key)
		})
	}
}

func TestQuery_MissingArticleCountIsPermanent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /suggestions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]string{{"canonical": "KRAS:G12C"}})
	})
	mux.HandleFunc("GET /counts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"url": "u"})
	})
	c := newTestClient(t, mux)

	_, err := c.Query(context.Background(), krasKey)
	var sch *SchemaError
	require.ErrorAs(t, err, &sch)
	assert.False(t, annotate.IsTransient(err))
}

func TestQuery_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Token: testToken, Retries: -1})
	require.NoError(t, err)

	_, err = c.Query(context.Background(), krasKey)
	require.Error(t, err)
	assert.True(t, annotate.IsTransient(err))
}

func TestClient_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /counts", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(t, w, map[string]any{"article_count": 4})
	})
	c := newTestClient(t, mux)

	cnt, err := c.Counts(context.Background(), url.Values{"gene": {"EGFR"}})
	require.NoError(t, err)
	assert.Equal(t, 4, cnt.ArticleCount)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_RetryLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}), func(cfg *Config) { cfg.Retries = 2 })

	_, err := c.Counts(context.Background(), url.Values{"gene": {"EGFR"}})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_NoRetryOnPermanent(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}), func(cfg *Config) { cfg.Retries = 3 })

	_, err := c.Counts(context.Background(), url.Values{"gene": {"EGFR"}})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeneVariants_Paginates(t *testing.T) {
	var pages []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /variants", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		assert.Equal(t, "UCP3", r.URL.Query().Get("gene"))
		writeJSON(t, w, map[string]any{
			"pages": 3,
			"variants": []map[string]any{
				{"gene": "UCP3", "key": "V" + page, "article_count": 1, "url": "u" + page},
			},
		})
	})
	c := newTestClient(t, mux)

	vs, err := c.GeneVariants(context.Background(), "UCP3")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, pages)
	require.Len(t, vs, 3)
	assert.Equal(t, GeneVariant{Gene: "UCP3", Key: "V3", ArticleCount: 1, URL: "u3"}, vs[2])
}

func TestGeneVariants_Error(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	_, err := c.GeneVariants(context.Background(), "UCP3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variants for UCP3 page 1")
}

func TestGeneCounts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /counts", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("gene") {
		case "BRAF":
			writeJSON(t, w, map[string]any{"article_count": 1200})
		case "KRAS":
			writeJSON(t, w, map[string]any{"article_count": 900})
		case "NOPE":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	c := newTestClient(t, mux)

	counts, err := c.GeneCounts(context.Background(), []string{"BRAF", "NOPE", "KRAS", "B@D"}, 2)
	require.NoError(t, err)
	require.Len(t, counts, 4)

	assert.Equal(t, GeneCount{Gene: "BRAF", ArticleCount: 1200}, counts[0])
	assert.Equal(t, GeneCount{Gene: "NOPE"}, counts[1])
	assert.Equal(t, GeneCount{Gene: "KRAS", ArticleCount: 900}, counts[2])
	assert.Equal(t, "B@D", counts[3].Gene)
	assert.Error(t, counts[3].Err)
}

func TestGeneCounts_Cancelled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"article_count": 1})
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GeneCounts(ctx, []string{"A", "B"}, 1)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFusionPMIDs(t *testing.T) {
	articles := map[string][][]any{
		"ESRRA":    {{1, 2, 3}, {4, "5"}},
		"CATSPERZ": {{5, 3}, {9}},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /articles", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, []string{"fusion", "breakpoint"}, q["categories[]"])
		pages := articles[q.Get("gene")]
		page := 1
		if q.Get("page") == "2" {
			page = 2
		}
		var arts []map[string]any
		for _, p := range pages[page-1] {
			arts = append(arts, map[string]any{"pmid": p})
		}
		writeJSON(t, w, map[string]any{"article_count": 5, "pages": len(pages), "articles": arts})
	})
	c := newTestClient(t, mux)

	shared, err := c.FusionPMIDs(context.Background(), "ESRRA", "CATSPERZ")
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "5"}, shared)
}

func TestPMID_UnmarshalJSON(t *testing.T) {
	var arts []Article
	require.NoError(t, json.Unmarshal([]byte(`[{"pmid":12068308},{"pmid":"20818844"}]`), &arts))
	assert.Equal(t, PMID("12068308"), arts[0].PMID)
	assert.Equal(t, PMID("20818844"), arts[1].PMID)

	var p PMID
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &p))
}
