// Package mastermind is a client for the Mastermind genomic literature API.
package mastermind

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/inodb/vibe-mm/internal/annotate"
)

const (
	DefaultBaseURL      = "https://mastermind.genomenon.com/api/v2"
	DefaultTimeout      = 30 * time.Second
	DefaultRetries      = 1
	DefaultMaxArticles  = 1000
	DefaultPollInterval = 10 * time.Second

	// MaxPageCount caps how many pages of a paginated result are fetched.
	MaxPageCount = 1000
)

// endpoints lists the API paths the client may call. Sub-paths of an
// entry (e.g. "file_annotations/counts/<id>") are allowed too.
var endpoints = []string{
	"suggestions",
	"counts",
	"articles",
	"genes",
	"variants",
	"diseases",
	"phenotypes",
	"therapies",
	"article_info",
	"file_annotations/counts",
}

// ErrNotFound is returned when the API answers 404, meaning it has no
// data for the request.
var ErrNotFound = errors.New("mastermind: not found")

// ErrUnknownEndpoint is returned for paths outside the endpoint allow-list.
var ErrUnknownEndpoint = errors.New("mastermind: unknown endpoint")

// StatusError is a non-success HTTP response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("mastermind %s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("mastermind %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// SchemaError reports a response that could not be decoded or lacks a
// required field.
type SchemaError struct {
	Endpoint string
	Msg      string
	Err      error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mastermind %s: %s: %v", e.Endpoint, e.Msg, e.Err)
	}
	return fmt.Sprintf("mastermind %s: %s", e.Endpoint, e.Msg)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Config holds client settings. Zero values take the defaults above.
type Config struct {
	BaseURL      string
	Token        string
	Assembly     annotate.Assembly
	Timeout      time.Duration
	Retries      int // negative disables retrying
	MaxArticles  int
	Diseases     bool // also fetch disease keys as evidence tags
	PollInterval time.Duration
}

// Client talks to the Mastermind API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retryWait  time.Duration
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for retry and polling messages.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRetryInterval sets the initial wait between retries.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) { c.retryWait = d }
}

// New creates a client. A token is required.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("mastermind: API token required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Assembly == "" {
		cfg.Assembly = annotate.GRCh38
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch {
	case cfg.Retries == 0:
		cfg.Retries = DefaultRetries
	case cfg.Retries < 0:
		cfg.Retries = 0
	}
	if cfg.MaxArticles <= 0 {
		cfg.MaxArticles = DefaultMaxArticles
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retryWait:  500 * time.Millisecond,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

func allowedEndpoint(endpoint string) bool {
	for _, e := range endpoints {
		if endpoint == e || strings.HasPrefix(endpoint, e+"/") {
			return true
		}
	}
	return false
}

func (c *Client) endpointURL(endpoint string, params url.Values) (string, error) {
	if !allowedEndpoint(endpoint) {
		return "", fmt.Errorf("%w: %q", ErrUnknownEndpoint, endpoint)
	}
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("api_token", c.cfg.Token)
	return c.cfg.BaseURL + "/" + endpoint + "?" + q.Encode(), nil
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWait
	b.MaxElapsedTime = 0
	return b
}

// do sends one API request and hands a 200 response to handle. Transient
// failures of GET requests are retried with exponential backoff; a 404
// yields ErrNotFound.
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, handle func(*http.Response) error) error {
	u, err := c.endpointURL(endpoint, params)
	if err != nil {
		return err
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("X-API-TOKEN", c.cfg.Token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("mastermind %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(ErrNotFound)
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			se := &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
			if se.Temporary() {
				return se
			}
			return backoff.Permanent(se)
		}

		if err := handle(resp); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	retries := c.cfg.Retries
	if method != http.MethodGet {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(retries)), ctx)

	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		c.logger.Debug("retrying mastermind request",
			zap.String("endpoint", endpoint),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
}

// getJSON GETs endpoint and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, endpoint, params, out)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, params url.Values, out any) error {
	return c.do(ctx, method, endpoint, params, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &SchemaError{Endpoint: endpoint, Msg: "decode response", Err: err}
		}
		return nil
	})
}

// errorKind classifies err for the annotation pipeline. Anything that is
// not a definite client or schema failure is treated as transient.
func errorKind(err error) annotate.ErrorKind {
	var se *StatusError
	if errors.As(err, &se) {
		if se.Temporary() {
			return annotate.Transient
		}
		return annotate.Permanent
	}
	var sch *SchemaError
	if errors.As(err, &sch) || errors.Is(err, ErrUnknownEndpoint) {
		return annotate.Permanent
	}
	return annotate.Transient
}
