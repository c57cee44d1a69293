// Package fetch downloads dictionary pages and media with retries.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dict2anki/dict2anki/internal/headers"
)

// Defaults for New.
const (
	DefaultRetry   = 5
	DefaultTimeout = 20 * time.Second
)

// StatusError is returned when the server answers with a 4xx or 5xx status.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// retryable reports whether a failed attempt is worth repeating.
// Client errors (4xx) are final; transport errors and 5xx are not.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return true
}

// Page is a fetched HTML document.
type Page struct {
	URL  *url.URL // final URL after redirects
	Body string   // decoded text
}

// Client fetches pages and files. Every request carries the next header
// profile from the pool and is retried on transport errors and 5xx
// responses.
type Client struct {
	retry   int
	headers *headers.Pool

	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithRetry sets the number of attempts per request. Values below 1 are
// treated as 1.
func WithRetry(n int) Option {
	return func(c *Client) { c.retry = max(n, 1) }
}

// WithTimeout sets the timeout of a single page request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHeaders sets the header profile pool.
func WithHeaders(p *headers.Pool) Option {
	return func(c *Client) { c.headers = p }
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		retry:   DefaultRetry,
		headers: headers.Default(),
		http: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if t, ok := c.http.Transport.(*http.Transport); ok {
		t.ResponseHeaderTimeout = c.http.Timeout
	}
	return c
}

// Open sends a GET request and returns the response once the status is
// below 400. It retries up to the configured number of attempts.
// The caller must close resp.Body.
func (c *Client) Open(ctx context.Context, rawURL string) (*http.Response, error) {
	return c.open(ctx, c.http, rawURL, nil, c.retry)
}

// open executes a GET with extra headers, retrying up to attempts times.
func (c *Client) open(ctx context.Context, hc *http.Client, rawURL string, extra http.Header, attempts int) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.do(ctx, hc, rawURL, extra)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
		slog.Warn("fetch: request failed", "url", rawURL, "attempt", attempt, "err", err)
	}
	return nil, lastErr
}

// do executes a single GET with the next header profile.
func (c *Client) do(ctx context.Context, hc *http.Client, rawURL string, extra http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		req.Header[k] = v
	}
	c.headers.Next().Apply(req)

	slog.Debug("fetch request", "url", rawURL, "range", req.Header.Get("Range"))
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode, Status: resp.Status}
	}
	return resp, nil
}

// Get fetches rawURL and returns its decoded text and final URL.
// A body that fails mid-read is fetched again, up to the retry limit.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	resp, err := c.Open(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: get: %w", err)
	}
	return c.Read(ctx, resp)
}

// Read consumes and closes resp and returns its decoded text. When reading
// the body fails the request is repeated.
func (c *Client) Read(ctx context.Context, resp *http.Response) (*Page, error) {
	rawURL := resp.Request.URL.String()
	for attempt := 1; ; attempt++ {
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err == nil {
			body, err := decodeBody(resp.Header, raw)
			if err != nil {
				return nil, fmt.Errorf("fetch: decode %s: %w", rawURL, err)
			}
			return &Page{URL: resp.Request.URL, Body: body}, nil
		}
		if attempt >= c.retry || ctx.Err() != nil {
			return nil, fmt.Errorf("fetch: read %s: %w", rawURL, err)
		}
		slog.Warn("fetch: read response failed", "url", rawURL, "attempt", attempt, "err", err)

		resp, err = c.open(ctx, c.http, rawURL, nil, 1)
		if err != nil {
			return nil, fmt.Errorf("fetch: reopen %s: %w", rawURL, err)
		}
	}
}

// GetText is Get returning only the body.
func (c *Client) GetText(ctx context.Context, rawURL string) (string, error) {
	page, err := c.Get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return page.Body, nil
}
