// Package fieldhttp fetches field documents from an HTTP server.
package fieldhttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/storm-data-verify/internal/adapter/fieldfile"
	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 200 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
)

// errRetryable marks transport failures and 5xx responses.
var errRetryable = errors.New("retryable")

// Client implements domain.FieldSource and domain.GridSource over HTTP.
// Identifiers are paths below the base URL.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	logger         *slog.Logger
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithRetry sets the attempt budget and backoff bounds.
func WithRetry(attempts int, initial, maxBackoff time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = attempts
		c.initialBackoff = initial
		c.maxBackoff = maxBackoff
	}
}

// NewClient creates a field client for baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        strings.TrimRight(baseURL, "/"),
		logger:         logger,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c
}

// ReadField fetches id with variable and level as query parameters.
func (c *Client) ReadField(ctx context.Context, id, variable, level string) (domain.Field, error) {
	params := url.Values{}
	if variable != "" {
		params.Set("variable", variable)
	}
	if level != "" {
		params.Set("level", level)
	}
	doc, err := c.fetch(ctx, id, params)
	if err != nil {
		return domain.Field{}, err
	}
	if !doc.Matches(variable, level) {
		return domain.Field{}, fmt.Errorf("%w: %s holds %s/%s", domain.ErrDataUnavailable, id, doc.Variable, doc.Level)
	}
	return doc.Field()
}

// ReadGrid fetches a grid document.
func (c *Client) ReadGrid(ctx context.Context, id string) (domain.Grid, error) {
	doc, err := c.fetch(ctx, id, nil)
	if err != nil {
		return domain.Grid{}, err
	}
	return doc.Grid()
}

func (c *Client) fetch(ctx context.Context, id string, params url.Values) (fieldfile.Document, error) {
	u := c.baseURL + "/" + strings.TrimLeft(id, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	backoff := c.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		doc, err := c.doRequest(ctx, u, fieldfile.IsCompressed(id))
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, errRetryable) {
			return fieldfile.Document{}, err
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}
		c.logger.Debug("field fetch failed, retrying", "id", id, "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return fieldfile.Document{}, fmt.Errorf("fetch %s: %w", id, ctx.Err())
		}
		backoff = retry.NextBackoff(backoff, c.maxBackoff)
	}
	return fieldfile.Document{}, fmt.Errorf("fetch %s after %d attempts: %w", id, c.maxAttempts, lastErr)
}

func (c *Client) doRequest(ctx context.Context, fullURL string, compressed bool) (fieldfile.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fieldfile.Document{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fieldfile.Document{}, fmt.Errorf("%w: field request: %w", errRetryable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return fieldfile.Document{}, fmt.Errorf("%w: %s", domain.ErrDataUnavailable, fullURL)
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fieldfile.Document{}, fmt.Errorf("%w: field server error: status %d: %s", errRetryable, resp.StatusCode, body)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fieldfile.Document{}, fmt.Errorf("field server error: status %d: %s", resp.StatusCode, body)
	}

	compressed = compressed || resp.Header.Get("Content-Encoding") == "zstd"
	return fieldfile.Decode(resp.Body, compressed)
}
