package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"folio/internal/logging"
	"folio/internal/workid"
)

const (
	defaultHTTPTimeout    = 30 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 15 * time.Second
	defaultRetryAttempts  = 3
	defaultPageWorkers    = 4
	maxDocumentBytes      = 8 << 20
	maxPageBytes          = 64 << 20
)

// Config captures the runtime settings required to talk to the source.
type Config struct {
	BaseURL        string
	UserAgent      string
	TimeoutSeconds int
	RetryAttempts  int
	PageWorkers    int
}

// Client is the HTTP Transport.
type Client struct {
	cfg        Config
	base       *url.URL
	httpClient *http.Client
	logger     *slog.Logger

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a source client. The base URL must be absolute.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("source: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("source: base url %q is not absolute", cfg.BaseURL)
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:              cfg,
		base:             base,
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	if cfg.RetryAttempts > 0 {
		client.retryMaxAttempts = cfg.RetryAttempts
	}
	if client.cfg.PageWorkers <= 0 {
		client.cfg.PageWorkers = defaultPageWorkers
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "source")
	return client, nil
}

type httpStatusError struct {
	URL        string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("GET %s: http %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: http %d: %s", e.URL, e.StatusCode, body)
}

// FetchMetadata returns the decoded album document for id.
func (c *Client) FetchMetadata(ctx context.Context, id workid.ID) (Fields, error) {
	body, _, err := c.getWithRetry(ctx, c.albumURL(id), maxDocumentBytes)
	if err != nil {
		return nil, err
	}
	fields := Fields{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("source: decode album %s: %w", id, err)
	}
	return fields, nil
}

// FetchAlbum returns the download metadata for id: its name and ordered page
// locators. Pages are listed under "pages", or "images" as a fallback, either
// as URL strings or objects with a "url" key.
func (c *Client) FetchAlbum(ctx context.Context, id workid.ID) (Album, error) {
	fields, err := c.FetchMetadata(ctx, id)
	if err != nil {
		return Album{}, err
	}
	album := Album{ID: id, Fields: fields}
	for _, key := range []string{"name", "title", "album_name"} {
		if name, ok := fields.String(key); ok && strings.TrimSpace(name) != "" {
			album.Name = strings.TrimSpace(name)
			break
		}
	}
	raw, ok := fields["pages"].([]any)
	if !ok {
		raw, _ = fields["images"].([]any)
	}
	for _, entry := range raw {
		locator := pageLocator(entry)
		if locator == "" {
			continue
		}
		resolved, err := c.resolve(locator)
		if err != nil {
			return Album{}, fmt.Errorf("source: album %s page %d: %w", id, len(album.Pages)+1, err)
		}
		album.Pages = append(album.Pages, PageRef{Ordinal: len(album.Pages) + 1, URL: resolved})
	}
	return album, nil
}

func pageLocator(entry any) string {
	switch v := entry.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		for _, key := range []string{"url", "src"} {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func (c *Client) albumURL(id workid.ID) string {
	return c.base.JoinPath("album", id.String()).String()
}

func (c *Client) resolve(locator string) (string, error) {
	ref, err := url.Parse(locator)
	if err != nil {
		return "", err
	}
	return c.base.ResolveReference(ref).String(), nil
}

func (c *Client) getWithRetry(ctx context.Context, target string, limit int64) ([]byte, http.Header, error) {
	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, header, err := c.getOnce(ctx, target, limit)
		if err == nil {
			return body, header, nil
		}
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return nil, nil, err
		}
		c.logger.Debug("retrying source request",
			logging.String("url", target),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, nil, err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return nil, nil, fmt.Errorf("source: failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) getOnce(ctx context.Context, target string, limit int64) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("source: new request: %w", err)
	}
	if ua := strings.TrimSpace(c.cfg.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("source: GET %s (timeout=%s): %w", target, c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, nil, fmt.Errorf("source: read %s: %w", target, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil, fmt.Errorf("%w: GET %s", ErrNotFound, target)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, nil, &httpStatusError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: retryAfter,
		}
	}
	if int64(len(body)) > limit {
		return nil, nil, fmt.Errorf("source: GET %s: response exceeds %d bytes", target, limit)
	}
	return body, resp.Header, nil
}

func (c *Client) retryAttempts() int {
	if c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil {
		return 0, false
	}
	if ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrNotFound) {
		return 0, false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base <= 0 {
		return 0
	}
	maxDelay := c.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := c.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
