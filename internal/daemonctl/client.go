package daemonctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"folio/internal/api"
	"folio/internal/services"
)

// ErrUnavailable reports that no daemon answered at the configured address.
var ErrUnavailable = errors.New("daemon unavailable")

// Client talks to a running daemon.
type Client struct {
	base string
	http *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// New returns a client for the API listening on bind (host:port or URL).
func New(bind string, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(bind), "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	c := &Client{base: base, http: &http.Client{Timeout: 10 * time.Minute}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status fetches daemon status.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var out api.DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Command submits command text and returns the reply.
func (c *Client) Command(ctx context.Context, text string) (*api.CommandResponse, error) {
	var out api.CommandResponse
	if err := c.do(ctx, http.MethodPost, "/api/command", api.CommandRequest{Text: text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History fetches up to limit recent acquisitions.
func (c *Client) History(ctx context.Context, limit int) ([]api.HistoryEntry, error) {
	path := "/api/history"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var out api.HistoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// ProcessInfo reports whether a daemon answers at bind and its PID.
func ProcessInfo(ctx context.Context, bind string) (bool, int, error) {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	status, err := New(bind).Status(checkCtx)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return status.Running, status.PID, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", rid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return fmt.Errorf("daemon request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr api.ErrorResponse
		if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
