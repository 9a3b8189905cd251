// Package odp is a client for the hosted ocean data catalog REST API. It
// implements the backend read contracts; retries are left to the caller.
package odp

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

	"golang.org/x/time/rate"

	"github.com/alexanderjulianmartinez/dsroute/internal/backend"
)

const defaultUserAgent = "dsroute/1.0"

type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration // per request, default 30s
	RateLimit float64       // requests per second, default 10
	RateBurst int           // default 5
	UserAgent string

	// Transport allows injecting a custom round tripper in tests.
	Transport http.RoundTripper
}

type Client struct {
	cfg     Config
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("odp base url is required")
	}
	u, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse odp base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 5
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Client{
		cfg:     cfg,
		base:    u,
		http:    &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}, nil
}

func (c *Client) datasetURL(handle string, parts ...string) string {
	segs := []string{"datasets", url.PathEscape(handle)}
	for _, p := range parts {
		segs = append(segs, url.PathEscape(p))
	}
	return c.base.String() + "/" + strings.Join(segs, "/")
}

// do sends one request and returns the response with an unread body on 2xx.
// Non-2xx responses are drained and mapped to *backend.Error.
func (c *Client) do(ctx context.Context, method, target string, body any) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, backend.NewError(backend.CodeRateLimited, fmt.Errorf("rate limiter: %w", err))
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, backend.NewError(backend.CodeInvalidRequest, fmt.Errorf("marshal body: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, backend.NewError(backend.CodeInvalidRequest, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "ApiKey "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return nil, statusError(resp, strings.TrimSpace(string(msg)))
}

func (c *Client) getJSON(ctx context.Context, target string, out any) (bool, error) {
	return c.sendJSON(ctx, http.MethodGet, target, nil, out)
}

// sendJSON decodes the response into out. It reports false for 204 responses.
func (c *Client) sendJSON(ctx context.Context, method, target string, body, out any) (bool, error) {
	resp, err := c.do(ctx, method, target, body)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, backend.NewError(backend.CodeMalformedResponse, fmt.Errorf("decode %s: %w", target, err))
	}
	return true, nil
}

// StatusError is the HTTP error detail wrapped inside *backend.Error.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func statusError(resp *http.Response, msg string) *backend.Error {
	se := &StatusError{StatusCode: resp.StatusCode, Message: msg}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		be := backend.NewError(backend.CodeRateLimited, se)
		be.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return be
	case resp.StatusCode >= 500:
		be := backend.NewError(backend.CodeUnavailable, se)
		be.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return be
	case resp.StatusCode == http.StatusNotFound:
		return backend.NewError(backend.CodeNotFound, se)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return backend.NewError(backend.CodePermissionDenied, se)
	default:
		return backend.NewError(backend.CodeInvalidRequest, se)
	}
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func classifyTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return backend.NewError(backend.CodeTimeout, err)
	}
	return backend.NewError(backend.CodeUnavailable, err)
}
