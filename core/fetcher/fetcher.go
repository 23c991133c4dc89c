package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FragmentHeader carries the strip sequence number on every response.
const FragmentHeader = "X-Ece252-Fragment"

// NoSequence marks a response without a usable sequence header.
const NoSequence int64 = -1

var (
	ErrNotFound    = errors.New("fetcher: resource not found")
	ErrServerError = errors.New("fetcher: server error")
	ErrTooLarge    = errors.New("fetcher: response body too large")
)

// Options configures the HTTP client.
type Options struct {
	// Timeout for a single request. Default: 30s
	Timeout time.Duration

	// MaxIdleConnsPerHost bounds pooled connections per server. Default: 16
	MaxIdleConnsPerHost int

	// MaxBodyBytes caps the accepted body size. Default: 8MB
	MaxBodyBytes int64

	// UserAgent is sent with every request.
	UserAgent string

	// RequestID, if set, is sent as X-Request-Id.
	RequestID string
}

func DefaultOptions() Options {
	return Options{
		Timeout:             30 * time.Second,
		MaxIdleConnsPerHost: 16,
		MaxBodyBytes:        8 << 20,
		UserAgent:           "paster/1.0",
	}
}

// Response is one fetched fragment before decoding.
type Response struct {
	Body     []byte
	Sequence int64
}

// Client performs single fragment requests. Retrying is left to the caller.
type Client struct {
	client *http.Client
	opts   Options
}

func NewClient(opts Options) *Client {
	defaults := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = defaults.MaxIdleConnsPerHost
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 4,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}
}

// Fetch performs one GET request and returns the body with the sequence
// number parsed from FragmentHeader (NoSequence if absent or malformed).
func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.opts.UserAgent)
	if c.opts.RequestID != "" {
		req.Header.Set("X-Request-Id", c.opts.RequestID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatusCode(resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.opts.MaxBodyBytes {
		return nil, ErrTooLarge
	}

	return &Response{
		Body:     body,
		Sequence: ParseSequence(resp.Header.Get(FragmentHeader)),
	}, nil
}

// ParseSequence parses a base-10 sequence header value.
func ParseSequence(value string) int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return NoSequence
	}

	seq, err := strconv.ParseInt(value, 10, 64)
	if err != nil || seq < 0 {
		return NoSequence
	}

	return seq
}

func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return fmt.Errorf("%w: %d", ErrServerError, code)
	default:
		return fmt.Errorf("fetcher: unexpected status code: %d", code)
	}
}
