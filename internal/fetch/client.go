// Package fetch bounds every outbound HTTP exchange with a hard deadline.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/ollamon/internal/utils"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 10 << 20
	maxErrorBody        = 512
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
	Transport    http.RoundTripper
}

// Client issues requests that are cancelled once the per-call timeout fires.
type Client struct {
	http         *http.Client
	timeout      time.Duration
	maxBodyBytes int64
	userAgent    string
}

// Response is a fully read, size-capped response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConns = 200
		t.MaxIdleConnsPerHost = 4
		t.IdleConnTimeout = 30 * time.Second
		transport = t
	}

	return &Client{
		http:         &http.Client{Transport: transport},
		timeout:      opts.Timeout,
		maxBodyBytes: opts.MaxBodyBytes,
		userAgent:    opts.UserAgent,
	}
}

// Timeout returns the per-call deadline.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Do sends req and reads the whole body before the deadline. Non-2xx
// statuses are returned as *HTTPError.
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := req.URL.String()
	req = req.WithContext(callCtx)
	c.applyDefaults(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, wrapTransport(callCtx, url, c.timeout, err)
	}
	defer utils.Close(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, wrapTransport(callCtx, url, c.timeout, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode, Body: truncate(body, maxErrorBody)}
	}

	return &Response{
		URL:        url,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Get is a GET with optional extra headers.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	copyHeader(req.Header, header)
	return c.Do(ctx, req)
}

// PostJSON encodes payload and POSTs it as application/json.
func (c *Client) PostJSON(ctx context.Context, url string, payload any) (*Response, error) {
	req, err := newJSONRequest(ctx, url, payload)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// Open sends req and hands back the live body for streaming. The deadline
// still applies; closing the body releases it.
func (c *Client) Open(ctx context.Context, req *http.Request) (io.ReadCloser, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)

	url := req.URL.String()
	req = req.WithContext(callCtx)
	c.applyDefaults(req)

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, wrapTransport(callCtx, url, c.timeout, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		utils.Close(resp.Body)
		cancel()
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return &utils.CancelOnClose{ReadCloser: resp.Body, Cancel: cancel}, nil
}

// OpenJSON is Open for a JSON POST.
func (c *Client) OpenJSON(ctx context.Context, url string, payload any) (io.ReadCloser, error) {
	req, err := newJSONRequest(ctx, url, payload)
	if err != nil {
		return nil, err
	}
	return c.Open(ctx, req)
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &ParseError{URL: r.URL, Format: "json", Err: err}
	}
	return nil
}

func (c *Client) applyDefaults(req *http.Request) {
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func newJSONRequest(ctx context.Context, url string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
