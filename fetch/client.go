// Package fetch is the small HTTP client routes use to reach upstream sites.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBody caps upstream bodies. Feed pages larger than this are almost certainly not feed pages.
const maxBody = 16 << 20

// ErrBodyTooLarge is returned instead of a truncated body.
var ErrBodyTooLarge = errors.New("response body too large")

// ErrHostNotAllowed is returned when a restricted client is redirected off its allowed hosts.
var ErrHostNotAllowed = errors.New("host not allowed")

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
}

type Client struct {
	http      *http.Client
	userAgent string
}

func NewClient(userAgent string, timeout time.Duration) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Restrict returns a copy of c that refuses to follow redirects to hosts allow rejects.
// allow receives the URL's host, with the port when one is present.
func (c *Client) Restrict(allow func(host string) bool) *Client {
	hc := *c.http
	hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		if !allow(req.URL.Host) {
			return fmt.Errorf("%w: %s", ErrHostNotAllowed, req.URL.Host)
		}
		return nil
	}
	return &Client{http: &hc, userAgent: c.userAgent}
}

// Option adjusts a single request.
type Option func(*http.Request)

func WithHeader(key, value string) Option {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

func WithCookie(name, value string) Option {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: name, Value: value}) }
}

// Get returns the body of url.
func (c *Client) Get(ctx context.Context, url string, opts ...Option) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return c.do(req, opts)
}

// GetJSON decodes the JSON body of url into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any, opts ...Option) error {
	body, err := c.Get(ctx, url, append(opts, WithHeader("Accept", "application/json"))...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("fetch %s: decode: %w", url, err)
	}
	return nil
}

// PostJSON sends in as a JSON body and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, url string, in, out any, opts ...Option) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("fetch %s: encode: %w", url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, opts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("fetch %s: decode: %w", url, err)
	}
	return nil
}

func (c *Client) do(req *http.Request, opts []Option) ([]byte, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for _, opt := range opts {
		opt(req)
	}

	url := req.URL.String()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", url, err)
	}
	if len(body) > maxBody {
		return nil, fmt.Errorf("fetch %s: %w (over %d bytes)", url, ErrBodyTooLarge, maxBody)
	}
	return body, nil
}
