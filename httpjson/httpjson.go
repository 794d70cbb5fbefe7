// Package httpjson moves ogjson-encoded values over HTTP. It is a
// collaborator of the codec, never a dependency of it: the codec stays a
// pure transformation and this package owns the transport concerns
// (context, compression, politeness limiting).
package httpjson

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/time/rate"

	"github.com/Neumenon/ogjson/ogjson"
)

// Client fetches and posts JSON values using an ogjson codec.
type Client struct {
	http    *http.Client
	codec   *ogjson.Codec
	limiter *rate.Limiter
	gzip    bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps outgoing requests to r per second with the given
// burst, waiting (honoring ctx) rather than failing when the budget is
// spent.
func WithRateLimit(r float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(r), burst) }
}

// WithGzip compresses request bodies and advertises gzip acceptance.
func WithGzip() Option {
	return func(c *Client) { c.gzip = true }
}

// NewClient creates a client around a configured codec.
func NewClient(codec *ogjson.Codec, opts ...Option) *Client {
	c := &Client{
		http:  &http.Client{Timeout: 30 * time.Second},
		codec: codec,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchJSON GETs url and decodes the response body into target.
func (c *Client) FetchJSON(ctx context.Context, url string, target any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.gzip {
		req.Header.Set("Accept-Encoding", "gzip")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, URL: url}
	}

	body, err := c.responseBody(resp)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if cerr := body.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return c.codec.Decode(data, target)
}

// PostJSON encodes body and POSTs it to url, returning the HTTP status.
func (c *Client) PostJSON(ctx context.Context, url string, body any) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	data, err := c.codec.Encode(body)
	if err != nil {
		return 0, err
	}

	var payload io.Reader = bytes.NewReader(data)
	if c.gzip {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return 0, err
		}
		if err := zw.Close(); err != nil {
			return 0, err
		}
		payload = &buf
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// responseBody unwraps a gzip-encoded response.
func (c *Client) responseBody(resp *http.Response) (io.ReadCloser, error) {
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return io.NopCloser(resp.Body), nil
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpjson: gzip response: %w", err)
	}
	return zr, nil
}

// StatusError reports a non-2xx response to a fetch.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpjson: GET %s: status %d", e.URL, e.Status)
}
