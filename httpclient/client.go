// Package httpclient is a thin facade over net/http used by task instances.
// It keeps a per-client cookie jar and an ordered log of every completed
// request so agents can inspect what a run actually fetched.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// RequestOptions carries the optional pieces of a request. A nil options
// value issues a bare request against the target.
type RequestOptions struct {
	Headers http.Header
	Query   url.Values
	Body    []byte
	// Form, when set, is form-encoded into the body and the content type is
	// set accordingly. Body takes precedence when both are present.
	Form        url.Values
	ContentType string
}

// Entry records one completed request/response exchange.
type Entry struct {
	Response *http.Response
	Body     []byte
	Cookies  string
	Request  *http.Request
	FinalURL string
}

// Option customises a client.
type Option func(c *Client)

// WithHTTPClient replaces the underlying *http.Client. Its Jar is overridden
// by the client's own jar.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

// WithJar installs a pre-populated cookie jar (see CloneJar).
func WithJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.jar = jar
	}
}

// WithTimeout sets the underlying client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = timeout
	}
}

// Client delegates the HTTP verbs to an underlying *http.Client, sharing one
// cookie jar and one request log across all calls.
type Client struct {
	http *http.Client
	jar  http.CookieJar
	mu   sync.Mutex
	log  []*Entry
}

// New creates a client with a fresh public-suffix-aware cookie jar.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		http: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		c.jar = jar
	}
	c.http.Jar = c.jar
	return c, nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, target string, opts *RequestOptions) (*Entry, error) {
	return c.do(ctx, http.MethodGet, target, opts)
}

// Post issues a POST request.
func (c *Client) Post(ctx context.Context, target string, opts *RequestOptions) (*Entry, error) {
	return c.do(ctx, http.MethodPost, target, opts)
}

// Put issues a PUT request.
func (c *Client) Put(ctx context.Context, target string, opts *RequestOptions) (*Entry, error) {
	return c.do(ctx, http.MethodPut, target, opts)
}

// Patch issues a PATCH request.
func (c *Client) Patch(ctx context.Context, target string, opts *RequestOptions) (*Entry, error) {
	return c.do(ctx, http.MethodPatch, target, opts)
}

// Head issues a HEAD request.
func (c *Client) Head(ctx context.Context, target string, opts *RequestOptions) (*Entry, error) {
	return c.do(ctx, http.MethodHead, target, opts)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, target string, opts *RequestOptions) (*Entry, error) {
	return c.do(ctx, http.MethodDelete, target, opts)
}

// Jar exposes the client's cookie jar.
func (c *Client) Jar() http.CookieJar {
	return c.jar
}

// Log returns an ordered snapshot of the accumulated request log.
func (c *Client) Log() []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Entry, len(c.log))
	copy(out, c.log)
	return out
}

func (c *Client) do(ctx context.Context, method, target string, opts *RequestOptions) (*Entry, error) {
	if target == "" {
		return nil, fmt.Errorf("target cannot be empty")
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target %q: %w", target, err)
	}
	if opts == nil {
		opts = &RequestOptions{}
	}
	if len(opts.Query) > 0 {
		query := u.Query()
		for key, values := range opts.Query {
			for _, value := range values {
				query.Add(key, value)
			}
		}
		u.RawQuery = query.Encode()
	}

	body, contentType := requestBody(opts)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for key, values := range opts.Headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}
	entry := &Entry{
		Response: resp,
		Body:     payload,
		Cookies:  c.cookieString(finalURL),
		Request:  req,
		FinalURL: finalURL.String(),
	}

	c.mu.Lock()
	c.log = append(c.log, entry)
	c.mu.Unlock()
	return entry, nil
}

// cookieString resolves the stored cookies for the supplied origin into a
// single "name=value; name=value" string.
func (c *Client) cookieString(origin *url.URL) string {
	cookies := c.jar.Cookies(origin)
	if len(cookies) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(cookies))
	for _, cookie := range cookies {
		pairs = append(pairs, cookie.Name+"="+cookie.Value)
	}
	return strings.Join(pairs, "; ")
}

func requestBody(opts *RequestOptions) (io.Reader, string) {
	if len(opts.Body) > 0 {
		return bytes.NewReader(opts.Body), opts.ContentType
	}
	if len(opts.Form) > 0 {
		return strings.NewReader(opts.Form.Encode()), "application/x-www-form-urlencoded"
	}
	if opts.ContentType != "" {
		return nil, opts.ContentType
	}
	return nil, ""
}
