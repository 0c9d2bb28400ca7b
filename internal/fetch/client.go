package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Options configures the fetch client.
type Options struct {
	// Timeout for a single request, connection to last body byte.
	// Default: 20s
	Timeout time.Duration

	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 16
	MaxIdleConnsPerHost int

	// UserAgent is sent with every request when non-empty.
	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:             20 * time.Second,
		MaxIdleConnsPerHost: 16,
	}
}

// Response is a fully buffered HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports whether the response status is 2xx.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// ContentType returns the response media type without parameters,
// or "" when the header is absent or malformed.
func (r *Response) ContentType() string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mediaType
}

// Client performs timed GET requests, optionally routed through a forward
// proxy chosen per call. The underlying *http.Client for each proxy endpoint
// is created once and reused across calls, so repeated attempts through the
// same proxy share its connection pool. A Client is safe for concurrent use
// and scoped to one pipeline run.
type Client struct {
	opts Options

	mu      sync.Mutex
	clients map[string]*http.Client // keyed by proxy endpoint, "" = direct
}

// NewClient creates a new fetch client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = DefaultOptions().MaxIdleConnsPerHost
	}
	return &Client{
		opts:    opts,
		clients: make(map[string]*http.Client),
	}
}

// Get performs a single timed GET of rawURL. A non-empty proxyEndpoint
// routes the request through that forward proxy. Non-2xx responses are
// returned with their status and body, not as errors; callers decide the
// retry policy. Cancelling ctx aborts the request promptly.
func (c *Client) Get(ctx context.Context, rawURL, proxyEndpoint string) (*Response, error) {
	client, err := c.clientFor(proxyEndpoint)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: create request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
	}, nil
}

// clientFor returns the memoized *http.Client for the given proxy endpoint,
// creating it on first use.
func (c *Client) clientFor(proxyEndpoint string) (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[proxyEndpoint]; ok {
		return client, nil
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: c.opts.MaxIdleConnsPerHost,
		MaxIdleConns:        c.opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
	}

	if proxyEndpoint != "" {
		proxyURL, err := parseProxyEndpoint(proxyEndpoint)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   c.opts.Timeout,
	}
	c.clients[proxyEndpoint] = client
	return client, nil
}

// parseProxyEndpoint parses a proxy endpoint string, accepting bare
// host:port as shorthand for http://host:port.
func parseProxyEndpoint(endpoint string) (*url.URL, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	proxyURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch: invalid proxy endpoint %q: %w", endpoint, err)
	}
	if proxyURL.Host == "" {
		return nil, fmt.Errorf("fetch: invalid proxy endpoint %q: missing host", endpoint)
	}
	return proxyURL, nil
}
