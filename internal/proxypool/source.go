// Package proxypool fetches candidate forward-proxy endpoints from a
// remote proxy list.
//
// The pool is best-effort by design: any network or parse failure degrades
// to an empty list with a log line. Callers treat an empty pool while proxy
// mode was requested as a degrade-to-direct condition, never a fatal error.
package proxypool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// DefaultSourceURL is the proxy list queried when no source is configured.
// Entries look like {"proxy":"http://1.2.3.4:8080","protocol":"http",...}.
const DefaultSourceURL = "https://cdn.jsdelivr.net/gh/proxifly/free-proxy-list@main/proxies/protocols/http/data.json"

// Source fetches proxy endpoint lists.
type Source struct {
	client *retryablehttp.Client
	log    zerolog.Logger
}

// New creates a proxy list source.
func New(log zerolog.Logger) *Source {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil

	return &Source{
		client: client,
		log:    log,
	}
}

// List fetches the proxy list from sourceURL (DefaultSourceURL when empty),
// keeps entries whose protocol is plain http, and returns their endpoint
// strings. List never returns an error: every failure is logged and yields
// an empty slice.
func (s *Source) List(ctx context.Context, sourceURL string) []string {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}

	body, err := s.get(ctx, sourceURL)
	if err != nil {
		s.log.Warn().Err(err).Str("source", sourceURL).Msg("proxy list unavailable, continuing without proxies")
		return nil
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		s.log.Warn().Str("source", sourceURL).Msg("proxy list is not a JSON array, continuing without proxies")
		return nil
	}

	var endpoints []string
	for _, entry := range parsed.Array() {
		if entry.Get("protocol").Str != "http" {
			continue
		}
		endpoint := entry.Get("proxy").Str
		if endpoint == "" {
			ip := entry.Get("ip").String()
			port := entry.Get("port").String()
			if ip == "" || port == "" {
				continue
			}
			endpoint = ip + ":" + port
		}
		endpoints = append(endpoints, endpoint)
	}

	s.log.Debug().Int("count", len(endpoints)).Str("source", sourceURL).Msg("fetched proxy list")
	return endpoints
}

func (s *Source) get(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
