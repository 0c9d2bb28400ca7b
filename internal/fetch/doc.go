// Package fetch provides a timed HTTP GET client with per-call proxy routing.
//
// This package handles:
//   - Whole-response buffering (assets are small images)
//   - A fixed per-request timeout on top of context cancellation
//   - Routing individual requests through a forward proxy endpoint
//   - Memoizing one *http.Client per proxy endpoint so repeated attempts
//     reuse the proxy's connection pool
//
// # Usage
//
//	client := fetch.NewClient(fetch.Options{Timeout: 20 * time.Second})
//
//	// Direct request
//	resp, err := client.Get(ctx, url, "")
//
//	// Routed through a proxy
//	resp, err := client.Get(ctx, url, "203.0.113.7:8080")
//
// Non-2xx responses are returned as values, not errors: the download
// coordinator treats them as failed attempts and rotates to the next route.
package fetch
