// Package testutils provides shared test fixtures: generated images and
// HTTP servers that mimic remote asset hosts.
package testutils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// PNG returns an encoded PNG of the given dimensions with a deterministic
// gradient fill, so identical dimensions produce identical bytes.
func PNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x % 256),
				G: uint8(y % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// AssetServer serves the given path->bytes map as image/png responses and
// counts requests per path. Unknown paths return 404.
type AssetServer struct {
	*httptest.Server

	hits map[string]*atomic.Int64
}

// NewAssetServer starts an asset server for the given files. The server is
// shut down automatically when the test finishes.
func NewAssetServer(t *testing.T, files map[string][]byte) *AssetServer {
	t.Helper()

	s := &AssetServer{hits: make(map[string]*atomic.Int64)}
	for path := range files {
		s.hits[path] = &atomic.Int64{}
	}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		s.hits[r.URL.Path].Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	t.Cleanup(s.Close)
	return s
}

// Hits returns how many times path was requested.
func (s *AssetServer) Hits(path string) int {
	counter, ok := s.hits[path]
	if !ok {
		return 0
	}
	return int(counter.Load())
}

// FailingServer returns a server that always responds with the given status.
func FailingServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server
}
