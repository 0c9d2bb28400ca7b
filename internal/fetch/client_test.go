package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stayingfalse/botcimghost/internal/fetch"
)

func TestGetDirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png; charset=binary")
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	client := fetch.NewClient(fetch.DefaultOptions())
	resp, err := client.Get(context.Background(), server.URL, "")
	require.NoError(t, err)

	assert.True(t, resp.OK())
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, []byte("png-bytes"), resp.Body)
	assert.Equal(t, "image/png", resp.ContentType())
}

func TestGetNonSuccessIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	client := fetch.NewClient(fetch.DefaultOptions())
	resp, err := client.Get(context.Background(), server.URL, "")
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusGone, resp.Status)
}

func TestGetTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	client := fetch.NewClient(fetch.Options{Timeout: 50 * time.Millisecond})
	_, err := client.Get(context.Background(), server.URL, "")
	assert.Error(t, err)
}

func TestGetContextCancellation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	client := fetch.NewClient(fetch.DefaultOptions())
	_, err := client.Get(ctx, server.URL, "")
	assert.Error(t, err)
}

func TestGetThroughProxy(t *testing.T) {
	// A forward proxy for plain HTTP receives the absolute URL in the
	// request line; a stub server is enough to observe the routing.
	var proxied bool
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied = r.URL.IsAbs()
		w.Write([]byte("via-proxy"))
	}))
	defer proxy.Close()

	client := fetch.NewClient(fetch.DefaultOptions())
	resp, err := client.Get(context.Background(), "http://origin.invalid/asset.png", proxy.Listener.Addr().String())
	require.NoError(t, err)

	assert.True(t, proxied, "request should carry an absolute URL through the proxy")
	assert.Equal(t, []byte("via-proxy"), resp.Body)
}

func TestGetInvalidProxyEndpoint(t *testing.T) {
	client := fetch.NewClient(fetch.DefaultOptions())
	_, err := client.Get(context.Background(), "http://h/a.png", "http://")
	assert.Error(t, err)
}
