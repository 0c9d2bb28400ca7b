package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Stayingfalse/botcimghost/internal/fetch"
	"github.com/Stayingfalse/botcimghost/internal/plan"
	"github.com/Stayingfalse/botcimghost/internal/storage"
	"github.com/Stayingfalse/botcimghost/internal/thumbnail"
)

// Worker pool sizing: proxied connections are slower and lower-trust, so
// more of them run in parallel than direct ones.
const (
	directConcurrency = 4
	proxyConcurrency  = 8

	// maxExtraProxies bounds the additional proxies tried after the
	// worker's preferred one.
	maxExtraProxies = 2
)

// DownloadError reports that every configured route for one asset failed.
// It aborts the whole run: a script with a missing image is not mirrored
// partially.
type DownloadError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %d attempts failed, last: %v", e.URL, e.Attempts, e.Last)
}

func (e *DownloadError) Unwrap() error { return e.Last }

// CoordinatorOptions configures a download run.
type CoordinatorOptions struct {
	// Prefix is the storage namespace for this run.
	Prefix string

	// ProxyMode requests routing fetches through the proxy pool. With a
	// non-empty pool, direct fallback is intentionally withheld so that
	// geo-restricted hosts are only ever contacted via proxies.
	ProxyMode bool

	// Proxies is the fetched proxy pool. Ignored unless ProxyMode is set.
	Proxies []string

	// Concurrency overrides the worker pool base size when positive.
	Concurrency int

	// CacheControl is applied to every stored asset.
	CacheControl string

	// Fetch configures the HTTP client.
	Fetch fetch.Options

	// Sink receives progress events. Defaults to NopSink.
	Sink Sink

	// Log is used for per-attempt diagnostics and non-fatal failures.
	Log zerolog.Logger
}

// Coordinator owns the bounded worker pool that drains a plan list. All
// mutable state (client map, proxies-used set) is scoped to the coordinator,
// so concurrent runs in one process never share connections or counters.
type Coordinator struct {
	opts   CoordinatorOptions
	client *fetch.Client
	store  storage.Store
	sink   Sink

	mu          sync.Mutex
	proxiesUsed map[string]struct{}
}

// NewCoordinator creates a coordinator storing assets through store.
func NewCoordinator(store storage.Store, opts CoordinatorOptions) *Coordinator {
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}
	if opts.Fetch.Timeout <= 0 {
		opts.Fetch = fetch.DefaultOptions()
	}
	return &Coordinator{
		opts:        opts,
		client:      fetch.NewClient(opts.Fetch),
		store:       store,
		sink:        opts.Sink,
		proxiesUsed: make(map[string]struct{}),
	}
}

// ProxiesUsed returns the sorted set of proxy endpoints that served at
// least one successful fetch during the run.
func (c *Coordinator) ProxiesUsed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	used := make([]string, 0, len(c.proxiesUsed))
	for p := range c.proxiesUsed {
		used = append(used, p)
	}
	sort.Strings(used)
	return used
}

func (c *Coordinator) markProxyUsed(endpoint string) {
	if endpoint == "" {
		return
	}
	c.mu.Lock()
	c.proxiesUsed[endpoint] = struct{}{}
	c.mu.Unlock()
}

// Run downloads every plan and returns the flat asset list: one
// original-resolution asset per plan in plan order, each character image
// asset immediately followed by its thumbnail when one was generated.
// The first plan whose routes are all exhausted fails the whole run.
func (c *Coordinator) Run(ctx context.Context, plans []plan.Plan) ([]Asset, error) {
	if len(plans) == 0 {
		return nil, plan.ErrNoAssets
	}

	workers := c.workerCount(len(plans))
	preferred := c.preferredProxies(workers)

	originals := make([]Asset, len(plans))
	thumbs := make([]*Asset, len(plans))

	// Workers pull plan indices from a shared atomic counter until it
	// runs past the end; completion order is arbitrary but every result
	// lands in its plan's slot.
	var next atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		pref := preferred[w]
		g.Go(func() error {
			for {
				i := int(next.Add(1)) - 1
				if i >= len(plans) {
					return nil
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				asset, thumb, err := c.process(ctx, plans[i], pref)
				if err != nil {
					return err
				}
				originals[i] = asset
				thumbs[i] = thumb
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	assets := make([]Asset, 0, 2*len(plans))
	for i := range originals {
		assets = append(assets, originals[i])
		if thumbs[i] != nil {
			assets = append(assets, *thumbs[i])
		}
	}
	return assets, nil
}

// workerCount returns the pool size for the given plan count.
func (c *Coordinator) workerCount(planCount int) int {
	base := directConcurrency
	if c.opts.ProxyMode {
		base = proxyConcurrency
	}
	if c.opts.Concurrency > 0 {
		base = c.opts.Concurrency
	}
	if planCount < base {
		return planCount
	}
	return base
}

// preferredProxies samples one preferred proxy per worker slot without
// replacement, wrapping around when the pool is smaller than the pool of
// workers. Entries are "" when proxy mode is off or no proxies exist.
func (c *Coordinator) preferredProxies(workers int) []string {
	preferred := make([]string, workers)
	if !c.opts.ProxyMode || len(c.opts.Proxies) == 0 {
		return preferred
	}

	shuffled := append([]string(nil), c.opts.Proxies...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	for w := range preferred {
		preferred[w] = shuffled[w%len(shuffled)]
	}
	return preferred
}

// routes builds the ordered attempt list for one plan. Proxy mode with a
// non-empty pool yields proxy-only routes (preferred first, then up to
// maxExtraProxies random distinct ones); otherwise a single direct attempt.
func (c *Coordinator) routes(preferred string) []string {
	if !c.opts.ProxyMode || len(c.opts.Proxies) == 0 {
		return []string{""}
	}

	routes := []string{preferred}
	seen := map[string]struct{}{preferred: {}}
	// Bounded random probing: a handful of draws is enough to find
	// distinct endpoints in any realistically sized pool.
	for i := 0; i < len(c.opts.Proxies) && len(routes) < 1+maxExtraProxies; i++ {
		candidate := c.opts.Proxies[rand.IntN(len(c.opts.Proxies))]
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		routes = append(routes, candidate)
	}
	return routes
}

// process downloads one plan, stores the asset and derives its thumbnail.
func (c *Coordinator) process(ctx context.Context, p plan.Plan, preferred string) (Asset, *Asset, error) {
	c.sink.AssetStart(p)

	body, contentType, err := c.download(ctx, p, preferred)
	if err != nil {
		return Asset{}, nil, err
	}

	ext := extensionFor(p.OriginalURL, contentType)
	hash := contentHash(body)
	key := fmt.Sprintf("%s/%s_%s.%s", c.opts.Prefix, p.FileBaseName, hash, ext)

	asset, err := c.storeAsset(ctx, p, key, body, contentType)
	if err != nil {
		return Asset{}, nil, err
	}
	c.sink.AssetStored(p, asset)

	// Thumbnails only exist for character primary images.
	if p.EntryType != plan.EntryCharacter || p.Field != "image" {
		return asset, nil, nil
	}

	thumb, err := c.storeThumbnail(ctx, p, key, ext, body, contentType)
	if err != nil {
		return Asset{}, nil, err
	}
	return asset, thumb, nil
}

// download walks the plan's attempt routes until one returns a 2xx.
func (c *Coordinator) download(ctx context.Context, p plan.Plan, preferred string) ([]byte, string, error) {
	routes := c.routes(preferred)

	var lastErr error
	for _, route := range routes {
		resp, err := c.client.Get(ctx, p.OriginalURL, route)
		if err != nil {
			lastErr = err
		} else if !resp.OK() {
			lastErr = fmt.Errorf("status %d", resp.Status)
		} else {
			c.markProxyUsed(route)
			return resp.Body, resp.ContentType(), nil
		}

		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		c.opts.Log.Debug().
			Str("url", p.OriginalURL).
			Str("proxy", route).
			Err(lastErr).
			Msg("fetch attempt failed")
	}

	return nil, "", &DownloadError{URL: p.OriginalURL, Attempts: len(routes), Last: lastErr}
}

// storeAsset uploads body under key unless the key already exists.
func (c *Coordinator) storeAsset(ctx context.Context, p plan.Plan, key string, body []byte, contentType string) (Asset, error) {
	asset := Asset{
		Plan:        p,
		StorageKey:  key,
		ContentType: contentType,
	}

	exists, err := c.store.Exists(ctx, key)
	if err != nil {
		return Asset{}, err
	}
	if exists {
		asset.Deduplicated = true
		asset.PublicURL = c.store.URL(key)
		return asset, nil
	}

	res, err := c.store.PutBytes(ctx, key, body, contentType, c.opts.CacheControl)
	if err != nil {
		return Asset{}, err
	}
	asset.PublicURL = res.URL
	asset.Size = int64(len(body))
	return asset, nil
}

// storeThumbnail derives and stores the companion thumbnail. Its existence
// check is independent of the original's: either side may be a dedup hit.
// Generation failures are non-fatal and yield a nil thumbnail.
func (c *Coordinator) storeThumbnail(ctx context.Context, p plan.Plan, key, ext string, body []byte, contentType string) (*Asset, error) {
	thumbKey := strings.TrimSuffix(key, "."+ext) + fmt.Sprintf("_%d.%s", thumbnail.Size, ext)

	thumbPlan := p
	thumbPlan.VariantLabel = p.VariantLabel + ThumbMarker
	thumbPlan.FileBaseName = p.FileBaseName + fmt.Sprintf("_%d", thumbnail.Size)

	asset := Asset{
		Plan:        thumbPlan,
		StorageKey:  thumbKey,
		ContentType: contentType,
	}

	exists, err := c.store.Exists(ctx, thumbKey)
	if err != nil {
		return nil, err
	}
	if exists {
		asset.Deduplicated = true
		asset.PublicURL = c.store.URL(thumbKey)
		return &asset, nil
	}

	thumbBytes, err := thumbnail.Generate(body, ext)
	if err != nil {
		c.opts.Log.Warn().
			Str("url", p.OriginalURL).
			Err(err).
			Msg("thumbnail generation failed, keeping original only")
		return nil, nil
	}

	res, err := c.store.PutBytes(ctx, thumbKey, thumbBytes, contentType, c.opts.CacheControl)
	if err != nil {
		return nil, err
	}
	asset.PublicURL = res.URL
	asset.Size = int64(len(thumbBytes))
	return &asset, nil
}

// contentHash returns the content-addressed key component for data.
// Identical bytes from different URLs collide onto the same key; that
// collision is the dedup mechanism.
func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// extensionFor resolves the storage extension: URL path first, declared
// content type second, generic binary last.
func extensionFor(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.TrimPrefix(path.Ext(u.Path), "."); ext != "" {
			return strings.ToLower(ext)
		}
	}
	switch contentType {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/svg+xml":
		return "svg"
	}
	return "bin"
}
