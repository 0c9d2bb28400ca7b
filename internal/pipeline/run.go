package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/Stayingfalse/botcimghost/internal/fetch"
	"github.com/Stayingfalse/botcimghost/internal/plan"
	"github.com/Stayingfalse/botcimghost/internal/proxypool"
	"github.com/Stayingfalse/botcimghost/internal/storage"
)

// ErrInvalidScript is returned when the input is not a JSON array.
var ErrInvalidScript = errors.New("pipeline: script must be a JSON array")

// RunOptions configures one pipeline run.
type RunOptions struct {
	// ScriptName is the requested display name. When empty the meta
	// entry's name is used, then "script".
	ScriptName string

	// ProxyMode routes asset fetches through a rotating proxy pool.
	ProxyMode bool

	// ProxySourceURL overrides the default proxy list source.
	ProxySourceURL string

	// Concurrency overrides the worker pool base size when positive.
	Concurrency int

	// CacheControl is applied to stored assets.
	CacheControl string

	// Fetch configures the HTTP client used for asset downloads.
	Fetch fetch.Options

	// Sink receives progress events. Defaults to NopSink.
	Sink Sink

	// Log receives run diagnostics.
	Log zerolog.Logger
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	ScriptName  string   `json:"script_name"`
	Prefix      string   `json:"prefix"`
	Assets      []Asset  `json:"assets"`
	Uploaded    int      `json:"uploaded"`
	DedupHits   int      `json:"dedup_hits"`
	ProxiesUsed []string `json:"proxies_used,omitempty"`

	ManifestURL string `json:"manifest_url"`
	OriginalURL string `json:"original_url"`
	FullURL     string `json:"full_url"`
	PreviewURL  string `json:"preview_url"`
}

// Prefix derives the deterministic storage namespace for one script: a
// content hash of the raw input bytes plus the folded resolved name.
// Byte-identical input under the same name always lands in the same
// prefix, which makes re-runs dedup no-ops at the storage-key level.
func Prefix(raw []byte, scriptName string) string {
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("scripts/%s_%s", plan.FoldName(scriptName), hex.EncodeToString(sum[:])[:8])
}

// Run executes the whole pipeline: plan, fetch the proxy pool when
// requested, download all assets, rewrite the script and persist the run
// outputs under the run prefix. It either returns a complete result or a
// single descriptive error with no partial outputs persisted.
func Run(ctx context.Context, raw []byte, store storage.Store, opts RunOptions) (*RunResult, error) {
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}

	script := gjson.ParseBytes(raw)
	if !script.IsArray() {
		return nil, ErrInvalidScript
	}

	name := opts.ScriptName
	if name == "" {
		name = plan.MetaEntry(script).Get("name").Str
	}
	if name == "" {
		name = "script"
	}

	plans, err := plan.Build(script, name)
	if err != nil {
		return nil, err
	}

	var proxies []string
	if opts.ProxyMode {
		proxies = proxypool.New(opts.Log).List(ctx, opts.ProxySourceURL)
		if len(proxies) == 0 {
			opts.Log.Warn().Msg("proxy mode requested but pool is empty, falling back to direct fetches")
		}
	}

	opts.Sink.PlanSummary(len(plans), name)

	prefix := Prefix(raw, name)
	coord := NewCoordinator(store, CoordinatorOptions{
		Prefix:       prefix,
		ProxyMode:    opts.ProxyMode,
		Proxies:      proxies,
		Concurrency:  opts.Concurrency,
		CacheControl: opts.CacheControl,
		Fetch:        opts.Fetch,
		Sink:         opts.Sink,
		Log:          opts.Log,
	})

	assets, err := coord.Run(ctx, plans)
	if err != nil {
		return nil, err
	}

	full, preview, err := Rewrite(raw, assets)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		ScriptName:  name,
		Prefix:      prefix,
		Assets:      assets,
		ProxiesUsed: coord.ProxiesUsed(),
	}
	for _, a := range assets {
		if a.Deduplicated {
			result.DedupHits++
		} else {
			result.Uploaded++
		}
	}

	manifest, err := store.PutJSON(ctx, prefix+"/manifest.json", assets)
	if err != nil {
		return nil, err
	}
	original, err := store.PutBytes(ctx, prefix+"/original.json", raw, "application/json", "")
	if err != nil {
		return nil, err
	}
	fullDoc, err := store.PutBytes(ctx, prefix+"/rewritten.json", full, "application/json", "")
	if err != nil {
		return nil, err
	}
	previewDoc, err := store.PutBytes(ctx, prefix+"/rewritten_256.json", preview, "application/json", "")
	if err != nil {
		return nil, err
	}

	result.ManifestURL = manifest.URL
	result.OriginalURL = original.URL
	result.FullURL = fullDoc.URL
	result.PreviewURL = previewDoc.URL

	opts.Log.Info().
		Str("script", name).
		Str("prefix", prefix).
		Int("assets", len(assets)).
		Int("uploaded", result.Uploaded).
		Int("dedup_hits", result.DedupHits).
		Msg("run complete")

	return result, nil
}
