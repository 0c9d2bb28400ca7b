package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Stayingfalse/botcimghost/internal/config"
	"github.com/Stayingfalse/botcimghost/internal/fetch"
	"github.com/Stayingfalse/botcimghost/internal/pipeline"
	"github.com/Stayingfalse/botcimghost/internal/plan"
	"github.com/Stayingfalse/botcimghost/internal/progress"
	"github.com/Stayingfalse/botcimghost/internal/storage"
)

// runMirror executes the full pipeline: plan, download, rewrite, persist.
func runMirror(args []string) int {
	fs := flag.NewFlagSet("mirror", flag.ExitOnError)

	script := fs.String("script", "", "Path to the script JSON, or '-' for stdin (required)")
	name := fs.String("name", "", "Script display name (default: the script's meta name)")
	configPath := fs.String("config", "", "Path to a YAML config file")
	mode := fs.String("mode", "", "Storage mode: bucket or local")
	bucketURL := fs.String("bucket", "", "Bucket URL (s3://..., gs://...) for bucket mode")
	baseURL := fs.String("base-url", "", "Public base URL for stored objects")
	localDir := fs.String("local-dir", "", "Directory for local mode")
	proxy := fs.Bool("proxy", false, "Route downloads through a rotating proxy pool")
	proxySource := fs.String("proxy-source", "", "Override the proxy list source URL")
	workers := fs.Int("workers", 0, "Worker pool size override")
	timeout := fs.Duration("timeout", 0, "Per-request fetch timeout")
	quiet := fs.Bool("quiet", false, "Suppress progress output")
	verbose := fs.Bool("verbose", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: botcimghost mirror [options]

Mirror every image a script references into object storage and write
rewritten copies of the script pointing at the mirrored locations.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	if *script == "" {
		fmt.Fprintln(os.Stderr, "Error: -script is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			return ExitConfigError
		}
		cfg = loaded
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading environment: %v\n", err)
		return ExitConfigError
	}
	cfg = cfg.Merge(config.Config{
		StorageMode:   *mode,
		BucketURL:     *bucketURL,
		PublicBaseURL: *baseURL,
		LocalDir:      *localDir,
		Concurrency:   *workers,
		FetchTimeout:  *timeout,
		Proxy: config.ProxyConfig{
			Enabled:   *proxy,
			SourceURL: *proxySource,
		},
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	raw, err := readScript(*script)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading script: %v\n", err)
		return ExitGeneralError
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()

	// Handle signals for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[botcimghost] Received interrupt, shutting down...")
		cancel()
	}()

	store, code := openStore(ctx, cfg)
	if store == nil {
		return code
	}
	defer store.Close()

	var sink pipeline.Sink = pipeline.NopSink{}
	var reporter *progress.Reporter
	if !*quiet {
		reporter = progress.NewReporter(progress.Options{})
		sink = reporter
	}

	result, err := pipeline.Run(ctx, raw, store, pipeline.RunOptions{
		ScriptName:     *name,
		ProxyMode:      cfg.Proxy.Enabled,
		ProxySourceURL: cfg.Proxy.SourceURL,
		Concurrency:    cfg.Concurrency,
		CacheControl:   cfg.CacheControl,
		Fetch: fetch.Options{
			Timeout: cfg.FetchTimeout,
		},
		Sink: sink,
		Log:  log,
	})
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "[botcimghost] Mirror interrupted")
			return ExitGeneralError
		}
		return mirrorErrorCode(err)
	}

	if reporter != nil {
		reporter.Summary()
	}

	fmt.Printf("Manifest:  %s\n", result.ManifestURL)
	fmt.Printf("Original:  %s\n", result.OriginalURL)
	fmt.Printf("Rewritten: %s\n", result.FullURL)
	fmt.Printf("Preview:   %s\n", result.PreviewURL)
	if len(result.ProxiesUsed) > 0 {
		fmt.Printf("Proxies:   %d used\n", len(result.ProxiesUsed))
	}

	return ExitSuccess
}

// readScript reads the script document from a file or stdin.
func readScript(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// openStore opens the storage backend selected by the config. Returns a
// nil store and an exit code on failure.
func openStore(ctx context.Context, cfg config.Config) (*storage.BlobStore, int) {
	var (
		store *storage.BlobStore
		err   error
	)
	switch cfg.StorageMode {
	case config.ModeBucket:
		store, err = storage.Open(ctx, cfg.BucketURL, cfg.PublicBaseURL)
	case config.ModeLocal:
		store, err = storage.OpenLocal(ctx, cfg.LocalDir, cfg.PublicBaseURL)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		return nil, ExitStorageError
	}
	return store, ExitSuccess
}

// mirrorErrorCode maps pipeline failures onto exit codes.
func mirrorErrorCode(err error) int {
	var dlErr *pipeline.DownloadError
	switch {
	case errors.Is(err, pipeline.ErrInvalidScript):
		fmt.Fprintln(os.Stderr, "Error: the script must be a JSON array")
		return ExitInvalidScript
	case errors.Is(err, plan.ErrNoAssets):
		fmt.Fprintln(os.Stderr, "Error: the script references no downloadable images")
		return ExitNoAssets
	case errors.As(err, &dlErr):
		fmt.Fprintf(os.Stderr, "Error: %v\n", dlErr)
		return ExitDownloadError
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
}
