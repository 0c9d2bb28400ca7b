package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Stayingfalse/botcimghost/internal/pipeline"
	"github.com/Stayingfalse/botcimghost/internal/plan"
)

// Options configures the console reporter.
type Options struct {
	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer
}

// Reporter prints human-readable progress for a pipeline run. It
// implements pipeline.Sink and is safe for use by concurrent workers.
// Events arrive in completion order, so lines are labelled with the plan
// they belong to rather than a position.
type Reporter struct {
	out io.Writer

	mu        sync.Mutex
	total     int
	started   atomic.Int32
	stored    atomic.Int32
	bytes     atomic.Int64
	dedup     atomic.Int32
	startTime time.Time
}

// NewReporter creates a console reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	return &Reporter{out: opts.Output}
}

// PlanSummary prints the run header.
func (r *Reporter) PlanSummary(totalAssets int, scriptName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = totalAssets
	r.startTime = time.Now()
	fmt.Fprintf(r.out, "[botcimghost] Mirroring %q: %d assets\n", scriptName, totalAssets)
}

// AssetStart prints a line when a plan's first fetch attempt begins.
func (r *Reporter) AssetStart(p plan.Plan) {
	n := r.started.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "[botcimghost] (%d/%d) fetching %s %s\n", n, r.total, p.EntryName, p.VariantLabel)
}

// AssetStored prints a line once the original-resolution asset is resolved.
func (r *Reporter) AssetStored(p plan.Plan, a pipeline.Asset) {
	n := r.stored.Add(1)
	r.bytes.Add(a.Size)
	if a.Deduplicated {
		r.dedup.Add(1)
	}

	status := formatBytes(a.Size)
	if a.Deduplicated {
		status = "already stored"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "[botcimghost] (%d/%d) stored %s %s (%s)\n", n, r.total, p.EntryName, p.VariantLabel, status)
}

// Summary prints final totals. Call after the run completes.
func (r *Reporter) Summary() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "[botcimghost] Done: %d assets | %s uploaded | %d dedup hits | %s\n",
		r.stored.Load(),
		formatBytes(r.bytes.Load()),
		r.dedup.Load(),
		formatDuration(time.Since(r.startTime)),
	)
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, s)
}
