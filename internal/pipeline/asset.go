package pipeline

import (
	"strings"

	"github.com/Stayingfalse/botcimghost/internal/plan"
)

// ThumbMarker tags thumbnail results on their variant label. It is a
// stable machine-readable sentinel, not display text: the rewriter and
// manifest consumers partition results by it.
const ThumbMarker = " (256px)"

// Asset is a completed plan: the plan plus where its bytes ended up.
// A character image plan yields two assets, the original-resolution one
// and a companion thumbnail whose variant label carries ThumbMarker.
type Asset struct {
	plan.Plan

	// StorageKey is the content-addressed object key.
	StorageKey string `json:"storage_key"`

	// PublicURL is the mirrored location of the asset.
	PublicURL string `json:"public_url"`

	// ContentType is the stored content type.
	ContentType string `json:"content_type"`

	// Size is the number of bytes uploaded by this run; 0 when the
	// object already existed.
	Size int64 `json:"size"`

	// Deduplicated reports that the object already existed under its
	// content-addressed key and no upload was performed.
	Deduplicated bool `json:"deduplicated"`
}

// IsThumbnail reports whether the asset is a derived thumbnail variant.
func (a Asset) IsThumbnail() bool {
	return strings.HasSuffix(a.VariantLabel, ThumbMarker)
}

// Sink receives progress events during a run. Events are emitted in
// completion order, not plan order; consumers correlate events to plans
// via the plan's identity fields. Implementations must be safe for
// concurrent use.
type Sink interface {
	// PlanSummary is emitted once, before any network activity.
	PlanSummary(totalAssets int, scriptName string)

	// AssetStart is emitted once per plan, before its first fetch attempt.
	AssetStart(p plan.Plan)

	// AssetStored is emitted once per plan with the original-resolution
	// asset. Thumbnail results are not individually announced.
	AssetStored(p plan.Plan, a Asset)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) PlanSummary(int, string)      {}
func (NopSink) AssetStart(plan.Plan)         {}
func (NopSink) AssetStored(plan.Plan, Asset) {}
