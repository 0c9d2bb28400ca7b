// Package pipeline coordinates the asset mirroring run: it drains the plan
// list with a bounded worker pool, applies the direct/proxy retry policy,
// deduplicates stored objects by content hash, derives thumbnails, rewrites
// the script to the mirrored locations and persists the run outputs.
//
// # Worker Pool
//
// A fixed pool of min(planCount, baseConcurrency) workers pulls plan
// indices from a shared atomic counter. Results land in fixed slots
// addressed by plan index, so the output order is deterministic regardless
// of completion order. Progress events are emitted in completion order.
//
// # Failure Policy
//
// Exhausting every route for a single plan fails the whole run via
// errgroup cancellation; in-flight fetches of sibling workers are aborted
// and no manifest or rewritten documents are persisted. Thumbnail
// generation failures and proxy-list failures are non-fatal and only
// logged.
//
// # Deduplication
//
// Storage keys embed a hash of the downloaded bytes, so identical content
// from different URLs collides onto one object. Existence is checked
// before each upload; on a hit only the public URL is resolved. The run
// prefix is itself derived from the input bytes, which makes re-running
// an unchanged script a pure dedup pass.
package pipeline
