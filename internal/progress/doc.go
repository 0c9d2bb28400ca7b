// Package progress renders pipeline events as human-readable console
// output.
//
// The Reporter implements pipeline.Sink. Because workers complete in
// arbitrary order, each line names the plan it belongs to; counters are
// atomic so interleaved events from concurrent workers stay consistent.
package progress
