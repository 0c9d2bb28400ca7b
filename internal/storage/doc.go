// Package storage abstracts the object store behind the small capability
// surface the pipeline needs: existence checks, byte puts and JSON puts.
//
// Both run modes share one implementation built on gocloud.dev/blob; the
// backend is selected once per run by the bucket URL scheme (s3://, gs://
// for bucket mode, file:// for local mode, mem:// in tests). Public URLs
// are derived from a configured base URL rather than from the backend, so
// a CDN or static host can front the bucket.
package storage
