package storage

import (
	"context"
)

// PutResult reports where an object was stored and how to reach it.
type PutResult struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Store is the capability surface the pipeline needs from object storage.
// Implementations must be idempotent per key and safe for concurrent use
// by multiple workers.
type Store interface {
	// Exists reports whether an object is already stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// PutBytes stores data under key with the given content type and
	// cache-control header. An empty data slice is a documented no-op:
	// the key is assumed to already exist and only its URL is resolved.
	// This is the dedup-hit path.
	PutBytes(ctx context.Context, key string, data []byte, contentType, cacheControl string) (PutResult, error)

	// PutJSON marshals v and stores it under key as application/json.
	PutJSON(ctx context.Context, key string, v any) (PutResult, error)

	// URL builds the public URL for key without touching the backend.
	URL(key string) string
}
