package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"

	// Drivers selected by bucket URL scheme.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

// BlobStore implements Store on top of a gocloud blob bucket. The same
// implementation serves both run modes: bucket mode opens an s3:// or
// gs:// URL, local mode a file:// URL.
type BlobStore struct {
	bucket  *blob.Bucket
	baseURL string
}

// Open opens the bucket at bucketURL and builds public URLs by joining
// publicBaseURL with object keys.
func Open(ctx context.Context, bucketURL, publicBaseURL string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("storage: open bucket %s: %w", bucketURL, err)
	}
	return &BlobStore{
		bucket:  bucket,
		baseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}, nil
}

// OpenLocal opens a local-disk backed store rooted at dir. Public URLs are
// file:// URLs unless publicBaseURL overrides them.
func OpenLocal(ctx context.Context, dir, publicBaseURL string) (*BlobStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve dir %s: %w", dir, err)
	}
	bucketURL := "file://" + filepath.ToSlash(abs) + "?create_dir=true"
	if publicBaseURL == "" {
		publicBaseURL = "file://" + filepath.ToSlash(abs)
	}
	return Open(ctx, bucketURL, publicBaseURL)
}

// Close releases the underlying bucket.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}

// Exists reports whether an object is stored under key.
func (s *BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("storage: exists %s: %w", key, err)
	}
	return exists, nil
}

// PutBytes stores data under key. An empty payload resolves the URL of an
// already-known key without writing.
func (s *BlobStore) PutBytes(ctx context.Context, key string, data []byte, contentType, cacheControl string) (PutResult, error) {
	if len(data) == 0 {
		return PutResult{Key: key, URL: s.URL(key)}, nil
	}

	opts := &blob.WriterOptions{
		ContentType:  contentType,
		CacheControl: cacheControl,
	}
	if err := s.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return PutResult{}, fmt.Errorf("storage: write %s: %w", key, err)
	}
	return PutResult{Key: key, URL: s.URL(key)}, nil
}

// PutJSON marshals v and stores it under key.
func (s *BlobStore) PutJSON(ctx context.Context, key string, v any) (PutResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return PutResult{}, fmt.Errorf("storage: marshal %s: %w", key, err)
	}
	return s.PutBytes(ctx, key, data, "application/json", "")
}

// URL joins the public base URL with key, escaping path segments.
func (s *BlobStore) URL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}
