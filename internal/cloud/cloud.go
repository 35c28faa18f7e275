// Package cloud reads access logs from and writes rendered results to
// object storage.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotFound is returned by Get when the object does not exist.
var ErrNotFound = errors.New("object not found")

// Backend is an object store bucket.
type Backend interface {
	// Put stores r under key. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Get opens the object at key. The returned size is -1 when unknown.
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// List returns object keys under prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ObjectInfo describes a remote object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Location is a parsed s3:// or gs:// URL.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

func (l Location) String() string {
	if l.Key == "" {
		return l.Scheme + "://" + l.Bucket
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// IsURL reports whether s names an object store location.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "s3://") || strings.HasPrefix(s, "gs://")
}

// ParseURL splits an s3:// or gs:// URL into scheme, bucket and key.
// A trailing slash on the key is preserved so callers can tell prefixes
// from objects.
func ParseURL(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("empty URL")
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || (scheme != "s3" && scheme != "gs") {
		return Location{}, fmt.Errorf("unsupported scheme in %q: expected s3:// or gs://", raw)
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("empty bucket in %q", raw)
	}
	return Location{Scheme: scheme, Bucket: bucket, Key: key}, nil
}

// NewBackend creates a Backend for the given scheme and bucket using the
// ambient credentials of the SDK.
func NewBackend(ctx context.Context, scheme, bucket string) (Backend, error) {
	switch scheme {
	case "s3":
		return newS3Backend(ctx, bucket)
	case "gs":
		return newGCSBackend(ctx, bucket)
	default:
		return nil, fmt.Errorf("unsupported scheme %q: expected s3 or gs", scheme)
	}
}

// ContentType maps a render format name to a MIME type for uploads.
func ContentType(format string) string {
	switch format {
	case "json", "query":
		return "application/json"
	case "jsonl":
		return "application/x-ndjson"
	case "csv":
		return "text/csv"
	case "html":
		return "text/html; charset=utf-8"
	case "parquet":
		return "application/vnd.apache.parquet"
	default:
		return "text/plain; charset=utf-8"
	}
}
