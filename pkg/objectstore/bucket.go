// Package objectstore stages datasets as immutable artifacts in an object
// store bucket and resolves the newest artifact under a key prefix.
//
// Backends implement Bucket: S3 (and S3-compatible stores), Google Cloud
// Storage, and an in-process bucket for tests and dry runs. Store adds the
// dataset codecs and the freshness queries on top of a Bucket.
package objectstore

import (
	"context"
	"time"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
	Size         int64
}

// Bucket is the minimal blob interface the pipeline needs.
type Bucket interface {
	// Put stores data under key, replacing any previous object.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns the object body. A missing key is a not_found error.
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Close releases the client.
	Close() error
}
