package objectstore

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// GCSBucket stores objects in a Google Cloud Storage bucket.
type GCSBucket struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCSBucket creates a client using credentialsFile when set, or the
// application default credentials otherwise.
func NewGCSBucket(ctx context.Context, bucket, credentialsFile string) (*GCSBucket, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to create GCS client")
	}
	return &GCSBucket{client: client, bucket: client.Bucket(bucket), name: bucket}, nil
}

// Put implements Bucket.
func (b *GCSBucket) Put(ctx context.Context, key string, data []byte, contentType string) error {
	w := b.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to write GCS object").WithDetail("key", key)
	}
	if err := w.Close(); err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to finalize GCS object").WithDetail("key", key)
	}
	return nil
}

// Get implements Bucket.
func (b *GCSBucket) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := b.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeNotFound, "object not found").WithDetail("key", key)
	}
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to open GCS object").WithDetail("key", key)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to read GCS object").WithDetail("key", key)
	}
	return data, nil
}

// List implements Bucket.
func (b *GCSBucket) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: prefix})

	var out []ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to list GCS objects").
				WithDetail("prefix", prefix)
		}
		out = append(out, ObjectInfo{Key: attrs.Name, LastModified: attrs.Updated, Size: attrs.Size})
	}
	return out, nil
}

// Close implements Bucket.
func (b *GCSBucket) Close() error {
	return b.client.Close()
}
