package objectstore

import (
	"context"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/config"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// Open creates the Bucket selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config) (Bucket, error) {
	st := cfg.Storage
	switch st.Backend {
	case "s3":
		accessKey, secretKey := cfg.StorageKeys()
		return NewS3Bucket(ctx, S3Options{
			Bucket:       st.Bucket,
			Region:       st.Region,
			Endpoint:     st.Endpoint,
			UsePathStyle: st.UsePathStyle,
			AccessKey:    accessKey,
			SecretKey:    secretKey,
		})
	case "gcs":
		return NewGCSBucket(ctx, st.Bucket, st.CredentialsFile)
	case "memory":
		return NewMemoryBucket(), nil
	default:
		return nil, etlerrors.Newf(etlerrors.ErrorTypeConfig, "unsupported storage backend %q", st.Backend)
	}
}
