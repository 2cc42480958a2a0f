package objectstore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/formats"
)

// Store reads and writes datasets as artifacts in a Bucket.
type Store struct {
	bucket Bucket
	logger *zap.Logger
}

// NewStore wraps bucket. A nil logger discards.
func NewStore(bucket Bucket, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{bucket: bucket, logger: logger.With(zap.String("component", "objectstore"))}
}

// Bucket returns the underlying bucket.
func (s *Store) Bucket() Bucket { return s.bucket }

// Write serializes ds in the format named by key's extension and uploads it.
// An unsupported extension fails before anything is uploaded.
func (s *Store) Write(ctx context.Context, ds *columnar.Dataset, key string) error {
	f, err := formats.FromKey(key)
	if err != nil {
		return err
	}
	data, err := formats.EncodeBytes(ds, f)
	if err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to encode dataset").WithDetail("key", key)
	}
	if err := s.bucket.Put(ctx, key, data, f.ContentType()); err != nil {
		return err
	}
	s.logger.Info("artifact written",
		zap.String("key", key),
		zap.Int("rows", ds.NumRows()),
		zap.Int("columns", ds.NumColumns()),
		zap.Int("bytes", len(data)))
	return nil
}

// Read downloads and parses the artifact at key.
func (s *Store) Read(ctx context.Context, key string) (*columnar.Dataset, error) {
	f, err := formats.FromKey(key)
	if err != nil {
		return nil, err
	}
	data, err := s.bucket.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	ds, err := formats.Decode(data, f)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to decode artifact").WithDetail("key", key)
	}
	s.logger.Debug("artifact read", zap.String("key", key), zap.Int("rows", ds.NumRows()))
	return ds, nil
}

// Latest returns the object under prefix with the greatest modification time.
// Equal times are broken by the greater key.
func (s *Store) Latest(ctx context.Context, prefix string) (ObjectInfo, error) {
	objects, err := s.bucket.List(ctx, prefix)
	if err != nil {
		return ObjectInfo{}, err
	}
	if len(objects) == 0 {
		return ObjectInfo{}, etlerrors.Newf(etlerrors.ErrorTypeNotFound, "no object under prefix %q", prefix).
			WithDetail("prefix", prefix)
	}

	latest := objects[0]
	for _, obj := range objects[1:] {
		if obj.LastModified.After(latest.LastModified) ||
			(obj.LastModified.Equal(latest.LastModified) && obj.Key > latest.Key) {
			latest = obj
		}
	}
	return latest, nil
}

// ResolveLatest returns the key of the newest object under prefix.
func (s *Store) ResolveLatest(ctx context.Context, prefix string) (string, error) {
	latest, err := s.Latest(ctx, prefix)
	if err != nil {
		return "", err
	}
	return latest.Key, nil
}

// IsRecent reports whether the newest object under prefix was modified during
// the Monday to Sunday calendar week containing now, in now's location. An
// empty prefix is not recent.
func (s *Store) IsRecent(ctx context.Context, prefix string, now time.Time) (bool, error) {
	latest, err := s.Latest(ctx, prefix)
	if etlerrors.IsType(err, etlerrors.ErrorTypeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return InSameWeek(latest.LastModified, now), nil
}

// InSameWeek reports whether t falls in the Monday to Sunday week containing
// now, comparing calendar dates in now's location.
func InSameWeek(t, now time.Time) bool {
	start := WeekStart(now)
	end := start.AddDate(0, 0, 7)
	local := t.In(now.Location())
	return !local.Before(start) && local.Before(end)
}

// WeekStart returns Monday 00:00 of the week containing now, in now's location.
func WeekStart(now time.Time) time.Time {
	offset := (int(now.Weekday()) + 6) % 7
	y, m, d := now.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, now.Location())
}
