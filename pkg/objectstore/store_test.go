package objectstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/formats"
)

func posts(t *testing.T) *columnar.Dataset {
	t.Helper()
	ds, err := columnar.New(
		columnar.MustColumn("post_id", columnar.ColumnTypeString, "p1", "p2"),
		columnar.MustColumn("score", columnar.ColumnTypeInt, 10, 20),
	)
	require.NoError(t, err)
	return ds
}

func TestArtifactKey(t *testing.T) {
	date := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "post_folder/pst_2024-03-09.csv", ArtifactKey("post_folder", AbbrevPosts, date, formats.CSV))
	assert.Equal(t, "transformed_comments/trasf_cmt_2024-03-09.parquet",
		ArtifactKey("transformed_comments", AbbrevTransformedComments, date, formats.Parquet))
	assert.Equal(t, "comment_folder/cmt_", ArtifactPrefix("comment_folder", AbbrevComments))
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBucket(), zaptest.NewLogger(t))

	for _, key := range []string{"post_folder/pst_2024-03-09.csv", "post_folder/pst_2024-03-09.parquet"} {
		require.NoError(t, store.Write(ctx, posts(t), key))
		got, err := store.Read(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []string{"post_id", "score"}, got.ColumnNames())
		assert.Equal(t, 2, got.NumRows())
	}
}

func TestWriteRejectsUnsupportedExtension(t *testing.T) {
	bucket := NewMemoryBucket()
	store := NewStore(bucket, nil)

	err := store.Write(context.Background(), posts(t), "post_folder/pst_2024-03-09.xlsx")
	require.Error(t, err)
	assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeValidation))

	objects, _ := bucket.List(context.Background(), "")
	assert.Empty(t, objects, "nothing uploaded")
}

func TestReadMissingKey(t *testing.T) {
	_, err := NewStore(NewMemoryBucket(), nil).Read(context.Background(), "post_folder/pst_2024-01-01.csv")
	assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeNotFound))
}

func TestResolveLatest(t *testing.T) {
	ctx := context.Background()
	bucket := NewMemoryBucket()
	store := NewStore(bucket, nil)

	_, err := store.ResolveLatest(ctx, "post_folder/pst_")
	assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeNotFound))

	t1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bucket.PutAt("post_folder/pst_2024-03-01.csv", []byte("x"), t1)
	bucket.PutAt("post_folder/pst_2024-03-15.csv", []byte("x"), t1.Add(48*time.Hour)) // T3, lexically largest is not newest
	bucket.PutAt("post_folder/pst_2024-03-08.csv", []byte("x"), t1.Add(72*time.Hour))
	bucket.PutAt("comment_folder/cmt_2024-03-30.csv", []byte("x"), t1.Add(240*time.Hour))

	key, err := store.ResolveLatest(ctx, "post_folder/pst_")
	require.NoError(t, err)
	assert.Equal(t, "post_folder/pst_2024-03-08.csv", key)
}

func TestResolveLatestTieBreak(t *testing.T) {
	bucket := NewMemoryBucket()
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bucket.PutAt("p/pst_a.csv", nil, ts)
	bucket.PutAt("p/pst_b.csv", nil, ts)

	key, err := NewStore(bucket, nil).ResolveLatest(context.Background(), "p/pst_")
	require.NoError(t, err)
	assert.Equal(t, "p/pst_b.csv", key)
}

func TestIsRecent(t *testing.T) {
	ctx := context.Background()
	// Wednesday 2024-03-13
	now := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		modified time.Time
		want     bool
	}{
		{"monday start", time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), true},
		{"sunday end", time.Date(2024, 3, 17, 23, 59, 59, 0, time.UTC), true},
		{"previous sunday", time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC), false},
		{"next monday", time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket := NewMemoryBucket()
			bucket.PutAt("post_folder/pst_x.csv", nil, tt.modified)
			got, err := NewStore(bucket, nil).IsRecent(ctx, "post_folder/pst_", now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	recent, err := NewStore(NewMemoryBucket(), nil).IsRecent(ctx, "post_folder/pst_", now)
	require.NoError(t, err)
	assert.False(t, recent)
}

func TestWeekStartOnSunday(t *testing.T) {
	sunday := time.Date(2024, 3, 17, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), WeekStart(sunday))
}
