package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/config"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/logger"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/objectstore"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/observability"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/reddit"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/warehouse"
)

const testConfig = `
reddit_search:
  subreddit: golang
  limit: 10
storage:
  backend: memory
file_format: csv
params_posts_data:
  droped_columns: []
params_comments_data:
  droped_columns: []
params_load:
  droped_columns_cmt: []
  droped_columns_pst: []
  merge_key: post_id
warehouse:
  driver: sqlite
  dsn: REDDITETL_TEST_DSN
orchestrator:
  freshness:
    attempts: 1
`

type fakeReddit struct {
	posts    []reddit.Post
	comments []reddit.Comment
}

func (f *fakeReddit) FetchPosts(context.Context, reddit.QueryFilter) ([]reddit.Post, error) {
	return f.posts, nil
}

func (f *fakeReddit) FetchAllComments(_ context.Context, ids []string) ([]reddit.Comment, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []reddit.Comment
	for _, c := range f.comments {
		if want[c.PostID] {
			out = append(out, c)
		}
	}
	return out, nil
}

type recordingLoader struct {
	mu     sync.Mutex
	tables map[string]*columnar.Dataset
	order  []string
	closed bool
}

func (r *recordingLoader) Load(_ context.Context, ds *columnar.Dataset, table string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tables == nil {
		r.tables = make(map[string]*columnar.Dataset)
	}
	r.tables[table] = ds
	r.order = append(r.order, table)
	return nil
}

func (r *recordingLoader) Close() error {
	r.closed = true
	return nil
}

func author(s string) *string { return &s }

func testSteps(t *testing.T) (*Steps, *objectstore.MemoryBucket, *recordingLoader) {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)

	created := float64(time.Now().Unix())
	source := &fakeReddit{
		posts: []reddit.Post{
			{PostID: "p1", Title: "first", Author: author("alice"), Score: 10, CreatedUTC: created},
			{PostID: "p2", Title: "second", Author: author("bob"), Score: 20, CreatedUTC: created},
		},
		comments: []reddit.Comment{
			{CommentID: "c1", PostID: "p1", Body: "one", Author: author("carol"), Score: 1, CreatedUTC: created},
			{CommentID: "c2", PostID: "p1", Body: "two", Score: 2, CreatedUTC: created},
			{CommentID: "c3", PostID: "p2", Body: "three", Author: author("dave"), Score: 3, CreatedUTC: created},
		},
	}

	bucket := objectstore.NewMemoryBucket()
	loader := &recordingLoader{}
	log := zaptest.NewLogger(t)
	steps := NewSteps(Deps{
		Config: cfg,
		Store:  objectstore.NewStore(bucket, log),
		Reddit: source,
		OpenWarehouse: func(context.Context) (warehouse.Loader, error) {
			return loader, nil
		},
		Metrics: observability.NewPipelineMetrics("redditetl_test"),
		Logger:  log,
	})
	return steps, bucket, loader
}

func TestStepsEndToEnd(t *testing.T) {
	ctx := context.Background()
	steps, bucket, loader := testSteps(t)

	for _, step := range AllSteps {
		require.NoError(t, steps.Run(ctx, step), step)
	}

	objects, err := bucket.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, objects, 4, "raw and transformed artifacts for posts and comments")

	assert.Equal(t, []string{"posts", "comments", "fact"}, loader.order)
	assert.True(t, loader.closed)

	fact := loader.tables["fact"]
	require.NotNil(t, fact)
	assert.Equal(t, 3, fact.NumRows())
	ids, ok := fact.Column("post_id")
	require.True(t, ok)
	assert.Equal(t, []interface{}{"p1", "p1", "p2"}, ids.Values)

	assert.Equal(t, 2, loader.tables["posts"].NumRows())
	assert.Equal(t, 3, loader.tables["comments"].NumRows())
}

func TestExtractWithoutPostsWritesNothing(t *testing.T) {
	ctx := context.Background()
	steps, bucket, _ := testSteps(t)
	steps.deps.Reddit = &fakeReddit{}

	require.NoError(t, steps.Extract(ctx))

	objects, err := bucket.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestPostsWithoutCommentsLeaveTransformStale(t *testing.T) {
	ctx := context.Background()
	steps, bucket, _ := testSteps(t)
	steps.deps.Reddit = &fakeReddit{posts: []reddit.Post{
		{PostID: "p1", Title: "quiet", Score: 1, CreatedUTC: float64(time.Now().Unix())},
	}}

	require.NoError(t, steps.Extract(ctx))

	objects, err := bucket.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, objects, 1, "only the posts artifact is written")
	assert.Contains(t, objects[0].Key, "post_folder/pst_")

	err = steps.Transform(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStaleArtifact)
	assert.Contains(t, err.Error(), "comment_folder")
}

func TestTransformStaleInput(t *testing.T) {
	ctx := context.Background()
	steps, bucket, _ := testSteps(t)

	lastMonth := time.Now().AddDate(0, -1, 0)
	bucket.PutAt("post_folder/pst_old.csv", []byte("post_id\np1\n"), lastMonth)
	bucket.PutAt("comment_folder/cmt_old.csv", []byte("comment_id,post_id\nc1,p1\n"), lastMonth)

	err := steps.Transform(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStaleArtifact)
	assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeStale))
	assert.Equal(t, ExitStale, ExitCode(err))
}

func TestLoadWithoutArtifactsIsStale(t *testing.T) {
	steps, _, loader := testSteps(t)

	err := steps.Load(context.Background())
	assert.ErrorIs(t, err, ErrStaleArtifact)
	assert.Empty(t, loader.order, "warehouse never opened")
}

func TestUnknownStep(t *testing.T) {
	steps, _, _ := testSteps(t)

	err := steps.Run(context.Background(), "publish")
	assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeValidation))
}

func TestOrchestratorRunsStepsInOrder(t *testing.T) {
	var ran []string
	var runIDs []string
	orch := NewOrchestrator(Options{
		Runner: FuncRunner(func(ctx context.Context, step string) error {
			ran = append(ran, step)
			runIDs = append(runIDs, logger.RunID(ctx))
			return nil
		}),
		Logger: zaptest.NewLogger(t),
	})

	runID, err := orch.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AllSteps, ran)
	assert.NotEmpty(t, runID)
	assert.Equal(t, []string{runID, runID, runID}, runIDs)
}

func TestOrchestratorRetriesTransientFailure(t *testing.T) {
	metrics := observability.NewPipelineMetrics("redditetl_test")
	attempts := map[string]int{}
	orch := NewOrchestrator(Options{
		Runner: FuncRunner(func(_ context.Context, step string) error {
			attempts[step]++
			if step == StepTransform && attempts[step] < 3 {
				return etlerrors.New(etlerrors.ErrorTypeConnection, "bucket unreachable")
			}
			return nil
		}),
		Retries:    3,
		RetryDelay: time.Millisecond,
		Metrics:    metrics,
		Logger:     zaptest.NewLogger(t),
	})

	_, err := orch.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{StepExtract: 1, StepTransform: 3, StepLoad: 1}, attempts)
}

func TestOrchestratorStopsAfterExhaustedRetries(t *testing.T) {
	var ran []string
	calls := 0
	orch := NewOrchestrator(Options{
		Runner: FuncRunner(func(_ context.Context, step string) error {
			ran = append(ran, step)
			if step == StepExtract {
				calls++
				return etlerrors.New(etlerrors.ErrorTypeRateLimit, "too many requests")
			}
			return nil
		}),
		Retries:    2,
		RetryDelay: time.Millisecond,
		Logger:     zaptest.NewLogger(t),
	})

	_, err := orch.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, calls, "one attempt plus two retries")
	assert.NotContains(t, ran, StepTransform, "downstream steps never start")
	assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeRateLimit))
	assert.Equal(t, ExitError, ExitCode(err))
}

func TestOrchestratorDoesNotRetryAuthErrors(t *testing.T) {
	var calls int32
	orch := NewOrchestrator(Options{
		Runner: FuncRunner(func(context.Context, string) error {
			atomic.AddInt32(&calls, 1)
			return etlerrors.New(etlerrors.ErrorTypeAuthentication, "invalid_grant")
		}),
		Retries:    5,
		RetryDelay: time.Millisecond,
		Logger:     zaptest.NewLogger(t),
	})

	_, err := orch.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOrchestratorStaleExitCode(t *testing.T) {
	orch := NewOrchestrator(Options{
		Runner: FuncRunner(func(_ context.Context, step string) error {
			if step == StepLoad {
				return etlerrors.Wrapf(ErrStaleArtifact, etlerrors.ErrorTypeStale, "stale")
			}
			return nil
		}),
		Logger: zaptest.NewLogger(t),
	})

	_, err := orch.RunOnce(context.Background())
	assert.Equal(t, ExitStale, ExitCode(err))
}

func TestOrchestratorEndToEndMetrics(t *testing.T) {
	steps, _, loader := testSteps(t)
	metrics := steps.deps.Metrics
	orch := NewOrchestrator(Options{
		Runner:  FuncRunner(steps.Run),
		Metrics: metrics,
		Logger:  zaptest.NewLogger(t),
	})

	_, err := orch.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, loader.tables["fact"].NumRows())

	count, err := testutil.GatherAndCount(metrics.Registry(), "redditetl_pipeline_step_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitError, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitStale, ExitCode(etlerrors.Wrap(ErrStaleArtifact, etlerrors.ErrorTypeStale, "late")))
	assert.Equal(t, ExitConfig, ExitCode(etlerrors.New(etlerrors.ErrorTypeConfig, "bad")))
	assert.Equal(t, ExitAuth, ExitCode(fmt.Errorf("run: %w", etlerrors.New(etlerrors.ErrorTypeAuthentication, "invalid_grant"))))
	assert.Equal(t, ExitValidation, ExitCode(etlerrors.New(etlerrors.ErrorTypeValidation, "bad step")))
	assert.Equal(t, ExitError, ExitCode(etlerrors.New(etlerrors.ErrorTypeData, "bad row")))
}

func TestNextRun(t *testing.T) {
	wednesday := time.Date(2024, 3, 13, 15, 30, 0, 0, time.UTC)

	next, err := NextRun("0 0 * * 0", wednesday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), next)

	_, err = NextRun("every sunday", wednesday)
	assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeConfig))
}

func TestScheduleRejectsInvalidSpec(t *testing.T) {
	orch := NewOrchestrator(Options{Runner: FuncRunner(func(context.Context, string) error { return nil })})

	err := orch.Schedule(context.Background(), "not a schedule")
	assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeConfig))
}

func TestScheduleRunsUntilCancelled(t *testing.T) {
	var runs int32
	orch := NewOrchestrator(Options{
		Runner: FuncRunner(func(_ context.Context, step string) error {
			if step == StepExtract {
				atomic.AddInt32(&runs, 1)
			}
			return nil
		}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- orch.Schedule(ctx, "@every 1s") }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 1 }, 5*time.Second, 50*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestOrchestratorRunSingleStep(t *testing.T) {
	var ran []string
	var runID string
	orch := NewOrchestrator(Options{
		Runner: FuncRunner(func(ctx context.Context, step string) error {
			ran = append(ran, step)
			runID = logger.RunID(ctx)
			return nil
		}),
		Logger: zaptest.NewLogger(t),
	})

	require.NoError(t, orch.Run(context.Background(), "manual-1", StepLoad))
	assert.Equal(t, []string{StepLoad}, ran)
	assert.Equal(t, "manual-1", runID)

	err := orch.Run(context.Background(), "", StepExtract, "publish")
	assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeValidation))
	assert.Equal(t, []string{StepLoad}, ran, "nothing runs when a step name is unknown")
}
