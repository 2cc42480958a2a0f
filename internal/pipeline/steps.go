package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/config"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/formats"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/logger"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/objectstore"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/observability"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/reddit"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/warehouse"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/wrangle"
)

// Step names, in execution order.
const (
	StepExtract   = "extract"
	StepTransform = "transform"
	StepLoad      = "load"
)

// AllSteps is the fixed DAG.
var AllSteps = []string{StepExtract, StepTransform, StepLoad}

// RedditSource fetches posts and comments.
type RedditSource interface {
	FetchPosts(ctx context.Context, q reddit.QueryFilter) ([]reddit.Post, error)
	FetchAllComments(ctx context.Context, postIDs []string) ([]reddit.Comment, error)
}

// Deps are the collaborators of the steps. Reddit is only used by extract
// and OpenWarehouse only by load, so either may be nil for other steps.
type Deps struct {
	Config        *config.Config
	Store         *objectstore.Store
	Reddit        RedditSource
	OpenWarehouse func(ctx context.Context) (warehouse.Loader, error)
	Registry      *wrangle.Registry
	Metrics       *observability.PipelineMetrics
	Logger        *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Steps runs the individual pipeline steps against one set of Deps.
type Steps struct {
	deps Deps
}

// NewSteps fills defaults in deps.
func NewSteps(deps Deps) *Steps {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Registry == nil {
		deps.Registry = wrangle.NewRegistry()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewPipelineMetrics(deps.Config.Metrics.Job)
	}
	return &Steps{deps: deps}
}

// Run executes one named step.
func (s *Steps) Run(ctx context.Context, step string) error {
	switch step {
	case StepExtract:
		return s.Extract(ctx)
	case StepTransform:
		return s.Transform(ctx)
	case StepLoad:
		return s.Load(ctx)
	}
	return etlerrors.Newf(etlerrors.ErrorTypeValidation, "unknown step %q", step)
}

func (s *Steps) log(ctx context.Context, step string) *zap.Logger {
	return logger.FromContext(logger.WithStep(ctx, step), s.deps.Logger)
}

func (s *Steps) fileFormat() (formats.Format, error) {
	return formats.ParseFormat(s.deps.Config.FileFormat)
}

// Extract fetches the configured top posts and all their comments and
// writes the raw posts and comments artifacts. An empty post listing ends
// the step without writing anything.
func (s *Steps) Extract(ctx context.Context) error {
	log := s.log(ctx, StepExtract)
	cfg := s.deps.Config
	if s.deps.Reddit == nil {
		return etlerrors.New(etlerrors.ErrorTypeConfig, "extract step has no Reddit client")
	}
	format, err := s.fileFormat()
	if err != nil {
		return err
	}

	filter := reddit.QueryFilter{
		Subreddit:  cfg.RedditSearch.Subreddit,
		Limit:      cfg.RedditSearch.Limit,
		TimeFilter: reddit.TimeWindow(cfg.RedditSearch.TimeFilter),
	}
	log.Info("extracting data from Reddit", zap.String("subreddit", filter.Subreddit))

	posts, err := s.deps.Reddit.FetchPosts(ctx, filter)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		log.Info("no posts in this interval, nothing to save")
		return nil
	}

	now := s.deps.Now()
	postsDS, err := reddit.PostsToDataset(posts)
	if err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to build posts dataset")
	}
	postsKey := objectstore.ArtifactKey(cfg.FolderBucket.PostFolder, objectstore.AbbrevPosts, now, format)
	if err := s.deps.Store.Write(ctx, postsDS, postsKey); err != nil {
		return err
	}
	s.deps.Metrics.RecordRows(StepExtract, "posts", postsDS.NumRows())

	comments, err := s.deps.Reddit.FetchAllComments(ctx, reddit.PostIDs(posts))
	if err != nil {
		return err
	}
	if len(comments) == 0 {
		log.Info("posts have no comments, nothing more to save", zap.Int("posts", len(posts)))
		return nil
	}
	commentsDS, err := reddit.CommentsToDataset(comments)
	if err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to build comments dataset")
	}
	commentsKey := objectstore.ArtifactKey(cfg.FolderBucket.CommentFolder, objectstore.AbbrevComments, now, format)
	if err := s.deps.Store.Write(ctx, commentsDS, commentsKey); err != nil {
		return err
	}
	s.deps.Metrics.RecordRows(StepExtract, "comments", commentsDS.NumRows())

	log.Info("extract finished", zap.Int("posts", len(posts)), zap.Int("comments", len(comments)))
	return nil
}

// Transform reads this week's raw artifacts, applies the configured plans
// and writes the transformed artifacts.
func (s *Steps) Transform(ctx context.Context) error {
	log := s.log(ctx, StepTransform)
	cfg := s.deps.Config
	format, err := s.fileFormat()
	if err != nil {
		return err
	}

	// Compile both plans before touching storage so a bad plan fails fast.
	postsPlan, err := wrangle.Compile(cfg.PostsParams, s.deps.Registry)
	if err != nil {
		return err
	}
	commentsPlan, err := wrangle.Compile(cfg.CommentsParams, s.deps.Registry)
	if err != nil {
		return err
	}

	postsPrefix := objectstore.ArtifactPrefix(cfg.FolderBucket.PostFolder, objectstore.AbbrevPosts)
	commentsPrefix := objectstore.ArtifactPrefix(cfg.FolderBucket.CommentFolder, objectstore.AbbrevComments)
	if err := s.waitFresh(ctx, log, postsPrefix, commentsPrefix); err != nil {
		return err
	}

	posts, err := s.readLatest(ctx, postsPrefix)
	if err != nil {
		return err
	}
	comments, err := s.readLatest(ctx, commentsPrefix)
	if err != nil {
		return err
	}
	if posts.NumRows() == 0 {
		log.Info("raw posts artifact is empty, nothing to transform")
		return nil
	}

	if err := commentsPlan.Run(comments, log.With(zap.String("dataset", "comments"))); err != nil {
		return err
	}
	if err := postsPlan.Run(posts, log.With(zap.String("dataset", "posts"))); err != nil {
		return err
	}

	now := s.deps.Now()
	commentsKey := objectstore.ArtifactKey(cfg.FolderBucket.TransformedComments, objectstore.AbbrevTransformedComments, now, format)
	if err := s.deps.Store.Write(ctx, comments, commentsKey); err != nil {
		return err
	}
	postsKey := objectstore.ArtifactKey(cfg.FolderBucket.TransformedPosts, objectstore.AbbrevTransformedPosts, now, format)
	if err := s.deps.Store.Write(ctx, posts, postsKey); err != nil {
		return err
	}
	s.deps.Metrics.RecordRows(StepTransform, "posts", posts.NumRows())
	s.deps.Metrics.RecordRows(StepTransform, "comments", comments.NumRows())

	log.Info("transform finished", zap.Int("posts", posts.NumRows()), zap.Int("comments", comments.NumRows()))
	return nil
}

// Load reads this week's transformed artifacts, builds the fact table and
// appends all three tables to the warehouse.
func (s *Steps) Load(ctx context.Context) error {
	log := s.log(ctx, StepLoad)
	cfg := s.deps.Config
	if s.deps.OpenWarehouse == nil {
		return etlerrors.New(etlerrors.ErrorTypeConfig, "load step has no warehouse")
	}

	postsPrefix := objectstore.ArtifactPrefix(cfg.FolderBucket.TransformedPosts, objectstore.AbbrevTransformedPosts)
	commentsPrefix := objectstore.ArtifactPrefix(cfg.FolderBucket.TransformedComments, objectstore.AbbrevTransformedComments)
	if err := s.waitFresh(ctx, log, postsPrefix, commentsPrefix); err != nil {
		return err
	}

	posts, err := s.readLatest(ctx, postsPrefix)
	if err != nil {
		return err
	}
	if posts.NumRows() == 0 {
		log.Info("no transformed posts to load this time")
		return nil
	}
	comments, err := s.readLatest(ctx, commentsPrefix)
	if err != nil {
		return err
	}

	tables, err := warehouse.BuildTables(posts, comments, cfg.LoadParams)
	if err != nil {
		return err
	}

	loader, err := s.deps.OpenWarehouse(ctx)
	if err != nil {
		return err
	}
	loadErr := warehouse.LoadTables(ctx, loader, tables, cfg.Tables)
	closeErr := loader.Close()
	if loadErr != nil {
		if closeErr != nil {
			log.Warn("failed to close warehouse after load failure", zap.Error(closeErr))
		}
		return loadErr
	}
	if closeErr != nil {
		return closeErr
	}

	s.deps.Metrics.RecordRows(StepLoad, cfg.Tables.Posts, tables.Posts.NumRows())
	s.deps.Metrics.RecordRows(StepLoad, cfg.Tables.Comments, tables.Comments.NumRows())
	s.deps.Metrics.RecordRows(StepLoad, cfg.Tables.Fact, tables.Fact.NumRows())
	log.Info("load finished",
		zap.Int("posts", tables.Posts.NumRows()),
		zap.Int("comments", tables.Comments.NumRows()),
		zap.Int("fact", tables.Fact.NumRows()))
	return nil
}

func (s *Steps) readLatest(ctx context.Context, prefix string) (*columnar.Dataset, error) {
	key, err := s.deps.Store.ResolveLatest(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return s.deps.Store.Read(ctx, key)
}
