package reddit

import (
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
)

// PostFields is the schema of the raw posts dataset.
var PostFields = []columnar.Field{
	{Name: "post_id", Type: columnar.ColumnTypeString},
	{Name: "title", Type: columnar.ColumnTypeString},
	{Name: "author", Type: columnar.ColumnTypeString},
	{Name: "subreddit", Type: columnar.ColumnTypeString},
	{Name: "score", Type: columnar.ColumnTypeInt},
	{Name: "upvote_ratio", Type: columnar.ColumnTypeFloat},
	{Name: "num_comments", Type: columnar.ColumnTypeInt},
	{Name: "permalink", Type: columnar.ColumnTypeString},
	{Name: "created_utc", Type: columnar.ColumnTypeFloat},
	{Name: "url", Type: columnar.ColumnTypeString},
	{Name: "selftext", Type: columnar.ColumnTypeString},
	{Name: "subscribers", Type: columnar.ColumnTypeInt},
	{Name: "over_18", Type: columnar.ColumnTypeBool},
	{Name: "link_flair_richtext", Type: columnar.ColumnTypeString},
	{Name: "subreddit_name_prefixed", Type: columnar.ColumnTypeString},
	{Name: "name", Type: columnar.ColumnTypeString},
	{Name: "subreddit_type", Type: columnar.ColumnTypeString},
	{Name: "ups", Type: columnar.ColumnTypeInt},
	{Name: "author_premium", Type: columnar.ColumnTypeBool},
}

// CommentFields is the schema of the raw comments dataset.
var CommentFields = []columnar.Field{
	{Name: "comment_id", Type: columnar.ColumnTypeString},
	{Name: "post_id", Type: columnar.ColumnTypeString},
	{Name: "body", Type: columnar.ColumnTypeString},
	{Name: "author", Type: columnar.ColumnTypeString},
	{Name: "score", Type: columnar.ColumnTypeInt},
	{Name: "permalink", Type: columnar.ColumnTypeString},
	{Name: "created_utc", Type: columnar.ColumnTypeFloat},
}

// PostsToDataset builds one row per post.
func PostsToDataset(posts []Post) (*columnar.Dataset, error) {
	b := columnar.NewBuilder(PostFields...)
	for _, p := range posts {
		if err := b.Append(
			p.PostID, p.Title, p.Author, p.Subreddit, p.Score, p.UpvoteRatio,
			p.NumComments, p.Permalink, p.CreatedUTC, p.URL, p.Selftext,
			p.Subscribers, p.Over18, p.LinkFlairRichtext, p.SubredditNamePrefixed,
			p.Name, p.SubredditType, p.Ups, p.AuthorPremium,
		); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// CommentsToDataset builds one row per comment.
func CommentsToDataset(comments []Comment) (*columnar.Dataset, error) {
	b := columnar.NewBuilder(CommentFields...)
	for _, c := range comments {
		if err := b.Append(
			c.CommentID, c.PostID, c.Body, c.Author, c.Score, c.Permalink, c.CreatedUTC,
		); err != nil {
			return nil, err
		}
	}
	return b.Build()
}
