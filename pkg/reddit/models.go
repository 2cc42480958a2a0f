package reddit

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Post is one submission as stored in the raw posts artifact. Author and
// Subreddit are nil when the reference was deleted upstream.
type Post struct {
	PostID                string
	Title                 string
	Author                *string
	Subreddit             *string
	Score                 int64
	UpvoteRatio           float64
	NumComments           int64
	Permalink             string
	CreatedUTC            float64
	URL                   string
	Selftext              string
	Subscribers           int64
	Over18                bool
	LinkFlairRichtext     string
	SubredditNamePrefixed string
	Name                  string
	SubredditType         string
	Ups                   int64
	AuthorPremium         bool
}

// Comment is one comment of a post, flattened out of its tree.
type Comment struct {
	CommentID  string
	PostID     string
	Body       string
	Author     *string
	Score      int64
	Permalink  string
	CreatedUTC float64
}

// PostIDs returns the ids of posts in order.
func PostIDs(posts []Post) []string {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.PostID
	}
	return ids
}

// Wire types.

const (
	kindComment = "t1"
	kindLink    = "t3"
	kindMore    = "more"
)

type listing struct {
	Kind string      `json:"kind"`
	Data listingData `json:"data"`
}

type listingData struct {
	After    string  `json:"after"`
	Children []thing `json:"children"`
}

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type linkData struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	Title                 string          `json:"title"`
	Author                string          `json:"author"`
	Subreddit             string          `json:"subreddit"`
	SubredditNamePrefixed string          `json:"subreddit_name_prefixed"`
	SubredditType         string          `json:"subreddit_type"`
	SubredditSubscribers  int64           `json:"subreddit_subscribers"`
	Score                 int64           `json:"score"`
	Ups                   int64           `json:"ups"`
	UpvoteRatio           float64         `json:"upvote_ratio"`
	NumComments           int64           `json:"num_comments"`
	Permalink             string          `json:"permalink"`
	CreatedUTC            float64         `json:"created_utc"`
	URL                   string          `json:"url"`
	Selftext              string          `json:"selftext"`
	Over18                bool            `json:"over_18"`
	AuthorPremium         bool            `json:"author_premium"`
	LinkFlairRichtext     json.RawMessage `json:"link_flair_richtext"`
}

type commentData struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	ParentID   string          `json:"parent_id"`
	LinkID     string          `json:"link_id"`
	Body       string          `json:"body"`
	Author     string          `json:"author"`
	Score      int64           `json:"score"`
	Permalink  string          `json:"permalink"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    json.RawMessage `json:"replies"`
}

// replies returns the nested listing. The API sends "" for a leaf.
func (c *commentData) replies() ([]thing, error) {
	raw := bytes.TrimSpace(c.Replies)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil
	}
	var l listing
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, err
	}
	return l.Data.Children, nil
}

type moreData struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ParentID string   `json:"parent_id"`
	Count    int      `json:"count"`
	Children []string `json:"children"`
}

// continueThread reports whether the placeholder is a "continue this
// thread" link rather than a batch of collapsed children.
func (m *moreData) continueThread() bool {
	return len(m.Children) == 0
}

type moreChildrenResponse struct {
	JSON struct {
		Errors [][]interface{} `json:"errors"`
		Data   struct {
			Things []thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

// nullableName maps deleted or missing references to nil.
func nullableName(name string) *string {
	if name == "" || name == "[deleted]" {
		return nil
	}
	return &name
}

func flairText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "[]"
	}
	return string(raw)
}

func (l *linkData) toPost() Post {
	return Post{
		PostID:                l.ID,
		Title:                 l.Title,
		Author:                nullableName(l.Author),
		Subreddit:             nullableName(l.Subreddit),
		Score:                 l.Score,
		UpvoteRatio:           l.UpvoteRatio,
		NumComments:           l.NumComments,
		Permalink:             l.Permalink,
		CreatedUTC:            l.CreatedUTC,
		URL:                   l.URL,
		Selftext:              l.Selftext,
		Subscribers:           l.SubredditSubscribers,
		Over18:                l.Over18,
		LinkFlairRichtext:     flairText(l.LinkFlairRichtext),
		SubredditNamePrefixed: l.SubredditNamePrefixed,
		Name:                  l.Name,
		SubredditType:         l.SubredditType,
		Ups:                   l.Ups,
		AuthorPremium:         l.AuthorPremium,
	}
}

func (c *commentData) toComment(postID string) Comment {
	return Comment{
		CommentID:  c.ID,
		PostID:     postID,
		Body:       c.Body,
		Author:     nullableName(c.Author),
		Score:      c.Score,
		Permalink:  c.Permalink,
		CreatedUTC: c.CreatedUTC,
	}
}
