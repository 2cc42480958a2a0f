package reddit

import (
	"context"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// maxPageSize is the largest page the listing endpoints return.
const maxPageSize = 100

// FetchPosts pages through the top listing of q.Subreddit for q.TimeFilter
// and keeps only posts created inside the local calendar interval of that
// window. The filter is validated before any request is sent.
func (c *Client) FetchPosts(ctx context.Context, q QueryFilter) ([]Post, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	window, _ := ParseWindow(string(q.TimeFilter))
	interval, err := IntervalFor(window, c.now())
	if err != nil {
		return nil, err
	}

	c.logger.Info("fetching top posts",
		zap.String("subreddit", q.Subreddit),
		zap.String("time_filter", string(window)),
		zap.Int("limit", q.Limit),
		zap.Time("interval_start", interval.Start),
		zap.Time("interval_end", interval.End))

	var (
		posts   []Post
		after   string
		seen    int
		skipped int
	)
	path := "/r/" + url.PathEscape(q.Subreddit) + "/top"

	for {
		pageSize := maxPageSize
		if q.Limit > 0 {
			remaining := q.Limit - seen
			if remaining <= 0 {
				break
			}
			if remaining < pageSize {
				pageSize = remaining
			}
		}

		query := url.Values{
			"t":     {string(window)},
			"limit": {strconv.Itoa(pageSize)},
		}
		if after != "" {
			query.Set("after", after)
			query.Set("count", strconv.Itoa(seen))
		}

		var page listing
		if err := c.get(ctx, path, query, &page); err != nil {
			return nil, err
		}

		for _, child := range page.Data.Children {
			if child.Kind != kindLink {
				continue
			}
			seen++
			var ld linkData
			if err := json.Unmarshal(child.Data, &ld); err != nil {
				return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to decode post")
			}
			if !interval.Contains(epochTime(ld.CreatedUTC)) {
				skipped++
				continue
			}
			posts = append(posts, ld.toPost())
		}

		if page.Data.After == "" || len(page.Data.Children) == 0 {
			break
		}
		after = page.Data.After
	}

	c.logger.Info("fetched top posts",
		zap.Int("posts", len(posts)),
		zap.Int("listed", seen),
		zap.Int("outside_interval", skipped))
	return posts, nil
}
