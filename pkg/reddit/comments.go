package reddit

import (
	"context"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// maxMoreChildren is the id limit of one morechildren call.
const maxMoreChildren = 100

// FetchComments returns every comment of one post in breadth-first order.
// Collapsed "load more" and "continue this thread" placeholders are
// expanded until the tree is complete.
func (c *Client) FetchComments(ctx context.Context, postID string) ([]Comment, error) {
	roots, err := c.fetchThread(ctx, "/comments/"+url.PathEscape(postID))
	if err != nil {
		return nil, err
	}

	var (
		comments []Comment
		queue    = roots
		seen     = make(map[string]bool)
		expanded = make(map[string]bool)
	)
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]

		switch t.Kind {
		case kindComment:
			var cd commentData
			if err := json.Unmarshal(t.Data, &cd); err != nil {
				return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to decode comment")
			}
			if seen[cd.ID] {
				continue
			}
			seen[cd.ID] = true
			comments = append(comments, cd.toComment(postID))

			replies, err := cd.replies()
			if err != nil {
				return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to decode comment replies")
			}
			queue = append(queue, replies...)

		case kindMore:
			var md moreData
			if err := json.Unmarshal(t.Data, &md); err != nil {
				return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to decode more placeholder")
			}
			if expanded[md.Name] {
				continue
			}
			expanded[md.Name] = true

			more, err := c.expandMore(ctx, postID, &md)
			if err != nil {
				return nil, err
			}
			queue = append(queue, more...)
		}
	}

	c.logger.Debug("fetched comments", zap.String("post_id", postID), zap.Int("comments", len(comments)))
	return comments, nil
}

// FetchAllComments fetches the comments of each post in turn and flattens
// them. A post whose fetch fails is skipped with a warning, except that
// authentication failures and cancellation abort the whole batch.
func (c *Client) FetchAllComments(ctx context.Context, postIDs []string) ([]Comment, error) {
	var (
		all     []Comment
		skipped int
	)
	for _, id := range postIDs {
		comments, err := c.FetchComments(ctx, id)
		if err != nil {
			if etlerrors.IsType(err, etlerrors.ErrorTypeAuthentication) || ctx.Err() != nil {
				return nil, err
			}
			skipped++
			c.logger.Warn("skipping post after comment fetch failure",
				zap.String("post_id", id),
				zap.Error(err))
			continue
		}
		all = append(all, comments...)
	}

	c.logger.Info("fetched comments",
		zap.Int("posts", len(postIDs)),
		zap.Int("skipped_posts", skipped),
		zap.Int("comments", len(all)))
	return all, nil
}

// fetchThread returns the comment forest of a post or sub-thread page.
func (c *Client) fetchThread(ctx context.Context, path string) ([]thing, error) {
	var pages []listing
	if err := c.get(ctx, path, url.Values{"limit": {"500"}}, &pages); err != nil {
		return nil, err
	}
	if len(pages) < 2 {
		return nil, etlerrors.Newf(etlerrors.ErrorTypeData, "%s: expected post and comment listings, got %d", path, len(pages))
	}
	return pages[1].Data.Children, nil
}

func (c *Client) expandMore(ctx context.Context, postID string, md *moreData) ([]thing, error) {
	if md.continueThread() {
		parent := strings.TrimPrefix(md.ParentID, "t1_")
		if parent == md.ParentID {
			// A top-level placeholder without children has nothing to load.
			return nil, nil
		}
		roots, err := c.fetchThread(ctx, "/comments/"+url.PathEscape(postID)+"/_/"+url.PathEscape(parent))
		if err != nil {
			return nil, err
		}
		// The sub-thread page repeats the parent; only its replies are new.
		for _, t := range roots {
			if t.Kind != kindComment {
				continue
			}
			var cd commentData
			if err := json.Unmarshal(t.Data, &cd); err != nil {
				return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to decode comment")
			}
			if cd.ID == parent {
				replies, err := cd.replies()
				if err != nil {
					return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to decode comment replies")
				}
				return replies, nil
			}
		}
		return roots, nil
	}

	var out []thing
	for start := 0; start < len(md.Children); start += maxMoreChildren {
		end := start + maxMoreChildren
		if end > len(md.Children) {
			end = len(md.Children)
		}
		query := url.Values{
			"api_type": {"json"},
			"link_id":  {"t3_" + postID},
			"children": {strings.Join(md.Children[start:end], ",")},
		}
		var resp moreChildrenResponse
		if err := c.get(ctx, "/api/morechildren", query, &resp); err != nil {
			return nil, err
		}
		if len(resp.JSON.Errors) > 0 {
			return nil, etlerrors.Newf(etlerrors.ErrorTypeData, "morechildren for post %s failed: %v", postID, resp.JSON.Errors)
		}
		out = append(out, resp.JSON.Data.Things...)
	}
	return out, nil
}
