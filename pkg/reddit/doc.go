// Package reddit fetches top posts and their comment trees from the Reddit
// OAuth API and converts them into columnar datasets.
//
// A Client authenticates with an app's client credentials, or with a
// username/password pair when one is configured, and throttles requests to
// the configured rate:
//
//	client, err := reddit.New(ctx, cfg.Reddit, creds, logger)
//	posts, err := client.FetchPosts(ctx, reddit.QueryFilter{
//		Subreddit:  "golang",
//		Limit:      100,
//		TimeFilter: reddit.WindowWeek,
//	})
//	comments, err := client.FetchAllComments(ctx, reddit.PostIDs(posts))
package reddit
