// Package config loads the single YAML document that drives every pipeline
// step.
//
// The document is read once at process start, ${VAR_NAME} references are
// substituted from the environment, defaults are applied and the result is
// validated before any network call is made. Credentials are never written in
// the file itself: the reddit, storage and warehouse sections name the
// environment variables that hold them.
//
//	reddit:
//	  client_id: REDDIT_CLIENT_ID
//	  client_secret: REDDIT_CLIENT_SECRET
//	  user_agent: REDDIT_USER_AGENT
//	reddit_search:
//	  subreddit: golang
//	  limit: 100
//	  time_filter: week
//	storage:
//	  backend: s3
//	  bucket: ${RAW_BUCKET}
//	warehouse:
//	  driver: redshift
//	  dsn: REDSHIFT_DSN
//
// Sections:
//   - reddit, reddit_search: API credentials and the query filter
//   - storage, folder_bucket, file_format: object store backend and key prefixes
//   - params_posts_data, params_comments_data: transform plans
//   - params_load, warehouse, warehouse_tables: load step
//   - orchestrator: schedule, retry budget and freshness gate
//   - logging, metrics, tracing, trigger: ambient services
package config
