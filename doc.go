// Package redditetl is a weekly batch pipeline that moves the top posts of a
// subreddit, and every comment under them, from the Reddit API into a SQL
// warehouse.
//
// # Architecture
//
// A run is three steps executed in order. Steps never share memory; each one
// reads its input from the object store and writes its output back.
//
// 1. Extract: fetch the configured top posts of the current interval and
// their full comment trees, then write post_folder/pst_<date> and
// comment_folder/cmt_<date>.
//
// 2. Transform: wait for this week's raw artifacts, apply the cleaning plan
// of each dataset and write transformed_posts/trasf_pst_<date> and
// transformed_comments/trasf_cmt_<date>.
//
// 3. Load: wait for this week's transformed artifacts, join comments to
// posts on the merge key and append posts, comments and the fact table to
// the warehouse.
//
// # Key Packages
//
//	pkg/reddit        - OAuth2 Reddit client: top posts, comment trees
//	pkg/columnar      - In-memory typed datasets and the inner join
//	pkg/formats       - CSV, gzip CSV and Parquet codecs
//	pkg/objectstore   - S3, GCS and in-memory buckets, artifact keys, freshness
//	pkg/wrangle       - Declarative cleaning plans
//	pkg/warehouse     - Fact table construction and SQL/BigQuery loaders
//	pkg/trigger       - Kafka run requests
//	pkg/observability - Prometheus metrics and OpenTelemetry spans
//	internal/pipeline - Steps, orchestrator and scheduler
//
// # Running
//
//	redditetl extract --config config/config.yaml
//	redditetl run                # all three steps, one process each
//	redditetl run --in-process
//	redditetl schedule           # on orchestrator.schedule
//	redditetl trigger publish --step load
//	redditetl trigger listen
//
// A step exits 0 on success, 1 on failure and 3 when its input artifacts
// from the current week never appeared.
//
// # Configuration
//
// Configuration is a single YAML file. Credentials are referenced by
// environment variable name and ${VAR_NAME} is substituted anywhere in the
// file. A .env file in the working directory is loaded first.
package redditetl
