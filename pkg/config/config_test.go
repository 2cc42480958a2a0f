package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

const sampleConfig = `
reddit:
  client_id: TEST_REDDIT_ID
  client_secret: TEST_REDDIT_SECRET
  user_agent: TEST_REDDIT_UA
reddit_search:
  subreddit: dataengineering
  limit: 50
  time_filter: week
storage:
  backend: s3
  bucket: ${TEST_BUCKET}
  region: eu-west-1
file_format: csv
params_posts_data:
  droped_columns: [name, subreddit_type]
  threshold: 0.6
  correct_data_types:
    score: int
    created_utc: [datetime, s]
  apply_func_to_df:
    - func: get_value
      column: link_flair_richtext
      new_column: flair_text
      params: {index: 0, key: t}
  remove_outliers:
    - columns: [score, num_comments]
      lower: 0.05
      upper: 0.95
params_comments_data:
  clean_string:
    - column: body
      pattern: "[^A-Za-z0-9 ]+"
      replacement: ""
params_load:
  merged_columns_pst: [post_id, title]
warehouse:
  driver: redshift
  dsn: TEST_REDSHIFT_DSN
orchestrator:
  retry_delay: 2m
  freshness:
    attempts: 4
    interval: 30s
`

func TestParse(t *testing.T) {
	t.Setenv("TEST_BUCKET", "reddit-raw")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "reddit-raw", cfg.Storage.Bucket)
	assert.Equal(t, "dataengineering", cfg.RedditSearch.Subreddit)
	assert.Equal(t, TypeSpec{Kind: "datetime", Unit: "s"}, cfg.PostsParams.CorrectDataTypes["created_utc"])
	assert.Equal(t, TypeSpec{Kind: "int"}, cfg.PostsParams.CorrectDataTypes["score"])
	require.NotNil(t, cfg.PostsParams.Threshold)
	assert.InDelta(t, 0.6, *cfg.PostsParams.Threshold, 1e-9)
	require.Len(t, cfg.PostsParams.ApplyFuncs, 1)
	assert.Equal(t, "t", cfg.PostsParams.ApplyFuncs[0].Params["key"])

	// defaults
	assert.Equal(t, "post_id", cfg.LoadParams.MergeKey)
	assert.Equal(t, "0 0 * * 0", cfg.Orchestrator.Schedule)
	assert.Equal(t, 3, cfg.Orchestrator.Retries)
	assert.Equal(t, 2*time.Minute, cfg.Orchestrator.RetryDelay)
	assert.Equal(t, 4, cfg.Orchestrator.Freshness.Attempts)
	assert.Equal(t, "post_folder", cfg.FolderBucket.PostFolder)
	assert.Equal(t, "fact", cfg.Tables.Fact)
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte("reddit_search:\n  subreddit: x\n  colour: red\n"))
	require.Error(t, err)
	assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no subreddit", func(c *Config) { c.RedditSearch.Subreddit = "" }, "reddit_search.subreddit"},
		{"bad backend", func(c *Config) { c.Storage.Backend = "ftp" }, "storage.backend"},
		{"missing bucket", func(c *Config) { c.Storage.Bucket = "" }, "storage.bucket"},
		{"bad format", func(c *Config) { c.FileFormat = "xlsx" }, "file_format"},
		{"bad driver", func(c *Config) { c.Warehouse.Driver = "oracle" }, "warehouse.driver"},
		{"bigquery needs dataset", func(c *Config) { c.Warehouse.Driver = "bigquery" }, "bigquery"},
		{"bad threshold", func(c *Config) { v := 1.5; c.PostsParams.Threshold = &v }, "threshold"},
		{"bad datetime unit", func(c *Config) {
			c.PostsParams.CorrectDataTypes = map[string]TypeSpec{"created_utc": {Kind: "datetime", Unit: "d"}}
		}, "datetime unit"},
		{"bad outlier band", func(c *Config) {
			c.CommentsParams.RemoveOutliers = []OutlierParams{{Columns: []string{"score"}, Lower: 0.9, Upper: 0.1}}
		}, "remove_outliers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				RedditSearch: SearchConfig{Subreddit: "golang"},
				Storage:      StorageConfig{Bucket: "b"},
				Warehouse:    WarehouseConfig{Driver: "sqlite", DSN: "SQLITE_DSN"},
			}
			cfg.ApplyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeConfig))
		})
	}
}

func TestRedditCredentials(t *testing.T) {
	cfg := &Config{Reddit: RedditConfig{
		ClientID: "TEST_RC_ID", ClientSecret: "TEST_RC_SECRET", UserAgent: "TEST_RC_UA",
		Username: "TEST_RC_USER", Password: "TEST_RC_PASS",
	}}

	t.Setenv("TEST_RC_ID", "id")
	t.Setenv("TEST_RC_SECRET", "secret")
	t.Setenv("TEST_RC_UA", "redditetl/1.0")
	t.Setenv("TEST_RC_USER", "bot")

	_, err := cfg.RedditCredentials()
	require.Error(t, err, "username without password")
	assert.Contains(t, err.Error(), "username/reddit.password")

	t.Setenv("TEST_RC_PASS", "hunter2")
	creds, err := cfg.RedditCredentials()
	require.NoError(t, err)
	assert.Equal(t, "id", creds.ClientID)
	assert.Equal(t, "hunter2", creds.Password)
}

func TestWarehouseDSN(t *testing.T) {
	cfg := &Config{Warehouse: WarehouseConfig{DSN: "TEST_WH_DSN"}}
	_, err := cfg.WarehouseDSN()
	assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeConfig))

	t.Setenv("TEST_WH_DSN", "file::memory:")
	dsn, err := cfg.WarehouseDSN()
	require.NoError(t, err)
	assert.Equal(t, "file::memory:", dsn)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeConfig))
}

func TestLoadFile(t *testing.T) {
	t.Setenv("TEST_BUCKET", "from-file")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Storage.Bucket)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_SUB_A", "alpha")
	assert.Equal(t, "x alpha y  z", substituteEnvVars("x ${TEST_SUB_A} y ${TEST_SUB_UNSET} z"))
	assert.Equal(t, "open ${", substituteEnvVars("open ${"))
}

func TestLoadShippedConfig(t *testing.T) {
	t.Setenv("REDDITETL_BUCKET", "reddit-raw")

	cfg, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "reddit-raw", cfg.Storage.Bucket)
	assert.Equal(t, "0 0 * * 0", cfg.Orchestrator.Schedule)
	assert.Equal(t, "reddit.fact_table", cfg.Tables.Fact)
	assert.Equal(t, TypeSpec{Kind: "datetime", Unit: "s"}, cfg.PostsParams.CorrectDataTypes["created_utc"])
}
