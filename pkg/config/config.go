package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/logger"
)

// Config is the whole pipeline configuration.
type Config struct {
	Reddit         RedditConfig       `yaml:"reddit"`
	RedditSearch   SearchConfig       `yaml:"reddit_search"`
	Storage        StorageConfig      `yaml:"storage"`
	FolderBucket   FolderConfig       `yaml:"folder_bucket"`
	FileFormat     string             `yaml:"file_format"`
	PostsParams    TransformParams    `yaml:"params_posts_data"`
	CommentsParams TransformParams    `yaml:"params_comments_data"`
	LoadParams     LoadParams         `yaml:"params_load"`
	Warehouse      WarehouseConfig    `yaml:"warehouse"`
	Tables         TablesConfig       `yaml:"warehouse_tables"`
	Orchestrator   OrchestratorConfig `yaml:"orchestrator"`
	Logging        logger.Config      `yaml:"logging"`
	Metrics        MetricsConfig      `yaml:"metrics"`
	Tracing        TracingConfig      `yaml:"tracing"`
	Trigger        TriggerConfig      `yaml:"trigger"`
}

// RedditConfig holds the names of the environment variables carrying the API
// credentials, plus endpoint overrides.
type RedditConfig struct {
	ClientID          string        `yaml:"client_id"`
	ClientSecret      string        `yaml:"client_secret"`
	UserAgent         string        `yaml:"user_agent"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	BaseURL           string        `yaml:"base_url"`
	TokenURL          string        `yaml:"token_url"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
}

// RedditCredentials are the resolved credential values.
type RedditCredentials struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	Username     string
	Password     string
}

// SearchConfig is the query filter for the extract step.
type SearchConfig struct {
	Subreddit  string `yaml:"subreddit"`
	Limit      int    `yaml:"limit"`
	TimeFilter string `yaml:"time_filter"`
}

// StorageConfig selects and configures the object store backend.
type StorageConfig struct {
	Backend         string `yaml:"backend"` // s3, gcs or memory
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	AccessKey       string `yaml:"access_key"` // env var name
	SecretKey       string `yaml:"secret_key"` // env var name
	CredentialsFile string `yaml:"credentials_file"`
}

// FolderConfig holds the key prefixes of the raw and transformed zones.
type FolderConfig struct {
	PostFolder          string `yaml:"post_folder"`
	CommentFolder       string `yaml:"comment_folder"`
	TransformedPosts    string `yaml:"transformed_posts"`
	TransformedComments string `yaml:"transformed_comments"`
}

// TransformParams is the transform plan for one dataset.
type TransformParams struct {
	DropColumns      []string            `yaml:"droped_columns"`
	CorrectDataTypes map[string]TypeSpec `yaml:"correct_data_types"`
	CleanString      []CleanStringParams `yaml:"clean_string"`
	RemoveDuplicates *bool               `yaml:"remove_duplicates"`
	Threshold        *float64            `yaml:"threshold"`
	ApplyFuncs       []ApplyFuncParams   `yaml:"apply_func_to_df"`
	RenameColumns    map[string]string   `yaml:"rename_columns"`
	RemoveOutliers   []OutlierParams     `yaml:"remove_outliers"`
	SplitColumns     []SplitParams       `yaml:"split_column"`
	FillNulls        []FillParams        `yaml:"fill_nulls"`
	// DatetimeComponents expands each listed timestamp column into
	// year, month, day, hour, minute and second columns.
	DatetimeComponents []string `yaml:"datetime_components"`
}

// CleanStringParams is one regex replacement on a string column.
type CleanStringParams struct {
	Column      string `yaml:"column"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// ApplyFuncParams derives NewColumn from Column with a registered function.
type ApplyFuncParams struct {
	Func      string                 `yaml:"func"`
	Column    string                 `yaml:"column"`
	NewColumn string                 `yaml:"new_column"`
	Params    map[string]interface{} `yaml:"params"`
}

// OutlierParams keeps rows inside the [Lower, Upper] quantile band of each column.
type OutlierParams struct {
	Columns []string `yaml:"columns"`
	Lower   float64  `yaml:"lower"`
	Upper   float64  `yaml:"upper"`
}

// SplitParams extracts part Index of Column split on Separator into NewColumn.
type SplitParams struct {
	Column    string `yaml:"column"`
	NewColumn string `yaml:"new_column"`
	Separator string `yaml:"separator"`
	Index     int    `yaml:"index"`
}

// FillParams replaces nulls in Column with Value.
type FillParams struct {
	Column string      `yaml:"column"`
	Value  interface{} `yaml:"value"`
}

// LoadParams shapes the three warehouse tables.
type LoadParams struct {
	DropColumnsCmt   []string `yaml:"droped_columns_cmt"`
	DropColumnsPst   []string `yaml:"droped_columns_pst"`
	MergedColumnsCmt []string `yaml:"merged_columns_cmt"`
	MergedColumnsPst []string `yaml:"merged_columns_pst"`
	MergeKey         string   `yaml:"merge_key"`
}

// WarehouseConfig selects the warehouse driver.
type WarehouseConfig struct {
	Driver          string `yaml:"driver"` // redshift, postgres, mysql, snowflake, sqlite or bigquery
	DSN             string `yaml:"dsn"`    // env var name holding the DSN
	ProjectID       string `yaml:"project_id"`
	Dataset         string `yaml:"dataset"`
	CredentialsFile string `yaml:"credentials_file"`
	BatchSize       int    `yaml:"batch_size"`
}

// TablesConfig names the destination tables.
type TablesConfig struct {
	Posts    string `yaml:"posts"`
	Comments string `yaml:"comments"`
	Fact     string `yaml:"fact"`
}

// OrchestratorConfig holds the schedule and retry budget.
type OrchestratorConfig struct {
	Schedule   string          `yaml:"schedule"`
	Retries    int             `yaml:"retries"`
	RetryDelay time.Duration   `yaml:"retry_delay"`
	Freshness  FreshnessConfig `yaml:"freshness"`
}

// FreshnessConfig bounds how long a step waits for this week's input.
type FreshnessConfig struct {
	Attempts int           `yaml:"attempts"`
	Interval time.Duration `yaml:"interval"`
}

// MetricsConfig configures the Pushgateway. Empty URL disables pushing.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// TracingConfig toggles the stdout span exporter.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// TriggerConfig configures the Kafka run trigger.
type TriggerConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Group   string   `yaml:"group"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Reddit.BaseURL == "" {
		c.Reddit.BaseURL = "https://oauth.reddit.com"
	}
	if c.Reddit.TokenURL == "" {
		c.Reddit.TokenURL = "https://www.reddit.com/api/v1/access_token"
	}
	if c.Reddit.RequestsPerMinute == 0 {
		c.Reddit.RequestsPerMinute = 60
	}
	if c.Reddit.Timeout == 0 {
		c.Reddit.Timeout = 30 * time.Second
	}
	if c.RedditSearch.TimeFilter == "" {
		c.RedditSearch.TimeFilter = "week"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "s3"
	}
	if c.FileFormat == "" {
		c.FileFormat = "csv"
	}
	if c.FolderBucket.PostFolder == "" {
		c.FolderBucket.PostFolder = "post_folder"
	}
	if c.FolderBucket.CommentFolder == "" {
		c.FolderBucket.CommentFolder = "comment_folder"
	}
	if c.FolderBucket.TransformedPosts == "" {
		c.FolderBucket.TransformedPosts = "transformed_posts"
	}
	if c.FolderBucket.TransformedComments == "" {
		c.FolderBucket.TransformedComments = "transformed_comments"
	}
	if c.LoadParams.MergeKey == "" {
		c.LoadParams.MergeKey = "post_id"
	}
	if c.Warehouse.BatchSize == 0 {
		c.Warehouse.BatchSize = 500
	}
	if c.Tables.Posts == "" {
		c.Tables.Posts = "posts"
	}
	if c.Tables.Comments == "" {
		c.Tables.Comments = "comments"
	}
	if c.Tables.Fact == "" {
		c.Tables.Fact = "fact"
	}
	if c.Orchestrator.Schedule == "" {
		c.Orchestrator.Schedule = "0 0 * * 0"
	}
	if c.Orchestrator.Retries == 0 {
		c.Orchestrator.Retries = 3
	}
	if c.Orchestrator.RetryDelay == 0 {
		c.Orchestrator.RetryDelay = 5 * time.Minute
	}
	if c.Orchestrator.Freshness.Attempts == 0 {
		c.Orchestrator.Freshness.Attempts = 1
	}
	if c.Orchestrator.Freshness.Interval == 0 {
		c.Orchestrator.Freshness.Interval = time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = "json"
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "redditetl"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "redditetl"
	}
	if c.Trigger.Topic == "" {
		c.Trigger.Topic = "redditetl-runs"
	}
	if c.Trigger.Group == "" {
		c.Trigger.Group = "redditetl"
	}
}

// Validate checks the configuration for correctness. Transform function names
// are resolved separately when the transform plans are compiled.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.RedditSearch.Subreddit == "" {
		add("reddit_search.subreddit is required")
	}
	if c.RedditSearch.Limit < 0 {
		add("reddit_search.limit cannot be negative")
	}
	if c.Reddit.RequestsPerMinute < 0 {
		add("reddit.requests_per_minute cannot be negative")
	}

	switch c.Storage.Backend {
	case "s3", "gcs":
		if c.Storage.Bucket == "" {
			add("storage.bucket is required for backend %q", c.Storage.Backend)
		}
	case "memory":
	default:
		add("storage.backend %q is not one of s3, gcs, memory", c.Storage.Backend)
	}

	switch c.FileFormat {
	case "csv", "csv.gz", "parquet":
	default:
		add("file_format %q is not one of csv, csv.gz, parquet", c.FileFormat)
	}

	for _, p := range []TransformParams{c.PostsParams, c.CommentsParams} {
		if p.Threshold != nil && (*p.Threshold < 0 || *p.Threshold > 1) {
			add("threshold %v must be within [0, 1]", *p.Threshold)
		}
		for _, o := range p.RemoveOutliers {
			if o.Lower < 0 || o.Upper > 1 || o.Lower > o.Upper {
				add("remove_outliers band [%v, %v] is invalid", o.Lower, o.Upper)
			}
		}
		for col, spec := range p.CorrectDataTypes {
			if err := spec.validate(); err != nil {
				add("correct_data_types.%s: %v", col, err)
			}
		}
	}

	switch c.Warehouse.Driver {
	case "redshift", "postgres", "mysql", "snowflake", "sqlite":
		if c.Warehouse.DSN == "" {
			add("warehouse.dsn is required for driver %q", c.Warehouse.Driver)
		}
	case "bigquery":
		if c.Warehouse.ProjectID == "" || c.Warehouse.Dataset == "" {
			add("warehouse.project_id and warehouse.dataset are required for bigquery")
		}
	default:
		add("warehouse.driver %q is not supported", c.Warehouse.Driver)
	}
	if c.Warehouse.BatchSize < 0 {
		add("warehouse.batch_size cannot be negative")
	}

	if c.Orchestrator.Retries < 0 {
		add("orchestrator.retries cannot be negative")
	}
	if c.Orchestrator.Freshness.Attempts < 1 {
		add("orchestrator.freshness.attempts must be at least 1")
	}

	if len(problems) > 0 {
		return etlerrors.New(etlerrors.ErrorTypeConfig, strings.Join(problems, "; "))
	}
	return nil
}

// RedditCredentials resolves the credential environment variables. Client ID,
// client secret and user agent are required; username and password are only
// used together.
func (c *Config) RedditCredentials() (RedditCredentials, error) {
	creds := RedditCredentials{
		ClientID:     lookupEnv(c.Reddit.ClientID),
		ClientSecret: lookupEnv(c.Reddit.ClientSecret),
		UserAgent:    lookupEnv(c.Reddit.UserAgent),
		Username:     lookupEnv(c.Reddit.Username),
		Password:     lookupEnv(c.Reddit.Password),
	}

	var missing []string
	if creds.ClientID == "" {
		missing = append(missing, "reddit.client_id")
	}
	if creds.ClientSecret == "" {
		missing = append(missing, "reddit.client_secret")
	}
	if creds.UserAgent == "" {
		missing = append(missing, "reddit.user_agent")
	}
	if (creds.Username == "") != (creds.Password == "") {
		missing = append(missing, "reddit.username/reddit.password pair")
	}
	if len(missing) > 0 {
		return RedditCredentials{}, etlerrors.New(etlerrors.ErrorTypeConfig,
			"missing environment values for "+strings.Join(missing, ", "))
	}
	return creds, nil
}

// WarehouseDSN resolves the DSN environment variable.
func (c *Config) WarehouseDSN() (string, error) {
	dsn := lookupEnv(c.Warehouse.DSN)
	if dsn == "" {
		return "", etlerrors.Newf(etlerrors.ErrorTypeConfig, "environment variable %q for warehouse.dsn is empty", c.Warehouse.DSN)
	}
	return dsn, nil
}

// StorageKeys resolves the optional static object store credentials.
func (c *Config) StorageKeys() (accessKey, secretKey string) {
	return lookupEnv(c.Storage.AccessKey), lookupEnv(c.Storage.SecretKey)
}

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
