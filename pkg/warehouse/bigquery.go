package warehouse

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/formats"
)

// loadJobTimeout bounds the wait for one load job.
const loadJobTimeout = 10 * time.Minute

// BigQueryLoader appends datasets with one CSV load job per table. A load
// job is atomic, so a failed job leaves the table unchanged.
type BigQueryLoader struct {
	client  *bigquery.Client
	dataset string
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewBigQueryLoader creates a client for projectID. An empty
// credentialsFile uses application default credentials.
func NewBigQueryLoader(ctx context.Context, projectID, dataset, credentialsFile string, logger *zap.Logger) (*BigQueryLoader, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to create BigQuery client")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BigQueryLoader{
		client:  client,
		dataset: dataset,
		logger:  logger.With(zap.String("component", "warehouse"), zap.String("driver", "bigquery")),
	}, nil
}

// Load runs a WRITE_APPEND load job for ds and waits for it.
func (b *BigQueryLoader) Load(ctx context.Context, ds *columnar.Dataset, table string) error {
	if b.isClosed() {
		return errLoaderClosed()
	}
	if err := validateIdentifiers(table, ds.ColumnNames()); err != nil {
		return err
	}
	if ds.NumRows() == 0 {
		b.logger.Info("nothing to load", zap.String("table", table))
		return nil
	}

	var buf bytes.Buffer
	if err := formats.WriteCSV(&buf, ds); err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to encode load source")
	}
	source := bigquery.NewReaderSource(&buf)
	source.SourceFormat = bigquery.CSV
	source.SkipLeadingRows = 1

	loader := b.client.Dataset(b.dataset).Table(table).LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.Labels = map[string]string{
		"source":  "redditetl",
		"records": strconv.Itoa(ds.NumRows()),
	}

	job, err := loader.Run(ctx)
	if err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to submit BigQuery load job")
	}

	jobCtx, cancel := context.WithTimeout(ctx, loadJobTimeout)
	defer cancel()
	status, err := job.Wait(jobCtx)
	if err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "load job failed or timed out")
	}
	if status.Err() != nil {
		b.logger.Error("BigQuery load job failed", zap.Error(status.Err()), zap.String("job_id", job.ID()))
		return etlerrors.Wrapf(status.Err(), etlerrors.ErrorTypeData, "failed to load rows into %s", table)
	}

	b.logger.Info("data loaded", zap.String("table", table), zap.Int("rows", ds.NumRows()), zap.String("job_id", job.ID()))
	return nil
}

// Close closes the client.
func (b *BigQueryLoader) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errAlreadyClosed()
	}
	b.closed = true
	if err := b.client.Close(); err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to close BigQuery client")
	}
	return nil
}

func (b *BigQueryLoader) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
