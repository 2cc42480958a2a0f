// Package warehouse loads datasets into warehouse tables and builds the
// posts/comments fact table.
package warehouse

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/config"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// DefaultBatchSize is the number of rows per INSERT statement.
const DefaultBatchSize = 500

// Loader appends datasets to existing warehouse tables. Close must be called
// exactly once; a second call returns an error.
type Loader interface {
	Load(ctx context.Context, ds *columnar.Dataset, table string) error
	Close() error
}

var (
	columnPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	tablePattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*){0,2}$`)
)

func validateIdentifiers(table string, columns []string) error {
	if !tablePattern.MatchString(table) {
		return etlerrors.Newf(etlerrors.ErrorTypeValidation, "invalid table name %q", table)
	}
	for _, c := range columns {
		if !columnPattern.MatchString(c) {
			return etlerrors.Newf(etlerrors.ErrorTypeValidation, "invalid column name %q for table %s", c, table)
		}
	}
	return nil
}

// MaxPlaceholders is the most bind parameters one INSERT may carry. It is
// the Postgres wire protocol limit and the lowest among supported drivers.
const MaxPlaceholders = 65535

// rowsPerStatement clamps batchSize so that rows times columns stays within
// MaxPlaceholders.
func rowsPerStatement(batchSize, columns int) int {
	if columns > 0 && batchSize*columns > MaxPlaceholders {
		batchSize = MaxPlaceholders / columns
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return batchSize
}

func errLoaderClosed() error {
	return etlerrors.New(etlerrors.ErrorTypeInternal, "warehouse loader is closed")
}

func errAlreadyClosed() error {
	return etlerrors.New(etlerrors.ErrorTypeInternal, "warehouse loader already closed")
}

// Open connects the loader selected by cfg.Warehouse.Driver.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Loader, error) {
	wc := cfg.Warehouse
	if wc.Driver == "bigquery" {
		return NewBigQueryLoader(ctx, wc.ProjectID, wc.Dataset, wc.CredentialsFile, logger)
	}
	dsn, err := cfg.WarehouseDSN()
	if err != nil {
		return nil, err
	}
	return NewSQLLoader(ctx, wc.Driver, dsn, wc.BatchSize, logger)
}

// LoadTables loads posts, comments and the fact table in that order and
// stops at the first failure.
func LoadTables(ctx context.Context, loader Loader, tables *Tables, names config.TablesConfig) error {
	for _, t := range []struct {
		ds   *columnar.Dataset
		name string
	}{
		{tables.Posts, names.Posts},
		{tables.Comments, names.Comments},
		{tables.Fact, names.Fact},
	} {
		if err := loader.Load(ctx, t.ds, t.name); err != nil {
			return err
		}
	}
	return nil
}
