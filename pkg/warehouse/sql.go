package warehouse

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// dialect describes one database/sql driver.
type dialect struct {
	driverName  string
	placeholder func(n int) string
}

func questionMark(int) string { return "?" }
func dollar(n int) string     { return "$" + strconv.Itoa(n) }

var dialects = map[string]dialect{
	"redshift":  {driverName: "pgx", placeholder: dollar},
	"postgres":  {driverName: "pgx", placeholder: dollar},
	"mysql":     {driverName: "mysql", placeholder: questionMark},
	"snowflake": {driverName: "snowflake", placeholder: questionMark},
	"sqlite":    {driverName: "sqlite", placeholder: questionMark},
}

// SQLLoader inserts rows with batched multi-row INSERT statements inside
// one transaction per Load.
type SQLLoader struct {
	db        *sql.DB
	driver    string
	dialect   dialect
	batchSize int
	logger    *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewSQLLoader opens and pings a connection for driver.
func NewSQLLoader(ctx context.Context, driver, dsn string, batchSize int, logger *zap.Logger) (*SQLLoader, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, etlerrors.Newf(etlerrors.ErrorTypeConfig, "unsupported warehouse driver %q", driver)
	}
	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeConfig, "failed to open warehouse connection")
	}
	// One session per process.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, etlerrors.Wrapf(err, etlerrors.ErrorTypeConnection, "failed to connect to %s warehouse", driver)
	}

	l, err := NewSQLLoaderWithDB(db, driver, batchSize, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	l.logger.Info("connected to warehouse")
	return l, nil
}

// NewSQLLoaderWithDB wraps an open database. The loader owns db afterwards.
func NewSQLLoaderWithDB(db *sql.DB, driver string, batchSize int, logger *zap.Logger) (*SQLLoader, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, etlerrors.Newf(etlerrors.ErrorTypeConfig, "unsupported warehouse driver %q", driver)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLLoader{
		db:        db,
		driver:    driver,
		dialect:   d,
		batchSize: batchSize,
		logger:    logger.With(zap.String("component", "warehouse"), zap.String("driver", driver)),
	}, nil
}

// Load inserts every row of ds into table. Either all rows are committed or
// none are, and the driver error is returned.
func (l *SQLLoader) Load(ctx context.Context, ds *columnar.Dataset, table string) error {
	if l.isClosed() {
		return errLoaderClosed()
	}
	columns := ds.ColumnNames()
	if err := validateIdentifiers(table, columns); err != nil {
		return err
	}
	if len(columns) == 0 || ds.NumRows() == 0 {
		l.logger.Info("nothing to load", zap.String("table", table))
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to begin transaction")
	}

	batchSize := rowsPerStatement(l.batchSize, len(columns))
	for start := 0; start < ds.NumRows(); start += batchSize {
		end := start + batchSize
		if end > ds.NumRows() {
			end = ds.NumRows()
		}
		query, args := l.insertStatement(ds, table, columns, start, end)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			l.logger.Error("insert failed, rolled back",
				zap.String("table", table),
				zap.Int("batch_start", start),
				zap.Error(err))
			return etlerrors.Wrapf(err, etlerrors.ErrorTypeData, "failed to load rows into %s", table)
		}
	}

	if err := tx.Commit(); err != nil {
		return etlerrors.Wrapf(err, etlerrors.ErrorTypeConnection, "failed to commit load into %s", table)
	}
	l.logger.Info("data loaded", zap.String("table", table), zap.Int("rows", ds.NumRows()))
	return nil
}

func (l *SQLLoader) insertStatement(ds *columnar.Dataset, table string, columns []string, start, end int) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(") VALUES ")

	cols := ds.Columns()
	args := make([]interface{}, 0, (end-start)*len(cols))
	n := 0
	for row := start; row < end; row++ {
		if row > start {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for i, col := range cols {
			if i > 0 {
				sb.WriteString(", ")
			}
			n++
			sb.WriteString(l.dialect.placeholder(n))
			args = append(args, col.Values[row])
		}
		sb.WriteByte(')')
	}
	return sb.String(), args
}

// Close releases the connection.
func (l *SQLLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errAlreadyClosed()
	}
	l.closed = true
	if err := l.db.Close(); err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to close warehouse connection")
	}
	l.logger.Info("disconnected from warehouse")
	return nil
}

func (l *SQLLoader) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
