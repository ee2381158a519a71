// Package core implements the expression tree, the query builder and the
// executor that runs built statements through database/sql.
package core

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/coregx/quarry/internal/cache"
	"github.com/coregx/quarry/internal/dialects"
	"github.com/coregx/quarry/internal/logger"
	"github.com/coregx/quarry/internal/schema"
	"github.com/coregx/quarry/internal/tracer"
	"github.com/coregx/quarry/internal/types"
)

// DB runs queries built for one connection. It is safe for concurrent use.
type DB struct {
	sqlDB      *sql.DB
	driverName string
	// dialect renders DDL and catalog queries; queryDialect renders DML and
	// is the unquoted variant when auto quoting is off.
	dialect      dialects.Dialect
	queryDialect dialects.Dialect
	stmtCache    *cache.StmtCache
	logger       logger.Logger
	sanitizer    *logger.Sanitizer
	tracer       tracer.Tracer
	queryHook    QueryHook
	types        *types.Map

	schema           string
	restrictFallback schema.Action
	autoQuote        bool
	sensitiveFields  []string
	ctx              context.Context
}

// Option configures a DB.
type Option func(*DB)

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxOpenConns(n)
	}
}

// WithMaxIdleConns sets the maximum number of idle connections.
func WithMaxIdleConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxIdleConns(n)
	}
}

// WithStmtCacheCapacity sets the prepared statement cache capacity.
func WithStmtCacheCapacity(capacity int) Option {
	return func(db *DB) {
		db.stmtCache = cache.NewStmtCacheWithCapacity(capacity)
	}
}

// WithLogger sets the execution logger.
func WithLogger(l logger.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

// WithSensitiveFields replaces the column names whose values are masked in logs.
func WithSensitiveFields(fields ...string) Option {
	return func(db *DB) {
		db.sensitiveFields = fields
	}
}

// WithTracer sets the span tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(db *DB) {
		if t != nil {
			db.tracer = t
		}
	}
}

// WithQueryHook registers a callback invoked after every statement.
func WithQueryHook(hook QueryHook) Option {
	return func(db *DB) {
		db.queryHook = hook
	}
}

// WithSchema overrides the default schema of the dialect (public, dbo, the
// MySQL database of the DSN, main).
func WithSchema(name string) Option {
	return func(db *DB) {
		db.schema = name
	}
}

// WithRestrictFallback sets the foreign key action used in place of
// RESTRICT on products that reject it.
func WithRestrictFallback(action schema.Action) Option {
	return func(db *DB) {
		db.restrictFallback = action
	}
}

// WithAutoQuote turns identifier quoting of built queries on or off. It is on by default.
func WithAutoQuote(enabled bool) Option {
	return func(db *DB) {
		db.autoQuote = enabled
	}
}

// WithTypes sets the type map converting bound and scanned values.
func WithTypes(m *types.Map) Option {
	return func(db *DB) {
		if m != nil {
			db.types = m
		}
	}
}

// Open opens a connection pool for driverName and dsn.
func Open(driverName, dsn string, opts ...Option) (*DB, error) {
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	db := newDB(sqlDB, driverName)
	if driverName == "mysql" {
		if cfg, err := mysql.ParseDSN(dsn); err == nil {
			db.schema = cfg.DBName
		}
	}
	if err := db.configure(opts); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// WrapDB wraps an existing pool. The caller keeps ownership of sqlDB
// configuration; Close closes it. It panics when driverName has no dialect.
func WrapDB(sqlDB *sql.DB, driverName string, opts ...Option) *DB {
	db := newDB(sqlDB, driverName)
	if err := db.configure(opts); err != nil {
		panic(err)
	}
	return db
}

func newDB(sqlDB *sql.DB, driverName string) *DB {
	return &DB{
		sqlDB:      sqlDB,
		driverName: driverName,
		stmtCache:  cache.NewStmtCache(),
		logger:     &logger.NoopLogger{},
		tracer:     &tracer.NoopTracer{},
		types:      types.Default(),
		autoQuote:  true,
	}
}

func (db *DB) configure(opts []Option) error {
	for _, opt := range opts {
		opt(db)
	}
	d, err := dialects.NewDialect(db.driverName, dialects.Config{
		Schema:           db.schema,
		RestrictFallback: db.restrictFallback,
	})
	if err != nil {
		return err
	}
	db.dialect = d
	db.queryDialect = d
	if !db.autoQuote {
		db.queryDialect = dialects.WithoutQuoting(d)
	}
	db.sanitizer = logger.NewSanitizer(db.sensitiveFields)
	return nil
}

// Close closes cached statements and the pool.
func (db *DB) Close() error {
	db.stmtCache.Clear()
	return db.sqlDB.Close()
}

// WithContext returns a shallow copy whose queries default to ctx.
func (db *DB) WithContext(ctx context.Context) *DB {
	newDB := *db
	newDB.ctx = ctx
	return &newDB
}

// DriverName returns the database/sql driver name.
func (db *DB) DriverName() string { return db.driverName }

// Dialect returns the dialect, with quoting, used for catalog queries and DDL.
func (db *DB) Dialect() dialects.Dialect { return db.dialect }

// Types returns the type map.
func (db *DB) Types() *types.Map { return db.types }

// Logger returns the configured logger.
func (db *DB) Logger() logger.Logger { return db.logger }

// Tracer returns the configured tracer.
func (db *DB) Tracer() tracer.Tracer { return db.tracer }

// SQLDB returns the underlying pool.
func (db *DB) SQLDB() *sql.DB { return db.sqlDB }

// StmtCacheStats returns prepared statement cache statistics.
func (db *DB) StmtCacheStats() cache.Stats { return db.stmtCache.Stats() }

// NewQuery returns an empty SELECT query bound to this DB.
func (db *DB) NewQuery() *Query {
	q := NewQuery(db.queryDialect)
	q.db = db
	q.ctx = db.ctx
	return q
}

// Select starts a SELECT query.
func (db *DB) Select(fields ...any) *Query {
	return db.NewQuery().Select(fields...)
}

// Insert starts an INSERT into table.
func (db *DB) Insert(table string, columns ...string) *Query {
	return db.NewQuery().Insert(columns...).Into(table)
}

// Update starts an UPDATE of table.
func (db *DB) Update(table string) *Query {
	return db.NewQuery().Update(table)
}

// Delete starts a DELETE from table.
func (db *DB) Delete(table string) *Query {
	return db.NewQuery().Delete(table)
}

func (db *DB) context(ctx context.Context) context.Context {
	switch {
	case ctx != nil:
		return ctx
	case db.ctx != nil:
		return db.ctx
	}
	return context.Background()
}

// prepareStatement returns a cached prepared statement for query.
func (db *DB) prepareStatement(ctx context.Context, query string) (*sql.Stmt, error) {
	if stmt, ok := db.stmtCache.Get(query); ok {
		return stmt, nil
	}
	stmt, err := db.sqlDB.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	db.stmtCache.Set(query, stmt)
	return stmt, nil
}

// observe runs fn inside a span, then logs the statement with masked
// values and invokes the query hook. fn returns the affected row count.
func (db *DB) observe(ctx context.Context, span, query string, args []any, fields []string,
	fn func(ctx context.Context) (int64, error),
) error {
	ctx, s := db.tracer.StartSpan(ctx, span)
	defer s.End()

	start := time.Now()
	affected, err := fn(ctx)
	elapsed := time.Since(start)

	operation := DetectOperation(query)
	tracer.AddQueryAttributes(s, &tracer.QueryMetadata{
		SQL:          query,
		Bindings:     len(args),
		Duration:     elapsed,
		RowsAffected: affected,
		Error:        err,
		Database:     db.dialect.Name(),
		Operation:    operation,
	})

	masked := db.sanitizer.MaskFields(query, fields, args)
	if err != nil {
		db.logger.Error("query execution failed",
			"sql", query,
			"params", db.sanitizer.FormatParams(masked),
			"duration_ms", elapsed.Milliseconds(),
			"database", db.driverName,
			"error", err,
		)
	} else {
		db.logger.Info("query executed",
			"sql", query,
			"params", db.sanitizer.FormatParams(masked),
			"duration_ms", elapsed.Milliseconds(),
			"rows_affected", affected,
			"database", db.driverName,
		)
	}

	db.invokeHook(ctx, QueryEvent{
		SQL:          query,
		Args:         masked,
		Duration:     elapsed,
		RowsAffected: affected,
		Error:        err,
		Operation:    operation,
	})
	return err
}

// ExecContext executes raw SQL with positional arguments.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := db.observe(db.context(ctx), tracer.SpanExecute, query, args, nil, func(ctx context.Context) (int64, error) {
		var err error
		result, err = db.sqlDB.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		n, _ := result.RowsAffected()
		return n, nil
	})
	return result, err
}

// QueryRows runs raw SQL and returns every row with lower-cased column
// names. Byte slices are returned as strings.
func (db *DB) QueryRows(ctx context.Context, query string, args ...any) ([]dialects.Row, error) {
	var out []dialects.Row
	err := db.observe(db.context(ctx), tracer.SpanQuery, query, args, nil, func(ctx context.Context) (int64, error) {
		rows, err := db.sqlDB.QueryContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		defer func() { _ = rows.Close() }()

		scanned, err := scanMaps(rows, true, nil)
		if err != nil {
			return 0, err
		}
		out = make([]dialects.Row, len(scanned))
		for i, r := range scanned {
			out[i] = dialects.Row(r)
		}
		return 0, nil
	})
	return out, err
}

// isBinary reports whether typ stores raw bytes.
func isBinary(typ string) bool {
	base, _ := types.ArrayBase(typ)
	return strings.EqualFold(base, types.Binary)
}
