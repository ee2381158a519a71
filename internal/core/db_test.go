package core

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/coregx/quarry/internal/logger"
	"github.com/coregx/quarry/internal/tracer"
	"github.com/coregx/quarry/internal/types"
)

// mockDB wraps a sqlmock connection that matches SQL text exactly.
func mockDB(t *testing.T, driver string, opts ...Option) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return WrapDB(sqlDB, driver, opts...), mock
}

type logEntry struct {
	level string
	msg   string
	args  map[string]any
}

// recordingLogger keeps every log call for inspection.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := logEntry{level: level, msg: msg, args: make(map[string]any)}
	for i := 0; i+1 < len(args); i += 2 {
		if k, ok := args[i].(string); ok {
			e.args[k] = args[i+1]
		}
	}
	l.entries = append(l.entries, e)
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

// TestDB_Execute tests execution with positional arguments
func TestDB_Execute(t *testing.T) {
	db, mock := mockDB(t, "postgres")

	mock.ExpectPrepare(`UPDATE "articles" SET "title" = $1 WHERE "id" = $2`).
		ExpectExec().
		WithArgs("x", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	q := db.Update("articles").Set("title", "x").Where(HashExp{"id": 3})
	res, err := q.Execute()
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, q.Debug().Executed)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDB_PlaceholderStyles tests that each driver receives its own placeholders
func TestDB_PlaceholderStyles(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{"mysql", "DELETE FROM `articles` WHERE `id` = ? AND `author_id` = ?"},
		{"sqlite3", `DELETE FROM "articles" WHERE "id" = ? AND "author_id" = ?`},
		{"mssql", "DELETE FROM [articles] WHERE [id] = @p1 AND [author_id] = @p2"},
		{"pgx", `DELETE FROM "articles" WHERE "id" = $1 AND "author_id" = $2`},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			db, mock := mockDB(t, tt.driver)
			mock.ExpectPrepare(tt.want).ExpectExec().WithArgs(1, 2).WillReturnResult(sqlmock.NewResult(0, 1))

			_, err := db.Delete("articles").Where(And(Eq("id", 1), Eq("author_id", 2))).Execute()
			require.NoError(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// TestDB_InsertSparseRows tests that missing columns are sent as NULL
func TestDB_InsertSparseRows(t *testing.T) {
	db, mock := mockDB(t, "postgres")
	mock.ExpectPrepare(`INSERT INTO "articles" ("title", "body") VALUES ($1, $2), ($3, $4)`).
		ExpectExec().
		WithArgs("A", nil, "B", "b").
		WillReturnResult(sqlmock.NewResult(2, 2))

	_, err := db.Insert("articles", "title", "body").
		Values(map[string]any{"title": "A"}, map[string]any{"title": "B", "body": "b"}).
		Execute()
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDB_TypeConversion tests bound value conversion through the type map
func TestDB_TypeConversion(t *testing.T) {
	db, mock := mockDB(t, "postgres")
	mock.ExpectPrepare(`SELECT "id" FROM "articles" WHERE "id" = $1 AND "published" = $2`).
		ExpectQuery().
		WithArgs(int64(5), true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	rows, err := db.Select("id").From("articles").
		DefaultTypes(map[string]string{"id": types.Integer, "published": types.Boolean}).
		Where(HashExp{"id": "5", "published": "true"}).
		Rows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(5), rows[0]["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDB_TypeConversionError tests that invalid values fail before reaching the driver
func TestDB_TypeConversionError(t *testing.T) {
	db, mock := mockDB(t, "postgres")

	_, err := db.Delete("articles").
		DefaultTypes(map[string]string{"id": types.Integer}).
		Where(HashExp{"id": "abc"}).
		Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binding :c0")
	var convErr *types.ConversionError
	assert.ErrorAs(t, err, &convErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDB_Rows tests row maps with byte slices converted to strings
func TestDB_Rows(t *testing.T) {
	db, mock := mockDB(t, "postgres")
	mock.ExpectPrepare(`SELECT "id", "title" FROM "articles" WHERE "published" = $1`).
		ExpectQuery().
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow(int64(1), []byte("First")).
			AddRow(int64(2), "Second"))

	rows, err := db.Select("id", "title").From("articles").Where(HashExp{"published": true}).Rows()
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{"id": int64(1), "title": "First"},
		{"id": int64(2), "title": "Second"},
	}, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDB_ResultTypes tests conversion of typed and aggregate result columns
func TestDB_ResultTypes(t *testing.T) {
	db, mock := mockDB(t, "postgres")
	mock.ExpectPrepare(`SELECT "author_id", COUNT(*) AS "total", "payload" FROM "articles" GROUP BY "author_id"`).
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"author_id", "total", "payload"}).
			AddRow([]byte("4"), []byte("7"), []byte{0x01, 0x02}))

	var row Row
	err := db.Select("author_id", map[string]any{"total": Func().Count("*")}, "payload").
		From("articles").
		Group("author_id").
		DefaultTypes(map[string]string{"author_id": types.Integer, "payload": types.Binary}).
		One(&row)
	require.NoError(t, err)
	assert.Equal(t, int64(4), row["author_id"])
	assert.Equal(t, int64(7), row["total"])
	assert.Equal(t, []byte{0x01, 0x02}, row["payload"])
	require.NoError(t, mock.ExpectationsWereMet())
}

type article struct {
	ID     int64  `db:"id"`
	Title  string `db:"title"`
	Secret string `db:"-"`
	Author string
}

// TestDB_StructScan tests scanning into structs and struct slices
func TestDB_StructScan(t *testing.T) {
	db, mock := mockDB(t, "postgres")
	query := `SELECT "id", "title", "author" FROM "articles"`

	mock.ExpectPrepare(query).
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author"}).
			AddRow(int64(1), "First", "ann").
			AddRow(int64(2), "Second", "bob"))

	var list []article
	require.NoError(t, db.Select("id", "title", "author").From("articles").All(&list))
	assert.Equal(t, []article{{ID: 1, Title: "First", Author: "ann"}, {ID: 2, Title: "Second", Author: "bob"}}, list)

	mock.ExpectQuery(query).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "title", "extra"}).AddRow(int64(3), "Third", "x"))

	var one article
	require.NoError(t, db.Select("id", "title", "author").From("articles").One(&one))
	assert.Equal(t, article{ID: 3, Title: "Third"}, one)

	stats := db.StmtCacheStats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Size)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDB_StructPointerSlice tests scanning into a slice of struct pointers
func TestDB_StructPointerSlice(t *testing.T) {
	db, mock := mockDB(t, "sqlite")
	mock.ExpectPrepare(`SELECT "id" FROM "articles"`).
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))

	var list []*article
	require.NoError(t, db.Select("id").From("articles").All(&list))
	require.Len(t, list, 1)
	assert.Equal(t, int64(9), list[0].ID)

	var notPointer []article
	err := db.Select("id").From("articles").All(notPointer)
	assert.Error(t, err)
}

// TestDB_OneNoRows tests that One reports an empty result
func TestDB_OneNoRows(t *testing.T) {
	db, mock := mockDB(t, "postgres")
	mock.ExpectPrepare(`SELECT * FROM "articles" WHERE "id" = $1`).
		ExpectQuery().
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	var a article
	err := db.Select().From("articles").Where(HashExp{"id": 42}).One(&a)
	assert.ErrorIs(t, err, ErrNoRows)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDB_Scalar tests single value queries
func TestDB_Scalar(t *testing.T) {
	db, mock := mockDB(t, "postgres")
	mock.ExpectPrepare(`SELECT COUNT(*) FROM "articles"`).
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	v, err := db.Select(Func().Count("*")).From("articles").Scalar()
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDB_DriverError tests error propagation, logging and spans on failure
func TestDB_DriverError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	log := &recordingLogger{}
	db, mock := mockDB(t, "postgres", WithLogger(log), WithTracer(tracer.NewOtelTracer(tp.Tracer("test"))))

	boom := errors.New("boom")
	mock.ExpectPrepare(`DELETE FROM "articles"`).WillReturnError(boom)

	_, err := db.Delete("articles").Execute()
	require.ErrorIs(t, err, boom)

	require.Len(t, log.entries, 1)
	assert.Equal(t, "error", log.entries[0].level)
	assert.Equal(t, "query execution failed", log.entries[0].msg)
	assert.Equal(t, boom, log.entries[0].args["error"])

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, tracer.SpanExecute, spans[0].Name)
	assert.Equal(t, "Error", spans[0].Status.Code.String())
}

// TestDB_Observability tests logging, tracing and hooks around a statement
func TestDB_Observability(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	log := &recordingLogger{}
	var events []QueryEvent

	db, mock := mockDB(t, "postgres",
		WithLogger(log),
		WithTracer(tracer.NewOtelTracer(tp.Tracer("test"))),
		WithQueryHook(func(_ context.Context, e QueryEvent) { events = append(events, e) }),
	)

	mock.ExpectPrepare(`INSERT INTO "users" ("email", "password") VALUES ($1, $2)`).
		ExpectExec().
		WithArgs("a@b.c", "secret").
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err := db.Insert("users", "email", "password").
		Values(map[string]any{"email": "a@b.c", "password": "secret"}).
		Execute()
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, "INSERT", events[0].Operation)
	assert.Equal(t, []any{"a@b.c", logger.Mask}, events[0].Args)
	assert.Equal(t, int64(1), events[0].RowsAffected)
	assert.NoError(t, events[0].Error)

	require.Len(t, log.entries, 1)
	entry := log.entries[0]
	assert.Equal(t, "info", entry.level)
	assert.Equal(t, "query executed", entry.msg)
	assert.NotContains(t, entry.args["params"], "secret")
	assert.Equal(t, int64(1), entry.args["rows_affected"])

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	attrs := make(map[string]string)
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "postgres", attrs["db.system"])
	assert.Equal(t, "INSERT", attrs["db.operation"])
	assert.Equal(t, "2", attrs["db.bindings"])
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDB_CustomSensitiveFields tests replacing the masked column list
func TestDB_CustomSensitiveFields(t *testing.T) {
	var events []QueryEvent
	db, mock := mockDB(t, "sqlite",
		WithSensitiveFields("pin"),
		WithQueryHook(func(_ context.Context, e QueryEvent) { events = append(events, e) }),
	)
	mock.ExpectPrepare(`UPDATE "cards" SET "password" = ?, "pin" = ?`).
		ExpectExec().
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := db.Update("cards").Set("password", "p").Set("pin", "1234").Execute()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, []any{"p", logger.Mask}, events[0].Args)
}

// TestDB_RawSQL tests ExecContext and QueryRows
func TestDB_RawSQL(t *testing.T) {
	db, mock := mockDB(t, "postgres")

	mock.ExpectExec("CREATE TABLE t (id int)").WillReturnResult(sqlmock.NewResult(0, 0))
	_, err := db.ExecContext(context.Background(), "CREATE TABLE t (id int)")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT TABLE_NAME, IS_VIEW FROM catalog WHERE s = $1").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "IS_VIEW"}).AddRow([]byte("users"), false))

	rows, err := db.QueryRows(context.Background(), "SELECT TABLE_NAME, IS_VIEW FROM catalog WHERE s = $1", "public")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "users", rows[0]["table_name"])
	assert.Equal(t, false, rows[0]["is_view"])
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDB_Context tests that a cancelled context stops execution
func TestDB_Context(t *testing.T) {
	db, mock := mockDB(t, "postgres")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.Delete("articles").WithContext(ctx).Execute()
	assert.ErrorIs(t, err, context.Canceled)

	_, err = db.WithContext(ctx).Delete("articles").Execute()
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDB_AutoQuote tests disabling identifier quoting
func TestDB_AutoQuote(t *testing.T) {
	db, _ := mockDB(t, "postgres", WithAutoQuote(false))
	assert.Equal(t, "SELECT id FROM articles WHERE id = :c0", db.Select("id").From("articles").Where(HashExp{"id": 1}).SQL())
	assert.Equal(t, `"articles"`, db.Dialect().QuoteIdentifier("articles"))
}

// TestDB_Options tests configuration accessors
func TestDB_Options(t *testing.T) {
	m := types.Default()
	db, _ := mockDB(t, "sqlserver", WithSchema("sales"), WithTypes(m), WithStmtCacheCapacity(7), WithMaxOpenConns(3), WithMaxIdleConns(1))
	assert.Equal(t, "sqlserver", db.DriverName())
	assert.Equal(t, "sales", db.Dialect().DefaultSchema())
	assert.Same(t, m, db.Types())
	assert.Equal(t, 7, db.StmtCacheStats().Capacity)
	assert.Equal(t, 3, db.SQLDB().Stats().MaxOpenConnections)
	assert.IsType(t, &logger.NoopLogger{}, db.Logger())
	assert.IsType(t, &tracer.NoopTracer{}, db.Tracer())
}

// TestOpen tests opening by driver name
func TestOpen(t *testing.T) {
	db, err := Open("mysql", "user:pw@tcp(localhost:3306)/shop")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	assert.Equal(t, "shop", db.Dialect().DefaultSchema())

	_, err = Open("no-such-driver", "dsn")
	assert.Error(t, err)
}

// TestWrapDB_UnknownDialect tests that an unsupported driver name panics
func TestWrapDB_UnknownDialect(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()
	assert.Panics(t, func() { WrapDB(sqlDB, "oracle") })
}
