// Package dialects provides the per-product SQL translators for PostgreSQL,
// MySQL, SQLite and SQL Server. A Dialect renders identifiers, pagination and
// placeholders for the query builder, and emits catalog queries and DDL for
// the schema layer. Dialects are stateless apart from their Config.
package dialects

import (
	"errors"
	"fmt"
	"sort"

	"github.com/coregx/quarry/internal/schema"
)

// ErrUnsupportedDialect is returned when no dialect is registered under a name.
var ErrUnsupportedDialect = errors.New("unsupported database dialect")

// Row is one catalog result row keyed by lower-cased column name.
type Row map[string]any

// Features lists optional query syntax a product understands.
type Features struct {
	// DistinctOn is true when SELECT DISTINCT ON (...) is available.
	DistinctOn bool
	// UnionParens is true when UNION members may be wrapped in parentheses.
	UnionParens bool
}

// QueryDialect renders the product specific parts of DML statements.
type QueryDialect interface {
	// Name returns the canonical product name (mysql, postgres, sqlite, sqlserver).
	Name() string
	// QuoteIdentifier quotes a possibly dotted identifier, doubling embedded quote characters.
	QuoteIdentifier(name string) string
	// Placeholder returns the positional placeholder for the 1-based index.
	Placeholder(index int) string
	// LimitSQL renders pagination. prefix goes right after SELECT, suffix at the end.
	// Negative values mean unset.
	LimitSQL(limit, offset int64, ordered bool) (prefix, suffix string)
	Features() Features
}

// SchemaDialect reads catalog metadata into tables and renders tables as DDL.
type SchemaDialect interface {
	// DefaultSchema is the namespace used when none is given.
	DefaultSchema() string

	ListTablesSQL(schemaName string) (string, []any)
	DescribeColumnSQL(table, schemaName string) (string, []any)
	DescribeIndexSQL(table, schemaName string) (string, []any)
	DescribeForeignKeySQL(table, schemaName string) (string, []any)

	ConvertColumnDescription(t *schema.Table, row Row) error
	ConvertIndexDescription(t *schema.Table, row Row) error
	ConvertForeignKeyDescription(t *schema.Table, row Row) error

	ColumnSQL(t *schema.Table, name string) string
	ConstraintSQL(t *schema.Table, name string) string
	IndexSQL(t *schema.Table, name string) string

	// CreateTableSQL, DropTableSQL and TruncateTableSQL return independent
	// statements to be executed in order.
	CreateTableSQL(t *schema.Table) []string
	DropTableSQL(t *schema.Table) []string
	TruncateTableSQL(t *schema.Table) []string
}

// Dialect is the full translator for one product.
type Dialect interface {
	QueryDialect
	SchemaDialect
}

// Config is threaded into a dialect when it is created.
type Config struct {
	// Schema overrides the product default namespace (public, dbo, ...).
	Schema string
	// RestrictFallback replaces RESTRICT on products that reject it.
	// Defaults to set-null.
	RestrictFallback schema.Action
}

// Factory builds a dialect from its configuration.
type Factory func(cfg Config) Dialect

var dialects = make(map[string]Factory)

// RegisterDialect registers a dialect factory under a driver name.
func RegisterDialect(name string, f Factory) {
	dialects[name] = f
}

// GetDialect returns the dialect for a driver name with the default configuration.
// It panics when the name is unknown.
func GetDialect(name string) Dialect {
	d, err := NewDialect(name, Config{})
	if err != nil {
		panic("unsupported dialect: " + name)
	}
	return d
}

// NewDialect returns the dialect for a driver name.
func NewDialect(name string, cfg Config) (Dialect, error) {
	f, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, name)
	}
	return f(cfg), nil
}

// Names returns all registered driver names, sorted.
func Names() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithoutQuoting returns d with identifier quoting disabled for the query
// builder. DDL rendered by the wrapped dialect stays quoted.
func WithoutQuoting(d Dialect) Dialect {
	if u, ok := d.(unquoted); ok {
		return u
	}
	return unquoted{d}
}

type unquoted struct{ Dialect }

func (unquoted) QuoteIdentifier(name string) string { return name }
