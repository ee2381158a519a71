// Package reflector reads table metadata from a live database into the
// schema model using the catalog queries of the active dialect.
package reflector

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/coregx/quarry/internal/dialects"
	"github.com/coregx/quarry/internal/logger"
	"github.com/coregx/quarry/internal/schema"
	"github.com/coregx/quarry/internal/tracer"
)

// ErrTableNotFound is returned by Describe when the catalog has no columns for a table.
var ErrTableNotFound = errors.New("table not found")

// Querier runs catalog queries. *core.DB satisfies it.
type Querier interface {
	QueryRows(ctx context.Context, query string, args ...any) ([]dialects.Row, error)
	Dialect() dialects.Dialect
}

// Collection describes the tables of one connection.
type Collection struct {
	db      Querier
	dialect dialects.Dialect
	schema  string
	logger  logger.Logger
	tracer  tracer.Tracer
}

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets the logger used for describe calls.
func WithLogger(l logger.Logger) Option {
	return func(c *Collection) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracer sets the tracer used for catalog reads.
func WithTracer(t tracer.Tracer) Option {
	return func(c *Collection) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithSchema sets the namespace used for names without a schema prefix.
func WithSchema(name string) Option {
	return func(c *Collection) {
		c.schema = name
	}
}

// NewCollection returns a collection reading through db.
func NewCollection(db Querier, opts ...Option) *Collection {
	c := &Collection{
		db:      db,
		dialect: db.Dialect(),
		logger:  &logger.NoopLogger{},
		tracer:  &tracer.NoopTracer{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.schema == "" {
		c.schema = c.dialect.DefaultSchema()
	}
	return c
}

// Dialect returns the dialect used to build catalog queries.
func (c *Collection) Dialect() dialects.Dialect {
	return c.dialect
}

// Schema returns the default namespace.
func (c *Collection) Schema() string {
	return c.schema
}

// ListTables returns the table names of a namespace in alphabetical order.
// With no argument the collection's default schema is used.
func (c *Collection) ListTables(ctx context.Context, schemaName ...string) ([]string, error) {
	ns := c.schema
	if len(schemaName) > 0 && schemaName[0] != "" {
		ns = schemaName[0]
	}

	ctx, span := c.tracer.StartSpan(ctx, tracer.SpanTables)
	defer span.End()
	start := time.Now()

	query, args := c.dialect.ListTablesSQL(ns)
	rows, err := c.db.QueryRows(ctx, query, args...)
	meta := &tracer.SchemaMetadata{
		Database: c.dialect.Name(),
		Schema:   ns,
		Duration: time.Since(start),
		Error:    err,
	}
	tracer.AddSchemaAttributes(span, meta)
	if err != nil {
		return nil, errors.Wrapf(err, "list tables in %q", ns)
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if name := rowName(row); name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Describe reads one table. name may be qualified as schema.table.
func (c *Collection) Describe(ctx context.Context, name string) (*schema.Table, error) {
	ns, table := c.split(name)

	ctx, span := c.tracer.StartSpan(ctx, tracer.SpanDescribe)
	defer span.End()
	start := time.Now()

	t, err := c.describe(ctx, ns, table)
	meta := &tracer.SchemaMetadata{
		Database: c.dialect.Name(),
		Schema:   ns,
		Table:    table,
		Duration: time.Since(start),
		Error:    err,
	}
	if t != nil {
		meta.Columns = len(t.Columns())
		meta.Indexes = len(t.Indexes())
	}
	tracer.AddSchemaAttributes(span, meta)

	if err != nil {
		c.logger.Error("describe failed", "table", name, "error", err)
		return nil, err
	}
	c.logger.Debug("described table",
		"table", table,
		"schema", ns,
		"columns", meta.Columns,
		"indexes", meta.Indexes,
		"constraints", len(t.Constraints()),
		"duration", meta.Duration,
	)
	return t, nil
}

func (c *Collection) describe(ctx context.Context, ns, table string) (*schema.Table, error) {
	t := schema.NewTable(table)

	query, args := c.dialect.DescribeColumnSQL(table, ns)
	if err := c.fold(ctx, t, "columns", query, args, c.dialect.ConvertColumnDescription); err != nil {
		return nil, err
	}
	if len(t.Columns()) == 0 {
		return nil, errors.Wrapf(ErrTableNotFound, "describe %s", qualify(ns, table))
	}

	query, args = c.dialect.DescribeIndexSQL(table, ns)
	if err := c.fold(ctx, t, "indexes", query, args, c.dialect.ConvertIndexDescription); err != nil {
		return nil, err
	}

	query, args = c.dialect.DescribeForeignKeySQL(table, ns)
	if err := c.fold(ctx, t, "foreign keys", query, args, c.dialect.ConvertForeignKeyDescription); err != nil {
		return nil, err
	}
	return t, nil
}

// fold applies convert to every row in catalog order.
func (c *Collection) fold(ctx context.Context, t *schema.Table, what, query string, args []any,
	convert func(*schema.Table, dialects.Row) error) error {
	rows, err := c.db.QueryRows(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "read %s of %s", what, t.Name())
	}
	for _, row := range rows {
		if err := convert(t, row); err != nil {
			return errors.Wrapf(err, "convert %s of %s", what, t.Name())
		}
	}
	return nil
}

func (c *Collection) split(name string) (ns, table string) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return c.schema, name
}

func qualify(ns, table string) string {
	if ns == "" {
		return table
	}
	return ns + "." + table
}

func rowName(row dialects.Row) string {
	switch v := row["name"].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}
