package dialects

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/coregx/quarry/internal/schema"
)

const postgresDefaultSchema = "public"

// PostgresDialect implements the PostgreSQL dialect.
type PostgresDialect struct {
	cfg Config
}

func init() {
	f := func(cfg Config) Dialect { return NewPostgres(cfg) }
	RegisterDialect("postgres", f)
	RegisterDialect("postgresql", f)
	RegisterDialect("pgx", f)
}

// NewPostgres creates a PostgreSQL dialect.
func NewPostgres(cfg Config) *PostgresDialect {
	return &PostgresDialect{cfg: cfg}
}

// Name returns "postgres".
func (d *PostgresDialect) Name() string { return "postgres" }

// QuoteIdentifier quotes a PostgreSQL identifier using double quotes.
func (d *PostgresDialect) QuoteIdentifier(s string) string {
	if s == "*" || s == "" {
		return s
	}
	parts := strings.Split(s, ".")
	for i, part := range parts {
		if part != "*" {
			parts[i] = pq.QuoteIdentifier(part)
		}
	}
	return strings.Join(parts, ".")
}

// Placeholder returns PostgreSQL placeholder format ($1, $2, etc.).
func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// LimitSQL renders LIMIT/OFFSET.
func (d *PostgresDialect) LimitSQL(limit, offset int64, _ bool) (string, string) {
	return "", limitOffset(limit, offset, "")
}

// Features reports DISTINCT ON support.
func (d *PostgresDialect) Features() Features {
	return Features{DistinctOn: true, UnionParens: true}
}

// DefaultSchema returns the configured schema or "public".
func (d *PostgresDialect) DefaultSchema() string {
	return schemaOr(d.cfg.Schema, postgresDefaultSchema)
}

// ListTablesSQL lists base tables and views of a schema.
func (d *PostgresDialect) ListTablesSQL(schemaName string) (string, []any) {
	sql := `SELECT table_name AS name
FROM information_schema.tables
WHERE table_schema = $1
ORDER BY name`
	return sql, []any{schemaOr(schemaName, d.DefaultSchema())}
}

// DescribeColumnSQL reads columns with their comments in ordinal order.
func (d *PostgresDialect) DescribeColumnSQL(table, schemaName string) (string, []any) {
	sql := `SELECT DISTINCT table_schema AS schema,
	column_name AS name,
	data_type AS type,
	is_nullable AS "null",
	column_default AS "default",
	character_maximum_length AS char_length,
	numeric_precision AS precision,
	numeric_scale AS scale,
	is_identity,
	d.description AS comment,
	ordinal_position
FROM information_schema.columns c
INNER JOIN pg_catalog.pg_namespace ns ON (ns.nspname = table_schema)
INNER JOIN pg_catalog.pg_class cl ON (cl.relnamespace = ns.oid AND cl.relname = table_name)
LEFT JOIN pg_catalog.pg_description d ON (cl.oid = d.objoid AND d.objsubid = c.ordinal_position)
WHERE table_name = $1 AND table_schema = $2
ORDER BY ordinal_position`
	s, name := splitTableName(table, schemaOr(schemaName, d.DefaultSchema()))
	return sql, []any{name, s}
}

// DescribeIndexSQL reads index columns in key order.
func (d *PostgresDialect) DescribeIndexSQL(table, schemaName string) (string, []any) {
	sql := `SELECT c2.relname AS name,
	a.attname AS column_name,
	i.indisprimary AS is_primary,
	i.indisunique AS is_unique
FROM pg_catalog.pg_namespace n
INNER JOIN pg_catalog.pg_class c ON (n.oid = c.relnamespace)
INNER JOIN pg_catalog.pg_index i ON (c.oid = i.indrelid)
INNER JOIN pg_catalog.pg_class c2 ON (c2.oid = i.indexrelid)
INNER JOIN pg_catalog.pg_attribute a ON (a.attrelid = c.oid AND a.attnum = ANY(i.indkey))
WHERE n.nspname = $1 AND c.relname = $2
ORDER BY i.indisprimary DESC, i.indisunique DESC, c2.relname, array_position(i.indkey::int2[], a.attnum)`
	s, name := splitTableName(table, schemaOr(schemaName, d.DefaultSchema()))
	return sql, []any{s, name}
}

// DescribeForeignKeySQL reads foreign key columns paired with the referenced columns.
func (d *PostgresDialect) DescribeForeignKeySQL(table, schemaName string) (string, []any) {
	sql := `SELECT rc.constraint_name AS name,
	kcu.column_name AS column_name,
	rc.update_rule AS on_update,
	rc.delete_rule AS on_delete,
	rcu.table_name AS references_table,
	rcu.column_name AS references_column
FROM information_schema.referential_constraints rc
INNER JOIN information_schema.table_constraints tc
	ON (tc.constraint_name = rc.constraint_name AND tc.constraint_schema = rc.constraint_schema)
INNER JOIN information_schema.key_column_usage kcu
	ON (kcu.constraint_name = rc.constraint_name AND kcu.constraint_schema = rc.constraint_schema)
INNER JOIN information_schema.key_column_usage rcu
	ON (rcu.constraint_name = rc.unique_constraint_name
		AND rcu.constraint_schema = rc.unique_constraint_schema
		AND rcu.ordinal_position = kcu.position_in_unique_constraint)
WHERE tc.table_name = $1 AND tc.table_schema = $2 AND tc.constraint_type = 'FOREIGN KEY'
ORDER BY rc.constraint_name, kcu.ordinal_position`
	s, name := splitTableName(table, schemaOr(schemaName, d.DefaultSchema()))
	return sql, []any{name, s}
}

var postgresTypePattern = regexp.MustCompile(`^([a-z\s]+)(?:\(([0-9,\s]+)\))?`)

// postgresTypeRules follow the catalog spelling of information_schema.data_type.
var postgresTypeRules = []typeRule{
	{exact("date", "time", "boolean"), sameName},
	{contains("timestamp"), as("timestamp")},
	{contains("time"), as("time")},
	{exact("integer", "int", "int4", "serial"), withLength("integer", 10)},
	{exact("bigint", "int8", "bigserial"), withLength("biginteger", 20)},
	{exact("smallint", "int2", "smallserial"), withLength("integer", 5)},
	{exact("inet"), withLength("string", 39)},
	{exact("uuid"), as("uuid")},
	{exact("char", "character"), fixedString},
	{contains("char"), withLength("string", 0)},
	{contains("text"), as("text")},
	{exact("bytea"), as("binary")},
	{exact("real", "float4", "float8"), as("float")},
	{contains("double"), as("float")},
	{contains("numeric", "money", "decimal"), withPrecision("decimal")},
}

func parsePostgresType(raw string) colSpec {
	m := postgresTypePattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if m == nil {
		return colSpec{name: strings.ToLower(raw)}
	}
	length, precision := parseLength(m[2])
	return colSpec{name: strings.TrimSpace(m[1]), length: length, precision: precision}
}

var postgresQuotedDefault = regexp.MustCompile(`^'(.*)'(?:::.*)?$`)

// ConvertColumnDescription adds one information_schema.columns row to t.
func (d *PostgresDialect) ConvertColumnDescription(t *schema.Table, row Row) error {
	col := applyTypeRules(postgresTypeRules, parsePostgresType(rowString(row, "type")))

	if n := rowInt(row, "char_length"); n > 0 {
		col.Length = n
	}
	if col.Type == "decimal" {
		if p := rowInt(row, "precision"); p > 0 {
			col.Length = p
			col.Precision = rowInt(row, "scale")
		}
	}

	col.Null = schema.NotNull
	if strings.EqualFold(rowString(row, "null"), "YES") {
		col.Null = schema.Nullable
	}
	col.Comment = rowString(row, "comment")

	isInteger := col.Type == "integer" || col.Type == "biginteger"
	if isInteger && strings.EqualFold(rowString(row, "is_identity"), "YES") {
		col.AutoIncrement = true
	}
	if def, ok := rowNullString(row, "default"); ok {
		if isInteger && strings.HasPrefix(def, "nextval(") {
			col.AutoIncrement = true
		} else {
			col.Default = postgresDefault(def, col.Type)
		}
	}

	t.AddColumn(rowString(row, "name"), col)
	return nil
}

func postgresDefault(def, typ string) any {
	if strings.HasPrefix(def, "NULL::") {
		return nil
	}
	if m := postgresQuotedDefault.FindStringSubmatch(def); m != nil {
		def = strings.ReplaceAll(m[1], "''", "'")
	}
	switch typ {
	case "boolean":
		return truthy(def)
	case "integer", "biginteger":
		if n, err := strconv.ParseInt(def, 10, 64); err == nil {
			return n
		}
	}
	return def
}

// ConvertIndexDescription folds one index row into t.
func (d *PostgresDialect) ConvertIndexDescription(t *schema.Table, row Row) error {
	name := rowString(row, "name")
	kind := schema.IndexIndex
	switch {
	case rowBool(row, "is_primary"):
		name, kind = schema.ConstraintPrimary, schema.ConstraintPrimary
	case rowBool(row, "is_unique"):
		kind = schema.ConstraintUnique
	}
	return addIndexOrConstraint(t, name, kind, rowString(row, "column_name"))
}

// ConvertForeignKeyDescription folds one foreign key row into t.
func (d *PostgresDialect) ConvertForeignKeyDescription(t *schema.Table, row Row) error {
	return t.AddConstraint(rowString(row, "name"), schema.Constraint{
		Type:    schema.ConstraintForeign,
		Columns: []string{rowString(row, "column_name")},
		References: &schema.Reference{
			Table:   rowString(row, "references_table"),
			Columns: []string{rowString(row, "references_column")},
		},
		Update: convertOnClause(rowString(row, "on_update")),
		Delete: convertOnClause(rowString(row, "on_delete")),
	})
}

var postgresColumnTypes = map[string]string{
	"boolean":   "BOOLEAN",
	"binary":    "BYTEA",
	"float":     "FLOAT",
	"decimal":   "DECIMAL",
	"text":      "TEXT",
	"date":      "DATE",
	"time":      "TIME",
	"datetime":  "TIMESTAMP",
	"timestamp": "TIMESTAMP",
	"uuid":      "UUID",
}

// ColumnSQL renders one column definition. Integer columns that are the sole
// primary key or flagged auto-increment become SERIAL/BIGSERIAL.
func (d *PostgresDialect) ColumnSQL(t *schema.Table, name string) string {
	col, ok := t.Column(name)
	if !ok {
		return ""
	}
	out := d.QuoteIdentifier(name)
	null, def := col.Null, col.Default

	switch col.Type {
	case "integer", "biginteger":
		keyword := "INTEGER"
		if col.Type == "biginteger" {
			keyword = "BIGINT"
		}
		if t.IsSolePrimaryKey(name) || col.AutoIncrement {
			keyword = "SERIAL"
			if col.Type == "biginteger" {
				keyword = "BIGSERIAL"
			}
			null, def = schema.NullUnset, nil
		}
		out += " " + keyword
	case "string":
		keyword := " VARCHAR"
		if col.Fixed {
			keyword = " CHAR"
		}
		out += keyword
		if col.Length > 0 {
			out += fmt.Sprintf("(%d)", col.Length)
		}
	case "float":
		out += " FLOAT"
		if col.Precision > 0 {
			out += fmt.Sprintf("(%d)", col.Precision)
		}
	case "decimal":
		out += " DECIMAL"
		if col.Length > 0 || col.Precision > 0 {
			out += fmt.Sprintf("(%d,%d)", col.Length, col.Precision)
		}
	default:
		if keyword, ok := postgresColumnTypes[col.Type]; ok {
			out += " " + keyword
		} else {
			out += " " + strings.ToUpper(col.Type)
		}
	}

	switch null {
	case schema.NotNull:
		out += " NOT NULL"
	case schema.Nullable:
		out += " DEFAULT NULL"
		def = nil
	}

	if def != nil {
		if col.Type == "boolean" {
			out += " DEFAULT " + quoteValue(truthy(def))
		} else {
			out += " DEFAULT " + quoteValue(def)
		}
	}
	return out
}

// ConstraintSQL renders a table constraint.
func (d *PostgresDialect) ConstraintSQL(t *schema.Table, name string) string {
	return standardConstraintSQL(d.QuoteIdentifier, t, name, foreignOnClause)
}

// IndexSQL renders CREATE INDEX.
func (d *PostgresDialect) IndexSQL(t *schema.Table, name string) string {
	return standardIndexSQL(d.QuoteIdentifier, t, name)
}

// CreateTableSQL renders CREATE TABLE followed by index and comment statements.
func (d *PostgresDialect) CreateTableSQL(t *schema.Table) []string {
	tableName := d.QuoteIdentifier(t.Name())
	lines := append(columnLines(d, t), constraintLines(d, t)...)
	out := []string{createTableStatement(tableName, t.Temporary(), lines)}
	for _, name := range t.Indexes() {
		out = append(out, d.IndexSQL(t, name))
	}
	for _, name := range t.Columns() {
		col, _ := t.Column(name)
		if col.Comment == "" {
			continue
		}
		out = append(out, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s",
			tableName, d.QuoteIdentifier(name), quoteValue(col.Comment)))
	}
	return out
}

// DropTableSQL renders DROP TABLE.
func (d *PostgresDialect) DropTableSQL(t *schema.Table) []string {
	return []string{"DROP TABLE " + d.QuoteIdentifier(t.Name())}
}

// TruncateTableSQL truncates and resets sequences owned by the table.
func (d *PostgresDialect) TruncateTableSQL(t *schema.Table) []string {
	return []string{"TRUNCATE " + d.QuoteIdentifier(t.Name()) + " RESTART IDENTITY"}
}
