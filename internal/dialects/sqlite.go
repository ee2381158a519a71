package dialects

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/coregx/quarry/internal/schema"
)

// SQLiteDialect implements the SQLite dialect.
type SQLiteDialect struct {
	cfg Config
}

func init() {
	factory := func(cfg Config) Dialect { return NewSQLite(cfg) }
	RegisterDialect("sqlite", factory)
	RegisterDialect("sqlite3", factory)
}

// NewSQLite creates a SQLite dialect. cfg.Schema names an attached database.
func NewSQLite(cfg Config) *SQLiteDialect {
	return &SQLiteDialect{cfg: cfg}
}

// Name returns "sqlite".
func (d *SQLiteDialect) Name() string { return "sqlite" }

// QuoteIdentifier quotes a SQLite identifier using double quotes.
func (d *SQLiteDialect) QuoteIdentifier(s string) string {
	return quoteWith(s, `"`, `"`)
}

// Placeholder returns SQLite placeholder format (?).
func (d *SQLiteDialect) Placeholder(_ int) string {
	return "?"
}

// LimitSQL renders LIMIT/OFFSET. SQLite needs LIMIT -1 for an offset alone.
func (d *SQLiteDialect) LimitSQL(limit, offset int64, _ bool) (string, string) {
	return "", limitOffset(limit, offset, "-1")
}

// Features reports SQLite query capabilities. Compound SELECT members
// cannot be parenthesised.
func (d *SQLiteDialect) Features() Features {
	return Features{}
}

// DefaultSchema returns the configured database or "main".
func (d *SQLiteDialect) DefaultSchema() string {
	return schemaOr(d.cfg.Schema, "main")
}

// ListTablesSQL lists user tables from sqlite_master.
func (d *SQLiteDialect) ListTablesSQL(schemaName string) (string, []any) {
	master := d.QuoteIdentifier(schemaOr(schemaName, d.DefaultSchema())) + ".sqlite_master"
	return `SELECT name FROM ` + master + `
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`, nil
}

// DescribeColumnSQL reads pragma_table_info. pk_index is the position of a
// key column among the key columns declared before it, so that folding rows
// in cid order rebuilds the key in its declared order.
func (d *SQLiteDialect) DescribeColumnSQL(table, schemaName string) (string, []any) {
	s, name := splitTableName(table, schemaOr(schemaName, d.DefaultSchema()))
	return `SELECT ti.cid, ti.name, ti.type, ti."notnull", ti.dflt_value AS "default", ti.pk,
	(SELECT COUNT(*) FROM pragma_table_info(?, ?) AS p
	 WHERE p.pk > 0 AND p.pk < ti.pk AND p.cid < ti.cid) AS pk_index
FROM pragma_table_info(?, ?) AS ti
ORDER BY ti.cid`, []any{name, s, name, s}
}

// DescribeIndexSQL joins pragma_index_list with pragma_index_info.
func (d *SQLiteDialect) DescribeIndexSQL(table, schemaName string) (string, []any) {
	s, name := splitTableName(table, schemaOr(schemaName, d.DefaultSchema()))
	return `SELECT il.name AS index_name, il."unique" AS is_unique, il.origin AS origin, ii.name AS column_name
FROM pragma_index_list(?, ?) AS il, pragma_index_info(il.name, ?) AS ii
ORDER BY il.seq, ii.seqno`, []any{name, s, s}
}

// DescribeForeignKeySQL reads pragma_foreign_key_list.
func (d *SQLiteDialect) DescribeForeignKeySQL(table, schemaName string) (string, []any) {
	s, name := splitTableName(table, schemaOr(schemaName, d.DefaultSchema()))
	return `SELECT id, seq, "table" AS references_table, "from" AS column_name, "to" AS references_column,
	on_update, on_delete
FROM pragma_foreign_key_list(?, ?)
ORDER BY id, seq`, []any{name, s}
}

var sqliteTypePattern = regexp.MustCompile(`^(unsigned)?\s*([a-z]+)(?:\(([0-9,\s]+)\))?`)

var sqliteTypeRules = []typeRule{
	{exact("date", "time", "timestamp", "datetime"), sameName},
	{exact("boolean"), as("boolean")},
	{exact("bigint"), withLength("biginteger", 0)},
	{contains("int"), withLength("integer", 0)},
	{exact("uuid"), as("uuid")},
	{exact("char"), fixedString},
	{contains("char", "clob"), withLength("string", 0)},
	{exact("text"), as("text")},
	{exact("blob", "binary"), as("binary")},
	{exact("float", "double", "real"), withPrecision("float")},
	{contains("decimal", "numeric"), withPrecision("decimal")},
}

func parseSQLiteType(raw string) colSpec {
	m := sqliteTypePattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if m == nil {
		return colSpec{name: strings.ToLower(raw)}
	}
	length, precision := parseLength(m[3])
	spec := colSpec{name: m[2], length: length, precision: precision, unsigned: m[1] != ""}
	if spec.name == "char" && length == 36 {
		spec.name = "uuid"
	}
	return spec
}

// ConvertColumnDescription adds one pragma_table_info row to t. Primary key
// members are accumulated into the "primary" constraint.
func (d *SQLiteDialect) ConvertColumnDescription(t *schema.Table, row Row) error {
	col := applyTypeRules(sqliteTypeRules, parseSQLiteType(rowString(row, "type")))
	if col.Type == "uuid" {
		col.Length = 0
	}

	col.Null = schema.Nullable
	if rowBool(row, "notnull") {
		col.Null = schema.NotNull
	}
	if def, ok := rowNullString(row, "default"); ok && !strings.EqualFold(def, "NULL") {
		col.Default = sqliteDefault(unquoteDefault(def), col.Type)
	}

	name := rowString(row, "name")
	t.AddColumn(name, col)
	if rowInt(row, "pk") == 0 {
		return nil
	}
	pos := len(t.PrimaryKey())
	if v, ok := row["pk_index"]; ok && v != nil {
		pos = rowInt(row, "pk_index")
	}
	return t.InsertConstraintColumns(schema.ConstraintPrimary, schema.Constraint{
		Type:    schema.ConstraintPrimary,
		Columns: []string{name},
	}, pos)
}

func sqliteDefault(def, typ string) any {
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

// ConvertIndexDescription folds one index column row into t. Indexes backing
// the primary key are skipped because ConvertColumnDescription covers them.
func (d *SQLiteDialect) ConvertIndexDescription(t *schema.Table, row Row) error {
	if rowString(row, "origin") == "pk" {
		return nil
	}
	kind := schema.IndexIndex
	if rowBool(row, "is_unique") {
		kind = schema.ConstraintUnique
	}
	return addIndexOrConstraint(t, rowString(row, "index_name"), kind, rowString(row, "column_name"))
}

// ConvertForeignKeyDescription folds one pragma_foreign_key_list row into t.
// SQLite does not report constraint names; rows sharing an id form one key.
func (d *SQLiteDialect) ConvertForeignKeyDescription(t *schema.Table, row Row) error {
	name := fmt.Sprintf("%s_%d_fk", t.Name(), rowInt(row, "id"))
	return t.AddConstraint(name, schema.Constraint{
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

var sqliteColumnTypes = map[string]string{
	"uuid":       "CHAR(36)",
	"integer":    "INTEGER",
	"biginteger": "BIGINT",
	"boolean":    "BOOLEAN",
	"binary":     "BLOB",
	"float":      "FLOAT",
	"decimal":    "DECIMAL",
	"text":       "TEXT",
	"date":       "DATE",
	"time":       "TIME",
	"datetime":   "DATETIME",
	"timestamp":  "TIMESTAMP",
}

// autoIncrementKey reports whether name is an integer column acting as the sole primary key.
func (d *SQLiteDialect) autoIncrementKey(t *schema.Table, name string) bool {
	return t.IsSolePrimaryKey(name) && t.ColumnType(name) == "integer"
}

// ColumnSQL renders one column definition. A sole integer primary key
// becomes INTEGER PRIMARY KEY AUTOINCREMENT.
func (d *SQLiteDialect) ColumnSQL(t *schema.Table, name string) string {
	col, ok := t.Column(name)
	if !ok {
		return ""
	}
	out := d.QuoteIdentifier(name)
	numeric := col.Type == "integer" || col.Type == "biginteger" || col.Type == "float" || col.Type == "decimal"
	if col.Unsigned && numeric {
		out += " UNSIGNED"
	}

	switch col.Type {
	case "string":
		keyword := "VARCHAR"
		if col.Fixed {
			keyword = "CHAR"
		}
		out += " " + keyword
		if col.Length > 0 {
			out += fmt.Sprintf("(%d)", col.Length)
		}
	default:
		if keyword, ok := sqliteColumnTypes[col.Type]; ok {
			out += " " + keyword
		} else {
			out += " " + strings.ToUpper(col.Type)
		}
	}

	autoIncrement := d.autoIncrementKey(t, name)
	if col.Type == "integer" && col.Length > 0 && !autoIncrement {
		out += fmt.Sprintf("(%d)", col.Length)
	}
	if (col.Type == "float" || col.Type == "decimal") && (col.Length > 0 || col.Precision > 0) {
		out += fmt.Sprintf("(%d,%d)", col.Length, col.Precision)
	}

	def := col.Default
	if col.Null == schema.NotNull {
		out += " NOT NULL"
	}
	if autoIncrement {
		return out + " PRIMARY KEY AUTOINCREMENT"
	}
	if col.Null == schema.Nullable {
		out += " DEFAULT NULL"
		def = nil
	}
	if def != nil {
		switch {
		case (col.Type == "timestamp" || col.Type == "datetime") && strings.EqualFold(fmt.Sprint(def), "CURRENT_TIMESTAMP"):
			out += " DEFAULT CURRENT_TIMESTAMP"
		case col.Type == "boolean":
			out += " DEFAULT " + quoteValue(truthy(def))
		default:
			out += " DEFAULT " + quoteValue(def)
		}
	}
	return out
}

// ConstraintSQL renders PRIMARY KEY, UNIQUE or a foreign key clause. The
// primary key is omitted when ColumnSQL already declared it inline.
func (d *SQLiteDialect) ConstraintSQL(t *schema.Table, name string) string {
	c, ok := t.Constraint(name)
	if !ok {
		return ""
	}
	if c.Type == schema.ConstraintPrimary && len(c.Columns) == 1 && d.autoIncrementKey(t, c.Columns[0]) {
		return ""
	}
	return standardConstraintSQL(d.QuoteIdentifier, t, name, foreignOnClause)
}

// IndexSQL renders CREATE INDEX.
func (d *SQLiteDialect) IndexSQL(t *schema.Table, name string) string {
	return standardIndexSQL(d.QuoteIdentifier, t, name)
}

// CreateTableSQL renders CREATE TABLE followed by CREATE INDEX statements.
func (d *SQLiteDialect) CreateTableSQL(t *schema.Table) []string {
	lines := append(columnLines(d, t), constraintLines(d, t)...)
	out := []string{createTableStatement(d.QuoteIdentifier(t.Name()), t.Temporary(), lines)}
	for _, name := range t.Indexes() {
		out = append(out, d.IndexSQL(t, name))
	}
	return out
}

// DropTableSQL renders DROP TABLE.
func (d *SQLiteDialect) DropTableSQL(t *schema.Table) []string {
	return []string{"DROP TABLE " + d.QuoteIdentifier(t.Name())}
}

// TruncateTableSQL deletes all rows and, for AUTOINCREMENT tables, resets the
// sequence first.
func (d *SQLiteDialect) TruncateTableSQL(t *schema.Table) []string {
	var out []string
	if pk := t.PrimaryKey(); len(pk) == 1 && d.autoIncrementKey(t, pk[0]) {
		out = append(out, "DELETE FROM sqlite_sequence WHERE name = "+quoteValue(t.Name()))
	}
	return append(out, "DELETE FROM "+d.QuoteIdentifier(t.Name()))
}
