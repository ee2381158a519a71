package dialects

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/coregx/quarry/internal/schema"
)

// mysqlNoLimit is the documented "all rows" LIMIT used when only OFFSET is set.
const mysqlNoLimit = "18446744073709551615"

// MySQLDialect implements the MySQL dialect.
type MySQLDialect struct {
	cfg Config
}

func init() {
	RegisterDialect("mysql", func(cfg Config) Dialect { return NewMySQL(cfg) })
}

// NewMySQL creates a MySQL dialect. cfg.Schema is the database name; when it
// is empty the connection's current database is used.
func NewMySQL(cfg Config) *MySQLDialect {
	return &MySQLDialect{cfg: cfg}
}

// Name returns "mysql".
func (d *MySQLDialect) Name() string { return "mysql" }

// QuoteIdentifier quotes a MySQL identifier using backticks.
func (d *MySQLDialect) QuoteIdentifier(s string) string {
	return quoteWith(s, "`", "`")
}

// Placeholder returns MySQL placeholder format (?).
func (d *MySQLDialect) Placeholder(_ int) string {
	return "?"
}

// LimitSQL renders LIMIT/OFFSET.
func (d *MySQLDialect) LimitSQL(limit, offset int64, _ bool) (string, string) {
	return "", limitOffset(limit, offset, mysqlNoLimit)
}

// Features reports MySQL query capabilities.
func (d *MySQLDialect) Features() Features {
	return Features{UnionParens: true}
}

// DefaultSchema returns the configured database name, possibly empty.
func (d *MySQLDialect) DefaultSchema() string {
	return d.cfg.Schema
}

func (d *MySQLDialect) qualified(table, schemaName string) string {
	s, name := splitTableName(table, schemaOr(schemaName, d.DefaultSchema()))
	if s == "" {
		return d.QuoteIdentifier(name)
	}
	return d.QuoteIdentifier(s) + "." + d.QuoteIdentifier(name)
}

// ListTablesSQL lists tables of a database.
func (d *MySQLDialect) ListTablesSQL(schemaName string) (string, []any) {
	s := schemaOr(schemaName, d.DefaultSchema())
	if s == "" {
		return `SELECT TABLE_NAME AS name FROM information_schema.TABLES
WHERE TABLE_SCHEMA = DATABASE()
ORDER BY TABLE_NAME`, nil
	}
	return `SELECT TABLE_NAME AS name FROM information_schema.TABLES
WHERE TABLE_SCHEMA = ?
ORDER BY TABLE_NAME`, []any{s}
}

// DescribeColumnSQL uses SHOW FULL COLUMNS to get raw type strings and comments.
func (d *MySQLDialect) DescribeColumnSQL(table, schemaName string) (string, []any) {
	return "SHOW FULL COLUMNS FROM " + d.qualified(table, schemaName), nil
}

// DescribeIndexSQL lists index columns ordered by index and position.
func (d *MySQLDialect) DescribeIndexSQL(table, schemaName string) (string, []any) {
	return "SHOW INDEXES FROM " + d.qualified(table, schemaName), nil
}

// DescribeForeignKeySQL reads foreign keys from information_schema.
func (d *MySQLDialect) DescribeForeignKeySQL(table, schemaName string) (string, []any) {
	s, name := splitTableName(table, schemaOr(schemaName, d.DefaultSchema()))
	schemaCond, args := "kcu.TABLE_SCHEMA = DATABASE()", []any{name, name}
	if s != "" {
		schemaCond, args = "kcu.TABLE_SCHEMA = ?", []any{s, name, name}
	}
	sql := `SELECT kcu.CONSTRAINT_NAME AS name,
	kcu.COLUMN_NAME AS column_name,
	kcu.REFERENCED_TABLE_NAME AS references_table,
	kcu.REFERENCED_COLUMN_NAME AS references_column,
	rc.UPDATE_RULE AS on_update,
	rc.DELETE_RULE AS on_delete
FROM information_schema.KEY_COLUMN_USAGE AS kcu
INNER JOIN information_schema.REFERENTIAL_CONSTRAINTS AS rc
	ON (kcu.CONSTRAINT_NAME = rc.CONSTRAINT_NAME AND kcu.CONSTRAINT_SCHEMA = rc.CONSTRAINT_SCHEMA)
WHERE ` + schemaCond + ` AND kcu.TABLE_NAME = ? AND rc.TABLE_NAME = ?
ORDER BY kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`
	return sql, args
}

var mysqlTypePattern = regexp.MustCompile(`^([a-z]+)(?:\(([0-9,\s]+)\))?\s*([a-z]+)?`)

var mysqlTypeRules = []typeRule{
	{exact("date", "time", "datetime", "timestamp"), sameName},
	{exact("boolean", "bool"), as("boolean")},
	{exact("bigint"), withLength("biginteger", 0)},
	{exact("int", "integer", "tinyint", "smallint", "mediumint"), withLength("integer", 0)},
	{exact("uuid"), as("uuid")},
	{exact("char"), fixedString},
	{contains("char"), withLength("string", 0)},
	{contains("text"), as("text")},
	{contains("blob", "binary"), as("binary")},
	{contains("float", "double", "real"), withPrecision("float")},
	{contains("decimal", "numeric"), withPrecision("decimal")},
}

func parseMySQLType(raw string) colSpec {
	m := mysqlTypePattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if m == nil {
		return colSpec{name: strings.ToLower(raw)}
	}
	length, precision := parseLength(m[2])
	spec := colSpec{name: m[1], length: length, precision: precision, unsigned: m[3] == "unsigned"}
	switch {
	case spec.name == "tinyint" && length == 1:
		spec.name = "boolean"
	case spec.name == "char" && length == 36:
		spec.name = "uuid"
	}
	return spec
}

// ConvertColumnDescription adds one SHOW FULL COLUMNS row to t.
func (d *MySQLDialect) ConvertColumnDescription(t *schema.Table, row Row) error {
	col := applyTypeRules(mysqlTypeRules, parseMySQLType(rowString(row, "type")))
	if col.Type == "uuid" || col.Type == "boolean" {
		col.Length = 0
	}

	col.Null = schema.NotNull
	if strings.EqualFold(rowString(row, "null"), "YES") {
		col.Null = schema.Nullable
	}
	if def, ok := rowNullString(row, "default"); ok {
		col.Default = mysqlDefault(unquoteDefault(def), col.Type)
	}
	col.Comment = rowString(row, "comment")
	if strings.Contains(strings.ToLower(rowString(row, "extra")), "auto_increment") {
		col.AutoIncrement = true
	}

	t.AddColumn(rowString(row, "field"), col)
	return nil
}

func mysqlDefault(def, typ string) any {
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

// ConvertIndexDescription folds one SHOW INDEXES row into t.
func (d *MySQLDialect) ConvertIndexDescription(t *schema.Table, row Row) error {
	name := rowString(row, "key_name")
	kind := schema.IndexIndex
	switch {
	case name == "PRIMARY":
		name, kind = schema.ConstraintPrimary, schema.ConstraintPrimary
	case strings.EqualFold(rowString(row, "index_type"), "FULLTEXT"):
		kind = schema.IndexFulltext
	case rowInt(row, "non_unique") == 0:
		kind = schema.ConstraintUnique
	}
	return addIndexOrConstraint(t, name, kind, rowString(row, "column_name"))
}

// ConvertForeignKeyDescription folds one foreign key row into t.
func (d *MySQLDialect) ConvertForeignKeyDescription(t *schema.Table, row Row) error {
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

var mysqlColumnTypes = map[string]string{
	"integer":    "INTEGER",
	"biginteger": "BIGINT",
	"boolean":    "BOOLEAN",
	"binary":     "LONGBLOB",
	"float":      "FLOAT",
	"decimal":    "DECIMAL",
	"text":       "TEXT",
	"date":       "DATE",
	"time":       "TIME",
	"datetime":   "DATETIME",
	"timestamp":  "TIMESTAMP",
	"uuid":       "CHAR(36)",
}

// ColumnSQL renders one column definition.
func (d *MySQLDialect) ColumnSQL(t *schema.Table, name string) string {
	col, ok := t.Column(name)
	if !ok {
		return ""
	}
	out := d.QuoteIdentifier(name)
	def := col.Default

	switch col.Type {
	case "string":
		keyword := "VARCHAR"
		if col.Fixed {
			keyword = "CHAR"
		}
		length := col.Length
		if length == 0 {
			length = 255
		}
		out += fmt.Sprintf(" %s(%d)", keyword, length)
	default:
		if keyword, ok := mysqlColumnTypes[col.Type]; ok {
			out += " " + keyword
		} else {
			out += " " + strings.ToUpper(col.Type)
		}
	}

	isInteger := col.Type == "integer" || col.Type == "biginteger"
	if isInteger && col.Length > 0 {
		out += fmt.Sprintf("(%d)", col.Length)
	}
	if (col.Type == "float" || col.Type == "decimal") && (col.Length > 0 || col.Precision > 0) {
		out += fmt.Sprintf("(%d,%d)", col.Length, col.Precision)
	}
	if col.Unsigned && (isInteger || col.Type == "float" || col.Type == "decimal") {
		out += " UNSIGNED"
	}
	if col.Null == schema.NotNull {
		out += " NOT NULL"
	}

	autoIncrement := isInteger && (t.IsSolePrimaryKey(name) || col.AutoIncrement)
	if autoIncrement {
		out += " AUTO_INCREMENT"
		def = nil
	}
	if col.Null == schema.Nullable && !autoIncrement {
		if col.Type == "timestamp" {
			out += " NULL"
		} else {
			out += " DEFAULT NULL"
		}
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
	if col.Comment != "" {
		out += " COMMENT " + quoteValue(col.Comment)
	}
	return out
}

// ConstraintSQL renders PRIMARY KEY, UNIQUE KEY or a foreign key clause.
func (d *MySQLDialect) ConstraintSQL(t *schema.Table, name string) string {
	c, ok := t.Constraint(name)
	if !ok {
		return ""
	}
	switch c.Type {
	case schema.ConstraintPrimary:
		return keySQL(d.QuoteIdentifier, "PRIMARY KEY", c, foreignOnClause)
	case schema.ConstraintUnique:
		return keySQL(d.QuoteIdentifier, "UNIQUE KEY "+d.QuoteIdentifier(name), c, foreignOnClause)
	}
	return keySQL(d.QuoteIdentifier, "CONSTRAINT "+d.QuoteIdentifier(name), c, foreignOnClause)
}

// IndexSQL renders an index line embedded in CREATE TABLE.
func (d *MySQLDialect) IndexSQL(t *schema.Table, name string) string {
	idx, ok := t.Index(name)
	if !ok {
		return ""
	}
	prefix := "KEY "
	if idx.Type == schema.IndexFulltext {
		prefix = "FULLTEXT KEY "
	}
	return prefix + d.QuoteIdentifier(name) + " (" + quoteColumns(d.QuoteIdentifier, idx.Columns) + ")"
}

// CreateTableSQL renders a single CREATE TABLE including indexes and table options.
func (d *MySQLDialect) CreateTableSQL(t *schema.Table) []string {
	lines := append(columnLines(d, t), constraintLines(d, t)...)
	for _, name := range t.Indexes() {
		lines = append(lines, d.IndexSQL(t, name))
	}
	out := createTableStatement(d.QuoteIdentifier(t.Name()), t.Temporary(), lines)
	if engine := t.Option("engine"); engine != "" {
		out += " ENGINE=" + engine
	}
	if charset := t.Option("charset"); charset != "" {
		out += " DEFAULT CHARSET=" + charset
	}
	if collation := t.Option("collation"); collation != "" {
		out += " COLLATE=" + collation
	}
	return []string{out}
}

// DropTableSQL renders DROP TABLE.
func (d *MySQLDialect) DropTableSQL(t *schema.Table) []string {
	return []string{"DROP TABLE " + d.QuoteIdentifier(t.Name())}
}

// TruncateTableSQL renders TRUNCATE TABLE.
func (d *MySQLDialect) TruncateTableSQL(t *schema.Table) []string {
	return []string{"TRUNCATE TABLE " + d.QuoteIdentifier(t.Name())}
}
