package dialects

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coregx/quarry/internal/schema"
)

// SQLServerDialect implements the Microsoft SQL Server dialect.
type SQLServerDialect struct {
	cfg Config
}

func init() {
	factory := func(cfg Config) Dialect { return NewSQLServer(cfg) }
	RegisterDialect("sqlserver", factory)
	RegisterDialect("mssql", factory)
}

// NewSQLServer creates a SQL Server dialect. RESTRICT is not supported by the
// product, so foreign key actions set to restrict are rendered as
// cfg.RestrictFallback (set-null when empty).
func NewSQLServer(cfg Config) *SQLServerDialect {
	if cfg.RestrictFallback == "" || cfg.RestrictFallback == schema.ActionRestrict {
		cfg.RestrictFallback = schema.ActionSetNull
	}
	return &SQLServerDialect{cfg: cfg}
}

// Name returns "sqlserver".
func (d *SQLServerDialect) Name() string { return "sqlserver" }

// QuoteIdentifier quotes an identifier using square brackets.
func (d *SQLServerDialect) QuoteIdentifier(s string) string {
	return quoteWith(s, "[", "]")
}

// Placeholder returns SQL Server placeholder format (@p1, @p2, ...).
func (d *SQLServerDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index)
}

// LimitSQL uses TOP for a bare limit and OFFSET ... FETCH otherwise.
// OFFSET requires ORDER BY, so an unordered query gets ORDER BY (SELECT NULL).
func (d *SQLServerDialect) LimitSQL(limit, offset int64, ordered bool) (string, string) {
	if offset < 0 {
		if limit < 0 {
			return "", ""
		}
		return "TOP " + strconv.FormatInt(limit, 10), ""
	}

	var b strings.Builder
	if !ordered {
		b.WriteString(" ORDER BY (SELECT NULL)")
	}
	b.WriteString(" OFFSET " + strconv.FormatInt(offset, 10) + " ROWS")
	if limit >= 0 {
		b.WriteString(" FETCH NEXT " + strconv.FormatInt(limit, 10) + " ROWS ONLY")
	}
	return "", b.String()
}

// Features reports SQL Server query capabilities.
func (d *SQLServerDialect) Features() Features {
	return Features{}
}

// DefaultSchema returns the configured schema or "dbo".
func (d *SQLServerDialect) DefaultSchema() string {
	return schemaOr(d.cfg.Schema, "dbo")
}

// ListTablesSQL lists base tables of a schema.
func (d *SQLServerDialect) ListTablesSQL(schemaName string) (string, []any) {
	return `SELECT TABLE_NAME AS [name]
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_SCHEMA = @p1
ORDER BY TABLE_NAME`, []any{schemaOr(schemaName, d.DefaultSchema())}
}

// DescribeColumnSQL reads columns from INFORMATION_SCHEMA.COLUMNS.
func (d *SQLServerDialect) DescribeColumnSQL(table, schemaName string) (string, []any) {
	s, name := splitTableName(table, schemaOr(schemaName, d.DefaultSchema()))
	return `SELECT DISTINCT TABLE_SCHEMA AS [schema], COLUMN_NAME AS [name], DATA_TYPE AS [type],
	IS_NULLABLE AS [null], COLUMN_DEFAULT AS [default],
	CHARACTER_MAXIMUM_LENGTH AS [char_length],
	NUMERIC_PRECISION AS [precision],
	NUMERIC_SCALE AS [scale],
	COLUMNPROPERTY(OBJECT_ID(TABLE_SCHEMA + '.' + TABLE_NAME), COLUMN_NAME, 'IsIdentity') AS [is_identity],
	ORDINAL_POSITION AS [ordinal_position]
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_NAME = @p1 AND TABLE_SCHEMA = @p2
ORDER BY ordinal_position`, []any{name, s}
}

// DescribeIndexSQL reads index columns from the sys catalog. Heaps are skipped.
func (d *SQLServerDialect) DescribeIndexSQL(table, schemaName string) (string, []any) {
	s, name := splitTableName(table, schemaOr(schemaName, d.DefaultSchema()))
	return `SELECT
	I.[name] AS [index_name],
	IC.[index_column_id] AS [index_order],
	AC.[name] AS [column_name],
	I.[is_unique], I.[is_primary_key],
	I.[is_unique_constraint]
FROM sys.[tables] AS T
INNER JOIN sys.[schemas] S ON S.[schema_id] = T.[schema_id]
INNER JOIN sys.[indexes] I ON T.[object_id] = I.[object_id]
INNER JOIN sys.[index_columns] IC ON I.[object_id] = IC.[object_id] AND I.[index_id] = IC.[index_id]
INNER JOIN sys.[all_columns] AC ON T.[object_id] = AC.[object_id] AND IC.[column_id] = AC.[column_id]
WHERE T.[is_ms_shipped] = 0 AND I.[type_desc] <> 'HEAP' AND T.[name] = @p1 AND S.[name] = @p2
ORDER BY I.[index_id], IC.[index_column_id]`, []any{name, s}
}

// DescribeForeignKeySQL reads foreign key columns from the sys catalog.
func (d *SQLServerDialect) DescribeForeignKeySQL(table, schemaName string) (string, []any) {
	s, name := splitTableName(table, schemaOr(schemaName, d.DefaultSchema()))
	return `SELECT FK.[name] AS [foreign_key_name], FK.[delete_referential_action_desc] AS [delete_type],
	FK.[update_referential_action_desc] AS [update_type], C.name AS [column], RT.name AS [reference_table],
	RC.name AS [reference_column]
FROM sys.foreign_keys FK
INNER JOIN sys.foreign_key_columns FKC ON FKC.constraint_object_id = FK.object_id
INNER JOIN sys.tables T ON T.object_id = FKC.parent_object_id
INNER JOIN sys.tables RT ON RT.object_id = FKC.referenced_object_id
INNER JOIN sys.schemas S ON S.schema_id = T.schema_id AND S.schema_id = RT.schema_id
INNER JOIN sys.columns C ON C.column_id = FKC.parent_column_id AND C.object_id = FKC.parent_object_id
INNER JOIN sys.columns RC ON RC.column_id = FKC.referenced_column_id AND RC.object_id = FKC.referenced_object_id
WHERE FK.is_ms_shipped = 0 AND T.name = @p1 AND S.name = @p2
ORDER BY FK.[name], FKC.constraint_column_id`, []any{name, s}
}

// numericLength converts to typ using the numeric precision as length.
func numericLength(typ string, def int) func(colSpec) schema.Column {
	return func(spec colSpec) schema.Column {
		length := spec.precision
		if length == 0 {
			length = def
		}
		return schema.Column{Type: typ, Length: length}
	}
}

var sqlserverTypeRules = []typeRule{
	{exact("date", "time"), sameName},
	{contains("datetime"), as("timestamp")},
	{exact("int", "integer"), numericLength("integer", 10)},
	{exact("bigint"), numericLength("biginteger", 20)},
	{exact("smallint"), numericLength("integer", 5)},
	{exact("tinyint"), numericLength("integer", 3)},
	{exact("bit"), as("boolean")},
	{contains("numeric", "money", "decimal"), func(spec colSpec) schema.Column {
		return schema.Column{Type: "decimal", Length: spec.precision, Precision: spec.scale}
	}},
	{exact("real", "float"), as("float")},
	{exact("varchar(max)"), as("text")},
	{contains("varchar"), withLength("string", 255)},
	{contains("char"), fixedString},
	{contains("text"), as("text")},
	{func(name string) bool { return name == "image" || strings.Contains(name, "binary") }, as("binary")},
	{exact("uniqueidentifier"), as("uuid")},
}

// ConvertColumnDescription adds one INFORMATION_SCHEMA.COLUMNS row to t.
func (d *SQLServerDialect) ConvertColumnDescription(t *schema.Table, row Row) error {
	spec := colSpec{
		name:      strings.ToLower(rowString(row, "type")),
		length:    rowInt(row, "char_length"),
		precision: rowInt(row, "precision"),
		scale:     rowInt(row, "scale"),
	}
	// (n)varchar(max) reports a length of -1.
	if strings.Contains(spec.name, "varchar") && spec.length < 0 {
		spec.name = "varchar(max)"
	}
	col := applyTypeRules(sqlserverTypeRules, spec)

	col.Null = schema.NotNull
	if strings.EqualFold(rowString(row, "null"), "YES") {
		col.Null = schema.Nullable
	}
	if def, ok := rowNullString(row, "default"); ok && def != "" {
		col.Default = sqlserverDefault(def, col.Type)
	}
	if rowBool(row, "is_identity") {
		col.AutoIncrement = true
	}

	t.AddColumn(rowString(row, "name"), col)
	return nil
}

// sqlserverDefault unwraps "((0))" and "('abc')" catalog defaults.
func sqlserverDefault(def, typ string) any {
	def = unquoteDefault(strings.Trim(def, "()"))
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

// ConvertIndexDescription folds one index column row into t.
func (d *SQLServerDialect) ConvertIndexDescription(t *schema.Table, row Row) error {
	name, kind := rowString(row, "index_name"), schema.IndexIndex
	switch {
	case rowBool(row, "is_primary_key"):
		name, kind = schema.ConstraintPrimary, schema.ConstraintPrimary
	case rowBool(row, "is_unique_constraint"):
		kind = schema.ConstraintUnique
	}
	return addIndexOrConstraint(t, name, kind, rowString(row, "column_name"))
}

// ConvertForeignKeyDescription folds one foreign key column row into t.
func (d *SQLServerDialect) ConvertForeignKeyDescription(t *schema.Table, row Row) error {
	return t.AddConstraint(rowString(row, "foreign_key_name"), schema.Constraint{
		Type:    schema.ConstraintForeign,
		Columns: []string{rowString(row, "column")},
		References: &schema.Reference{
			Table:   rowString(row, "reference_table"),
			Columns: []string{rowString(row, "reference_column")},
		},
		Update: convertOnClause(rowString(row, "update_type")),
		Delete: convertOnClause(rowString(row, "delete_type")),
	})
}

// onClause renders an action, replacing RESTRICT with the configured fallback.
func (d *SQLServerDialect) onClause(action schema.Action) string {
	if action == "" || action == schema.ActionRestrict {
		action = d.cfg.RestrictFallback
	}
	return foreignOnClause(action)
}

var sqlserverColumnTypes = map[string]string{
	"integer":    "INTEGER",
	"biginteger": "BIGINT",
	"boolean":    "BIT",
	"binary":     "VARBINARY(MAX)",
	"float":      "FLOAT",
	"decimal":    "DECIMAL",
	"text":       "NVARCHAR(MAX)",
	"date":       "DATE",
	"time":       "TIME",
	"datetime":   "DATETIME",
	"timestamp":  "DATETIME",
	"uuid":       "UNIQUEIDENTIFIER",
}

// ColumnSQL renders one column definition.
func (d *SQLServerDialect) ColumnSQL(t *schema.Table, name string) string {
	col, ok := t.Column(name)
	if !ok {
		return ""
	}
	out := d.QuoteIdentifier(name)
	if keyword, ok := sqlserverColumnTypes[col.Type]; ok {
		out += " " + keyword
	}

	null, def := col.Null, col.Default
	if col.Type == "integer" || col.Type == "biginteger" {
		if t.IsSolePrimaryKey(name) || col.AutoIncrement {
			out += " IDENTITY(1, 1)"
			null, def = schema.NullUnset, nil
		}
	}

	switch col.Type {
	case "string":
		keyword := "NVARCHAR"
		if col.Fixed {
			keyword = "NCHAR"
		}
		length := col.Length
		if length == 0 {
			length = 255
		}
		out += fmt.Sprintf(" %s(%d)", keyword, length)
	case "float":
		if col.Precision > 0 {
			out += fmt.Sprintf("(%d)", col.Precision)
		}
	case "decimal":
		if col.Length > 0 || col.Precision > 0 {
			out += fmt.Sprintf("(%d,%d)", col.Length, col.Precision)
		}
	}

	switch null {
	case schema.NotNull:
		out += " NOT NULL"
	case schema.Nullable:
		out += " DEFAULT NULL"
		def = nil
	}

	if def != nil && col.Type != "datetime" {
		if b, ok := def.(bool); ok {
			if b {
				def = 1
			} else {
				def = 0
			}
		}
		out += " DEFAULT " + quoteValue(def)
	}
	return out
}

// ConstraintSQL renders PRIMARY KEY, UNIQUE or a foreign key clause.
func (d *SQLServerDialect) ConstraintSQL(t *schema.Table, name string) string {
	return standardConstraintSQL(d.QuoteIdentifier, t, name, d.onClause)
}

// IndexSQL renders CREATE INDEX.
func (d *SQLServerDialect) IndexSQL(t *schema.Table, name string) string {
	idx, ok := t.Index(name)
	if !ok {
		return ""
	}
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
		d.QuoteIdentifier(name), d.tableName(t), quoteColumns(d.QuoteIdentifier, idx.Columns))
}

// tableName quotes the table name. Temporary tables are local temporary
// tables, named with a leading #.
func (d *SQLServerDialect) tableName(t *schema.Table) string {
	if t.Temporary() {
		return d.QuoteIdentifier("#" + t.Name())
	}
	return d.QuoteIdentifier(t.Name())
}

// CreateTableSQL renders CREATE TABLE followed by CREATE INDEX statements.
func (d *SQLServerDialect) CreateTableSQL(t *schema.Table) []string {
	lines := append(columnLines(d, t), constraintLines(d, t)...)
	out := []string{createTableStatement(d.tableName(t), false, lines)}
	for _, name := range t.Indexes() {
		out = append(out, d.IndexSQL(t, name))
	}
	return out
}

// DropTableSQL renders DROP TABLE.
func (d *SQLServerDialect) DropTableSQL(t *schema.Table) []string {
	return []string{"DROP TABLE " + d.tableName(t)}
}

// TruncateTableSQL renders TRUNCATE TABLE.
func (d *SQLServerDialect) TruncateTableSQL(t *schema.Table) []string {
	return []string{"TRUNCATE TABLE " + d.tableName(t)}
}
