package dialects

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coregx/quarry/internal/schema"
)

// quoteWith quotes every dot separated part of name. "*" parts are left alone.
func quoteWith(name, left, right string) string {
	if name == "*" || name == "" {
		return name
	}
	parts := strings.Split(name, ".")
	for i, part := range parts {
		if part == "*" {
			continue
		}
		parts[i] = left + strings.ReplaceAll(part, right, right+right) + right
	}
	return strings.Join(parts, ".")
}

// splitTableName splits "schema.table" and falls back to def for the schema.
func splitTableName(name, def string) (schemaName, table string) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return def, name
}

// schemaOr returns name, or def when name is empty.
func schemaOr(name, def string) string {
	if name == "" {
		return def
	}
	return name
}

func rowString(row Row, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// rowNullString distinguishes a NULL catalog value from an empty string.
func rowNullString(row Row, key string) (string, bool) {
	if row[key] == nil {
		return "", false
	}
	return rowString(row, key), true
}

func rowInt(row Row, key string) int {
	switch v := row[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case int32:
		return int(v)
	case float64:
		return int(v)
	case bool:
		if v {
			return 1
		}
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(rowString(row, key)))
	if err != nil {
		return 0
	}
	return n
}

func rowBool(row Row, key string) bool {
	if b, ok := row[key].(bool); ok {
		return b
	}
	switch strings.ToLower(strings.TrimSpace(rowString(row, key))) {
	case "1", "t", "true", "yes", "y":
		return true
	}
	return false
}

// parseLength splits "10,2" into length and precision.
func parseLength(spec string) (length, precision int) {
	if spec == "" {
		return 0, 0
	}
	parts := strings.SplitN(spec, ",", 2)
	length, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
	if len(parts) == 2 {
		precision, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return length, precision
}

// quoteValue renders a literal for use in DDL defaults and comments.
func quoteValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []byte:
		return quoteValue(string(val))
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(val), "'", "''") + "'"
	}
}

// unquoteDefault strips one layer of single quotes from a catalog default.
func unquoteDefault(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}

func quoteColumns(quote func(string) string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quote(c)
	}
	return strings.Join(quoted, ", ")
}

// foreignOnClause maps an abstract action to the standard keyword.
func foreignOnClause(action schema.Action) string {
	switch action {
	case schema.ActionCascade:
		return "CASCADE"
	case schema.ActionSetNull:
		return "SET NULL"
	case schema.ActionNoAction:
		return "NO ACTION"
	case schema.ActionSetDefault:
		return "SET DEFAULT"
	}
	return "RESTRICT"
}

// convertOnClause maps a catalog rule (CASCADE, NO ACTION, ...) back to an
// abstract action. Unknown rules become set-null.
func convertOnClause(rule string) schema.Action {
	rule = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(rule), "_", " "))
	switch rule {
	case "CASCADE":
		return schema.ActionCascade
	case "RESTRICT":
		return schema.ActionRestrict
	case "NO ACTION":
		return schema.ActionNoAction
	case "SET DEFAULT":
		return schema.ActionSetDefault
	}
	return schema.ActionSetNull
}

// keySQL renders the column list and, for foreign keys, the REFERENCES part.
func keySQL(quote func(string) string, prefix string, c schema.Constraint, onClause func(schema.Action) string) string {
	columns := quoteColumns(quote, c.Columns)
	if c.Type == schema.ConstraintForeign && c.References != nil {
		return fmt.Sprintf("%s FOREIGN KEY (%s) REFERENCES %s (%s) ON UPDATE %s ON DELETE %s",
			prefix,
			columns,
			quote(c.References.Table),
			quoteColumns(quote, c.References.Columns),
			onClause(c.Update),
			onClause(c.Delete),
		)
	}
	return prefix + " (" + columns + ")"
}

// standardConstraintSQL renders PRIMARY KEY / UNIQUE / FOREIGN KEY in the
// ANSI form shared by Postgres, SQLite and SQL Server.
func standardConstraintSQL(quote func(string) string, t *schema.Table, name string, onClause func(schema.Action) string) string {
	c, ok := t.Constraint(name)
	if !ok {
		return ""
	}
	prefix := "CONSTRAINT " + quote(name)
	switch c.Type {
	case schema.ConstraintPrimary:
		prefix = "PRIMARY KEY"
	case schema.ConstraintUnique:
		prefix += " UNIQUE"
	}
	return keySQL(quote, prefix, c, onClause)
}

func standardIndexSQL(quote func(string) string, t *schema.Table, name string) string {
	idx, ok := t.Index(name)
	if !ok {
		return ""
	}
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
		quote(name),
		quote(t.Name()),
		quoteColumns(quote, idx.Columns),
	)
}

// createTableStatement joins column and constraint lines into CREATE TABLE.
// Empty lines are dropped.
func createTableStatement(quotedName string, temporary bool, lines []string) string {
	content := make([]string, 0, len(lines))
	for _, line := range lines {
		if line != "" {
			content = append(content, line)
		}
	}
	keyword := "CREATE TABLE"
	if temporary {
		keyword = "CREATE TEMPORARY TABLE"
	}
	return fmt.Sprintf("%s %s (\n%s\n)", keyword, quotedName, strings.Join(content, ",\n"))
}

func columnLines(d SchemaDialect, t *schema.Table) []string {
	lines := make([]string, 0, len(t.Columns()))
	for _, name := range t.Columns() {
		lines = append(lines, d.ColumnSQL(t, name))
	}
	return lines
}

func constraintLines(d SchemaDialect, t *schema.Table) []string {
	lines := make([]string, 0, len(t.Constraints()))
	for _, name := range t.Constraints() {
		lines = append(lines, d.ConstraintSQL(t, name))
	}
	return lines
}

// addIndexOrConstraint folds one index catalog row into the table.
// kind is primary, unique or index; the column is appended to any existing entry.
func addIndexOrConstraint(t *schema.Table, name, kind, column string) error {
	switch kind {
	case schema.ConstraintPrimary, schema.ConstraintUnique:
		return t.AddConstraint(name, schema.Constraint{Type: kind, Columns: []string{column}})
	default:
		return t.AddIndex(name, schema.Index{Type: kind, Columns: []string{column}})
	}
}

// colSpec is a catalog type string split into its parts, e.g.
// "decimal(10,2) unsigned" => {name: "decimal", length: 10, precision: 2, unsigned: true}.
type colSpec struct {
	name      string
	length    int
	precision int
	scale     int
	unsigned  bool
}

// typeRule maps catalog type names to an abstract column. Rules are tried
// in order and the first match wins, so more specific names come first.
type typeRule struct {
	match   func(name string) bool
	convert func(spec colSpec) schema.Column
}

func exact(names ...string) func(string) bool {
	return func(name string) bool {
		for _, n := range names {
			if name == n {
				return true
			}
		}
		return false
	}
}

func contains(parts ...string) func(string) bool {
	return func(name string) bool {
		for _, p := range parts {
			if strings.Contains(name, p) {
				return true
			}
		}
		return false
	}
}

// as converts to a type with no length.
func as(typ string) func(colSpec) schema.Column {
	return func(colSpec) schema.Column {
		return schema.Column{Type: typ}
	}
}

// sameName converts to the abstract type spelled like the catalog type.
func sameName(spec colSpec) schema.Column {
	return schema.Column{Type: spec.name}
}

// withLength converts to typ using the catalog length, or def when there is none.
func withLength(typ string, def int) func(colSpec) schema.Column {
	return func(spec colSpec) schema.Column {
		length := spec.length
		if length == 0 {
			length = def
		}
		return schema.Column{Type: typ, Length: length, Unsigned: spec.unsigned}
	}
}

func fixedString(spec colSpec) schema.Column {
	return schema.Column{Type: "string", Fixed: true, Length: spec.length}
}

func withPrecision(typ string) func(colSpec) schema.Column {
	return func(spec colSpec) schema.Column {
		return schema.Column{Type: typ, Length: spec.length, Precision: spec.precision, Unsigned: spec.unsigned}
	}
}

func applyTypeRules(rules []typeRule, spec colSpec) schema.Column {
	for _, r := range rules {
		if r.match(spec.name) {
			return r.convert(spec)
		}
	}
	return schema.Column{Type: "text"}
}

// truthy interprets a default value for a boolean column.
func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case int:
		return val != 0
	case int64:
		return val != 0
	}
	switch strings.ToLower(strings.Trim(fmt.Sprint(v), "'")) {
	case "1", "t", "true", "yes", "y", "b'1'":
		return true
	}
	return false
}

// limitOffset renders " LIMIT n OFFSET m". When only an offset is set,
// noLimit is used as the limit for products that require one.
func limitOffset(limit, offset int64, noLimit string) string {
	var b strings.Builder
	switch {
	case limit >= 0:
		b.WriteString(" LIMIT " + strconv.FormatInt(limit, 10))
	case offset >= 0 && noLimit != "":
		b.WriteString(" LIMIT " + noLimit)
	}
	if offset >= 0 {
		b.WriteString(" OFFSET " + strconv.FormatInt(offset, 10))
	}
	return b.String()
}
