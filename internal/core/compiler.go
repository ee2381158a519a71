package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coregx/quarry/internal/dialects"
)

// Statement is a rendered query: SQL with named placeholders and the values
// bound to them in order of appearance.
type Statement struct {
	SQL      string
	Bindings []Binding
}

// Params returns the bindings as a placeholder => value map.
func (s Statement) Params() map[string]any {
	out := make(map[string]any, len(s.Bindings))
	for _, b := range s.Bindings {
		out[b.Placeholder] = b.Value
	}
	return out
}

// Build renders the query into b so it can be embedded in another
// statement. Values are bound depth first, left to right.
func (q *Query) Build(d dialects.Dialect, b *ValueBinder) string {
	if d == nil {
		d = q.dialect
	}
	for _, binding := range q.bindings {
		b.Bind(binding.Placeholder, binding.Value, binding.Type)
	}

	var sql string
	b.withTypes(q.types, func() {
		switch q.typ {
		case QueryInsert:
			sql = q.buildInsert(d, b)
		case QueryUpdate:
			sql = q.buildUpdate(d, b)
		case QueryDelete:
			sql = q.buildDelete(d, b)
		default:
			sql = q.buildSelect(d, b)
		}
	})
	if sql == "" {
		return ""
	}
	return sql + q.buildEpilog(d, b)
}

// Traverse visits the query and every expression in its clauses, in clause order.
func (q *Query) Traverse(visit func(Expression)) {
	visit(q)
	for _, f := range q.fields {
		traverseValue(f.value, visit)
	}
	for _, f := range q.distinct {
		traverseValue(f, visit)
	}
	for _, t := range q.from {
		traverseValue(t.value, visit)
	}
	for _, j := range q.joins {
		traverseValue(j.table.value, visit)
		if j.on != nil {
			j.on.Traverse(visit)
		}
	}
	if q.where != nil {
		q.where.Traverse(visit)
	}
	for _, g := range q.group {
		traverseValue(g, visit)
	}
	if q.having != nil {
		q.having.Traverse(visit)
	}
	for _, o := range q.order {
		traverseValue(o.value, visit)
	}
	for _, u := range q.unions {
		u.query.Traverse(visit)
	}
	if q.source != nil {
		q.source.Traverse(visit)
	}
	for _, row := range q.rows {
		for _, col := range q.insertColumns {
			traverseValue(row[col], visit)
		}
	}
	for _, s := range q.sets {
		if s.exp != nil {
			s.exp.Traverse(visit)
		}
		traverseValue(s.value, visit)
	}
	traverseValue(q.epilog, visit)
}

// Compile renders the statement for the query dialect. Usage errors found
// while rendering, such as mismatched UNION column counts, are returned.
func (q *Query) Compile() (Statement, error) {
	sql, b, err := q.render()
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: sql, Bindings: b.Bindings()}, nil
}

// render builds the statement into a fresh binder, recovering usage errors.
func (q *Query) render() (out string, b *ValueBinder, err error) {
	defer func() {
		if r := recover(); r != nil {
			ue, ok := r.(*UsageError)
			if !ok {
				panic(r)
			}
			err = ue
		}
	}()
	b = NewValueBinder(nil)
	return q.Build(q.dialect, b), b, nil
}

// SQL renders the statement. It panics on usage errors; use Compile to get them as errors.
func (q *Query) SQL() string {
	return q.Build(q.dialect, NewValueBinder(nil))
}

// String implements fmt.Stringer.
func (q *Query) String() string {
	stmt, err := q.Compile()
	if err != nil {
		return "SQL could not be generated: " + err.Error()
	}
	return stmt.SQL
}

// Bindings renders the statement and returns its values in placeholder order.
func (q *Query) Bindings() []Binding {
	b := NewValueBinder(nil)
	q.Build(q.dialect, b)
	return b.Bindings()
}

// DebugInfo is a snapshot of a query for logging and diagnostics.
type DebugInfo struct {
	SQL          string
	Params       map[string]any
	DefaultTypes map[string]string
	Executed     bool
}

// Debug renders the query without failing. A rendering error replaces the SQL text.
func (q *Query) Debug() DebugInfo {
	info := DebugInfo{DefaultTypes: q.Types(), Executed: q.executed}
	stmt, err := q.Compile()
	if err != nil {
		info.SQL = "SQL could not be generated: " + err.Error()
		return info
	}
	info.SQL = stmt.SQL
	info.Params = stmt.Params()
	return info
}

// =============================================================================
// SELECT
// =============================================================================

func (q *Query) buildSelect(d dialects.Dialect, b *ValueBinder) string {
	if len(q.fields) == 0 && len(q.from) == 0 {
		return ""
	}
	q.checkUnions()

	features := d.Features()
	prefix, suffix := d.LimitSQL(q.limit, q.offset, len(q.order) > 0)

	var sql strings.Builder
	sql.WriteString("SELECT")
	if q.distinctQ {
		if len(q.distinct) > 0 && features.DistinctOn {
			sql.WriteString(" DISTINCT ON (" + q.buildList(d, b, q.distinct) + ")")
		} else {
			sql.WriteString(" DISTINCT")
		}
	}
	if prefix != "" {
		sql.WriteString(" " + prefix)
	}
	for _, m := range q.modifiers {
		sql.WriteString(" " + m)
	}

	if len(q.fields) == 0 {
		sql.WriteString(" *")
	} else {
		sql.WriteString(" " + q.buildAliased(d, b, q.fields))
	}

	if len(q.from) > 0 {
		sql.WriteString(" FROM " + q.buildTables(d, b, q.from))
	}
	sql.WriteString(q.buildJoins(d, b))
	sql.WriteString(q.buildCondition(d, b, " WHERE ", q.where))

	group := q.group
	if q.distinctQ && len(q.distinct) > 0 && !features.DistinctOn {
		group = append(append([]any{}, group...), q.distinct...)
	}
	if len(group) > 0 {
		sql.WriteString(" GROUP BY " + q.buildList(d, b, group))
	}
	sql.WriteString(q.buildCondition(d, b, " HAVING ", q.having))

	if len(q.order) > 0 {
		terms := make([]string, len(q.order))
		for i, o := range q.order {
			terms[i] = buildField(d, b, o.value)
			if o.dir != "" {
				terms[i] += " " + o.dir
			}
		}
		sql.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}
	sql.WriteString(suffix)

	for _, u := range q.unions {
		keyword := " UNION "
		if u.all {
			keyword = " UNION ALL "
		}
		member := u.query.Build(d, b)
		if features.UnionParens {
			member = "(" + member + ")"
		}
		sql.WriteString(keyword + member)
	}
	return sql.String()
}

// checkUnions panics with ErrUnionColumnCount when a UNION member selects a
// different number of columns. Members selecting * are not checked.
func (q *Query) checkUnions() {
	if len(q.unions) == 0 {
		return
	}
	want, ok := q.columnCount()
	if !ok {
		return
	}
	for i, u := range q.unions {
		got, ok := u.query.columnCount()
		if ok && got != want {
			panicf(ErrUnionColumnCount, "member %d selects %d columns, expected %d", i+1, got, want)
		}
	}
}

// columnCount returns the number of selected columns, or false when it
// cannot be known without the schema.
func (q *Query) columnCount() (int, bool) {
	if len(q.fields) == 0 {
		return 0, false
	}
	for _, f := range q.fields {
		if s, ok := f.value.(string); ok && f.alias == "" {
			s = strings.TrimSpace(s)
			if s == "*" || strings.HasSuffix(s, ".*") {
				return 0, false
			}
		}
	}
	return len(q.fields), true
}

// buildField renders a select, group or order term.
func buildField(d dialects.Dialect, b *ValueBinder, v any) string {
	switch f := v.(type) {
	case string:
		return quoteField(d, f)
	case *Query:
		return "(" + f.Build(d, b) + ")"
	case Expression:
		return f.Build(d, b)
	}
	return fmt.Sprint(v)
}

func (q *Query) buildList(d dialects.Dialect, b *ValueBinder, values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = buildField(d, b, v)
	}
	return strings.Join(parts, ", ")
}

func (q *Query) buildAliased(d dialects.Dialect, b *ValueBinder, fields []aliased) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = buildField(d, b, f.value)
		if f.alias != "" {
			parts[i] += " AS " + d.QuoteIdentifier(f.alias)
		}
	}
	return strings.Join(parts, ", ")
}

// buildTables renders FROM entries. Plain names are always quoted as tables.
func (q *Query) buildTables(d dialects.Dialect, b *ValueBinder, tables []aliased) string {
	parts := make([]string, len(tables))
	for i, t := range tables {
		parts[i] = buildTable(d, b, t)
	}
	return strings.Join(parts, ", ")
}

func buildTable(d dialects.Dialect, b *ValueBinder, t aliased) string {
	sql := buildField(d, b, t.value)
	if t.alias != "" {
		sql += " AS " + d.QuoteIdentifier(t.alias)
	}
	return sql
}

func (q *Query) buildJoins(d dialects.Dialect, b *ValueBinder) string {
	var sql strings.Builder
	for _, j := range q.joins {
		sql.WriteString(" " + j.typ + " JOIN " + buildTable(d, b, j.table))
		if j.typ == JoinCross {
			continue
		}
		on := ""
		if j.on != nil {
			on = j.on.Build(d, b)
		}
		if on == "" {
			on = "1 = 1"
		}
		sql.WriteString(" ON " + on)
	}
	return sql.String()
}

func (q *Query) buildCondition(d dialects.Dialect, b *ValueBinder, keyword string, c *Conjunction) string {
	if c == nil {
		return ""
	}
	sql := c.Build(d, b)
	if sql == "" {
		return ""
	}
	return keyword + sql
}

func (q *Query) buildEpilog(d dialects.Dialect, b *ValueBinder) string {
	switch e := q.epilog.(type) {
	case nil:
		return ""
	case string:
		if e == "" {
			return ""
		}
		return " " + e
	case Expression:
		if sql := e.Build(d, b); sql != "" {
			return " " + sql
		}
	}
	return ""
}

// =============================================================================
// INSERT / UPDATE / DELETE
// =============================================================================

func (q *Query) buildInsert(d dialects.Dialect, b *ValueBinder) string {
	if q.insertTable == "" || len(q.insertColumns) == 0 {
		return ""
	}

	var sql strings.Builder
	sql.WriteString("INSERT")
	for _, m := range q.modifiers {
		sql.WriteString(" " + m)
	}
	sql.WriteString(" INTO " + d.QuoteIdentifier(q.insertTable))

	cols := make([]string, len(q.insertColumns))
	for i, c := range q.insertColumns {
		cols[i] = d.QuoteIdentifier(c)
	}
	sql.WriteString(" (" + strings.Join(cols, ", ") + ")")

	if q.source != nil {
		sql.WriteString(" " + q.source.Build(d, b))
		return sql.String()
	}

	rows := make([]string, len(q.rows))
	for i, row := range q.rows {
		values := make([]string, len(q.insertColumns))
		for j, col := range q.insertColumns {
			values[j] = insertValue(d, b, col, row[col])
		}
		rows[i] = "(" + strings.Join(values, ", ") + ")"
	}
	if len(rows) > 0 {
		sql.WriteString(" VALUES " + strings.Join(rows, ", "))
	}
	return sql.String()
}

// insertValue renders one VALUES cell. Missing and nil values bind NULL.
func insertValue(d dialects.Dialect, b *ValueBinder, column string, v any) string {
	switch x := v.(type) {
	case *Query:
		return "(" + x.Build(d, b) + ")"
	case Expression:
		return x.Build(d, b)
	}
	return b.Value(column, v, "")
}

func (q *Query) buildUpdate(d dialects.Dialect, b *ValueBinder) string {
	if q.updateTable == nil || len(q.sets) == 0 {
		return ""
	}

	var sql strings.Builder
	sql.WriteString("UPDATE")
	for _, m := range q.modifiers {
		sql.WriteString(" " + m)
	}
	sql.WriteString(" " + buildField(d, b, q.updateTable))

	sets := make([]string, 0, len(q.sets))
	for _, s := range q.sets {
		if s.exp != nil {
			if e := s.exp.Build(d, b); e != "" {
				sets = append(sets, e)
			}
			continue
		}
		target := d.QuoteIdentifier(s.field)
		switch v := s.value.(type) {
		case *Query:
			sets = append(sets, target+" = ("+v.Build(d, b)+")")
		case Expression:
			sets = append(sets, target+" = "+v.Build(d, b))
		default:
			sets = append(sets, target+" = "+b.Value(s.field, v, s.typ))
		}
	}
	sql.WriteString(" SET " + strings.Join(sets, ", "))
	sql.WriteString(q.buildCondition(d, b, " WHERE ", q.where))
	return sql.String()
}

func (q *Query) buildDelete(d dialects.Dialect, b *ValueBinder) string {
	if len(q.from) == 0 {
		return ""
	}

	var sql strings.Builder
	sql.WriteString("DELETE")
	for _, m := range q.modifiers {
		sql.WriteString(" " + m)
	}
	sql.WriteString(" FROM " + q.buildTables(d, b, q.from))
	sql.WriteString(q.buildCondition(d, b, " WHERE ", q.where))
	return sql.String()
}

// IsUsageError reports whether err is a builder usage error.
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}
