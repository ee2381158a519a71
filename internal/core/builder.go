package core

import (
	"context"
	"strings"

	"github.com/coregx/quarry/internal/dialects"
)

// QueryType is the statement kind a Query renders.
type QueryType int

// Statement kinds.
const (
	QuerySelect QueryType = iota
	QueryInsert
	QueryUpdate
	QueryDelete
)

func (t QueryType) String() string {
	switch t {
	case QueryInsert:
		return "insert"
	case QueryUpdate:
		return "update"
	case QueryDelete:
		return "delete"
	}
	return "select"
}

// Clause names one section of a statement.
type Clause string

// Clause names accepted by Reset.
const (
	ClauseSelect   Clause = "select"
	ClauseDistinct Clause = "distinct"
	ClauseModifier Clause = "modifier"
	ClauseFrom     Clause = "from"
	ClauseJoin     Clause = "join"
	ClauseWhere    Clause = "where"
	ClauseGroup    Clause = "group"
	ClauseHaving   Clause = "having"
	ClauseOrder    Clause = "order"
	ClauseLimit    Clause = "limit"
	ClauseOffset   Clause = "offset"
	ClauseUnion    Clause = "union"
	ClauseInsert   Clause = "insert"
	ClauseValues   Clause = "values"
	ClauseUpdate   Clause = "update"
	ClauseDelete   Clause = "delete"
	ClauseSet      Clause = "set"
	ClauseEpilog   Clause = "epilog"
)

// clauses lists, per statement kind, the clauses it renders in order.
// Switching kind clears every clause the new kind does not use.
var clauses = map[QueryType][]Clause{
	QuerySelect: {ClauseSelect, ClauseDistinct, ClauseModifier, ClauseFrom, ClauseJoin, ClauseWhere,
		ClauseGroup, ClauseHaving, ClauseOrder, ClauseLimit, ClauseOffset, ClauseUnion, ClauseEpilog},
	QueryUpdate: {ClauseUpdate, ClauseModifier, ClauseSet, ClauseWhere, ClauseEpilog},
	QueryDelete: {ClauseDelete, ClauseModifier, ClauseFrom, ClauseWhere, ClauseEpilog},
	QueryInsert: {ClauseInsert, ClauseModifier, ClauseValues, ClauseEpilog},
}

// DefaultPageSize is the limit Page uses when none is set.
const DefaultPageSize int64 = 25

// aliased is a select field or a table with an optional alias.
type aliased struct {
	alias string
	value any
}

// Join types.
const (
	JoinInner = "INNER"
	JoinLeft  = "LEFT"
	JoinRight = "RIGHT"
	JoinCross = "CROSS"
)

// JoinSpec fully describes a join.
type JoinSpec struct {
	// Table is a table name, an Expression or a *Query.
	Table any
	Alias string
	// Type is INNER, LEFT, RIGHT or CROSS; empty means INNER.
	Type string
	// On is any condition Where accepts.
	On any
	// Types declares field types for the On condition.
	Types map[string]string
}

type join struct {
	typ   string
	table aliased
	on    Expression
}

type orderTerm struct {
	value any
	dir   string
}

type unionTerm struct {
	query *Query
	all   bool
}

type setTerm struct {
	field string
	value any
	typ   string
	exp   Expression
}

// Query is a mutable, fluent SQL statement builder. Every clause method
// appends to its clause and returns the same Query; use Reset to replace a
// clause. A Query is not safe for concurrent mutation.
//
// Values embedded by Where, Set and Values are bound as named placeholders
// (:c0, :c1, ...) in order of appearance when the query renders.
//
// Example:
//
//	q := db.NewQuery().
//	    Select("id", "title").
//	    From("articles").
//	    Where(core.HashExp{"author_id": 1, "published": true}).
//	    OrderDesc("created").
//	    Limit(10)
type Query struct {
	db      *DB
	dialect dialects.Dialect
	ctx     context.Context
	typ     QueryType

	fields    []aliased
	distinct  []any
	distinctQ bool
	modifiers []string
	from      []aliased
	joins     []join
	where     *Conjunction
	group     []any
	having    *Conjunction
	order     []orderTerm
	limit     int64
	offset    int64
	unions    []unionTerm

	insertTable   string
	insertColumns []string
	rows          []map[string]any
	source        *Query
	updateTable   any
	sets          []setTerm
	epilog        any

	bindings []Binding
	types    map[string]string
	executed bool
}

// NewQuery returns an empty SELECT query rendering for d. Queries built this
// way can be rendered but not executed; use DB.NewQuery for that.
func NewQuery(d dialects.Dialect) *Query {
	return &Query{dialect: d, limit: -1, offset: -1}
}

// Type returns the statement kind.
func (q *Query) Type() QueryType {
	return q.typ
}

// Dialect returns the dialect the query renders for.
func (q *Query) Dialect() dialects.Dialect {
	return q.dialect
}

// WithContext sets the context used when the query executes.
func (q *Query) WithContext(ctx context.Context) *Query {
	q.ctx = ctx
	return q
}

// setType switches the statement kind, clearing clauses the new kind does not render.
func (q *Query) setType(t QueryType) {
	if q.typ == t {
		return
	}
	keep := make(map[Clause]bool, len(clauses[t]))
	for _, c := range clauses[t] {
		keep[c] = true
	}
	for _, c := range clauses[q.typ] {
		if !keep[c] {
			q.Reset(c)
		}
	}
	q.typ = t
}

// Reset clears the given clauses. A following clause call then replaces
// instead of appending.
//
//nolint:gocyclo // one case per clause
func (q *Query) Reset(names ...Clause) *Query {
	for _, name := range names {
		switch name {
		case ClauseSelect:
			q.fields = nil
		case ClauseDistinct:
			q.distinct, q.distinctQ = nil, false
		case ClauseModifier:
			q.modifiers = nil
		case ClauseFrom:
			q.from = nil
		case ClauseJoin:
			q.joins = nil
		case ClauseWhere:
			q.where = nil
		case ClauseGroup:
			q.group = nil
		case ClauseHaving:
			q.having = nil
		case ClauseOrder:
			q.order = nil
		case ClauseLimit:
			q.limit = -1
		case ClauseOffset:
			q.offset = -1
		case ClauseUnion:
			q.unions = nil
		case ClauseInsert:
			q.insertTable, q.insertColumns = "", nil
		case ClauseValues:
			q.rows, q.source = nil, nil
		case ClauseUpdate:
			q.updateTable = nil
		case ClauseSet:
			q.sets = nil
		case ClauseEpilog:
			q.epilog = nil
		}
	}
	return q
}

// appendAliased adds values to dst. A map[string]any adds its entries as
// alias => value pairs in key order.
func appendAliased(dst []aliased, values []any) []aliased {
	for _, v := range values {
		switch m := v.(type) {
		case map[string]any:
			for _, alias := range sortedKeys(m) {
				dst = append(dst, aliased{alias: alias, value: m[alias]})
			}
		case map[string]string:
			for _, alias := range sortedKeys(m) {
				dst = append(dst, aliased{alias: alias, value: m[alias]})
			}
		case []string:
			for _, s := range m {
				dst = append(dst, aliased{value: s})
			}
		case string:
			// "id, title" lists several names; expressions with calls stay whole.
			if strings.Contains(m, ",") && !strings.ContainsAny(m, "('") {
				for _, s := range strings.Split(m, ",") {
					if s = strings.TrimSpace(s); s != "" {
						dst = append(dst, aliased{value: s})
					}
				}
				continue
			}
			dst = append(dst, aliased{value: m})
		default:
			dst = append(dst, aliased{value: v})
		}
	}
	return dst
}

// Select adds fields to the SELECT list and makes the query a SELECT.
// A field is a column name, raw SQL, an Expression or a *Query; a
// map[string]any adds aliased fields.
//
//	q.Select("id", map[string]any{"total": core.Func().Count("*")})
func (q *Query) Select(fields ...any) *Query {
	q.setType(QuerySelect)
	q.fields = appendAliased(q.fields, fields)
	return q
}

// Distinct makes the SELECT distinct. With fields it renders DISTINCT ON
// (fields) where supported and GROUP BY fields elsewhere.
func (q *Query) Distinct(fields ...any) *Query {
	q.distinctQ = true
	q.distinct = append(q.distinct, fields...)
	return q
}

// Modifier adds keywords placed right after the statement keyword,
// e.g. SQL_NO_CACHE or HIGH_PRIORITY.
func (q *Query) Modifier(modifiers ...string) *Query {
	q.modifiers = append(q.modifiers, modifiers...)
	return q
}

// From adds tables. A map[string]any adds alias => table pairs; tables may be subqueries.
func (q *Query) From(tables ...any) *Query {
	q.from = appendAliased(q.from, tables)
	return q
}

// Join adds an INNER join. table is a table name, a single entry alias =>
// table map or a JoinSpec. Without conditions the join matches every row.
func (q *Query) Join(table any, on ...any) *Query {
	return q.addJoin(JoinInner, table, on)
}

// InnerJoin adds an INNER join.
func (q *Query) InnerJoin(table any, on ...any) *Query {
	return q.addJoin(JoinInner, table, on)
}

// LeftJoin adds a LEFT join.
func (q *Query) LeftJoin(table any, on ...any) *Query {
	return q.addJoin(JoinLeft, table, on)
}

// RightJoin adds a RIGHT join.
func (q *Query) RightJoin(table any, on ...any) *Query {
	return q.addJoin(JoinRight, table, on)
}

// CrossJoin adds a CROSS join.
func (q *Query) CrossJoin(table any) *Query {
	return q.addJoin(JoinCross, table, nil)
}

func (q *Query) addJoin(typ string, table any, on []any) *Query {
	var types map[string]string
	if spec, ok := table.(JoinSpec); ok {
		if spec.Type != "" {
			typ = strings.ToUpper(spec.Type)
		}
		if spec.On != nil {
			on = append([]any{spec.On}, on...)
		}
		types = spec.Types
		table = aliased{alias: spec.Alias, value: spec.Table}
	}

	j := join{typ: typ}
	if a, ok := table.(aliased); ok {
		j.table = a
	} else {
		targets := appendAliased(nil, []any{table})
		if len(targets) != 1 {
			panicf(ErrInvalidCondition, "join needs exactly one table, got %d", len(targets))
		}
		j.table = targets[0]
	}

	cond := &Conjunction{Op: "AND", Types: types}
	cond.Add(on...)
	if len(cond.Exps) > 0 {
		j.on = cond
	}
	q.joins = append(q.joins, j)
	return q
}

// mergeCondition combines a new condition into a query-owned conjunction.
func mergeCondition(current *Conjunction, op string, e Expression) *Conjunction {
	if e == nil {
		return current
	}
	if current == nil || len(current.Exps) == 0 {
		return &Conjunction{Op: "AND", Exps: []Expression{e}}
	}
	if current.Op == op {
		current.Exps = append(current.Exps, e)
		return current
	}
	return &Conjunction{Op: op, Exps: []Expression{current, e}}
}

// condition converts a Where-style argument, wrapping it with the given type map.
func (q *Query) condition(cond any, types []map[string]string) Expression {
	var scope map[string]string
	if len(types) > 0 {
		scope = types[0]
	}
	e := toExpression(cond, scope)
	if e == nil || scope == nil {
		return e
	}
	return &Conjunction{Op: "AND", Exps: []Expression{e}, Types: scope}
}

// Where adds a condition joined with AND. cond is a HashExp or
// map[string]any, an Expression, raw SQL, or a func(*Conjunction) Expression
// callback. types declares field types for this condition only.
func (q *Query) Where(cond any, types ...map[string]string) *Query {
	q.where = mergeCondition(q.where, "AND", q.condition(cond, types))
	return q
}

// AndWhere is Where.
func (q *Query) AndWhere(cond any, types ...map[string]string) *Query {
	return q.Where(cond, types...)
}

// OrWhere combines the existing conditions and cond with OR. Without prior
// conditions it is Where.
func (q *Query) OrWhere(cond any, types ...map[string]string) *Query {
	q.where = mergeCondition(q.where, "OR", q.condition(cond, types))
	return q
}

// Group adds GROUP BY fields.
func (q *Query) Group(fields ...any) *Query {
	q.group = append(q.group, fields...)
	return q
}

// Having adds a HAVING condition joined with AND.
func (q *Query) Having(cond any, types ...map[string]string) *Query {
	q.having = mergeCondition(q.having, "AND", q.condition(cond, types))
	return q
}

// AndHaving is Having.
func (q *Query) AndHaving(cond any, types ...map[string]string) *Query {
	return q.Having(cond, types...)
}

// OrHaving combines the existing HAVING conditions and cond with OR.
func (q *Query) OrHaving(cond any, types ...map[string]string) *Query {
	q.having = mergeCondition(q.having, "OR", q.condition(cond, types))
	return q
}

// Order adds ORDER BY terms. A string may end in ASC or DESC
// ("created DESC"); Expressions are rendered as given.
func (q *Query) Order(fields ...any) *Query {
	for _, f := range fields {
		if s, ok := f.(string); ok {
			parts := strings.Fields(s)
			if n := len(parts); n > 1 {
				if dir := strings.ToUpper(parts[n-1]); dir == "ASC" || dir == "DESC" {
					q.order = append(q.order, orderTerm{value: strings.Join(parts[:n-1], " "), dir: dir})
					continue
				}
			}
		}
		q.order = append(q.order, orderTerm{value: f})
	}
	return q
}

// OrderAsc adds field ASC.
func (q *Query) OrderAsc(field any) *Query {
	q.order = append(q.order, orderTerm{value: field, dir: "ASC"})
	return q
}

// OrderDesc adds field DESC.
func (q *Query) OrderDesc(field any) *Query {
	q.order = append(q.order, orderTerm{value: field, dir: "DESC"})
	return q
}

// Limit sets the maximum number of rows. A negative value removes the limit.
func (q *Query) Limit(limit int64) *Query {
	q.limit = limit
	return q
}

// Offset sets the number of rows skipped. A negative value removes the offset.
func (q *Query) Offset(offset int64) *Query {
	q.offset = offset
	return q
}

// Page sets the offset for the 1-based page n. The page size is limit when
// given, otherwise the current limit or DefaultPageSize. n below 1 is page 1.
func (q *Query) Page(n int64, limit ...int64) *Query {
	if n < 1 {
		n = 1
	}
	switch {
	case len(limit) > 0 && limit[0] > 0:
		q.limit = limit[0]
	case q.limit <= 0:
		q.limit = DefaultPageSize
	}
	q.offset = (n - 1) * q.limit
	return q
}

// Union appends a UNION member. Column counts are checked when rendering.
func (q *Query) Union(other *Query) *Query {
	q.unions = append(q.unions, unionTerm{query: other})
	return q
}

// UnionAll appends a UNION ALL member.
func (q *Query) UnionAll(other *Query) *Query {
	q.unions = append(q.unions, unionTerm{query: other, all: true})
	return q
}

// Insert makes the query an INSERT of the given columns. It panics with
// ErrNoInsertColumns when no column is given.
func (q *Query) Insert(columns ...string) *Query {
	if len(columns) == 0 {
		panicf(ErrNoInsertColumns, "insert()")
	}
	q.setType(QueryInsert)
	q.insertColumns = append(q.insertColumns, columns...)
	return q
}

// Into sets the INSERT target table.
func (q *Query) Into(table string) *Query {
	q.insertTable = table
	return q
}

// Values adds rows to an INSERT. A row is a map[string]any keyed by column
// (missing columns bind NULL) or a *Query supplying the rows. It panics
// with ErrValuesBeforeInsert before Insert and with ErrMixedValuesSource
// when rows and a query source are combined.
func (q *Query) Values(rows ...any) *Query {
	if q.typ != QueryInsert || len(q.insertColumns) == 0 {
		panicf(ErrValuesBeforeInsert, "query type is %s", q.typ)
	}
	for _, row := range rows {
		switch r := row.(type) {
		case *Query:
			if q.source != nil || len(q.rows) > 0 {
				panicf(ErrMixedValuesSource, "insert already has a values source")
			}
			q.source = r
		case map[string]any:
			if q.source != nil {
				panicf(ErrMixedValuesSource, "insert already selects from a query")
			}
			q.rows = append(q.rows, r)
		case []map[string]any:
			for _, m := range r {
				q.Values(m)
			}
		default:
			panicf(ErrInvalidCondition, "unsupported values row %T", row)
		}
	}
	return q
}

// Update makes the query an UPDATE of table.
func (q *Query) Update(table any) *Query {
	q.setType(QueryUpdate)
	q.updateTable = table
	return q
}

// Set assigns value to field. value may be an Expression or *Query.
// It panics with ErrWrongQueryType unless the query is an UPDATE.
func (q *Query) Set(field string, value any, typ ...string) *Query {
	q.requireType(QueryUpdate, "set()")
	s := setTerm{field: field, value: value}
	if len(typ) > 0 {
		s.typ = typ[0]
	}
	q.sets = append(q.sets, s)
	return q
}

// SetValues assigns every entry of values, in key order.
func (q *Query) SetValues(values map[string]any, types ...map[string]string) *Query {
	q.requireType(QueryUpdate, "set()")
	for _, field := range sortedKeys(values) {
		s := setTerm{field: field, value: values[field]}
		if len(types) > 0 {
			s.typ = types[0][field]
		}
		q.sets = append(q.sets, s)
	}
	return q
}

// SetExpr adds a raw assignment such as core.NewExp("views = views + 1").
func (q *Query) SetExpr(e Expression) *Query {
	q.requireType(QueryUpdate, "set()")
	q.sets = append(q.sets, setTerm{exp: e})
	return q
}

func (q *Query) requireType(t QueryType, call string) {
	if q.typ != t {
		panicf(ErrWrongQueryType, "%s on a %s query", call, q.typ)
	}
}

// Delete makes the query a DELETE. The optional table is added to FROM.
func (q *Query) Delete(table ...string) *Query {
	q.setType(QueryDelete)
	for _, t := range table {
		q.From(t)
	}
	return q
}

// Epilog sets SQL appended to the statement, e.g. "FOR UPDATE" or
// "RETURNING id". It accepts a string or an Expression.
func (q *Query) Epilog(epilog any) *Query {
	q.epilog = epilog
	return q
}

// Bind registers a value for a :name placeholder used in raw SQL.
// Names of the form cN belong to generated placeholders and panic.
func (q *Query) Bind(name string, value any, typ ...string) *Query {
	b := Binding{Placeholder: ":" + strings.TrimPrefix(name, ":"), Value: value}
	if generatedPlaceholder.MatchString(b.Placeholder) {
		panicf(ErrReservedPlaceholder, "%s", b.Placeholder)
	}
	if len(typ) > 0 {
		b.Type = typ[0]
	}
	for i := range q.bindings {
		if q.bindings[i].Placeholder == b.Placeholder {
			q.bindings[i] = b
			return q
		}
	}
	q.bindings = append(q.bindings, b)
	return q
}

// DefaultTypes declares field types used for every value bound by this query.
func (q *Query) DefaultTypes(types map[string]string) *Query {
	if q.types == nil {
		q.types = make(map[string]string, len(types))
	}
	for k, v := range types {
		q.types[k] = v
	}
	return q
}

// Types returns a copy of the declared default types.
func (q *Query) Types() map[string]string {
	out := make(map[string]string, len(q.types))
	for k, v := range q.types {
		out[k] = v
	}
	return out
}

// Func returns the function call builder.
func (q *Query) Func() FunctionsBuilder {
	return Func()
}

// NewExpr returns an empty condition builder using the query default types.
// Raw SQL passed in is added as its first condition.
func (q *Query) NewExpr(raw ...string) *Conjunction {
	c := NewConjunction(q.types)
	for _, r := range raw {
		c.Add(r)
	}
	return c
}
