// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

import (
	"regexp"
	"sort"
	"strings"

	"github.com/coregx/quarry/internal/dialects"
	"github.com/coregx/quarry/internal/types"
)

// Expression is a node of a SQL expression tree.
//
// Build renders the node for a dialect, registering every value it embeds on
// the binder and returning the SQL fragment with named placeholders.
// Traverse calls visit for the node itself and then for each descendant,
// depth first.
//
// Example:
//
//	q.Where(core.And(
//	    core.Eq("status", 1),
//	    core.GreaterThan("age", 18),
//	))
type Expression interface {
	Build(d dialects.Dialect, b *ValueBinder) string
	Traverse(visit func(Expression))
}

// identifierPattern matches names that are quoted automatically:
// column, table.column and table.*.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_]\w*(\.([A-Za-z_]\w*|\*))*$`)

// quoteField quotes field when it is a plain identifier and returns any
// other SQL fragment (function calls, arithmetic, *) unchanged.
func quoteField(d dialects.Dialect, field string) string {
	field = strings.TrimSpace(field)
	if !identifierPattern.MatchString(field) {
		return field
	}
	return d.QuoteIdentifier(field)
}

// Identifier is a column or table name rendered with the dialect quoting.
type Identifier struct {
	Name string
}

// Ident returns an identifier node.
func Ident(name string) *Identifier {
	return &Identifier{Name: name}
}

// Build quotes the identifier.
func (e *Identifier) Build(d dialects.Dialect, _ *ValueBinder) string {
	if e.Name == "*" {
		return "*"
	}
	return d.QuoteIdentifier(e.Name)
}

// Traverse visits the identifier.
func (e *Identifier) Traverse(visit func(Expression)) { visit(e) }

// RawExp is a literal SQL fragment. It may reference named placeholders
// (:name) whose values are given in Params, and may quote identifiers with
// {{table}} and [[column]].
//
// Example:
//
//	core.NewExp("age > :age AND [[status]] = :status", core.Params{"age": 18, "status": "active"})
type RawExp struct {
	SQL    string
	Params Params
}

// NewExp returns a literal SQL fragment with optional named parameters.
func NewExp(sql string, params ...Params) *RawExp {
	e := &RawExp{SQL: sql}
	for _, p := range params {
		if e.Params == nil {
			e.Params = make(Params, len(p))
		}
		for k, v := range p {
			e.Params[k] = v
		}
	}
	return e
}

// Build binds the parameters under their names and returns the fragment
// with bracket quoting applied.
func (e *RawExp) Build(d dialects.Dialect, b *ValueBinder) string {
	for _, name := range sortedKeys(e.Params) {
		b.Bind(name, e.Params[name], "")
	}
	return quoteBrackets(d, e.SQL)
}

// Traverse visits the fragment.
func (e *RawExp) Traverse(visit func(Expression)) { visit(e) }

// comparison operators understood in condition keys and Compare.
const (
	opEq         = "="
	opNotEq      = "!="
	opNotEqAlt   = "<>"
	opIn         = "IN"
	opNotIn      = "NOT IN"
	opIs         = "IS"
	opIsNot      = "IS NOT"
	opLike       = "LIKE"
	opNotLike    = "NOT LIKE"
	opBetween    = "BETWEEN"
	opNotBetween = "NOT BETWEEN"
)

var operators = map[string]bool{
	opEq: true, opNotEq: true, opNotEqAlt: true,
	">": true, ">=": true, "<": true, "<=": true,
	opLike: true, opNotLike: true,
	opIn: true, opNotIn: true,
	opIs: true, opIsNot: true,
	opBetween: true, opNotBetween: true,
}

// normalizeOperator upper-cases op and collapses inner whitespace.
func normalizeOperator(op string) string {
	return strings.Join(strings.Fields(strings.ToUpper(op)), " ")
}

// CompareExp compares a field with a value.
//
// Field is a column name or an Expression. Value may be a scalar, a slice,
// an Expression or a *Query. A slice with = or IN renders IN (...), with !=
// or NOT IN renders NOT IN (...). Empty lists render 1 = 0 and 1 = 1.
// A nil value with = or IS renders IS NULL; IS with a scalar renders =.
type CompareExp struct {
	Field    any
	Operator string
	Value    any
	// Type overrides the type declared for Field by the enclosing type maps.
	Type string
}

// Compare returns a comparison using op, one of =, !=, <>, >, >=, <, <=,
// LIKE, NOT LIKE, IN, NOT IN, IS, IS NOT, BETWEEN and NOT BETWEEN.
// It panics with ErrInvalidCondition for any other operator.
func Compare(field any, op string, value any, typ ...string) *CompareExp {
	op = normalizeOperator(op)
	if op == "" {
		op = opEq
	}
	if !operators[op] {
		panicf(ErrInvalidCondition, "unknown operator %q", op)
	}
	e := &CompareExp{Field: field, Operator: op, Value: value}
	if len(typ) > 0 {
		e.Type = typ[0]
	}
	return e
}

// Eq generates field = value, or field IS NULL for a nil value.
func Eq(field string, value any, typ ...string) *CompareExp {
	return Compare(field, opEq, value, typ...)
}

// NotEq generates field != value, or field IS NOT NULL for a nil value.
func NotEq(field string, value any, typ ...string) *CompareExp {
	return Compare(field, opNotEq, value, typ...)
}

// GreaterThan generates field > value.
func GreaterThan(field string, value any, typ ...string) *CompareExp {
	return Compare(field, ">", value, typ...)
}

// LessThan generates field < value.
func LessThan(field string, value any, typ ...string) *CompareExp {
	return Compare(field, "<", value, typ...)
}

// GreaterOrEqual generates field >= value.
func GreaterOrEqual(field string, value any, typ ...string) *CompareExp {
	return Compare(field, ">=", value, typ...)
}

// LessOrEqual generates field <= value.
func LessOrEqual(field string, value any, typ ...string) *CompareExp {
	return Compare(field, "<=", value, typ...)
}

// IsNull generates field IS NULL.
func IsNull(field string) *CompareExp {
	return Compare(field, opIs, nil)
}

// IsNotNull generates field IS NOT NULL.
func IsNotNull(field string) *CompareExp {
	return Compare(field, opIsNot, nil)
}

// In generates field IN (...). A single slice argument is expanded and a
// single *Query argument renders a subquery.
func In(field string, values ...any) *CompareExp {
	return Compare(field, opIn, listValue(values))
}

// NotIn generates field NOT IN (...).
func NotIn(field string, values ...any) *CompareExp {
	return Compare(field, opNotIn, listValue(values))
}

func listValue(values []any) any {
	if len(values) == 1 {
		if _, ok := values[0].(Expression); ok {
			return values[0]
		}
		if items, ok := types.ToSlice(values[0]); ok {
			return items
		}
	}
	if values == nil {
		return []any{}
	}
	return values
}

// Build renders the comparison.
func (e *CompareExp) Build(d dialects.Dialect, b *ValueBinder) string {
	name, _ := e.Field.(string)
	field := buildOperand(d, b, e.Field)
	op := normalizeOperator(e.Operator)
	if op == "" {
		op = opEq
	}

	if e.Value == nil {
		switch op {
		case opEq, opIs:
			return field + " IS NULL"
		case opNotEq, opNotEqAlt, opIsNot:
			return field + " IS NOT NULL"
		}
	}

	switch op {
	case opIs:
		op = opEq
	case opIsNot:
		op = opNotEq
	}

	if sub, ok := e.Value.(Expression); ok {
		if op == opBetween || op == opNotBetween {
			panicf(ErrInvalidCondition, "%s needs two values", op)
		}
		return field + " " + op + " " + buildOperand(d, b, sub)
	}

	typ := b.TypeOf(name, e.Type)
	base, isArray := types.ArrayBase(typ)
	items, isSlice := types.ToSlice(e.Value)
	if isArray && !isSlice {
		items, isSlice = types.Wrap(e.Value), true
	}

	switch op {
	case opBetween, opNotBetween:
		if !isSlice || len(items) != 2 {
			panicf(ErrInvalidCondition, "%s needs two values", op)
		}
		return field + " " + op + " " + b.Value(name, items[0], base) + " AND " + b.Value(name, items[1], base)
	case opEq, opIn, opNotEq, opNotEqAlt, opNotIn:
		if !isSlice && (op == opIn || op == opNotIn) {
			items, isSlice = []any{e.Value}, true
		}
		if !isSlice {
			break
		}
		negate := op == opNotEq || op == opNotEqAlt || op == opNotIn
		if len(items) == 0 {
			if negate {
				return "1 = 1"
			}
			return "1 = 0"
		}
		in := opIn
		if negate {
			in = opNotIn
		}
		return field + " " + in + " (" + b.List(name, items, base) + ")"
	}

	return field + " " + op + " " + b.Value(name, e.Value, typ)
}

// Traverse visits the comparison and any expression operands.
func (e *CompareExp) Traverse(visit func(Expression)) {
	visit(e)
	if f, ok := e.Field.(Expression); ok {
		f.Traverse(visit)
	}
	if v, ok := e.Value.(Expression); ok {
		v.Traverse(visit)
	}
}

// buildOperand renders a field or value operand: strings are identifiers,
// subqueries are parenthesised.
func buildOperand(d dialects.Dialect, b *ValueBinder, operand any) string {
	switch v := operand.(type) {
	case string:
		return quoteField(d, v)
	case *Query:
		return "(" + v.Build(d, b) + ")"
	case Expression:
		return v.Build(d, b)
	}
	return b.Value("", operand, "")
}

// BetweenExp represents a BETWEEN or NOT BETWEEN expression.
type BetweenExp struct {
	Field    string
	From, To any
	Not      bool
	Type     string
}

// Between generates field BETWEEN from AND to.
func Between(field string, from, to any, typ ...string) *BetweenExp {
	e := &BetweenExp{Field: field, From: from, To: to}
	if len(typ) > 0 {
		e.Type = typ[0]
	}
	return e
}

// NotBetween generates field NOT BETWEEN from AND to.
func NotBetween(field string, from, to any, typ ...string) *BetweenExp {
	e := Between(field, from, to, typ...)
	e.Not = true
	return e
}

// Build renders the range check.
func (e *BetweenExp) Build(d dialects.Dialect, b *ValueBinder) string {
	op := opBetween
	if e.Not {
		op = opNotBetween
	}
	return quoteField(d, e.Field) + " " + op + " " +
		betweenBound(d, b, e.Field, e.From, e.Type) + " AND " + betweenBound(d, b, e.Field, e.To, e.Type)
}

func betweenBound(d dialects.Dialect, b *ValueBinder, field string, v any, typ string) string {
	if exp, ok := v.(Expression); ok {
		return buildOperand(d, b, exp)
	}
	return b.Value(field, v, typ)
}

// Traverse visits the expression.
func (e *BetweenExp) Traverse(visit func(Expression)) { visit(e) }

// LikeExp represents a LIKE or NOT LIKE expression with automatic escaping.
type LikeExp struct {
	Field       string
	Values      []string
	Like        string   // "LIKE" or "NOT LIKE"
	Or          bool     // true = OR, false = AND
	Left, Right bool     // Wildcard matching on left/right
	Escape      []string // Escape character pairs
}

// DefaultLikeEscape specifies the default special character escaping for LIKE expressions.
// The strings at 2i positions are the special characters to be escaped while those at 2i+1
// positions are the corresponding escaped versions.
var DefaultLikeEscape = []string{"\\", "\\\\", "%", "\\%", "_", "\\_"}

// Like generates a LIKE expression matching anywhere in the value.
//
//	core.Like("name", "john")        // "name" LIKE :c0 with %john%
//	core.Like("name", "key", "word") // two LIKE checks joined with AND
func Like(field string, values ...string) *LikeExp {
	return &LikeExp{
		Field:  field,
		Values: values,
		Like:   opLike,
		Left:   true,
		Right:  true,
		Escape: DefaultLikeEscape,
	}
}

// NotLike generates a NOT LIKE expression.
func NotLike(field string, values ...string) *LikeExp {
	exp := Like(field, values...)
	exp.Like = opNotLike
	return exp
}

// OrLike generates a LIKE expression matching any of the values.
func OrLike(field string, values ...string) *LikeExp {
	exp := Like(field, values...)
	exp.Or = true
	return exp
}

// Match sets wildcard matching on the left and/or right of the values.
// Match(false, true) produces prefix matching ("value%").
func (e *LikeExp) Match(left, right bool) *LikeExp {
	e.Left, e.Right = left, right
	return e
}

// EscapeChars sets custom escape characters for LIKE expressions.
// Must be an even number of strings: [special1, escaped1, special2, escaped2, ...].
func (e *LikeExp) EscapeChars(chars ...string) *LikeExp {
	if len(chars)%2 != 0 {
		panic("LikeExp.EscapeChars requires even number of strings")
	}
	e.Escape = chars
	return e
}

// Build renders one LIKE check per value.
func (e *LikeExp) Build(d dialects.Dialect, b *ValueBinder) string {
	if len(e.Values) == 0 {
		return ""
	}

	field := quoteField(d, e.Field)
	parts := make([]string, 0, len(e.Values))
	for _, val := range e.Values {
		for j := 0; j < len(e.Escape); j += 2 {
			val = strings.ReplaceAll(val, e.Escape[j], e.Escape[j+1])
		}
		if e.Left {
			val = "%" + val
		}
		if e.Right {
			val += "%"
		}
		parts = append(parts, field+" "+e.Like+" "+b.Value(e.Field, val, types.String))
	}

	join := " AND "
	if e.Or {
		join = " OR "
	}
	if len(parts) > 1 {
		return "(" + strings.Join(parts, join) + ")"
	}
	return parts[0]
}

// Traverse visits the expression.
func (e *LikeExp) Traverse(visit func(Expression)) { visit(e) }

// NotExp prefixes NOT to an expression.
type NotExp struct {
	Exp Expression
}

// Not generates NOT (exp).
func Not(exp Expression) *NotExp {
	return &NotExp{Exp: exp}
}

// Build renders the negation; an empty operand renders nothing.
func (e *NotExp) Build(d dialects.Dialect, b *ValueBinder) string {
	if e.Exp == nil {
		return ""
	}
	sql := e.Exp.Build(d, b)
	if sql == "" {
		return ""
	}
	return "NOT (" + sql + ")"
}

// Traverse visits the negation and its operand.
func (e *NotExp) Traverse(visit func(Expression)) {
	visit(e)
	if e.Exp != nil {
		e.Exp.Traverse(visit)
	}
}

// ExistsExp renders EXISTS (subquery).
type ExistsExp struct {
	Query *Query
	Not   bool
}

// Exists generates EXISTS (q).
func Exists(q *Query) *ExistsExp {
	return &ExistsExp{Query: q}
}

// NotExists generates NOT EXISTS (q).
func NotExists(q *Query) *ExistsExp {
	return &ExistsExp{Query: q, Not: true}
}

// Build renders the subquery check.
func (e *ExistsExp) Build(d dialects.Dialect, b *ValueBinder) string {
	prefix := "EXISTS ("
	if e.Not {
		prefix = "NOT EXISTS ("
	}
	return prefix + e.Query.Build(d, b) + ")"
}

// Traverse visits the expression and the subquery.
func (e *ExistsExp) Traverse(visit func(Expression)) {
	visit(e)
	e.Query.Traverse(visit)
}

// sortedKeys returns sorted map keys for deterministic SQL generation.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
