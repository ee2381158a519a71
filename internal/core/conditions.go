package core

import (
	"regexp"
	"sort"
	"strings"

	"github.com/coregx/quarry/internal/dialects"
	"github.com/coregx/quarry/internal/types"
)

// Conjunction joins expressions with AND or OR. It doubles as the
// condition builder handed to Where, Having and Join callbacks:
//
//	q.Where(func(e *core.Conjunction) core.Expression {
//	    return e.Eq("published", true).Or(core.HashExp{"author_id": 1, "id >": 10})
//	})
type Conjunction struct {
	Op   string // "AND" or "OR"
	Exps []Expression
	// Types declares field types for every comparison below this node.
	Types map[string]string
}

// And returns an AND conjunction. Nil expressions are skipped when rendering.
func And(exps ...Expression) *Conjunction {
	return &Conjunction{Op: "AND", Exps: exps}
}

// Or returns an OR conjunction.
func Or(exps ...Expression) *Conjunction {
	return &Conjunction{Op: "OR", Exps: exps}
}

// NewConjunction returns an empty AND conjunction declaring types.
func NewConjunction(types map[string]string) *Conjunction {
	return &Conjunction{Op: "AND", Types: types}
}

// Add appends conditions. Each may be anything Where accepts.
func (c *Conjunction) Add(conditions ...any) *Conjunction {
	for _, cond := range conditions {
		if e := toExpression(cond, c.Types); e != nil {
			c.Exps = append(c.Exps, e)
		}
	}
	return c
}

// Eq adds field = value.
func (c *Conjunction) Eq(field string, value any, typ ...string) *Conjunction {
	return c.Add(Eq(field, value, typ...))
}

// NotEq adds field != value.
func (c *Conjunction) NotEq(field string, value any, typ ...string) *Conjunction {
	return c.Add(NotEq(field, value, typ...))
}

// Gt adds field > value.
func (c *Conjunction) Gt(field string, value any, typ ...string) *Conjunction {
	return c.Add(GreaterThan(field, value, typ...))
}

// Gte adds field >= value.
func (c *Conjunction) Gte(field string, value any, typ ...string) *Conjunction {
	return c.Add(GreaterOrEqual(field, value, typ...))
}

// Lt adds field < value.
func (c *Conjunction) Lt(field string, value any, typ ...string) *Conjunction {
	return c.Add(LessThan(field, value, typ...))
}

// Lte adds field <= value.
func (c *Conjunction) Lte(field string, value any, typ ...string) *Conjunction {
	return c.Add(LessOrEqual(field, value, typ...))
}

// In adds field IN (values). values is a slice or a *Query.
func (c *Conjunction) In(field string, values any, typ ...string) *Conjunction {
	return c.Add(Compare(field, opIn, listValue([]any{values}), typ...))
}

// NotIn adds field NOT IN (values).
func (c *Conjunction) NotIn(field string, values any, typ ...string) *Conjunction {
	return c.Add(Compare(field, opNotIn, listValue([]any{values}), typ...))
}

// Like adds field LIKE pattern. The pattern is bound unchanged.
func (c *Conjunction) Like(field, pattern string) *Conjunction {
	return c.Add(Compare(field, opLike, pattern, types.String))
}

// NotLike adds field NOT LIKE pattern.
func (c *Conjunction) NotLike(field, pattern string) *Conjunction {
	return c.Add(Compare(field, opNotLike, pattern, types.String))
}

// IsNull adds field IS NULL.
func (c *Conjunction) IsNull(field string) *Conjunction {
	return c.Add(IsNull(field))
}

// IsNotNull adds field IS NOT NULL.
func (c *Conjunction) IsNotNull(field string) *Conjunction {
	return c.Add(IsNotNull(field))
}

// Between adds field BETWEEN from AND to.
func (c *Conjunction) Between(field string, from, to any, typ ...string) *Conjunction {
	return c.Add(Between(field, from, to, typ...))
}

// Exists adds EXISTS (q).
func (c *Conjunction) Exists(q *Query) *Conjunction {
	return c.Add(Exists(q))
}

// NotExists adds NOT EXISTS (q).
func (c *Conjunction) NotExists(q *Query) *Conjunction {
	return c.Add(NotExists(q))
}

// And returns a new AND node holding c and the given conditions.
// An empty c is dropped.
func (c *Conjunction) And(conditions ...any) *Conjunction {
	return c.combine("AND", conditions)
}

// Or returns a new OR node holding c and the given conditions.
func (c *Conjunction) Or(conditions ...any) *Conjunction {
	return c.combine("OR", conditions)
}

// Not returns NOT (condition).
func (c *Conjunction) Not(condition any) *NotExp {
	return Not(toExpression(condition, c.Types))
}

func (c *Conjunction) combine(op string, conditions []any) *Conjunction {
	out := &Conjunction{Op: op, Types: c.Types}
	if len(c.Exps) > 0 {
		out.Exps = append(out.Exps, c)
	}
	return out.Add(conditions...)
}

// Count returns the number of direct children.
func (c *Conjunction) Count() int {
	return len(c.Exps)
}

// Build renders the children joined by the operator. A compound child
// joined by the other operator, or a raw fragment, is parenthesised when
// it has siblings.
func (c *Conjunction) Build(d dialects.Dialect, b *ValueBinder) string {
	op := c.op()
	var (
		parts []string
		wrap  []bool
	)
	b.withTypes(c.Types, func() {
		for _, exp := range c.Exps {
			if exp == nil {
				continue
			}
			if sql := exp.Build(d, b); sql != "" {
				parts = append(parts, sql)
				wrap = append(wrap, needsParens(op, exp))
			}
		}
	})

	if len(parts) > 1 {
		for i := range parts {
			if wrap[i] {
				parts[i] = "(" + parts[i] + ")"
			}
		}
	}
	return strings.Join(parts, " "+op+" ")
}

func (c *Conjunction) op() string {
	if c.Op == "" {
		return "AND"
	}
	return strings.ToUpper(c.Op)
}

// needsParens reports whether e must be parenthesised inside a conjunction
// joined by op.
func needsParens(op string, e Expression) bool {
	switch v := e.(type) {
	case *Conjunction:
		if len(v.Exps) == 1 {
			return needsParens(op, v.Exps[0])
		}
		return len(v.Exps) > 1 && v.op() != op
	case HashExp:
		return len(v) > 1 && op != "AND"
	case *RawExp:
		return true
	}
	return false
}

// Traverse visits the conjunction and all children.
func (c *Conjunction) Traverse(visit func(Expression)) {
	visit(c)
	for _, exp := range c.Exps {
		if exp != nil {
			exp.Traverse(visit)
		}
	}
}

// HashExp is a condition map. Keys are field names optionally followed by an
// operator ("id >", "name IS", "id NOT IN"); keys "OR", "AND" and "NOT" nest
// another condition map. Keys are rendered in sorted order and joined with AND.
//
//	core.HashExp{
//	    "status":     1,                  // "status" = :c0
//	    "age":        []int{18, 19, 20},  // "age" IN (:c1, :c2, :c3)
//	    "deleted_at": nil,                // "deleted_at" IS NULL
//	    "OR":         core.HashExp{"a": 1, "b >": 2},
//	}
type HashExp map[string]any

// Build renders the conditions.
func (e HashExp) Build(d dialects.Dialect, b *ValueBinder) string {
	return e.conjunction("AND").Build(d, b)
}

// Traverse visits the map and the comparisons it expands to.
func (e HashExp) Traverse(visit func(Expression)) {
	visit(e)
	for _, exp := range e.conjunction("AND").Exps {
		exp.Traverse(visit)
	}
}

// conjunction expands the map into comparisons. It panics with
// ErrInvalidCondition on unknown operators.
func (e HashExp) conjunction(op string) *Conjunction {
	c := &Conjunction{Op: op}
	for _, key := range sortedKeys(e) {
		c.Exps = append(c.Exps, hashCondition(key, e[key]))
	}
	return c
}

func hashCondition(key string, value any) Expression {
	switch nested := strings.ToUpper(strings.TrimSpace(key)); nested {
	case "AND", "OR":
		return nestedCondition(nested, value)
	case "NOT":
		return Not(nestedCondition("AND", value))
	}

	field, op := splitConditionKey(key)
	switch op {
	case opBetween, opNotBetween:
		items, ok := types.ToSlice(value)
		if !ok || len(items) != 2 {
			panicf(ErrInvalidCondition, "%q needs a two element value", key)
		}
		return &BetweenExp{Field: field, From: items[0], To: items[1], Not: op == opNotBetween}
	}
	return Compare(field, op, value)
}

func nestedCondition(op string, value any) Expression {
	switch v := value.(type) {
	case HashExp:
		return v.conjunction(op)
	case map[string]any:
		return HashExp(v).conjunction(op)
	case []any:
		c := &Conjunction{Op: op}
		return c.Add(v...)
	case Expression:
		return &Conjunction{Op: op, Exps: []Expression{v}}
	}
	panicf(ErrInvalidCondition, "%s expects a condition map, got %T", op, value)
	return nil
}

// operatorsBySuffix lists operators longest first so "NOT IN" wins over "IN".
var operatorsBySuffix = func() []string {
	ops := make([]string, 0, len(operators))
	for op := range operators {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		if len(ops[i]) != len(ops[j]) {
			return len(ops[i]) > len(ops[j])
		}
		return ops[i] < ops[j]
	})
	return ops
}()

// splitConditionKey separates "field op" into its parts. A key without a
// trailing operator is a plain field compared with =.
func splitConditionKey(key string) (field, op string) {
	parts := strings.Fields(key)
	if len(parts) == 0 {
		panicf(ErrInvalidCondition, "empty condition key")
	}
	for _, candidate := range operatorsBySuffix {
		n := len(strings.Fields(candidate))
		if len(parts) < n || strings.ToUpper(strings.Join(parts[len(parts)-n:], " ")) != candidate {
			continue
		}
		if len(parts) == n {
			panicf(ErrInvalidCondition, "condition key %q has no field", key)
		}
		return strings.Join(parts[:len(parts)-n], " "), candidate
	}
	if len(parts) > 1 && operatorLike.MatchString(parts[len(parts)-1]) {
		panicf(ErrInvalidCondition, "unknown operator in condition key %q", key)
	}
	return strings.TrimSpace(key), opEq
}

// operatorLike matches a trailing word that can only be meant as an operator.
var operatorLike = regexp.MustCompile(`^([A-Za-z]+|[=<>!~]+)$`)

// Condition is the callback form accepted by Where, Having and Join.
type Condition func(e *Conjunction) Expression

// toExpression converts a condition argument into an expression.
//
// Accepted forms: nil (ignored), an Expression, a HashExp or
// map[string]any condition map, a raw SQL string, or a callback receiving a
// fresh Conjunction. Anything else panics with ErrInvalidCondition.
func toExpression(cond any, types map[string]string) Expression {
	switch c := cond.(type) {
	case nil:
		return nil
	case HashExp:
		if len(c) == 0 {
			return nil
		}
		return c.conjunction("AND")
	case map[string]any:
		if len(c) == 0 {
			return nil
		}
		return HashExp(c).conjunction("AND")
	case Expression:
		return c
	case string:
		if strings.TrimSpace(c) == "" {
			return nil
		}
		return NewExp(c)
	case func(*Conjunction) Expression:
		return c(NewConjunction(types))
	case Condition:
		return c(NewConjunction(types))
	}
	panicf(ErrInvalidCondition, "unsupported condition type %T", cond)
	return nil
}
