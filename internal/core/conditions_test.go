package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/quarry/internal/types"
)

// TestHashExp_Build tests condition maps with operators in keys
func TestHashExp_Build(t *testing.T) {
	tests := []struct {
		name     string
		hash     HashExp
		wantSQL  string
		wantArgs []any
	}{
		{"empty hash", HashExp{}, "", nil},
		{"single equality", HashExp{"status": 1}, `"status" = :c0`, []any{1}},
		{
			"sorted keys",
			HashExp{"name": "x", "age": []int{18, 19}},
			`"age" IN (:c0, :c1) AND "name" = :c2`,
			[]any{18, 19, "x"},
		},
		{"nil is null", HashExp{"deleted_at": nil}, `"deleted_at" IS NULL`, nil},
		{
			"operators in keys",
			HashExp{"id >": 10, "id <=": 20},
			`"id" <= :c0 AND "id" > :c1`,
			[]any{20, 10},
		},
		{"not in", HashExp{"id NOT IN": []int{1, 2}}, `"id" NOT IN (:c0, :c1)`, []any{1, 2}},
		{"lower case operator", HashExp{"name like": "a%"}, `"name" LIKE :c0`, []any{"a%"}},
		{"between", HashExp{"age BETWEEN": []int{1, 2}}, `"age" BETWEEN :c0 AND :c1`, []any{1, 2}},
		{"is not", HashExp{"deleted_at IS NOT": nil}, `"deleted_at" IS NOT NULL`, nil},
		{
			"nested or",
			HashExp{"status": 1, "OR": HashExp{"a": 1, "b >": 2}},
			`("a" = :c0 OR "b" > :c1) AND "status" = :c2`,
			[]any{1, 2, 1},
		},
		{"nested not", HashExp{"NOT": HashExp{"a": 1}}, `NOT ("a" = :c0)`, []any{1}},
		{
			"nested plain map",
			HashExp{"or": map[string]any{"a": 1, "b": 2}},
			`"a" = :c0 OR "b" = :c1`,
			[]any{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := build(pg(), tt.hash)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

// TestHashExp_InvalidKeys tests that malformed keys panic with a usage error
func TestHashExp_InvalidKeys(t *testing.T) {
	cases := []HashExp{
		{"id ~~": 1},
		{"IN": []int{1}},
		{"   ": 1},
		{"age BETWEEN": 5},
		{"OR": 42},
	}
	for _, hash := range cases {
		requireUsagePanic(t, ErrInvalidCondition, func() {
			build(pg(), hash)
		})
	}
}

// TestConjunction_Parentheses tests when nested conditions are parenthesised
func TestConjunction_Parentheses(t *testing.T) {
	tests := []struct {
		name    string
		exp     Expression
		wantSQL string
	}{
		{
			"or inside and",
			And(Eq("a", 1), Or(Eq("b", 2), Eq("c", 3))),
			`"a" = :c0 AND ("b" = :c1 OR "c" = :c2)`,
		},
		{
			"and inside or",
			Or(And(Eq("a", 1), Eq("b", 2)), Eq("c", 3)),
			`("a" = :c0 AND "b" = :c1) OR "c" = :c2`,
		},
		{
			"same operator flattens",
			And(Eq("a", 1), And(Eq("b", 2), Eq("c", 3))),
			`"a" = :c0 AND "b" = :c1 AND "c" = :c2`,
		},
		{
			"single child keeps no parens",
			And(Or(Eq("a", 1), Eq("b", 2))),
			`"a" = :c0 OR "b" = :c1`,
		},
		{
			"raw fragment with siblings",
			And(NewExp("x = 1 OR y = 2"), Eq("a", 1)),
			`(x = 1 OR y = 2) AND "a" = :c0`,
		},
		{
			"raw fragment alone",
			And(NewExp("x = 1")),
			"x = 1",
		},
		{
			"nil children skipped",
			And(nil, Eq("a", 1), nil),
			`"a" = :c0`,
		},
		{
			"hash inside or",
			Or(HashExp{"a": 1, "b": 2}, Eq("c", 3)),
			`("a" = :c0 AND "b" = :c1) OR "c" = :c2`,
		},
		{
			"empty child skipped",
			Or(And(), Eq("c", 3)),
			`"c" = :c0`,
		},
		{
			"lower case operator",
			&Conjunction{Op: "or", Exps: []Expression{Eq("a", 1), Eq("b", 2)}},
			`"a" = :c0 OR "b" = :c1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _ := build(pg(), tt.exp)
			assert.Equal(t, tt.wantSQL, sql)
		})
	}
}

// TestConjunction_Builder tests the fluent condition builder used by callbacks
func TestConjunction_Builder(t *testing.T) {
	t.Run("or with map", func(t *testing.T) {
		e := NewConjunction(nil).Eq("published", true).Or(HashExp{"author_id": 1, "id >": 10})
		sql, args := build(pg(), e)
		assert.Equal(t, `"published" = :c0 OR ("author_id" = :c1 AND "id" > :c2)`, sql)
		assert.Equal(t, []any{true, 1, 10}, args)
	})

	t.Run("empty receiver is dropped", func(t *testing.T) {
		e := NewConjunction(nil).And(HashExp{"a": 1})
		assert.Equal(t, 1, e.Count())
		sql, _ := build(pg(), e)
		assert.Equal(t, `"a" = :c0`, sql)
	})

	t.Run("comparison helpers", func(t *testing.T) {
		e := NewConjunction(nil).
			NotEq("a", 1).
			Gt("b", 2).
			Gte("c", 3).
			Lt("d", 4).
			Lte("e", 5).
			IsNull("f").
			IsNotNull("g").
			Between("h", 1, 9).
			Like("i", "x%").
			NotLike("j", "y%").
			In("k", []int{1}).
			NotIn("l", []int{2})
		sql, _ := build(pg(), e)
		assert.Equal(t, `"a" != :c0 AND "b" > :c1 AND "c" >= :c2 AND "d" < :c3 AND "e" <= :c4`+
			` AND "f" IS NULL AND "g" IS NOT NULL AND "h" BETWEEN :c5 AND :c6`+
			` AND "i" LIKE :c7 AND "j" NOT LIKE :c8 AND "k" IN (:c9) AND "l" NOT IN (:c10)`, sql)
	})

	t.Run("subqueries", func(t *testing.T) {
		authors := NewQuery(pg()).Select("id").From("authors").Where(HashExp{"active": true})
		e := NewConjunction(nil).In("author_id", authors).Exists(authors)
		sql, args := build(pg(), e)
		assert.Equal(t, `"author_id" IN (SELECT "id" FROM "authors" WHERE "active" = :c0)`+
			` AND EXISTS (SELECT "id" FROM "authors" WHERE "active" = :c1)`, sql)
		assert.Equal(t, []any{true, true}, args)
	})

	t.Run("not", func(t *testing.T) {
		sql, _ := build(pg(), NewConjunction(nil).Not(HashExp{"a": 1}))
		assert.Equal(t, `NOT ("a" = :c0)`, sql)
	})

	t.Run("declared types", func(t *testing.T) {
		b := NewValueBinder(nil)
		NewConjunction(map[string]string{"id": types.Integer}).Eq("id", "5").Build(pg(), b)
		require.Len(t, b.Bindings(), 1)
		assert.Equal(t, types.Integer, b.Bindings()[0].Type)
	})
}

// TestToExpression tests the accepted condition forms
func TestToExpression(t *testing.T) {
	assert.Nil(t, toExpression(nil, nil))
	assert.Nil(t, toExpression("  ", nil))
	assert.Nil(t, toExpression(HashExp{}, nil))
	assert.Nil(t, toExpression(map[string]any{}, nil))

	raw := toExpression("id = 1", nil)
	assert.IsType(t, &RawExp{}, raw)

	fromMap := toExpression(map[string]any{"id": 1}, nil)
	sql, _ := build(pg(), fromMap)
	assert.Equal(t, `"id" = :c0`, sql)

	var received map[string]string
	callback := func(e *Conjunction) Expression {
		received = e.Types
		return e.Eq("id", 1)
	}
	declared := map[string]string{"id": types.Integer}
	toExpression(callback, declared)
	assert.Equal(t, declared, received)

	typed := toExpression(Condition(func(e *Conjunction) Expression { return e.IsNull("x") }), nil)
	sql, _ = build(pg(), typed)
	assert.Equal(t, `"x" IS NULL`, sql)

	requireUsagePanic(t, ErrInvalidCondition, func() {
		toExpression(42, nil)
	})
}

// TestSplitConditionKey tests operator detection in condition keys
func TestSplitConditionKey(t *testing.T) {
	tests := []struct {
		key, field, op string
	}{
		{"id", "id", "="},
		{"id >", "id", ">"},
		{"id >=", "id", ">="},
		{"id <>", "id", "<>"},
		{"id not in", "id", "NOT IN"},
		{"id IN", "id", "IN"},
		{"name NOT LIKE", "name", "NOT LIKE"},
		{"a.id IS NOT", "a.id", "IS NOT"},
		{"age not between", "age", "NOT BETWEEN"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			field, op := splitConditionKey(tt.key)
			assert.Equal(t, tt.field, field)
			assert.Equal(t, tt.op, op)
		})
	}
}
