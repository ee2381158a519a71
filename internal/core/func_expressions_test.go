// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/quarry/internal/types"
)

// TestFuncExp_Aggregates tests aggregate builders and their return types
func TestFuncExp_Aggregates(t *testing.T) {
	tests := []struct {
		name       string
		exp        *FuncExp
		wantSQL    string
		returnType string
	}{
		{"count star", Func().Count("*"), "COUNT(*)", types.Integer},
		{"count column", Func().Count("id"), `COUNT("id")`, types.Integer},
		{"sum", Func().Sum("price"), `SUM("price")`, types.Float},
		{"avg", Func().Avg("price"), `AVG("price")`, types.Float},
		{"min", Func().Min("price"), `MIN("price")`, ""},
		{"max", Func().Max("o.price"), `MAX("o"."price")`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := build(pg(), tt.exp)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Empty(t, args)
			assert.Equal(t, tt.returnType, tt.exp.ReturnType)
		})
	}
}

// TestFuncExp_Translation tests per-dialect translation of portable functions
func TestFuncExp_Translation(t *testing.T) {
	tests := []struct {
		name string
		exp  *FuncExp
		want map[string]string
	}{
		{
			name: "concat",
			exp:  Func().Concat("first_name", "' '", "last_name"),
			want: map[string]string{
				"postgres":  `("first_name" || :c0 || "last_name")`,
				"sqlite":    `("first_name" || :c0 || "last_name")`,
				"mysql":     "CONCAT(`first_name`, :c0, `last_name`)",
				"sqlserver": "([first_name] + :c0 + [last_name])",
			},
		},
		{
			name: "now",
			exp:  Func().Now(),
			want: map[string]string{
				"postgres":  "NOW()",
				"sqlite":    "DATETIME('now')",
				"mysql":     "NOW()",
				"sqlserver": "GETDATE()",
			},
		},
		{
			name: "current date",
			exp:  Func().Now(types.Date),
			want: map[string]string{
				"postgres":  "CURRENT_DATE",
				"sqlite":    "DATE('now')",
				"mysql":     "CURRENT_DATE()",
				"sqlserver": "CONVERT(date, GETDATE())",
			},
		},
		{
			name: "current time",
			exp:  Func().Now(types.Time),
			want: map[string]string{
				"postgres":  "CURRENT_TIME",
				"sqlite":    "TIME('now')",
				"mysql":     "CURRENT_TIME()",
				"sqlserver": "CONVERT(time, GETDATE())",
			},
		},
		{
			name: "date diff",
			exp:  Func().DateDiff("end_at", "start_at"),
			want: map[string]string{
				"postgres":  `DATE_PART('day', "end_at" - "start_at")`,
				"sqlite":    `(JULIANDAY("end_at") - JULIANDAY("start_at"))`,
				"mysql":     "DATEDIFF(`end_at`, `start_at`)",
				"sqlserver": "DATEDIFF(day, [start_at], [end_at])",
			},
		},
		{
			name: "greatest",
			exp:  Func().Greatest("a", "b"),
			want: map[string]string{
				"postgres":  `GREATEST("a", "b")`,
				"sqlite":    `MAX("a", "b")`,
				"mysql":     "GREATEST(`a`, `b`)",
				"sqlserver": "GREATEST([a], [b])",
			},
		},
		{
			name: "least",
			exp:  Func().Least("a", "b"),
			want: map[string]string{
				"postgres": `LEAST("a", "b")`,
				"sqlite":   `MIN("a", "b")`,
			},
		},
	}

	ds := getDialects()
	for _, tt := range tests {
		for dialect, want := range tt.want {
			t.Run(tt.name+"/"+dialect, func(t *testing.T) {
				sql, _ := build(ds[dialect], tt.exp)
				assert.Equal(t, want, sql)
			})
		}
	}
}

// TestFuncExp_Operands tests how function arguments are rendered
func TestFuncExp_Operands(t *testing.T) {
	t.Run("quoted string is bound", func(t *testing.T) {
		sql, args := build(pg(), Func().Coalesce("nickname", "'it''s me'"))
		assert.Equal(t, `COALESCE("nickname", :c0)`, sql)
		assert.Equal(t, []any{"it's me"}, args)
	})

	t.Run("nil is NULL", func(t *testing.T) {
		sql, args := build(pg(), Func().Coalesce("a", nil))
		assert.Equal(t, `COALESCE("a", NULL)`, sql)
		assert.Empty(t, args)
	})

	t.Run("scalars are bound", func(t *testing.T) {
		sql, args := build(pg(), Func().Call("round", "price", 2))
		assert.Equal(t, `ROUND("price", :c0)`, sql)
		assert.Equal(t, []any{2}, args)
	})

	t.Run("literal type inlines", func(t *testing.T) {
		sql, args := build(pg(), Func().Call("ROUND", "price", 2).WithTypes("", types.Literal))
		assert.Equal(t, `ROUND("price", 2)`, sql)
		assert.Empty(t, args)
	})

	t.Run("typed string is bound", func(t *testing.T) {
		b := NewValueBinder(nil)
		sql := Func().NullIf("score", "0").WithTypes("", types.Integer).Build(pg(), b)
		assert.Equal(t, `NULLIF("score", :c0)`, sql)
		require.Len(t, b.Bindings(), 1)
		assert.Equal(t, types.Integer, b.Bindings()[0].Type)
	})

	t.Run("nested expressions", func(t *testing.T) {
		sub := NewQuery(pg()).Select(Func().Max("id")).From("t")
		sql, _ := build(pg(), Func().Coalesce(sub, Func().Count("*")))
		assert.Equal(t, `COALESCE((SELECT MAX("id") FROM "t"), COUNT(*))`, sql)
	})
}

// TestCaseExp_Build tests simple and searched CASE expressions
func TestCaseExp_Build(t *testing.T) {
	t.Run("simple case", func(t *testing.T) {
		exp := Case("status").When("'active'", 1).When("'inactive'", 0).Else(-1)
		sql, args := build(pg(), exp)
		assert.Equal(t, `CASE "status" WHEN :c0 THEN :c1 WHEN :c2 THEN :c3 ELSE :c4 END`, sql)
		assert.Equal(t, []any{"active", 1, "inactive", 0, -1}, args)
	})

	t.Run("searched case", func(t *testing.T) {
		exp := CaseWhen().
			When(HashExp{"published": true}, "'Published'").
			Else("'Draft'")
		sql, args := build(pg(), exp)
		assert.Equal(t, `CASE WHEN "published" = :c0 THEN :c1 ELSE :c2 END`, sql)
		assert.Equal(t, []any{true, "Published", "Draft"}, args)
	})

	t.Run("column results", func(t *testing.T) {
		exp := CaseWhen().When("score > 90", "bonus").Else("base")
		sql, args := build(pg(), exp)
		assert.Equal(t, `CASE WHEN score > 90 THEN "bonus" ELSE "base" END`, sql)
		assert.Empty(t, args)
	})

	t.Run("empty condition", func(t *testing.T) {
		sql, _ := build(pg(), CaseWhen().When(nil, NewExp("1")))
		assert.Equal(t, "CASE WHEN 1 = 1 THEN 1 END", sql)
	})

	t.Run("no branches", func(t *testing.T) {
		sql, _ := build(pg(), Case("status"))
		assert.Empty(t, sql)
	})

	t.Run("result type", func(t *testing.T) {
		b := NewValueBinder(nil)
		Case("level").When(1, "5").ResultType(types.Integer).Build(pg(), b)
		bindings := b.Bindings()
		require.Len(t, bindings, 2)
		assert.Equal(t, "level", bindings[0].Field)
		assert.Equal(t, types.Integer, bindings[1].Type)
	})
}

// TestFuncExp_Traverse tests traversal into function arguments
func TestFuncExp_Traverse(t *testing.T) {
	var visited []Expression
	Func().Coalesce(NewExp("x"), "y").Traverse(func(e Expression) {
		visited = append(visited, e)
	})
	require.Len(t, visited, 2)
	assert.IsType(t, &FuncExp{}, visited[0])
	assert.IsType(t, &RawExp{}, visited[1])

	visited = nil
	CaseWhen().When(HashExp{"a": 1}, NewExp("b")).Traverse(func(e Expression) {
		visited = append(visited, e)
	})
	assert.Len(t, visited, 4)
}
