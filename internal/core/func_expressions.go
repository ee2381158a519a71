// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

import (
	"fmt"
	"strings"

	"github.com/coregx/quarry/internal/dialects"
	"github.com/coregx/quarry/internal/types"
)

// =============================================================================
// Operand rendering
// =============================================================================

// buildValue renders a CASE or function operand.
//
// An Expression is built in place (subqueries are parenthesised). A string
// wrapped in single quotes is a value and is bound without the quotes; any
// other string is a column reference. The literal type inlines the value as
// raw SQL, any other non-empty type binds it. Remaining values are bound.
func buildValue(d dialects.Dialect, b *ValueBinder, v any, typ string) string {
	if typ == types.Literal {
		return fmt.Sprint(v)
	}
	switch x := v.(type) {
	case nil:
		return "NULL"
	case *Query:
		return "(" + x.Build(d, b) + ")"
	case Expression:
		return x.Build(d, b)
	case string:
		if typ != "" {
			return b.Value("", x, typ)
		}
		if len(x) >= 2 && x[0] == '\'' && x[len(x)-1] == '\'' {
			return b.Value("", strings.ReplaceAll(x[1:len(x)-1], "''", "'"), types.String)
		}
		return quoteField(d, x)
	}
	return b.Value("", v, typ)
}

func traverseValue(v any, visit func(Expression)) {
	if e, ok := v.(Expression); ok {
		e.Traverse(visit)
	}
}

// =============================================================================
// CASE Expression
// =============================================================================

// CaseExp represents a SQL CASE expression.
// Supports both simple CASE (with column) and searched CASE (conditions only).
type CaseExp struct {
	column     string
	whens      []whenClause
	elseValue  any
	hasElse    bool
	resultType string
}

// whenClause represents a single WHEN clause in a CASE expression.
type whenClause struct {
	condition any // simple CASE: value to match; searched CASE: condition
	result    any
}

// Case creates a simple CASE expression.
//
//	core.Case("status").
//	    When("'active'", 1).
//	    When("'inactive'", 0).
//	    Else(-1)
//
// Generates: CASE "status" WHEN :c0 THEN :c1 WHEN :c2 THEN :c3 ELSE :c4 END
func Case(column string) *CaseExp {
	return &CaseExp{column: column}
}

// CaseWhen creates a searched CASE expression. Conditions accept anything
// Where accepts.
//
//	core.CaseWhen().
//	    When(core.HashExp{"published": true}, "'Published'").
//	    When(core.HashExp{"published": false}, "'Not published'").
//	    Else("'None'")
func CaseWhen() *CaseExp {
	return &CaseExp{}
}

// When adds a WHEN clause to the CASE expression.
func (c *CaseExp) When(condition, result any) *CaseExp {
	c.whens = append(c.whens, whenClause{condition: condition, result: result})
	return c
}

// Else sets the ELSE value for the CASE expression.
func (c *CaseExp) Else(value any) *CaseExp {
	c.elseValue = value
	c.hasElse = true
	return c
}

// ResultType binds THEN and ELSE values with typ.
func (c *CaseExp) ResultType(typ string) *CaseExp {
	c.resultType = typ
	return c
}

// Build implements the Expression interface.
func (c *CaseExp) Build(d dialects.Dialect, b *ValueBinder) string {
	if len(c.whens) == 0 {
		return ""
	}

	var sql strings.Builder
	sql.WriteString("CASE")
	if c.column != "" {
		sql.WriteString(" ")
		sql.WriteString(quoteField(d, c.column))
	}

	for _, when := range c.whens {
		sql.WriteString(" WHEN ")
		if c.column != "" {
			sql.WriteString(c.matchValue(d, b, when.condition))
		} else {
			cond := toExpression(when.condition, nil)
			if cond == nil {
				sql.WriteString("1 = 1")
			} else {
				sql.WriteString(cond.Build(d, b))
			}
		}
		sql.WriteString(" THEN ")
		sql.WriteString(buildValue(d, b, when.result, c.resultType))
	}

	if c.hasElse {
		sql.WriteString(" ELSE ")
		sql.WriteString(buildValue(d, b, c.elseValue, c.resultType))
	}

	sql.WriteString(" END")
	return sql.String()
}

// matchValue renders a simple CASE match value, typed like the column.
func (c *CaseExp) matchValue(d dialects.Dialect, b *ValueBinder, v any) string {
	if s, ok := v.(string); ok {
		if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
			s = strings.ReplaceAll(s[1:len(s)-1], "''", "'")
		}
		return b.Value(c.column, s, "")
	}
	if e, ok := v.(Expression); ok {
		return buildValue(d, b, e, "")
	}
	return b.Value(c.column, v, "")
}

// Traverse visits the CASE node and every operand expression.
func (c *CaseExp) Traverse(visit func(Expression)) {
	visit(c)
	for _, when := range c.whens {
		if c.column == "" {
			if cond := toExpression(when.condition, nil); cond != nil {
				cond.Traverse(visit)
			}
		} else {
			traverseValue(when.condition, visit)
		}
		traverseValue(when.result, visit)
	}
	if c.hasElse {
		traverseValue(c.elseValue, visit)
	}
}

// =============================================================================
// Function calls
// =============================================================================

// Function names translated per dialect.
const (
	fnConcat      = "CONCAT"
	fnNow         = "NOW"
	fnCurrentDate = "CURRENT_DATE"
	fnCurrentTime = "CURRENT_TIME"
	fnDateDiff    = "DATEDIFF"
	fnGreatest    = "GREATEST"
	fnLeast       = "LEAST"
)

// FuncExp is a SQL function call NAME(arg, ...). Each argument is rendered
// by the operand rules of Case values and may carry its own type.
type FuncExp struct {
	Name string
	Args []any
	// ArgTypes holds one optional type per argument.
	ArgTypes []string
	// ReturnType is the abstract type of the result.
	ReturnType string
}

// WithTypes sets the argument types in argument order.
func (e *FuncExp) WithTypes(argTypes ...string) *FuncExp {
	e.ArgTypes = argTypes
	return e
}

func (e *FuncExp) argType(i int) string {
	if i < len(e.ArgTypes) {
		return e.ArgTypes[i]
	}
	return ""
}

// Build renders the call, translating portable functions for the dialect.
func (e *FuncExp) Build(d dialects.Dialect, b *ValueBinder) string {
	args := make([]string, len(e.Args))
	for i, arg := range e.Args {
		args[i] = buildValue(d, b, arg, e.argType(i))
	}
	return translateFunction(d.Name(), strings.ToUpper(e.Name), args)
}

// Traverse visits the call and its expression arguments.
func (e *FuncExp) Traverse(visit func(Expression)) {
	visit(e)
	for _, arg := range e.Args {
		traverseValue(arg, visit)
	}
}

//nolint:gocyclo // one case per translated function and product
func translateFunction(product, name string, args []string) string {
	call := func(n string, a []string) string { return n + "(" + strings.Join(a, ", ") + ")" }

	switch name {
	case fnConcat:
		switch product {
		case "mysql":
			return call(fnConcat, args)
		case "sqlserver":
			return "(" + strings.Join(args, " + ") + ")"
		default:
			return "(" + strings.Join(args, " || ") + ")"
		}

	case fnNow:
		switch product {
		case "sqlite":
			return "DATETIME('now')"
		case "sqlserver":
			return "GETDATE()"
		}
		return "NOW()"

	case fnCurrentDate:
		switch product {
		case "sqlite":
			return "DATE('now')"
		case "sqlserver":
			return "CONVERT(date, GETDATE())"
		case "mysql":
			return "CURRENT_DATE()"
		}
		return fnCurrentDate

	case fnCurrentTime:
		switch product {
		case "sqlite":
			return "TIME('now')"
		case "sqlserver":
			return "CONVERT(time, GETDATE())"
		case "mysql":
			return "CURRENT_TIME()"
		}
		return fnCurrentTime

	case fnDateDiff:
		if len(args) != 2 {
			break
		}
		switch product {
		case "sqlite":
			return "(JULIANDAY(" + args[0] + ") - JULIANDAY(" + args[1] + "))"
		case "postgres":
			return "DATE_PART('day', " + args[0] + " - " + args[1] + ")"
		case "sqlserver":
			return "DATEDIFF(day, " + args[1] + ", " + args[0] + ")"
		}

	case fnGreatest:
		if product == "sqlite" {
			return call("MAX", args)
		}
	case fnLeast:
		if product == "sqlite" {
			return call("MIN", args)
		}
	}
	return call(name, args)
}

// FunctionsBuilder creates function call expressions.
type FunctionsBuilder struct{}

// Func returns the function call builder.
func Func() FunctionsBuilder {
	return FunctionsBuilder{}
}

func (FunctionsBuilder) aggregate(name string, arg any, returnType string) *FuncExp {
	return &FuncExp{Name: name, Args: []any{arg}, ReturnType: returnType}
}

// Count returns COUNT(arg). Use "*" to count rows.
func (f FunctionsBuilder) Count(arg any) *FuncExp {
	if s, ok := arg.(string); ok && s == "*" {
		return &FuncExp{Name: "COUNT", Args: []any{"*"}, ArgTypes: []string{types.Literal}, ReturnType: types.Integer}
	}
	return f.aggregate("COUNT", arg, types.Integer)
}

// Sum returns SUM(arg).
func (f FunctionsBuilder) Sum(arg any) *FuncExp {
	return f.aggregate("SUM", arg, types.Float)
}

// Avg returns AVG(arg).
func (f FunctionsBuilder) Avg(arg any) *FuncExp {
	return f.aggregate("AVG", arg, types.Float)
}

// Min returns MIN(arg).
func (f FunctionsBuilder) Min(arg any) *FuncExp {
	return f.aggregate("MIN", arg, "")
}

// Max returns MAX(arg).
func (f FunctionsBuilder) Max(arg any) *FuncExp {
	return f.aggregate("MAX", arg, "")
}

// Concat joins strings; products without CONCAT use their operator.
//
//	Func().Concat("first_name", "' '", "last_name")
func (FunctionsBuilder) Concat(args ...any) *FuncExp {
	return &FuncExp{Name: fnConcat, Args: args, ReturnType: types.String}
}

// Coalesce returns the first non-NULL argument.
func (FunctionsBuilder) Coalesce(args ...any) *FuncExp {
	return &FuncExp{Name: "COALESCE", Args: args}
}

// NullIf returns NULL when both arguments are equal.
func (FunctionsBuilder) NullIf(a, b any) *FuncExp {
	return &FuncExp{Name: "NULLIF", Args: []any{a, b}}
}

// DateDiff returns the number of days between two dates (a - b).
func (FunctionsBuilder) DateDiff(a, b any) *FuncExp {
	return &FuncExp{Name: fnDateDiff, Args: []any{a, b}, ReturnType: types.Integer}
}

// Now returns the current datetime. kind may be "date" or "time" for the
// current date or time only.
func (FunctionsBuilder) Now(kind ...string) *FuncExp {
	if len(kind) > 0 {
		switch kind[0] {
		case types.Date:
			return &FuncExp{Name: fnCurrentDate, ReturnType: types.Date}
		case types.Time:
			return &FuncExp{Name: fnCurrentTime, ReturnType: types.Time}
		}
	}
	return &FuncExp{Name: fnNow, ReturnType: types.DateTime}
}

// Greatest returns the largest argument; SQLite uses MAX.
func (FunctionsBuilder) Greatest(args ...any) *FuncExp {
	return &FuncExp{Name: fnGreatest, Args: args}
}

// Least returns the smallest argument; SQLite uses MIN.
func (FunctionsBuilder) Least(args ...any) *FuncExp {
	return &FuncExp{Name: fnLeast, Args: args}
}

// Call returns an arbitrary function call.
func (FunctionsBuilder) Call(name string, args ...any) *FuncExp {
	return &FuncExp{Name: name, Args: args}
}
