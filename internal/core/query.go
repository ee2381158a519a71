package core

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/coregx/quarry/internal/tracer"
)

// prepare renders the query with positional placeholders and converts
// every bound value through the type map. fields holds the column each
// value belongs to, for log masking.
func (q *Query) prepare() (query string, args []any, fields []string, err error) {
	if q.db == nil {
		return "", nil, nil, ErrNoConnection
	}
	named, b, err := q.render()
	if err != nil {
		return "", nil, nil, err
	}
	query, ordered, err := positionalSQL(q.dialect, named, b)
	if err != nil {
		return "", nil, nil, err
	}

	args = make([]any, len(ordered))
	fields = make([]string, len(ordered))
	for i, binding := range ordered {
		v, err := q.db.types.ToDatabase(binding.Type, binding.Value)
		if err != nil {
			return "", nil, nil, WrapError(err, fmt.Sprintf("binding %s", binding.Placeholder))
		}
		args[i] = v
		fields[i] = binding.Field
	}
	return query, args, fields, nil
}

func (q *Query) context() context.Context {
	return q.db.context(q.ctx)
}

// Execute runs an INSERT, UPDATE, DELETE or any statement returning no rows.
func (q *Query) Execute() (sql.Result, error) {
	query, args, fields, err := q.prepare()
	if err != nil {
		return nil, err
	}

	var result sql.Result
	err = q.db.observe(q.context(), tracer.SpanExecute, query, args, fields, func(ctx context.Context) (int64, error) {
		stmt, err := q.db.prepareStatement(ctx, query)
		if err != nil {
			return 0, err
		}
		result, err = stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, err
		}
		n, _ := result.RowsAffected()
		return n, nil
	})
	q.executed = true
	return result, err
}

// All scans every row into dest: a *[]Row, or a pointer to a slice of
// structs or struct pointers mapped by `db` tags.
func (q *Query) All(dest any) error {
	return q.query(dest, false)
}

// One scans the first row into dest: a *Row or a pointer to a struct.
// It returns ErrNoRows when nothing matched.
func (q *Query) One(dest any) error {
	return q.query(dest, true)
}

// Rows runs the query and returns every row as a Row.
func (q *Query) Rows() ([]Row, error) {
	var rows []Row
	err := q.All(&rows)
	return rows, err
}

// Scalar runs the query and returns the first column of the first row,
// converted like a Row value.
func (q *Query) Scalar() (any, error) {
	var v scalar
	if err := q.query(&v, true); err != nil {
		return nil, err
	}
	return v.value, nil
}

type scalar struct{ value any }

func (q *Query) query(dest any, single bool) error {
	query, args, fields, err := q.prepare()
	if err != nil {
		return err
	}

	err = q.db.observe(q.context(), tracer.SpanQuery, query, args, fields, func(ctx context.Context) (int64, error) {
		stmt, err := q.db.prepareStatement(ctx, query)
		if err != nil {
			return 0, err
		}
		rows, err := stmt.QueryContext(ctx, args...)
		if err != nil {
			return 0, err
		}
		defer func() { _ = rows.Close() }()

		if single {
			return 0, q.scanOne(rows, dest)
		}
		return 0, q.scanAll(rows, dest)
	})
	q.executed = true
	return err
}

func (q *Query) scanOne(rows *sql.Rows, dest any) error {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return ErrNoRows
	}
	switch d := dest.(type) {
	case *Row:
		columns, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("scanner: failed to get columns: %w", err)
		}
		*d, err = scanMap(rows, columns, false, q.converter())
		return err
	case *scalar:
		columns, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("scanner: failed to get columns: %w", err)
		}
		row, err := scanMap(rows, columns, false, q.converter())
		if err != nil {
			return err
		}
		d.value = row[columns[0]]
		return nil
	}
	return globalScanner.scanRow(rows, dest)
}

func (q *Query) scanAll(rows *sql.Rows, dest any) error {
	if out, ok := dest.(*[]Row); ok {
		scanned, err := scanMaps(rows, false, q.converter())
		if err != nil {
			return err
		}
		*out = append(*out, scanned...)
		return nil
	}
	if v := reflect.ValueOf(dest); v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("scanner: dest must be a non-nil pointer, got %T", dest)
	}
	return globalScanner.scanRows(rows, dest)
}

// resultTypes returns the types of result columns: the default types plus
// the return types of aliased function fields.
func (q *Query) resultTypes() map[string]string {
	out := q.Types()
	for _, f := range q.fields {
		if f.alias == "" {
			continue
		}
		if fn, ok := f.value.(*FuncExp); ok && fn.ReturnType != "" {
			if _, declared := out[f.alias]; !declared {
				out[f.alias] = fn.ReturnType
			}
		}
	}
	return out
}

// converter converts scanned values of typed columns to native values.
// Untyped byte slices become strings.
func (q *Query) converter() valueConverter {
	typed := q.resultTypes()
	return func(column string, value any) (any, error) {
		typ, ok := typed[column]
		if !ok {
			if b, isBytes := value.([]byte); isBytes {
				return string(b), nil
			}
			return value, nil
		}
		if b, isBytes := value.([]byte); isBytes && !isBinary(typ) {
			value = string(b)
		}
		v, err := q.db.types.ToNative(typ, value)
		if err != nil {
			return nil, WrapError(err, "column "+column)
		}
		return v, nil
	}
}
