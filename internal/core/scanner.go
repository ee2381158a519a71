package core

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
)

// Row is one result row keyed by column name.
type Row map[string]any

// scanner handles reflection-based scanning of SQL rows into structs.
type scanner struct {
	mu    sync.RWMutex
	cache map[reflect.Type]*structInfo
}

// structInfo contains cached metadata about a struct type.
type structInfo struct {
	fields map[string]*fieldInfo
}

// fieldInfo describes how to scan into a struct field.
type fieldInfo struct {
	index  []int  // field index path for embedded structs
	dbName string // lower-cased column name from the db tag or field name
}

func newScanner() *scanner {
	return &scanner{cache: make(map[reflect.Type]*structInfo)}
}

var globalScanner = newScanner()

// getStructInfo returns cached struct metadata or builds it.
func (s *scanner) getStructInfo(typ reflect.Type) (*structInfo, error) {
	s.mu.RLock()
	info, ok := s.cache[typ]
	s.mu.RUnlock()
	if ok {
		return info, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.cache[typ]; ok {
		return info, nil
	}

	info = &structInfo{fields: make(map[string]*fieldInfo)}
	if err := s.collectFields(info, typ, nil); err != nil {
		return nil, err
	}
	s.cache[typ] = info
	return info, nil
}

func (s *scanner) collectFields(info *structInfo, typ reflect.Type, index []int) error {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return fmt.Errorf("scanner: expected struct, got %s", typ.Kind())
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		fieldIndex := append(append([]int{}, index...), i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := s.collectFields(info, field.Type, fieldIndex); err != nil {
				return err
			}
			continue
		}

		if tag, ok := field.Tag.Lookup("db"); ok {
			if tag == "-" {
				continue
			}
			name := strings.ToLower(tag)
			info.fields[name] = &fieldInfo{index: fieldIndex, dbName: name}
			continue
		}

		// Untagged fields match both CreatedAt -> created_at and createdat.
		snake := snakeCase(field.Name)
		info.fields[snake] = &fieldInfo{index: fieldIndex, dbName: snake}
		if lower := strings.ToLower(field.Name); lower != snake {
			if _, taken := info.fields[lower]; !taken {
				info.fields[lower] = &fieldInfo{index: fieldIndex, dbName: snake}
			}
		}
	}
	return nil
}

// snakeCase converts a Go field name to a snake_case column name.
// Runs of capitals stay together, so UserID becomes user_id.
func snakeCase(field string) string {
	runes := []rune(field)
	out := make([]rune, 0, len(runes)+5)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				out = append(out, '_')
			}
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}

// destinations returns one scan target per column. Unmapped columns are discarded.
func (info *structInfo) destinations(elem reflect.Value, columns []string) []any {
	dests := make([]any, len(columns))
	for i, col := range columns {
		f, ok := info.fields[strings.ToLower(col)]
		if !ok {
			var discard any
			dests[i] = &discard
			continue
		}
		v := elem
		for _, idx := range f.index {
			v = v.Field(idx)
		}
		dests[i] = v.Addr().Interface()
	}
	return dests
}

// scanRow scans the current row into a struct pointer.
func (s *scanner) scanRow(rows *sql.Rows, dest any) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr || destValue.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("scanner: dest must be pointer to struct, got %T", dest)
	}
	destValue = destValue.Elem()

	info, err := s.getStructInfo(destValue.Type())
	if err != nil {
		return err
	}
	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("scanner: failed to get columns: %w", err)
	}
	if err := rows.Scan(info.destinations(destValue, columns)...); err != nil {
		return fmt.Errorf("scanner: scan failed: %w", err)
	}
	return nil
}

// scanRows scans all remaining rows into a pointer to a slice of structs
// or struct pointers.
func (s *scanner) scanRows(rows *sql.Rows, dest any) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr || destValue.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("scanner: dest must be pointer to slice, got %T", dest)
	}
	sliceValue := destValue.Elem()

	elemType := sliceValue.Type().Elem()
	isPtr := elemType.Kind() == reflect.Ptr
	if isPtr {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		return fmt.Errorf("scanner: slice element must be struct or *struct, got %s", elemType.Kind())
	}

	info, err := s.getStructInfo(elemType)
	if err != nil {
		return err
	}
	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("scanner: failed to get columns: %w", err)
	}

	for rows.Next() {
		elemValue := reflect.New(elemType).Elem()
		if err := rows.Scan(info.destinations(elemValue, columns)...); err != nil {
			return fmt.Errorf("scanner: scan failed: %w", err)
		}
		if isPtr {
			sliceValue.Set(reflect.Append(sliceValue, elemValue.Addr()))
		} else {
			sliceValue.Set(reflect.Append(sliceValue, elemValue))
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scanner: rows iteration failed: %w", err)
	}
	return nil
}

// valueConverter turns a raw driver value of a column into its native value.
type valueConverter func(column string, value any) (any, error)

// scanMap scans the current row into a Row. Byte slices become strings
// unless convert says otherwise. lower lower-cases the keys.
func scanMap(rows *sql.Rows, columns []string, lower bool, convert valueConverter) (Row, error) {
	values := make([]any, len(columns))
	dests := make([]any, len(columns))
	for i := range values {
		dests[i] = &values[i]
	}
	if err := rows.Scan(dests...); err != nil {
		return nil, fmt.Errorf("scanner: scan failed: %w", err)
	}

	row := make(Row, len(columns))
	for i, col := range columns {
		key := col
		if lower {
			key = strings.ToLower(col)
		}
		v := values[i]
		if convert != nil {
			native, err := convert(col, v)
			if err != nil {
				return nil, err
			}
			v = native
		} else if b, ok := v.([]byte); ok {
			v = string(b)
		}
		row[key] = v
	}
	return row, nil
}

// scanMaps scans all remaining rows into Rows.
func scanMaps(rows *sql.Rows, lower bool, convert valueConverter) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("scanner: failed to get columns: %w", err)
	}
	var out []Row
	for rows.Next() {
		row, err := scanMap(rows, columns, lower, convert)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanner: rows iteration failed: %w", err)
	}
	return out, nil
}
