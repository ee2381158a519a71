// Package types maps abstract column types (integer, datetime, uuid, ...) to
// driver bind values and converts driver results back to Go values.
//
// A type name ending in "[]" declares an array of the base type. Arrays are
// expanded element by element; unknown type names convert as identity.
package types

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Abstract type names shared by the query builder, the schema model and all dialects.
const (
	Integer    = "integer"
	BigInteger = "biginteger"
	Boolean    = "boolean"
	Float      = "float"
	Decimal    = "decimal"
	String     = "string"
	Text       = "text"
	Date       = "date"
	Time       = "time"
	DateTime   = "datetime"
	Timestamp  = "timestamp"
	Binary     = "binary"
	UUID       = "uuid"

	// Literal marks a value that is inlined as raw SQL instead of being bound.
	Literal = "literal"
)

// ArraySuffix marks an array type, e.g. "integer[]".
const ArraySuffix = "[]"

// Type converts values of one abstract type.
type Type interface {
	// Name returns the abstract type name.
	Name() string
	// ToDatabase converts a Go value into a value the driver can bind.
	ToDatabase(value any) (any, error)
	// ToNative converts a value scanned from the driver into the Go representation.
	ToNative(value any) (any, error)
}

// ConversionError is returned when a value cannot be represented as the requested type.
type ConversionError struct {
	Type  string
	Value any
	Err   error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("types: cannot convert %T to %s: %v", e.Value, e.Type, e.Err)
	}
	return fmt.Sprintf("types: cannot convert %T to %s", e.Value, e.Type)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Map is a registry of abstract types. It is safe for concurrent use.
type Map struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewMap returns a registry holding all built-in types.
func NewMap() *Map {
	m := &Map{types: make(map[string]Type)}
	for _, t := range builtins() {
		m.types[t.Name()] = t
	}
	return m
}

var defaultMap = NewMap()

// Default returns the process-wide registry used when no registry is configured.
func Default() *Map {
	return defaultMap
}

// Register adds or replaces a type.
func (m *Map) Register(t Type) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[t.Name()] = t
}

// Get looks up a type by name. Array names resolve to their base type.
func (m *Map) Get(name string) (Type, bool) {
	if base, ok := ArrayBase(name); ok {
		name = base
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.types[name]
	return t, ok
}

// Names returns the registered type names.
func (m *Map) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.types))
	for name := range m.types {
		names = append(names, name)
	}
	return names
}

// ToDatabase converts value using the named type.
// Array types return a []any with every element converted by the base type.
func (m *Map) ToDatabase(name string, value any) (any, error) {
	if base, ok := ArrayBase(name); ok {
		items := Wrap(value)
		out := make([]any, len(items))
		for i, item := range items {
			v, err := m.ToDatabase(base, item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	t, ok := m.Get(name)
	if !ok || value == nil {
		return value, nil
	}
	return t.ToDatabase(value)
}

// ToNative converts a scanned driver value using the named type.
func (m *Map) ToNative(name string, value any) (any, error) {
	if base, ok := ArrayBase(name); ok {
		items := Wrap(value)
		out := make([]any, len(items))
		for i, item := range items {
			v, err := m.ToNative(base, item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	t, ok := m.Get(name)
	if !ok || value == nil {
		return value, nil
	}
	return t.ToNative(value)
}

// ArrayBase reports whether name is an array type and returns its base type.
func ArrayBase(name string) (string, bool) {
	if strings.HasSuffix(name, ArraySuffix) {
		return strings.TrimSuffix(name, ArraySuffix), true
	}
	return name, false
}

// ToSlice returns the elements of a slice or array value.
// []byte is treated as a scalar.
func ToSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case []any:
		return v, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Wrap returns value as a slice, wrapping a scalar into a single-element slice.
func Wrap(value any) []any {
	if items, ok := ToSlice(value); ok {
		return items
	}
	return []any{value}
}
