package core

import (
	"regexp"
	"strconv"
	"strings"
)

var generatedPlaceholder = regexp.MustCompile(`^:c[0-9]+$`)

// Binding is one named placeholder registered while a query renders.
type Binding struct {
	// Placeholder is the token used in the SQL text, including the leading colon.
	Placeholder string
	// Value is the application value; it is converted by Type when executed.
	Value any
	// Type is the abstract type name, empty for identity conversion.
	Type string
	// Field is the column the value was compared with or assigned to, if known.
	Field string
}

// ValueBinder collects the values of a statement in the order their
// placeholders are generated. Generated placeholders are :c0, :c1, ...
type ValueBinder struct {
	bindings []Binding
	index    map[string]int
	counter  int
	types    []map[string]string
}

// NewValueBinder returns an empty binder. defaults is the outermost type map.
func NewValueBinder(defaults map[string]string) *ValueBinder {
	b := &ValueBinder{index: make(map[string]int)}
	if len(defaults) > 0 {
		b.types = append(b.types, defaults)
	}
	return b
}

// Bind registers a named value. The name may be given with or without the
// leading colon. Binding the same name again replaces its value.
func (b *ValueBinder) Bind(name string, value any, typ string) {
	placeholder := ":" + strings.TrimPrefix(name, ":")
	binding := Binding{Placeholder: placeholder, Value: value, Type: typ}
	if i, ok := b.index[placeholder]; ok {
		b.bindings[i] = binding
		return
	}
	b.index[placeholder] = len(b.bindings)
	b.bindings = append(b.bindings, binding)
}

// Placeholder returns a fresh placeholder token.
func (b *ValueBinder) Placeholder() string {
	p := ":c" + strconv.Itoa(b.counter)
	b.counter++
	return p
}

// Value binds value for field and returns the placeholder it was bound to.
// An empty typ resolves through the enclosing type maps.
func (b *ValueBinder) Value(field string, value any, typ string) string {
	p := b.Placeholder()
	b.Bind(p, value, b.TypeOf(field, typ))
	b.bindings[b.index[p]].Field = field
	return p
}

// List binds every element of values and returns the comma separated placeholders.
func (b *ValueBinder) List(field string, values []any, typ string) string {
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = b.Value(field, v, typ)
	}
	return strings.Join(placeholders, ", ")
}

// TypeOf returns typ when set, otherwise the type the nearest enclosing map
// declares for field. Qualified fields fall back to their last segment.
func (b *ValueBinder) TypeOf(field, typ string) string {
	if typ != "" || field == "" {
		return typ
	}
	short := field
	if i := strings.LastIndexByte(field, '.'); i >= 0 {
		short = field[i+1:]
	}
	for i := len(b.types) - 1; i >= 0; i-- {
		if t, ok := b.types[i][field]; ok {
			return t
		}
		if t, ok := b.types[i][short]; ok {
			return t
		}
	}
	return ""
}

// withTypes runs fn with types pushed as the innermost type map.
func (b *ValueBinder) withTypes(types map[string]string, fn func()) {
	if len(types) == 0 {
		fn()
		return
	}
	b.types = append(b.types, types)
	defer func() { b.types = b.types[:len(b.types)-1] }()
	fn()
}

// Bindings returns the registered values in registration order.
func (b *ValueBinder) Bindings() []Binding {
	out := make([]Binding, len(b.bindings))
	copy(out, b.bindings)
	return out
}

// Lookup returns the binding registered under placeholder.
func (b *ValueBinder) Lookup(placeholder string) (Binding, bool) {
	i, ok := b.index[placeholder]
	if !ok {
		return Binding{}, false
	}
	return b.bindings[i], true
}

// Count returns the number of registered values.
func (b *ValueBinder) Count() int {
	return len(b.bindings)
}

// Reset removes all values and restarts placeholder numbering.
func (b *ValueBinder) Reset() {
	b.bindings = nil
	b.index = make(map[string]int)
	b.counter = 0
}
