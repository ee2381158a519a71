// Package schema holds the product-neutral table model: columns, constraints
// and indexes. Tables are filled either by application code, for DDL
// generation, or by the reflector from catalog rows.
package schema

import (
	"errors"
	"fmt"
	"slices"
)

// Constraint kinds.
const (
	ConstraintPrimary = "primary"
	ConstraintUnique  = "unique"
	ConstraintForeign = "foreign"
)

// Index kinds.
const (
	IndexIndex    = "index"
	IndexFulltext = "fulltext"
)

// Action is a foreign key referential action.
type Action string

// Referential actions understood by every dialect.
const (
	ActionNoAction   Action = "no-action"
	ActionCascade    Action = "cascade"
	ActionSetNull    Action = "set-null"
	ActionSetDefault Action = "set-default"
	ActionRestrict   Action = "restrict"
)

// Nullability of a column. The zero value leaves the clause out of the DDL.
type Nullability int

const (
	NullUnset Nullability = iota
	Nullable
	NotNull
)

// Errors returned while building a table.
var (
	ErrUnknownColumn     = errors.New("schema: column is not defined on the table")
	ErrInvalidConstraint = errors.New("schema: invalid constraint")
	ErrInvalidIndex      = errors.New("schema: invalid index")
	ErrDuplicatePrimary  = errors.New("schema: table already has a primary key")
)

// Column describes one column.
type Column struct {
	Name          string      `msgpack:"name" yaml:"name"`
	Type          string      `msgpack:"type" yaml:"type"`
	Null          Nullability `msgpack:"null" yaml:"null"`
	Default       any         `msgpack:"default" yaml:"default,omitempty"`
	Length        int         `msgpack:"length" yaml:"length,omitempty"`
	Precision     int         `msgpack:"precision" yaml:"precision,omitempty"`
	Fixed         bool        `msgpack:"fixed" yaml:"fixed,omitempty"`
	Unsigned      bool        `msgpack:"unsigned" yaml:"unsigned,omitempty"`
	AutoIncrement bool        `msgpack:"auto_increment" yaml:"auto_increment,omitempty"`
	Comment       string      `msgpack:"comment" yaml:"comment,omitempty"`
}

// Reference is the target of a foreign key.
type Reference struct {
	Table   string   `msgpack:"table" yaml:"table"`
	Columns []string `msgpack:"columns" yaml:"columns"`
}

// Constraint is a primary key, unique or foreign key constraint.
type Constraint struct {
	Name       string     `msgpack:"name" yaml:"name"`
	Type       string     `msgpack:"type" yaml:"type"`
	Columns    []string   `msgpack:"columns" yaml:"columns"`
	References *Reference `msgpack:"references" yaml:"references,omitempty"`
	Update     Action     `msgpack:"update" yaml:"update,omitempty"`
	Delete     Action     `msgpack:"delete" yaml:"delete,omitempty"`
}

// Index is a plain or fulltext index.
type Index struct {
	Name    string   `msgpack:"name" yaml:"name"`
	Type    string   `msgpack:"type" yaml:"type"`
	Columns []string `msgpack:"columns" yaml:"columns"`
}

// Table is the abstract description of one table.
// It is not safe for concurrent mutation.
type Table struct {
	name        string
	columns     []*Column
	constraints []*Constraint
	indexes     []*Index
	temporary   bool
	options     map[string]string
}

// NewTable creates an empty table.
func NewTable(name string) *Table {
	return &Table{name: name, options: make(map[string]string)}
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// AddColumn adds a column, replacing any column with the same name.
func (t *Table) AddColumn(name string, col Column) *Table {
	col.Name = name
	if col.Type == "" {
		col.Type = "string"
	}
	for i, existing := range t.columns {
		if existing.Name == name {
			t.columns[i] = &col
			return t
		}
	}
	t.columns = append(t.columns, &col)
	return t
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) (Column, bool) {
	if c := t.column(name); c != nil {
		return *c, true
	}
	return Column{}, false
}

func (t *Table) column(name string) *Column {
	for _, c := range t.columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Columns returns column names in definition order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// ColumnType returns the abstract type of a column, or "" when it is unknown.
func (t *Table) ColumnType(name string) string {
	if c := t.column(name); c != nil {
		return c.Type
	}
	return ""
}

// TypeMap returns column name to abstract type for all columns.
func (t *Table) TypeMap() map[string]string {
	m := make(map[string]string, len(t.columns))
	for _, c := range t.columns {
		m[c.Name] = c.Type
	}
	return m
}

// AddConstraint adds a constraint. Adding to an existing name of the same
// kind appends the new columns after the known ones.
func (t *Table) AddConstraint(name string, c Constraint) error {
	switch c.Type {
	case ConstraintPrimary, ConstraintUnique:
	case ConstraintForeign:
		if c.References == nil || c.References.Table == "" || len(c.References.Columns) == 0 {
			return fmt.Errorf("%w: foreign key %q needs a referenced table and columns", ErrInvalidConstraint, name)
		}
	default:
		return fmt.Errorf("%w: unknown type %q for %q", ErrInvalidConstraint, c.Type, name)
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("%w: %q has no columns", ErrInvalidConstraint, name)
	}
	for _, col := range c.Columns {
		if t.column(col) == nil {
			return fmt.Errorf("%w: %q used by constraint %q", ErrUnknownColumn, col, name)
		}
	}

	if existing := t.constraint(name); existing != nil && existing.Type == c.Type {
		existing.Columns = appendUnique(existing.Columns, c.Columns...)
		if c.References != nil && existing.References != nil {
			existing.References.Columns = appendUnique(existing.References.Columns, c.References.Columns...)
		}
		return nil
	}

	if c.Type == ConstraintPrimary {
		if pk := t.primary(); pk != nil && pk.Name != name {
			return fmt.Errorf("%w: %q", ErrDuplicatePrimary, pk.Name)
		}
	}
	if c.Type == ConstraintForeign {
		if c.Update == "" {
			c.Update = ActionRestrict
		}
		if c.Delete == "" {
			c.Delete = ActionRestrict
		}
		ref := *c.References
		ref.Columns = slices.Clone(ref.Columns)
		c.References = &ref
	}

	c.Name = name
	c.Columns = slices.Clone(c.Columns)
	for i, existing := range t.constraints {
		if existing.Name == name {
			t.constraints[i] = &c
			return nil
		}
	}
	t.constraints = append(t.constraints, &c)
	return nil
}

// InsertConstraintColumns adds c like AddConstraint, but when a constraint
// of the same name and kind exists the new columns are placed at pos instead
// of appended. pos past the end appends.
func (t *Table) InsertConstraintColumns(name string, c Constraint, pos int) error {
	existing := t.constraint(name)
	if existing == nil || existing.Type != c.Type || pos >= len(existing.Columns) {
		return t.AddConstraint(name, c)
	}
	for _, col := range c.Columns {
		if t.column(col) == nil {
			return fmt.Errorf("%w: %q used by constraint %q", ErrUnknownColumn, col, name)
		}
	}
	var added []string
	for _, col := range c.Columns {
		if !slices.Contains(existing.Columns, col) && !slices.Contains(added, col) {
			added = append(added, col)
		}
	}
	existing.Columns = slices.Insert(existing.Columns, max(pos, 0), added...)
	return nil
}

// Constraint returns a copy of the named constraint.
func (t *Table) Constraint(name string) (Constraint, bool) {
	if c := t.constraint(name); c != nil {
		return copyConstraint(c), true
	}
	return Constraint{}, false
}

func (t *Table) constraint(name string) *Constraint {
	for _, c := range t.constraints {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (t *Table) primary() *Constraint {
	for _, c := range t.constraints {
		if c.Type == ConstraintPrimary {
			return c
		}
	}
	return nil
}

// Constraints returns constraint names in the order they were added.
func (t *Table) Constraints() []string {
	names := make([]string, len(t.constraints))
	for i, c := range t.constraints {
		names[i] = c.Name
	}
	return names
}

// AddIndex adds an index. Adding to an existing name appends the new columns.
func (t *Table) AddIndex(name string, idx Index) error {
	if idx.Type == "" {
		idx.Type = IndexIndex
	}
	if idx.Type != IndexIndex && idx.Type != IndexFulltext {
		return fmt.Errorf("%w: unknown type %q for %q", ErrInvalidIndex, idx.Type, name)
	}
	if len(idx.Columns) == 0 {
		return fmt.Errorf("%w: %q has no columns", ErrInvalidIndex, name)
	}
	for _, col := range idx.Columns {
		if t.column(col) == nil {
			return fmt.Errorf("%w: %q used by index %q", ErrUnknownColumn, col, name)
		}
	}

	for _, existing := range t.indexes {
		if existing.Name == name {
			existing.Columns = appendUnique(existing.Columns, idx.Columns...)
			return nil
		}
	}
	idx.Name = name
	idx.Columns = slices.Clone(idx.Columns)
	t.indexes = append(t.indexes, &idx)
	return nil
}

// Index returns a copy of the named index.
func (t *Table) Index(name string) (Index, bool) {
	for _, idx := range t.indexes {
		if idx.Name == name {
			out := *idx
			out.Columns = slices.Clone(idx.Columns)
			return out, true
		}
	}
	return Index{}, false
}

// Indexes returns index names in the order they were added.
func (t *Table) Indexes() []string {
	names := make([]string, len(t.indexes))
	for i, idx := range t.indexes {
		names[i] = idx.Name
	}
	return names
}

// PrimaryKey returns the primary key columns in key order.
func (t *Table) PrimaryKey() []string {
	if pk := t.primary(); pk != nil {
		return slices.Clone(pk.Columns)
	}
	return nil
}

// IsSolePrimaryKey reports whether column alone forms the primary key.
func (t *Table) IsSolePrimaryKey(column string) bool {
	pk := t.PrimaryKey()
	return len(pk) == 1 && pk[0] == column
}

// SetTemporary marks the table as temporary.
func (t *Table) SetTemporary(temporary bool) *Table {
	t.temporary = temporary
	return t
}

// Temporary reports whether the table is temporary.
func (t *Table) Temporary() bool {
	return t.temporary
}

// SetOption sets a product specific table option such as engine or charset.
func (t *Table) SetOption(key, value string) *Table {
	t.options[key] = value
	return t
}

// Option returns a table option.
func (t *Table) Option(key string) string {
	return t.options[key]
}

func copyConstraint(c *Constraint) Constraint {
	out := *c
	out.Columns = slices.Clone(c.Columns)
	if c.References != nil {
		ref := *c.References
		ref.Columns = slices.Clone(c.References.Columns)
		out.References = &ref
	}
	return out
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
