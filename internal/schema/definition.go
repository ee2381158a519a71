package schema

import "maps"

// Definition is a plain, serializable snapshot of a Table.
type Definition struct {
	Name        string            `msgpack:"name" yaml:"name"`
	Temporary   bool              `msgpack:"temporary" yaml:"temporary,omitempty"`
	Columns     []Column          `msgpack:"columns" yaml:"columns"`
	Constraints []Constraint      `msgpack:"constraints" yaml:"constraints,omitempty"`
	Indexes     []Index           `msgpack:"indexes" yaml:"indexes,omitempty"`
	Options     map[string]string `msgpack:"options" yaml:"options,omitempty"`
}

// Definition exports the table.
func (t *Table) Definition() Definition {
	def := Definition{
		Name:      t.name,
		Temporary: t.temporary,
		Columns:   make([]Column, 0, len(t.columns)),
		Options:   maps.Clone(t.options),
	}
	for _, c := range t.columns {
		def.Columns = append(def.Columns, *c)
	}
	for _, c := range t.constraints {
		def.Constraints = append(def.Constraints, copyConstraint(c))
	}
	for _, name := range t.Indexes() {
		idx, _ := t.Index(name)
		def.Indexes = append(def.Indexes, idx)
	}
	return def
}

// FromDefinition rebuilds a table from its snapshot.
func FromDefinition(def Definition) (*Table, error) {
	t := NewTable(def.Name).SetTemporary(def.Temporary)
	for k, v := range def.Options {
		t.SetOption(k, v)
	}
	for _, c := range def.Columns {
		t.AddColumn(c.Name, c)
	}
	for _, c := range def.Constraints {
		if err := t.AddConstraint(c.Name, c); err != nil {
			return nil, err
		}
	}
	for _, idx := range def.Indexes {
		if err := t.AddIndex(idx.Name, idx); err != nil {
			return nil, err
		}
	}
	return t, nil
}
