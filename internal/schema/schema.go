package schema

import (
	"fmt"
	"slices"

	"github.com/roach88/fitmerge/internal/record"
)

// Type is the declared type of a field.
type Type string

const (
	TypeTimestamp Type = "timestamp"
	TypeInt       Type = "int"
	TypeFloat     Type = "float"
	TypeString    Type = "string"
	TypeEnum      Type = "enum"
)

func (t Type) valid() bool {
	switch t {
	case TypeTimestamp, TypeInt, TypeFloat, TypeString, TypeEnum:
		return true
	}
	return false
}

// Field describes one canonical field.
type Field struct {
	Name     string
	Type     Type
	Optional bool
	Aliases  []string // source spellings renamed to Name
	Values   []string // allowed values, TypeEnum only
	Min      *float64
	Max      *float64
}

// InRange reports whether n satisfies the field's bounds.
func (f Field) InRange(n float64) bool {
	if f.Min != nil && n < *f.Min {
		return false
	}
	if f.Max != nil && n > *f.Max {
		return false
	}
	return true
}

// Allows reports whether s is one of the enum values.
func (f Field) Allows(s string) bool {
	return slices.Contains(f.Values, s)
}

// Schema is the field schema of one dataset kind.
type Schema struct {
	Kind    record.Kind
	JSONKey string
	Fields  []Field
}

// Field returns the named field.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the canonical field names in schema order.
func (s Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Alias returns the canonical name an alias maps to.
func (s Schema) Alias(name string) (string, bool) {
	for _, f := range s.Fields {
		if slices.Contains(f.Aliases, name) {
			return f.Name, true
		}
	}
	return "", false
}

// Registry maps every dataset kind to its schema.
type Registry map[record.Kind]Schema

// Lookup returns the schema for kind.
func (r Registry) Lookup(kind record.Kind) (Schema, error) {
	s, ok := r[kind]
	if !ok {
		return Schema{}, fmt.Errorf("no schema for dataset kind %q", kind)
	}
	return s, nil
}

// MustLookup is like Lookup but panics when the kind is missing.
// Compile guarantees every kind is present, so this is safe on a compiled
// registry.
func (r Registry) MustLookup(kind record.Kind) Schema {
	s, err := r.Lookup(kind)
	if err != nil {
		panic(err)
	}
	return s
}

// Canonical returns the canonical name for name, resolving aliases.
// Names that are not aliases are returned unchanged.
func (s Schema) Canonical(name string) string {
	if canonical, ok := s.Alias(name); ok {
		return canonical
	}
	return name
}

// CSVColumns returns the required fields in schema order. These are the
// columns a CSV export of the kind is expected to carry.
func (s Schema) CSVColumns() []string {
	var cols []string
	for _, f := range s.Fields {
		if !f.Optional {
			cols = append(cols, f.Name)
		}
	}
	return cols
}
