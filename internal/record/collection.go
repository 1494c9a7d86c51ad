package record

import "slices"

// Collection is the ordered set of canonical records for one dataset kind,
// from one source or after a merge.
//
// Fields is the collection's field set in display order. Every record is
// expected to carry a subset of it; Reindex fills the rest with Null.
// A collection with no records is a legal, first-class state.
type Collection struct {
	Kind    Kind
	Fields  []string
	Records []Record
}

// Empty returns an empty collection of the given kind.
func Empty(kind Kind) Collection {
	return Collection{Kind: kind}
}

// Len returns the number of records.
func (c Collection) Len() int {
	return len(c.Records)
}

// IsEmpty reports whether the collection holds no records.
func (c Collection) IsEmpty() bool {
	return len(c.Records) == 0
}

// HasField reports whether name is part of the field set.
func (c Collection) HasField(name string) bool {
	return slices.Contains(c.Fields, name)
}

// Head returns at most n records from the front of the collection.
func (c Collection) Head(n int) []Record {
	if n < 0 || n >= len(c.Records) {
		return c.Records
	}
	return c.Records[:n]
}

// Clone copies the field and record slices. Records themselves are shared.
func (c Collection) Clone() Collection {
	return Collection{
		Kind:    c.Kind,
		Fields:  slices.Clone(c.Fields),
		Records: slices.Clone(c.Records),
	}
}

// Reindex returns a copy whose field set is fields and whose records all
// carry every field in it.
func (c Collection) Reindex(fields []string) Collection {
	out := Collection{
		Kind:    c.Kind,
		Fields:  slices.Clone(fields),
		Records: make([]Record, len(c.Records)),
	}
	for i, r := range c.Records {
		out.Records[i] = r.Reindex(fields)
	}
	return out
}

// UnionFields returns the fields of a followed by the fields of b that a
// does not have, preserving the order of each.
func UnionFields(a, b []string) []string {
	out := slices.Clone(a)
	for _, f := range b {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// FieldsOf derives a field set from the records themselves: the preferred
// fields that appear in at least one record, in the given order, followed
// by any remaining keys in sorted order.
func FieldsOf(records []Record, preferred []string) []string {
	var names []string
	for _, r := range records {
		for k := range r {
			names = append(names, k)
		}
	}
	return OrderFields(names, preferred)
}

// OrderFields deduplicates names and orders them the way FieldsOf does.
func OrderFields(names []string, preferred []string) []string {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}

	fields := make([]string, 0, len(seen))
	for _, f := range preferred {
		if seen[f] {
			fields = append(fields, f)
			delete(seen, f)
		}
	}

	extras := make([]string, 0, len(seen))
	for k := range seen {
		extras = append(extras, k)
	}
	slices.SortFunc(extras, compareKeysUTF16)
	return append(fields, extras...)
}
