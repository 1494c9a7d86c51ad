// Package merge combines two collections of one dataset kind under a
// policy.
package merge

import (
	"slices"

	"github.com/roach88/fitmerge/internal/record"
)

// Stats describes one merge.
type Stats struct {
	InputA            int `json:"input_a"`
	InputB            int `json:"input_b"`
	Output            int `json:"output"`
	DuplicatesDropped int `json:"duplicates_dropped"`
}

// Merge combines a and b under p. Inputs are never mutated.
//
// Merge panics with *PolicyError when p is not a valid policy; use
// ParsePolicy to validate untrusted input first.
func Merge(a, b record.Collection, p Policy) record.Collection {
	out, _ := MergeWithStats(a, b, p)
	return out
}

// MergeWithStats is Merge that also reports counts.
func MergeWithStats(a, b record.Collection, p Policy) (record.Collection, Stats) {
	stats := Stats{InputA: a.Len(), InputB: b.Len()}

	var out record.Collection
	switch p {
	case PreferA:
		out = prefer(a, b)
	case PreferB:
		out = prefer(b, a)
	case Union:
		out, stats.DuplicatesDropped = union(a, b)
	default:
		panic(&PolicyError{Value: string(p)})
	}

	stats.Output = out.Len()
	return out, stats
}

// prefer returns primary unless it is empty.
func prefer(primary, fallback record.Collection) record.Collection {
	if !primary.IsEmpty() {
		return primary.Clone()
	}
	out := fallback.Clone()
	if out.Kind == "" {
		out.Kind = primary.Kind
	}
	return out
}

func union(a, b record.Collection) (record.Collection, int) {
	if a.IsEmpty() {
		return prefer(b, a), 0
	}
	if b.IsEmpty() {
		return a.Clone(), 0
	}

	fields := record.UnionFields(a.Fields, b.Fields)
	ra := a.Reindex(fields)
	rb := b.Reindex(fields)

	all := make([]record.Record, 0, len(ra.Records)+len(rb.Records))
	all = append(all, ra.Records...)
	all = append(all, rb.Records...)

	kept, dropped := dedupe(all)
	if slices.Contains(fields, record.FieldTimestamp) || anyHasTimestamp(kept) {
		sortByTimestamp(kept)
	}

	return record.Collection{Kind: a.Kind, Fields: fields, Records: kept}, dropped
}

// dedupe drops exact duplicates, keeping the first occurrence. Records are
// compared by record.Hash, so strings are equal when their NFC forms are.
func dedupe(records []record.Record) ([]record.Record, int) {
	seen := make(map[string]bool, len(records))
	kept := make([]record.Record, 0, len(records))
	for _, r := range records {
		h := record.MustHash(r)
		if seen[h] {
			continue
		}
		seen[h] = true
		kept = append(kept, r)
	}
	return kept, len(records) - len(kept)
}

func anyHasTimestamp(records []record.Record) bool {
	for _, r := range records {
		if _, ok := r[record.FieldTimestamp]; ok {
			return true
		}
	}
	return false
}

// sortByTimestamp orders records by instant. Records without a parsed
// timestamp go last, in their current order.
func sortByTimestamp(records []record.Record) {
	slices.SortStableFunc(records, func(x, y record.Record) int {
		tx, okx := x.Timestamp()
		ty, oky := y.Timestamp()
		switch {
		case okx && oky:
			return tx.Compare(ty)
		case okx:
			return -1
		case oky:
			return 1
		default:
			return 0
		}
	})
}
