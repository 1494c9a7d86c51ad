// Package normalize turns raw source rows into canonical records.
//
// Row is pure and never fails. Field renames come from schema aliases,
// timestamps are parsed as ISO-8601, and known fields are coerced to their
// schema type. Anything that cannot be parsed or coerced is kept as the
// original string so that no record is ever dropped here; Issues reports
// those leftovers for callers that want diagnostics.
package normalize
