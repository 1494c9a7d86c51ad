// Package schema holds the explicit per-kind field schemas.
//
// Schemas are declared in CUE (schemas.cue, embedded) and compiled into Go
// values at startup. A schema names the JSON array that carries the kind,
// its fields in display order, each field's type, whether it is optional,
// the source spellings that map onto it, and the value range the data is
// expected to respect.
//
// The schema drives three things: field renames and typed coercion in the
// normalizer, the ordered field set of loaded collections, and the range
// and enum checks reported by the validate command.
package schema
