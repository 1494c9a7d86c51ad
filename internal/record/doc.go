// Package record defines the canonical telemetry record shared by every
// stage of the fitmerge pipeline.
//
// A Record is a flat map of field name to Value. Values form a sealed set
// (Null, String, Int, Float, Bool, Time, List, Object) so that every stage
// agrees on what a field can hold and two records can be compared by
// content alone. A Collection groups the records of one dataset Kind
// together with its ordered field set.
//
// Identity:
//
// Records have no ID. Two records are the same record when their canonical
// encodings match, so the order in which fields were produced never matters.
// MarshalCanonical produces that encoding (sorted keys, NFC strings, no HTML
// escaping) and Hash turns it into a domain-separated SHA-256 digest used
// for duplicate detection.
//
// This package imports nothing internal.
package record
