package pipeline

import (
	"errors"
	"fmt"

	"github.com/roach88/fitmerge/internal/merge"
)

// Prefer is the user-facing merge mode. CSV is side a, JSON side b.
type Prefer string

const (
	PreferCSV  Prefer = "csv"
	PreferJSON Prefer = "json"
	PreferBoth Prefer = "both"
)

// ErrInvalidPrefer is returned by ParsePrefer for unknown modes.
var ErrInvalidPrefer = errors.New("invalid prefer mode")

// PreferModes returns every valid mode.
func PreferModes() []Prefer {
	return []Prefer{PreferCSV, PreferJSON, PreferBoth}
}

// ParsePrefer validates s as a Prefer mode.
func ParsePrefer(s string) (Prefer, error) {
	switch p := Prefer(s); p {
	case PreferCSV, PreferJSON, PreferBoth:
		return p, nil
	}
	return "", fmt.Errorf("%w %q: must be one of csv, json, both", ErrInvalidPrefer, s)
}

// Policy maps the mode to a merge policy. Unknown modes map to the empty,
// invalid policy.
func (p Prefer) Policy() merge.Policy {
	switch p {
	case PreferCSV:
		return merge.PreferA
	case PreferJSON:
		return merge.PreferB
	case PreferBoth:
		return merge.Union
	}
	return ""
}
