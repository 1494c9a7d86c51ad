package schema

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/fitmerge/internal/record"
)

//go:embed schemas.cue
var defaultSource []byte

// CompileError reports a problem in a schema document.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// fieldDoc mirrors #Field in schemas.cue.
type fieldDoc struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Optional bool     `json:"optional"`
	Aliases  []string `json:"aliases"`
	Values   []string `json:"values"`
	Min      *float64 `json:"min"`
	Max      *float64 `json:"max"`
}

var defaultRegistry = sync.OnceValue(func() Registry {
	reg, err := Compile(defaultSource, "schemas.cue")
	if err != nil {
		panic(fmt.Sprintf("embedded schemas.cue does not compile: %v", err))
	}
	return reg
})

// Default returns the registry compiled from the embedded schemas.cue.
func Default() Registry {
	return defaultRegistry()
}

// DefaultSource returns the embedded CUE document.
func DefaultSource() []byte {
	return slices.Clone(defaultSource)
}

// LoadFile compiles a schema document from disk.
func LoadFile(path string) (Registry, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return Compile(src, path)
}

// Compile parses a CUE schema document. Every dataset kind must be
// declared exactly once.
func Compile(src []byte, filename string) (Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	kindsVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindsVal.Exists() {
		return nil, &CompileError{Field: "kind", Message: "no kinds declared", Pos: v.Pos()}
	}

	iter, err := kindsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	reg := make(Registry)
	for iter.Next() {
		kind, err := record.ParseKind(iter.Label())
		if err != nil {
			return nil, &CompileError{Field: "kind", Message: err.Error(), Pos: iter.Value().Pos()}
		}
		s, err := compileKind(kind, iter.Value())
		if err != nil {
			return nil, err
		}
		reg[kind] = s
	}

	for _, kind := range record.Kinds() {
		if _, ok := reg[kind]; !ok {
			return nil, &CompileError{Field: "kind", Message: fmt.Sprintf("missing schema for %s", kind), Pos: kindsVal.Pos()}
		}
	}
	return reg, nil
}

func compileKind(kind record.Kind, v cue.Value) (Schema, error) {
	s := Schema{Kind: kind}

	jsonKey, err := v.LookupPath(cue.ParsePath("json_key")).String()
	if err != nil {
		return s, formatCUEError(err)
	}
	if jsonKey == "" {
		return s, &CompileError{Field: "json_key", Message: fmt.Sprintf("%s: json_key must not be empty", kind), Pos: v.Pos()}
	}
	s.JSONKey = jsonKey

	list, err := v.LookupPath(cue.ParsePath("fields")).List()
	if err != nil {
		return s, formatCUEError(err)
	}

	seen := make(map[string]bool)
	for list.Next() {
		fv := list.Value()
		var doc fieldDoc
		if err := fv.Decode(&doc); err != nil {
			return s, formatCUEError(err)
		}

		f, err := compileField(doc)
		if err != nil {
			return s, &CompileError{Field: "fields", Message: fmt.Sprintf("%s.%s: %v", kind, doc.Name, err), Pos: fv.Pos()}
		}
		for _, name := range append([]string{f.Name}, f.Aliases...) {
			if seen[name] {
				return s, &CompileError{Field: "fields", Message: fmt.Sprintf("%s: duplicate field or alias %q", kind, name), Pos: fv.Pos()}
			}
			seen[name] = true
		}
		s.Fields = append(s.Fields, f)
	}

	if len(s.Fields) == 0 {
		return s, &CompileError{Field: "fields", Message: fmt.Sprintf("%s: at least one field is required", kind), Pos: v.Pos()}
	}
	return s, nil
}

func compileField(doc fieldDoc) (Field, error) {
	f := Field{
		Name:     doc.Name,
		Type:     Type(doc.Type),
		Optional: doc.Optional,
		Aliases:  doc.Aliases,
		Values:   doc.Values,
		Min:      doc.Min,
		Max:      doc.Max,
	}

	switch {
	case f.Name == "":
		return f, fmt.Errorf("name must not be empty")
	case !f.Type.valid():
		return f, fmt.Errorf("unknown type %q", doc.Type)
	case f.Type == TypeEnum && len(f.Values) == 0:
		return f, fmt.Errorf("enum needs at least one value")
	case f.Type != TypeEnum && len(f.Values) > 0:
		return f, fmt.Errorf("values are only allowed on enum fields")
	case f.Min != nil && f.Max != nil && *f.Min > *f.Max:
		return f, fmt.Errorf("min %v exceeds max %v", *f.Min, *f.Max)
	}
	return f, nil
}

// formatCUEError converts a CUE error to a CompileError with position info.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
