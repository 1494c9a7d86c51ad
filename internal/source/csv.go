package source

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/roach88/fitmerge/internal/normalize"
	"github.com/roach88/fitmerge/internal/record"
	"github.com/roach88/fitmerge/internal/schema"
)

const utf8BOM = "\ufeff"

// LoadCSV reads one dataset kind from a CSV file with a header row.
//
// A row shorter than the header reads its missing trailing cells as null;
// a row longer than the header makes the file malformed. A file with only
// a header, or no content at all, is an empty collection. On error the
// returned collection is empty.
func LoadCSV(path string, s schema.Schema) (record.Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return record.Empty(s.Kind), openError(path, s.Kind, err)
	}
	defer f.Close()

	c, err := readCSV(f, s)
	if err != nil {
		code := CodeUnreadableSource
		var parseErr *csv.ParseError
		var malformed *malformedError
		if errors.As(err, &parseErr) || errors.As(err, &malformed) {
			code = CodeMalformedSource
		}
		return record.Empty(s.Kind), &LoadError{Code: code, Path: path, Kind: s.Kind, Err: err}
	}
	return c, nil
}

func readCSV(r io.Reader, s schema.Schema) (record.Collection, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return record.Empty(s.Kind), nil
	}
	if err != nil {
		return record.Collection{}, err
	}
	header = resolveHeader(header, s)
	if err := checkHeader(header); err != nil {
		return record.Collection{}, err
	}

	var raws []map[string]any
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return record.Collection{}, err
		}

		if len(row) > len(header) {
			line, _ := cr.FieldPos(0)
			return record.Collection{}, &malformedError{
				msg: fmt.Sprintf("line %d: %d cells for %d header columns", line, len(row), len(header)),
			}
		}

		raw := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(row) {
				raw[name] = row[i]
			} else {
				raw[name] = record.Null{}
			}
		}
		raws = append(raws, raw)
	}

	return record.Collection{
		Kind:    s.Kind,
		Fields:  record.OrderFields(header, s.FieldNames()),
		Records: normalize.Rows(raws, s),
	}, nil
}

// resolveHeader strips a UTF-8 byte order mark and renames alias columns
// the same way the row normalizer does.
func resolveHeader(header []string, s schema.Schema) []string {
	out := slices.Clone(header)
	if len(out) > 0 {
		out[0] = strings.TrimPrefix(out[0], utf8BOM)
	}
	for i, name := range out {
		if canonical, ok := s.Alias(name); ok && !slices.Contains(out, canonical) {
			out[i] = canonical
		}
	}
	return out
}

func checkHeader(header []string) error {
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		if seen[name] {
			return &malformedError{msg: fmt.Sprintf("header column %d: duplicate column %q", i+1, name)}
		}
		seen[name] = true
	}
	return nil
}

// malformedError marks content problems that encoding/csv does not detect.
type malformedError struct {
	msg string
}

func (e *malformedError) Error() string { return e.msg }
