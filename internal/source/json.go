package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/roach88/fitmerge/internal/normalize"
	"github.com/roach88/fitmerge/internal/record"
	"github.com/roach88/fitmerge/internal/schema"
)

// LoadJSON reads every dataset kind from a single JSON object. Each kind
// lives under its schema's json_key; a missing or null key is an empty
// collection for that kind.
//
// The result always holds one collection per kind. On error they are all
// empty.
func LoadJSON(path string, reg schema.Registry) (map[record.Kind]record.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return emptyAll(), openError(path, "", err)
	}

	out, err := decodeJSON(data, reg)
	if err != nil {
		return emptyAll(), &LoadError{Code: CodeMalformedSource, Path: path, Err: err}
	}
	return out, nil
}

func decodeJSON(data []byte, reg schema.Registry) (map[record.Kind]record.Collection, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var blob any
	if err := dec.Decode(&blob); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}

	top, ok := blob.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value must be an object, got %s", jsonType(blob))
	}

	out := make(map[record.Kind]record.Collection, len(record.Kinds()))
	for _, kind := range record.Kinds() {
		s, err := reg.Lookup(kind)
		if err != nil {
			return nil, err
		}

		raws, err := entries(top, s.JSONKey)
		if err != nil {
			return nil, err
		}
		records := normalize.Rows(raws, s)
		out[kind] = record.Collection{
			Kind:    kind,
			Fields:  record.FieldsOf(records, s.FieldNames()),
			Records: records,
		}
	}
	return out, nil
}

func entries(top map[string]any, key string) ([]map[string]any, error) {
	v, ok := top[key]
	if !ok || v == nil {
		return nil, nil
	}

	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected an array, got %s", key, jsonType(v))
	}

	raws := make([]map[string]any, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: expected an object, got %s", key, i, jsonType(item))
		}
		raws[i] = obj
	}
	return raws, nil
}

func emptyAll() map[record.Kind]record.Collection {
	out := make(map[record.Kind]record.Collection, len(record.Kinds()))
	for _, kind := range record.Kinds() {
		out[kind] = record.Empty(kind)
	}
	return out
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
