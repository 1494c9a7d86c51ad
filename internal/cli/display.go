package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/fitmerge/internal/merge"
	"github.com/roach88/fitmerge/internal/pipeline"
	"github.com/roach88/fitmerge/internal/record"
)

// previewRows is how many records --show prints per dataset.
const previewRows = 5

// Placeholders printed for empty datasets.
const (
	emptyMerged = "(empty)"
	emptySource = "(empty or not found)"
)

// datasetView is the JSON shape of one collection.
type datasetView struct {
	Kind    record.Kind     `json:"kind"`
	Source  pipeline.Source `json:"source,omitempty"`
	Fields  []string        `json:"fields"`
	Count   int             `json:"count"`
	Stats   *merge.Stats    `json:"stats,omitempty"`
	Records []record.Record `json:"records"`
}

func newDatasetView(c record.Collection) datasetView {
	v := datasetView{
		Kind:    c.Kind,
		Fields:  c.Fields,
		Count:   c.Len(),
		Records: c.Records,
	}
	if v.Fields == nil {
		v.Fields = []string{}
	}
	if v.Records == nil {
		v.Records = []record.Record{}
	}
	return v
}

// writePreview prints a titled dataset: up to limit records, one per line,
// then the row count. limit <= 0 prints every record.
func writePreview(w io.Writer, title string, c record.Collection, empty string, limit int) {
	fmt.Fprintf(w, "\n%s:\n", title)
	if c.IsEmpty() {
		fmt.Fprintf(w, "  %s\n", empty)
		return
	}
	for _, r := range c.Head(limit) {
		fmt.Fprintf(w, "  %s\n", formatRecord(r, c.Fields))
	}
	fmt.Fprintf(w, "rows=%d\n", c.Len())
}

// formatRecord renders r as key=value pairs in field order. Keys missing
// from fields follow in sorted order.
func formatRecord(r record.Record, fields []string) string {
	keys := record.OrderFields(r.SortedKeys(), fields)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+displayValue(r[k]))
	}
	return strings.Join(parts, " ")
}

func displayValue(v record.Value) string {
	switch val := v.(type) {
	case nil, record.Null:
		return "null"
	case record.String:
		s := string(val)
		if s == "" || strings.ContainsAny(s, " \t\"=") {
			return strconv.Quote(s)
		}
		return s
	default:
		return record.Text(val)
	}
}

// writeDiagnostics prints one line per diagnostic.
func writeDiagnostics(w io.Writer, diags []pipeline.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Diagnostics:")
	for _, d := range diags {
		where := string(d.Source)
		if d.Kind != "" {
			where += " " + string(d.Kind)
		}
		fmt.Fprintf(w, "  %s [%s] %s: %s\n", d.Code, where, d.Path, d.Message)
	}
}
