package normalize

import (
	"fmt"

	"github.com/roach88/fitmerge/internal/record"
	"github.com/roach88/fitmerge/internal/schema"
)

// IssueCode classifies a validation issue.
type IssueCode string

const (
	IssueMissingField        IssueCode = "missing_field"
	IssueUnparsableTimestamp IssueCode = "unparsable_timestamp"
	IssueTypeMismatch        IssueCode = "type_mismatch"
	IssueOutOfRange          IssueCode = "out_of_range"
	IssueUnknownEnumValue    IssueCode = "unknown_enum_value"
)

// Issue is one problem found in a normalized record.
type Issue struct {
	Field   string    `json:"field"`
	Code    IssueCode `json:"code"`
	Value   string    `json:"value,omitempty"`
	Message string    `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// Issues reports where a normalized record deviates from its schema.
// Issues never affect merging; records with issues are still kept.
func Issues(r record.Record, s schema.Schema) []Issue {
	var issues []Issue
	for _, f := range s.Fields {
		v, ok := r.Get(f.Name)
		if !ok || isNull(v) {
			if !f.Optional {
				issues = append(issues, Issue{
					Field:   f.Name,
					Code:    IssueMissingField,
					Message: "required field is missing",
				})
			}
			continue
		}
		if issue, bad := checkField(f, v); bad {
			issues = append(issues, issue)
		}
	}
	return issues
}

func checkField(f schema.Field, v record.Value) (Issue, bool) {
	text := record.Text(v)
	issue := Issue{Field: f.Name, Value: text}

	switch f.Type {
	case schema.TypeTimestamp:
		if _, ok := v.(record.Time); !ok {
			issue.Code = IssueUnparsableTimestamp
			issue.Message = fmt.Sprintf("cannot parse %q as a timestamp", text)
			return issue, true
		}

	case schema.TypeInt:
		n, ok := v.(record.Int)
		if !ok {
			issue.Code = IssueTypeMismatch
			issue.Message = fmt.Sprintf("expected integer, got %q", text)
			return issue, true
		}
		if !f.InRange(float64(n)) {
			issue.Code = IssueOutOfRange
			issue.Message = fmt.Sprintf("%d is out of range", n)
			return issue, true
		}

	case schema.TypeFloat:
		var n float64
		switch val := v.(type) {
		case record.Float:
			n = float64(val)
		case record.Int:
			n = float64(val)
		default:
			issue.Code = IssueTypeMismatch
			issue.Message = fmt.Sprintf("expected number, got %q", text)
			return issue, true
		}
		if !f.InRange(n) {
			issue.Code = IssueOutOfRange
			issue.Message = fmt.Sprintf("%s is out of range", text)
			return issue, true
		}

	case schema.TypeEnum:
		s, ok := v.(record.String)
		if !ok || !f.Allows(string(s)) {
			issue.Code = IssueUnknownEnumValue
			issue.Message = fmt.Sprintf("%q is not one of %v", text, f.Values)
			return issue, true
		}

	case schema.TypeString:
		if _, ok := v.(record.String); !ok {
			issue.Code = IssueTypeMismatch
			issue.Message = fmt.Sprintf("expected string, got %q", text)
			return issue, true
		}
	}
	return Issue{}, false
}

func isNull(v record.Value) bool {
	_, ok := v.(record.Null)
	return ok
}
