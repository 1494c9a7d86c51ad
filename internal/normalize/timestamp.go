package normalize

import (
	"strings"
	"time"

	"github.com/roach88/fitmerge/internal/record"
)

// Layouts accepted for ISO-8601 date-times, extended and basic forms. Go
// accepts a fractional second after the seconds field even when the layout
// omits it.
var (
	zonedLayouts = []string{
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02T15:04Z07:00",
		"2006-01-02 15:04Z07:00",
		"2006-01-02T15:04:05Z0700",
		"2006-01-02 15:04:05Z0700",
		"2006-01-02T15:04Z0700",
		"2006-01-02 15:04Z0700",
		"2006-01-02T15:04:05Z07",
		"2006-01-02 15:04:05Z07",
		"20060102T150405Z0700",
		"20060102T150405Z07:00",
		"20060102T1504Z0700",
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
		"20060102T150405",
		"20060102T1504",
		"20060102",
	}
)

// ParseTimestamp parses an ISO-8601 date-time with a T or space separator,
// optional fractional seconds, and an optional Z, ±hh:mm, ±hhmm or ±hh
// offset. Basic forms without separators (20240101T080000) are accepted.
// A bare date is read as midnight.
func ParseTimestamp(s string) (record.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return record.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return record.NewTime(t, true), true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return record.NewTime(t, false), true
		}
	}
	return record.Time{}, false
}
