package record

import "fmt"

// Kind names a dataset kind. The kind decides which schema a record follows.
type Kind string

const (
	KindHeartRate Kind = "heart_rate"
	KindSteps     Kind = "steps"
	KindSleep     Kind = "sleep"
)

// FieldTimestamp is the field every kind uses for the sample instant.
const FieldTimestamp = "timestamp"

// Kinds returns every dataset kind in presentation order.
func Kinds() []Kind {
	return []Kind{KindHeartRate, KindSteps, KindSleep}
}

// ParseKind converts a kind name into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown dataset kind %q", s)
}

// Label returns the human readable name used in CLI output.
func (k Kind) Label() string {
	switch k {
	case KindHeartRate:
		return "Heart Rate"
	case KindSteps:
		return "Steps"
	case KindSleep:
		return "Sleep"
	default:
		return string(k)
	}
}
