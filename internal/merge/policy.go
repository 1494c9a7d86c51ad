package merge

import "fmt"

// Policy selects how two collections of the same kind are combined.
type Policy string

const (
	PreferA Policy = "prefer_a"
	PreferB Policy = "prefer_b"
	Union   Policy = "union"
)

// Policies returns every valid policy.
func Policies() []Policy {
	return []Policy{PreferA, PreferB, Union}
}

// PolicyError reports a policy value outside the supported set.
type PolicyError struct {
	Value string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("invalid merge policy %q (want prefer_a, prefer_b, or union)", e.Value)
}

// ParsePolicy validates s as a Policy.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(s)
	if !p.Valid() {
		return "", &PolicyError{Value: s}
	}
	return p, nil
}

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	switch p {
	case PreferA, PreferB, Union:
		return true
	}
	return false
}
