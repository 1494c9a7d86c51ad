// Package runid generates identifiers for persisted pipeline runs.
package runid

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces run IDs.
type Generator interface {
	Generate() string
}

// UUIDv7Generator returns time-sortable UUIDv7 run IDs, so listing runs
// by ID also lists them by creation time. Safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out predetermined IDs in order. It panics once the
// IDs run out, which catches tests that persist more runs than expected.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator returns a generator over ids.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next ID.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic(fmt.Sprintf("runid: FixedGenerator exhausted after %d ids", len(g.ids)))
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// Valid reports whether s parses as a UUID. Fixed test IDs need not be
// UUIDs, so callers use this only for user input.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
