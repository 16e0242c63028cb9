package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SessionIDGenerator hands out the tags that group related worker tasks,
// such as the increments of one reconciliation session. Cancel(tag) drops
// every queued task carrying a tag.
type SessionIDGenerator interface {
	Generate() string
}

// UUIDv7Generator tags sessions with UUIDv7 strings. They sort by creation
// time, which keeps log lines of consecutive sessions in order.
//
// The zero value is ready to use and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. It panics only if the system
// random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator replays a fixed list of tags, for tests that assert on
// session tags.
type FixedGenerator struct {
	mu   sync.Mutex
	tags []string
	next int
}

// NewFixedGenerator returns a generator yielding tags in order.
func NewFixedGenerator(tags ...string) *FixedGenerator {
	return &FixedGenerator{tags: tags}
}

// Generate returns the next tag. Asking for more tags than were supplied
// is a test bug and panics.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next == len(g.tags) {
		panic(fmt.Sprintf("FixedGenerator: only %d tags supplied", len(g.tags)))
	}
	tag := g.tags[g.next]
	g.next++
	return tag
}
