// Package testutil holds deterministic stand-ins for the sources of
// nondeterminism in the cache: session tags and step numbering.
package testutil

import (
	"fmt"
	"sync"
)

// Sequence is a resettable counter. The first Next returns 1.
type Sequence struct {
	mu sync.Mutex
	n  int64
}

// Next advances the counter and returns the new value.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n
}

// Current returns the last value handed out, 0 before the first Next.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Reset rewinds the counter so the same scenario can run again with the
// same numbering.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}

// SessionTags generates reconciliation session tags "<prefix>-1",
// "<prefix>-2", ... It satisfies engine.SessionIDGenerator and never runs
// out, unlike engine.FixedGenerator.
type SessionTags struct {
	prefix string
	seq    Sequence
}

// NewSessionTags returns a generator for prefix. An empty prefix becomes
// "session".
func NewSessionTags(prefix string) *SessionTags {
	if prefix == "" {
		prefix = "session"
	}
	return &SessionTags{prefix: prefix}
}

// Generate returns the next tag.
func (g *SessionTags) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.seq.Next())
}
