package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/iconcache/internal/engine"
)

var _ engine.SessionIDGenerator = (*SessionTags)(nil)

func TestSequence_StartsAtZero(t *testing.T) {
	var s Sequence
	assert.Equal(t, int64(0), s.Current())
	assert.Equal(t, int64(1), s.Next())
	assert.Equal(t, int64(2), s.Next())
	assert.Equal(t, int64(2), s.Current())
}

func TestSequence_Reset(t *testing.T) {
	var s Sequence
	s.Next()
	s.Next()
	s.Reset()
	assert.Equal(t, int64(0), s.Current())
	assert.Equal(t, int64(1), s.Next())
}

func TestSequence_Concurrent(t *testing.T) {
	var s Sequence
	const workers, calls = 50, 100

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range calls {
				s.Next()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(workers*calls), s.Current())
}

func TestSessionTags(t *testing.T) {
	g := NewSessionTags("scn")
	assert.Equal(t, "scn-1", g.Generate())
	assert.Equal(t, "scn-2", g.Generate())

	assert.Equal(t, "session-1", NewSessionTags("").Generate())
}
