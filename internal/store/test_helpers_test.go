package store

import (
	"path/filepath"
	"testing"
)

const testSchemaID = (34 << 16) + 192

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, testSchemaID)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRow creates a row with every column populated.
func createTestRow(component string, user int64) Row {
	return Row{
		Component:   component,
		User:        user,
		LastUpdated: 1000,
		Version:     1,
		Icon:        []byte("\x89PNG fake icon bytes for " + component),
		Mono:        []byte("mono " + component),
		Color:       0x336699,
		Flags:       1,
		Label:       "Label " + component,
		SystemState: "en-US,34",
		Keywords:    "kw",
	}
}
