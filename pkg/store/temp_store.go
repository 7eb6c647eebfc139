package store

import (
	"path/filepath"
	"testing"
)

// MustTempStore returns a Store backed by a file in a temporary directory. The
// Store is closed when the test ends.
func MustTempStore(t testing.TB) DBStore {
	t.Helper()
	st, err := NewStore(filepath.Join(t.TempDir(), "cgv.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}
