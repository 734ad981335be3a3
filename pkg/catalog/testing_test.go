package catalog

import "testing"

// newTestStore opens a fresh in-memory sqlite database and initializes the
// schema at head revision.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New("sqlite::memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Init(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return s
}
