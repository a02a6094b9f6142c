package store

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roach88/pixelarts/internal/canvas"
)

// createTestStore creates a new temp-dir store for testing with a fixed clock.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return base })}, opts...)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// blankKey returns a size-5 key filled with c.
func blankKey(c canvas.Color) canvas.Key {
	return canvas.Key(strings.Repeat(string(c), 25))
}

// paint returns k with cell i set to c, plus the matching delta.
func paint(t *testing.T, k canvas.Key, i int, c canvas.Color) (canvas.Key, canvas.Delta) {
	t.Helper()
	d := canvas.Delta{{Index: i, Color: c}}
	next, err := k.Apply(d)
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	return next, d
}
