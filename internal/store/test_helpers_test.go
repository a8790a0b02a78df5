package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/heuer/mappa/internal/tm"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession inserts a session with the given id.
func createTestSession(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.WriteSession(context.Background(), Session{ID: id, MapID: "http://example.org/map/"}); err != nil {
		t.Fatalf("WriteSession() failed: %v", err)
	}
}

// createTestMap creates an empty topic map.
func createTestMap(t *testing.T) *tm.TopicMap {
	t.Helper()
	m, err := tm.New("http://example.org/map/", tm.WithIDGenerator(tm.NewFixedGenerator(
		"urn:x:1", "urn:x:2", "urn:x:3", "urn:x:4")))
	if err != nil {
		t.Fatalf("tm.New() failed: %v", err)
	}
	return m
}

type fixedSessions string

func (f fixedSessions) Generate() string { return string(f) }
