package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs_Counts(t *testing.T) {
	g := NewSequentialIDs("urn:x:")

	assert.Equal(t, "urn:x:1", g.Generate())
	assert.Equal(t, "urn:x:2", g.Generate())
	assert.Equal(t, "urn:x:3", g.Generate())
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	g := NewSequentialIDs("")

	assert.Equal(t, "urn:mappa:test:1", g.Generate())
}

func TestSequentialIDs_Reset(t *testing.T) {
	g := NewSequentialIDs("urn:x:")
	g.Generate()
	g.Generate()

	g.Reset()

	assert.Equal(t, "urn:x:1", g.Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	g := NewSequentialIDs("urn:x:")

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := g.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000, "every generated id must be unique")
}

func TestFixedSessionGenerator(t *testing.T) {
	assert.Equal(t, "s-1", NewFixedSessionGenerator("s-1").Generate())
	assert.Equal(t, "s-1", NewFixedSessionGenerator("s-1").Generate())
	assert.Equal(t, "test-session-default", NewFixedSessionGenerator("").Generate())
}
