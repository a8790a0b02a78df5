package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heuer/mappa/internal/testutil"
	"github.com/heuer/mappa/internal/tm"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMap(t *testing.T, base string) *tm.TopicMap {
	t.Helper()
	m, err := tm.New(base, tm.WithIDGenerator(testutil.NewSequentialIDs("urn:t:")))
	require.NoError(t, err)
	return m
}

func newEngine(t *testing.T, opts ...EngineOption) (*Engine, *tm.TopicMap) {
	t.Helper()
	m := newMap(t, "http://example.org/target/")
	e := New(m, append([]EngineOption{WithLogger(quietLogger())}, opts...)...)
	t.Cleanup(e.Close)
	return e, m
}

func sid(t *testing.T, m *tm.TopicMap, iri string) *tm.Topic {
	t.Helper()
	topic, err := m.CreateTopicBySubjectIdentifier(iri)
	require.NoError(t, err)
	return topic
}

// requireConsistent checks that the identity tables and the typed index
// describe exactly the constructs reachable from the map.
func requireConsistent(t *testing.T, e *Engine, m *tm.TopicMap) {
	t.Helper()
	counts := map[tm.IdentityKind]int{}
	m.Walk(func(c tm.Construct) {
		for _, iri := range c.ItemIdentifiers() {
			counts[tm.ItemIdentifier]++
			holder := m.ConstructByItemIdentifier(iri)
			if assert.NotNil(t, holder, "item identifier %s", iri) {
				assert.Equal(t, c.ID(), holder.ID(), "item identifier %s", iri)
			}
		}
		if x, ok := c.(*tm.Topic); ok {
			for _, iri := range x.SubjectIdentifiers() {
				counts[tm.SubjectIdentifier]++
				assert.Same(t, x, m.TopicBySubjectIdentifier(iri), "subject identifier %s", iri)
			}
			for _, iri := range x.SubjectLocators() {
				counts[tm.SubjectLocator]++
				assert.Same(t, x, m.TopicBySubjectLocator(iri), "subject locator %s", iri)
			}
		}
		if x, ok := c.(tm.Typed); ok && x.Type() != nil {
			assert.Contains(t, e.Index().TypedBy(x.Type()), c, "%s missing from typed index", tm.Describe(c))
		}
	})
	for _, kind := range []tm.IdentityKind{tm.ItemIdentifier, tm.SubjectIdentifier, tm.SubjectLocator} {
		assert.Equal(t, counts[kind], m.IdentityCount(kind), "%s count", kind)
	}
}
