package engine

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heuer/mappa/internal/metrics"
	"github.com/heuer/mappa/internal/tm"
)

func TestAddSubjectIdentifierMerging_NoCollision(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")

	got, err := e.AddSubjectIdentifierMerging(a, "http://x.org/alias")

	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Equal(t, []string{"http://x.org/a", "http://x.org/alias"}, a.SubjectIdentifiers())
}

func TestAddSubjectIdentifierMerging_MergesIntoHolder(t *testing.T) {
	met, err := metrics.New(prometheus.NewRegistry(), "")
	require.NoError(t, err)
	e, m := newEngine(t, WithMetrics(met))
	a := sid(t, m, "http://x.org/a")
	b, err := m.CreateTopic()
	require.NoError(t, err)
	iid := b.ItemIdentifiers()[0]

	got, err := e.AddSubjectIdentifierMerging(b, "http://x.org/a")

	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Equal(t, []string{iid}, a.ItemIdentifiers())
	assert.True(t, b.IsRemoved())
	assert.Equal(t, 1.0, promtest.ToFloat64(met.IdentityViolations))
	assert.Equal(t, 1.0, promtest.ToFloat64(met.Merges.WithLabelValues(metrics.ScopeTopic)))
}

func TestAddSubjectLocatorMerging(t *testing.T) {
	e, m := newEngine(t)
	a, err := m.CreateTopicBySubjectLocator("http://x.org/doc")
	require.NoError(t, err)
	b := sid(t, m, "http://x.org/b")

	got, err := e.AddSubjectLocatorMerging(b, "http://x.org/doc")

	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Equal(t, []string{"http://x.org/b"}, a.SubjectIdentifiers())
}

func TestAddItemIdentifierMerging_NonTopicHolder(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	o, err := a.CreateOccurrence(a, "v", "")
	require.NoError(t, err)
	require.NoError(t, o.AddItemIdentifier("http://x.org/o"))

	got, err := e.AddItemIdentifierMerging(a, "http://x.org/o")

	assert.Nil(t, got)
	assert.True(t, tm.IsIdentityViolation(err))
	assert.NotContains(t, a.ItemIdentifiers(), "http://x.org/o")
}

func TestAddSubjectIdentifierMerging_NilTopic(t *testing.T) {
	e, _ := newEngine(t)

	_, err := e.AddSubjectIdentifierMerging(nil, "http://x.org/a")
	assert.True(t, tm.IsViolation(err, tm.CodeNilArgument))
}
