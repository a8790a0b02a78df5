package tm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

const testBase = "http://example.org/map/"

type seqGen struct{ n int }

func (g *seqGen) Generate() string {
	g.n++
	return fmt.Sprintf("urn:test:%d", g.n)
}

func newMap(t *testing.T) *TopicMap {
	t.Helper()
	m, err := New(testBase, WithIDGenerator(&seqGen{}))
	require.NoError(t, err)
	return m
}

func sidTopic(t *testing.T, m *TopicMap, iri string) *Topic {
	t.Helper()
	topic, err := m.CreateTopicBySubjectIdentifier(iri)
	require.NoError(t, err)
	return topic
}

// recorder collects delivered events.
type recorder struct {
	events []Event
}

func record(m *TopicMap) *recorder {
	r := &recorder{}
	m.Bus().SubscribeAll(func(e Event) { r.events = append(r.events, e) })
	return r
}

func (r *recorder) kinds() []EventKind {
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recorder) reset() { r.events = nil }
