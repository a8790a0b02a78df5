package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heuer/mappa/internal/tm"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Kind: "add-topic", Source: "topic#2"},
		{Seq: 2, Kind: "add-topic", Source: "topic#3"},
		{Seq: 3, Kind: "add-name", Source: "name#4"},
		{Seq: 4, Kind: "remove-topic", Source: "topic#3"},
	}
}

func TestAssertEventCount(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertEventCount(trace, Assertion{Kind: "add-topic", Count: 2}))
	assert.NoError(t, assertEventCount(trace, Assertion{Kind: "set-type", Count: 0}))

	err := assertEventCount(trace, Assertion{Kind: "add-name", Count: 2})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "2 add-name events", ae.Expected)
	assert.Equal(t, "1 add-name events", ae.Actual)
}

func TestAssertEventOrder_InterveningEventsAllowed(t *testing.T) {
	err := assertEventOrder(sampleTrace(), Assertion{Kinds: []string{"add-topic", "remove-topic"}})
	assert.NoError(t, err)
}

func TestAssertEventOrder_WrongOrder(t *testing.T) {
	err := assertEventOrder(sampleTrace(), Assertion{Kinds: []string{"remove-topic", "add-name"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "add-name not found after [remove-topic]")
}

func TestAssertEventOrder_Repeated(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertEventOrder(trace, Assertion{Kinds: []string{"add-topic", "add-topic"}}))
	assert.Error(t, assertEventOrder(trace, Assertion{Kinds: []string{"add-name", "add-name"}}))
}

func TestAssertCount(t *testing.T) {
	assert.NoError(t, assertCount(AssertTopicCount, 3, 3))
	err := assertCount(AssertTopicCount, 3, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Assertion failed: topic_count")
}

func newAssertionContext(t *testing.T) *AssertionContext {
	t.Helper()
	m, err := tm.New("http://example.org/map/")
	require.NoError(t, err)
	a, err := m.CreateTopicBySubjectIdentifier("http://x.org/a")
	require.NoError(t, err)
	_, err = a.CreateName(nil, "Alpha")
	require.NoError(t, err)
	gone, err := m.CreateTopicBySubjectIdentifier("http://x.org/gone")
	require.NoError(t, err)
	require.NoError(t, gone.RemoveSubjectIdentifier("http://x.org/gone"))
	require.NoError(t, gone.Remove())
	return &AssertionContext{Map: m, Refs: map[string]tm.Construct{"a": a, "gone": gone}}
}

func TestAssertResolves(t *testing.T) {
	actx := newAssertionContext(t)
	assert.NoError(t, assertResolves(Assertion{Kind: "sid", IRI: "http://x.org/a", Ref: "a"}, actx))
	assert.NoError(t, assertResolves(Assertion{Kind: "sid", IRI: "http://x.org/gone"}, actx))
	assert.Error(t, assertResolves(Assertion{Kind: "sid", IRI: "http://x.org/a"}, actx))
	assert.Error(t, assertResolves(Assertion{Kind: "slo", IRI: "http://x.org/a", Ref: "a"}, actx))
	assert.Error(t, assertResolves(Assertion{Kind: "sid", IRI: "http://x.org/a", Ref: "nope"}, actx))

	err := assertResolves(Assertion{Kind: "sii", IRI: "http://x.org/a"}, actx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown identity kind "sii"`)
}

func TestAssertRemoved(t *testing.T) {
	actx := newAssertionContext(t)
	assert.NoError(t, assertRemoved(Assertion{Ref: "gone"}, actx))
	assert.Error(t, assertRemoved(Assertion{Ref: "a"}, actx))
	assert.Error(t, assertRemoved(Assertion{Ref: "nope"}, actx))
}

func TestAssertNames(t *testing.T) {
	actx := newAssertionContext(t)
	assert.NoError(t, assertNames(Assertion{Ref: "a", Values: []string{"Alpha"}}, actx))

	err := assertNames(Assertion{Ref: "a", Values: []string{"Beta"}}, actx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[Alpha]")
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()
	actx := newAssertionContext(t)

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertEventCount, Kind: "add-topic", Count: 2},
		{Type: AssertTopicCount, Count: 99},
		{Type: "unknown"},
	}, actx)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertion 1")
	assert.Contains(t, errs[1], "unknown assertion type: unknown")
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertEventCount,
		Expected: "1 add-topic events",
		Actual:   "0 add-topic events",
		Trace:    sampleTrace()[:1],
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: event_count")
	assert.Contains(t, msg, "Expected: 1 add-topic events")
	assert.Contains(t, msg, "Actual: 0 add-topic events")
	assert.Contains(t, msg, "[1] add-topic topic#2")
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
