package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heuer/mappa/internal/tm"
)

func newMap(t *testing.T) *tm.TopicMap {
	t.Helper()
	m, err := tm.New("http://example.org/map/")
	require.NoError(t, err)
	return m
}

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg, "")
	require.NoError(t, err)

	m.IncMerge(ScopeTopic)
	m.IncIdentityViolation()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"mappa_merges_total",
		"mappa_identity_violations_total",
		"mappa_topics",
	}, names, "vectors without samples are not gathered")
}

func TestNew_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "x")
	require.NoError(t, err)

	_, err = New(reg, "x")
	assert.Error(t, err)
}

func TestObserve_CountsEventsAndTopics(t *testing.T) {
	reg := prometheus.NewRegistry()
	met, err := New(reg, "")
	require.NoError(t, err)

	tmap := newMap(t)
	_, err = tmap.CreateTopic()
	require.NoError(t, err)

	met.Observe(tmap)
	assert.Equal(t, 1.0, promtest.ToFloat64(met.Topics))

	a, err := tmap.CreateTopic()
	require.NoError(t, err)
	_, err = a.CreateName(nil, "A")
	require.NoError(t, err)
	// The default name type topic is created on demand.
	assert.Equal(t, 3.0, promtest.ToFloat64(met.Topics))
	assert.Equal(t, 2.0, promtest.ToFloat64(met.Events.WithLabelValues("add-topic")))
	assert.Equal(t, 1.0, promtest.ToFloat64(met.Events.WithLabelValues("add-name")))

	require.NoError(t, a.Remove())
	assert.Equal(t, 2.0, promtest.ToFloat64(met.Topics))
	assert.Equal(t, 1.0, promtest.ToFloat64(met.Events.WithLabelValues("remove-topic")))
}

func TestNilMetrics_IsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncMerge(ScopeTopicMap)
		m.IncIdentityViolation()
		assert.Equal(t, tm.Subscription(0), m.Observe(newMap(t)))
	})
}
