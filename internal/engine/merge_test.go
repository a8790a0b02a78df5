package engine

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heuer/mappa/internal/metrics"
	"github.com/heuer/mappa/internal/tm"
)

// =============================================================================
// Preconditions
// =============================================================================

func TestMergeTopics_NilArgument(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")

	err := e.MergeTopics(nil, a)
	assert.True(t, tm.IsViolation(err, tm.CodeNilArgument))
}

func TestMergeTopics_ForeignMap(t *testing.T) {
	e, m := newEngine(t)
	other := newMap(t, "http://example.org/other/")
	a := sid(t, m, "http://x.org/a")
	b := sid(t, other, "http://x.org/b")

	err := e.MergeTopics(b, a)
	assert.True(t, tm.IsViolation(err, tm.CodeForeignMap))
}

func TestMergeTopics_SameTopicIsNoop(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")

	require.NoError(t, e.MergeTopics(a, a))
	assert.False(t, a.IsRemoved())
}

func TestMergeTopics_RemovedSource(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	gone := sid(t, m, "http://x.org/gone")
	require.NoError(t, gone.Remove())

	err := e.MergeTopics(gone, a)
	assert.True(t, tm.IsViolation(err, tm.CodeRemovedConstruct))
}

func TestMergeTopics_BothReifyDifferentConstructs(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")
	typ := sid(t, m, "http://x.org/type")
	x1, err := m.CreateAssociation(typ)
	require.NoError(t, err)
	x2, err := m.CreateAssociation(typ)
	require.NoError(t, err)
	require.NoError(t, x1.SetReifier(a))
	require.NoError(t, x2.SetReifier(b))

	err = e.MergeTopics(b, a)
	assert.True(t, tm.IsViolation(err, tm.CodeReifierConflict))
	assert.False(t, b.IsRemoved())
	assert.Same(t, b, x2.Reifier())
}

// =============================================================================
// Identities and reification
// =============================================================================

func TestMergeTopics_IdentityCollision(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	b, err := m.CreateTopic()
	require.NoError(t, err)
	iid := b.ItemIdentifiers()[0]

	err = b.AddSubjectIdentifier("http://x.org/a")
	iv, ok := tm.AsIdentityViolation(err)
	require.True(t, ok, "expected identity violation, got %v", err)
	assert.Same(t, a, iv.Existing)
	assert.Empty(t, b.SubjectIdentifiers(), "failed claim leaves the topic unchanged")

	require.NoError(t, e.MergeTopics(b, a))

	assert.Equal(t, []string{"http://x.org/a"}, a.SubjectIdentifiers())
	assert.Equal(t, []string{iid}, a.ItemIdentifiers())
	assert.True(t, b.IsRemoved())
	assert.Same(t, a, m.TopicByID(b.ID()), "stale handles resolve to the survivor")
	assert.Equal(t, []*tm.Topic{a}, m.Topics())
	assert.Same(t, a, m.ConstructByItemIdentifier(iid))
}

func TestMergeTopics_SourceHoldsOneIRIAsItemAndSubjectIdentifier(t *testing.T) {
	e, m := newEngine(t)
	s, err := m.CreateTopicByItemIdentifier("http://x.org/a")
	require.NoError(t, err)
	same, err := m.CreateTopicBySubjectIdentifier("http://x.org/a")
	require.NoError(t, err)
	require.Same(t, s, same)
	b := sid(t, m, "http://x.org/b")

	require.NoError(t, e.MergeTopics(s, b))

	assert.True(t, s.IsRemoved())
	assert.Equal(t, []string{"http://x.org/a"}, b.ItemIdentifiers())
	assert.ElementsMatch(t, []string{"http://x.org/a", "http://x.org/b"}, b.SubjectIdentifiers())
	assert.Same(t, b, m.ConstructByItemIdentifier("http://x.org/a"))
	assert.Same(t, b, m.TopicBySubjectIdentifier("http://x.org/a"))
	requireConsistent(t, e, m)
}

func TestMergeTopics_TargetHoldsOneIRIAsItemAndSubjectIdentifier(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	target, err := m.CreateTopicByItemIdentifier("http://x.org/t")
	require.NoError(t, err)
	require.NoError(t, target.AddSubjectIdentifier("http://x.org/t"))

	require.NoError(t, e.MergeTopics(a, target))

	assert.Equal(t, []string{"http://x.org/t"}, target.ItemIdentifiers())
	assert.ElementsMatch(t, []string{"http://x.org/t", "http://x.org/a"}, target.SubjectIdentifiers())
	requireConsistent(t, e, m)
}

func TestMergeTopics_Idempotent(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")

	require.NoError(t, e.MergeTopics(b, a))
	require.NoError(t, e.MergeTopics(b, a), "merging a merged source again is a no-op")

	assert.ElementsMatch(t, []string{"http://x.org/a", "http://x.org/b"}, a.SubjectIdentifiers())
	assert.Equal(t, []*tm.Topic{a}, m.Topics())
}

func TestMergeTopics_SubjectLocators(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	b, err := m.CreateTopicBySubjectLocator("http://x.org/doc")
	require.NoError(t, err)

	require.NoError(t, e.MergeTopics(b, a))

	assert.Equal(t, []string{"http://x.org/doc"}, a.SubjectLocators())
	assert.Same(t, a, m.TopicBySubjectLocator("http://x.org/doc"))
}

func TestMergeTopics_MovesReifiedConstruct(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")
	typ := sid(t, m, "http://x.org/type")
	x, err := m.CreateAssociation(typ)
	require.NoError(t, err)
	require.NoError(t, x.SetReifier(b))

	require.NoError(t, e.MergeTopics(b, a))

	assert.Same(t, a, x.Reifier())
	assert.Same(t, x, a.Reified())
}

// =============================================================================
// Usages
// =============================================================================

func TestMergeTopics_RetargetsTypesAndThemes(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")
	holder := sid(t, m, "http://x.org/holder")
	o, err := holder.CreateOccurrence(b, "v", "", b)
	require.NoError(t, err)
	x, err := m.CreateAssociation(b)
	require.NoError(t, err)

	require.NoError(t, e.MergeTopics(b, a))

	assert.Same(t, a, o.Type())
	assert.Equal(t, []*tm.Topic{a}, o.Scope())
	assert.Same(t, a, x.Type())
	assert.Equal(t, []*tm.Occurrence{o}, e.Index().TypeInstance.Occurrences(a))
	assert.Equal(t, []*tm.Occurrence{o}, e.Index().Scoped.Occurrences(a))
	assert.Empty(t, e.Index().TypedBy(b))
}

func TestMergeTopics_DropsRedundantVariant(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")
	holder := sid(t, m, "http://x.org/holder")
	n, err := holder.CreateName(nil, "Name", a)
	require.NoError(t, err)
	v, err := n.CreateVariant("name", "", b)
	require.NoError(t, err)

	require.NoError(t, e.MergeTopics(b, a))

	assert.True(t, v.IsRemoved(), "variant scope {a} adds nothing to name scope {a}")
	assert.Empty(t, n.Variants())
}

// =============================================================================
// Characteristics
// =============================================================================

func TestMergeTopics_FoldsDuplicateOccurrences(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")
	typ := sid(t, m, "http://x.org/type")
	r := sid(t, m, "http://x.org/reifier")

	oa, err := a.CreateOccurrence(typ, "v", "")
	require.NoError(t, err)
	ob, err := b.CreateOccurrence(typ, "v", "")
	require.NoError(t, err)
	require.NoError(t, ob.AddItemIdentifier("http://x.org/ob"))
	require.NoError(t, ob.SetReifier(r))
	other, err := b.CreateOccurrence(typ, "w", "")
	require.NoError(t, err)

	require.NoError(t, e.MergeTopics(b, a))

	assert.Equal(t, []*tm.Occurrence{oa, other}, a.Occurrences())
	assert.True(t, ob.IsRemoved())
	assert.Equal(t, []string{"http://x.org/ob"}, oa.ItemIdentifiers())
	assert.Same(t, r, oa.Reifier())
	assert.Same(t, a, other.Topic())
}

func TestMergeTopics_ReifierCollisionCascades(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")
	typ := sid(t, m, "http://x.org/type")
	ra := sid(t, m, "http://x.org/ra")
	rb := sid(t, m, "http://x.org/rb")

	oa, err := a.CreateOccurrence(typ, "v", "")
	require.NoError(t, err)
	ob, err := b.CreateOccurrence(typ, "v", "")
	require.NoError(t, err)
	require.NoError(t, oa.SetReifier(ra))
	require.NoError(t, ob.SetReifier(rb))

	require.NoError(t, e.MergeTopics(b, a))

	assert.True(t, rb.IsRemoved())
	assert.Same(t, ra, m.TopicByID(rb.ID()))
	assert.ElementsMatch(t, []string{"http://x.org/ra", "http://x.org/rb"}, ra.SubjectIdentifiers())
	assert.Same(t, ra, oa.Reifier())
}

func TestMergeTopics_LogsMergedPairs(t *testing.T) {
	var buf bytes.Buffer
	e, m := newEngine(t, WithLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")
	typ := sid(t, m, "http://x.org/type")
	oa, err := a.CreateOccurrence(typ, "v", "")
	require.NoError(t, err)
	ob, err := b.CreateOccurrence(typ, "v", "")
	require.NoError(t, err)
	require.NoError(t, oa.SetReifier(sid(t, m, "http://x.org/ra")))
	require.NoError(t, ob.SetReifier(sid(t, m, "http://x.org/rb")))

	require.NoError(t, e.MergeTopics(b, a))

	assert.Contains(t, buf.String(), "msg=\"merge complete\"")
	assert.Contains(t, buf.String(), "pairs=2")
}

func TestMergeTopics_FailedCascadeLeavesMapConsistent(t *testing.T) {
	e, m := newEngine(t, WithMaxCascade(1))
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")
	require.NoError(t, b.AddItemIdentifier("http://x.org/b-item"))
	typ := sid(t, m, "http://x.org/type")
	oa, err := a.CreateOccurrence(typ, "v", "")
	require.NoError(t, err)
	ob, err := b.CreateOccurrence(typ, "v", "")
	require.NoError(t, err)
	require.NoError(t, oa.SetReifier(sid(t, m, "http://x.org/ra")))
	require.NoError(t, ob.SetReifier(sid(t, m, "http://x.org/rb")))

	err = e.MergeTopics(b, a)
	require.True(t, IsCascadeLimitError(err), "got %v", err)

	requireConsistent(t, e, m)
	assert.Equal(t, 5, m.IdentityCount(tm.SubjectIdentifier))
	assert.Equal(t, 1, m.IdentityCount(tm.ItemIdentifier))
	assert.Same(t, a, m.ConstructByItemIdentifier("http://x.org/b-item"))
	assert.ElementsMatch(t, []tm.Construct{oa, ob}, e.Index().TypedBy(typ))
}

func TestMergeTopics_CascadeLimit(t *testing.T) {
	e, m := newEngine(t, WithMaxCascade(1))
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")
	typ := sid(t, m, "http://x.org/type")
	oa, err := a.CreateOccurrence(typ, "v", "")
	require.NoError(t, err)
	ob, err := b.CreateOccurrence(typ, "v", "")
	require.NoError(t, err)
	require.NoError(t, oa.SetReifier(sid(t, m, "http://x.org/ra")))
	require.NoError(t, ob.SetReifier(sid(t, m, "http://x.org/rb")))

	err = e.MergeTopics(b, a)
	assert.True(t, IsCascadeLimitError(err), "got %v", err)
}

func TestMergeTopics_FoldsNamesAndVariants(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")
	t1 := sid(t, m, "http://x.org/t1")
	t2 := sid(t, m, "http://x.org/t2")

	na, err := a.CreateName(nil, "N")
	require.NoError(t, err)
	va, err := na.CreateVariant("n", "", t1)
	require.NoError(t, err)
	nb, err := b.CreateName(nil, "N")
	require.NoError(t, err)
	vb1, err := nb.CreateVariant("n", "", t1)
	require.NoError(t, err)
	require.NoError(t, vb1.AddItemIdentifier("http://x.org/vb1"))
	vb2, err := nb.CreateVariant("m", "", t2)
	require.NoError(t, err)

	require.NoError(t, e.MergeTopics(b, a))

	assert.Equal(t, []*tm.Name{na}, a.Names())
	assert.True(t, nb.IsRemoved())
	assert.Equal(t, []*tm.Variant{va, vb2}, na.Variants())
	assert.True(t, vb1.IsRemoved())
	assert.Equal(t, []string{"http://x.org/vb1"}, va.ItemIdentifiers())
}

// =============================================================================
// Roles and associations
// =============================================================================

func TestMergeTopics_FoldsDuplicateAssociations(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")
	group := sid(t, m, "http://x.org/group")
	memberOf := sid(t, m, "http://x.org/member-of")
	member := sid(t, m, "http://x.org/member")
	container := sid(t, m, "http://x.org/container")

	x1, err := m.CreateAssociation(memberOf)
	require.NoError(t, err)
	_, err = x1.CreateRole(member, a)
	require.NoError(t, err)
	_, err = x1.CreateRole(container, group)
	require.NoError(t, err)

	x2, err := m.CreateAssociation(memberOf)
	require.NoError(t, err)
	rb, err := x2.CreateRole(member, b)
	require.NoError(t, err)
	_, err = x2.CreateRole(container, group)
	require.NoError(t, err)
	require.NoError(t, x2.AddItemIdentifier("http://x.org/x2"))
	require.NoError(t, rb.AddItemIdentifier("http://x.org/rb"))

	require.NoError(t, e.MergeTopics(b, a))

	assert.Equal(t, []*tm.Association{x1}, m.Associations())
	assert.True(t, x2.IsRemoved())
	assert.Contains(t, x1.ItemIdentifiers(), "http://x.org/x2")
	require.Len(t, a.RolesPlayed(), 1)
	assert.Equal(t, []string{"http://x.org/rb"}, a.RolesPlayed()[0].ItemIdentifiers())
	assert.Len(t, group.RolesPlayed(), 1)
}

func TestMergeTopics_KeepsDistinctAssociations(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")
	typ := sid(t, m, "http://x.org/type")
	role := sid(t, m, "http://x.org/role")

	x1, err := m.CreateAssociation(typ)
	require.NoError(t, err)
	_, err = x1.CreateRole(role, a)
	require.NoError(t, err)
	x2, err := m.CreateAssociation(typ, role)
	require.NoError(t, err)
	r2, err := x2.CreateRole(role, b)
	require.NoError(t, err)

	require.NoError(t, e.MergeTopics(b, a))

	assert.Equal(t, []*tm.Association{x1, x2}, m.Associations(), "scopes differ")
	assert.Same(t, a, r2.Player())
}

func TestMergeTopics_FoldsAssociationsEqualAfterRetyping(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")
	role := sid(t, m, "http://x.org/role")
	p := sid(t, m, "http://x.org/p")

	xa, err := m.CreateAssociation(a)
	require.NoError(t, err)
	_, err = xa.CreateRole(role, p)
	require.NoError(t, err)
	require.NoError(t, xa.AddItemIdentifier("http://x.org/xa"))
	xb, err := m.CreateAssociation(b)
	require.NoError(t, err)
	_, err = xb.CreateRole(role, p)
	require.NoError(t, err)

	require.NoError(t, e.MergeTopics(a, b))

	assert.Equal(t, []*tm.Association{xb}, m.Associations())
	assert.True(t, xa.IsRemoved())
	assert.Equal(t, []string{"http://x.org/xa"}, xb.ItemIdentifiers())
	assert.Len(t, p.RolesPlayed(), 1)
	requireConsistent(t, e, m)
}

func TestMergeTopics_FoldsOccurrencesEqualAfterRetyping(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")
	x := sid(t, m, "http://x.org/x")

	oa, err := x.CreateOccurrence(a, "v", "")
	require.NoError(t, err)
	ob, err := x.CreateOccurrence(b, "v", "")
	require.NoError(t, err)
	keep, err := x.CreateOccurrence(b, "w", "")
	require.NoError(t, err)

	require.NoError(t, e.MergeTopics(a, b))

	assert.Equal(t, []*tm.Occurrence{ob, keep}, x.Occurrences())
	assert.True(t, oa.IsRemoved())
	requireConsistent(t, e, m)
}

func TestMergeTopics_FoldsNamesEqualAfterRetheming(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")
	x := sid(t, m, "http://x.org/x")
	theme := sid(t, m, "http://x.org/theme")

	na, err := x.CreateName(nil, "X", a)
	require.NoError(t, err)
	_, err = na.CreateVariant("x", "", theme)
	require.NoError(t, err)
	nb, err := x.CreateName(nil, "X", b)
	require.NoError(t, err)

	require.NoError(t, e.MergeTopics(a, b))

	assert.Equal(t, []*tm.Name{nb}, x.Names())
	assert.True(t, na.IsRemoved())
	require.Len(t, nb.Variants(), 1)
	assert.Equal(t, "x", nb.Variants()[0].Value())
	requireConsistent(t, e, m)
}

func TestMergeTopics_UnifiesTopicTypes(t *testing.T) {
	e, m := newEngine(t)
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")
	person := sid(t, m, "http://x.org/person")
	require.NoError(t, a.AddType(person))
	require.NoError(t, b.AddType(person))
	require.Len(t, m.Associations(), 2)

	require.NoError(t, e.MergeTopics(b, a))

	assert.Len(t, m.Associations(), 1)
	assert.Equal(t, []*tm.Topic{person}, a.Types())
	assert.Equal(t, []*tm.Topic{a}, e.Index().TypeInstance.TopicInstances(person))
}

// =============================================================================
// Metrics
// =============================================================================

func TestMergeTopics_CountsMerges(t *testing.T) {
	met, err := metrics.New(prometheus.NewRegistry(), "")
	require.NoError(t, err)
	e, m := newEngine(t, WithMetrics(met))
	a := sid(t, m, "http://x.org/a")
	b := sid(t, m, "http://x.org/b")

	require.NoError(t, e.MergeTopics(b, a))

	assert.Equal(t, 1.0, promtest.ToFloat64(met.Merges.WithLabelValues(metrics.ScopeTopic)))
	assert.Equal(t, 1.0, promtest.ToFloat64(met.Events.WithLabelValues("remove-topic")))
}
