package tm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_SubjectIdentifierAgainstItemIdentifier(t *testing.T) {
	m := newMap(t)
	a := sidTopic(t, m, "http://x.org/a")
	b, err := m.CreateTopicByItemIdentifier("http://x.org/b")
	require.NoError(t, err)
	require.NoError(t, b.AddItemIdentifier("http://x.org/shared"))

	// a may not claim b's item identifier as subject identifier.
	err = a.AddSubjectIdentifier("http://x.org/shared")
	iv, ok := AsIdentityViolation(err)
	require.True(t, ok)
	assert.Equal(t, SubjectIdentifier, iv.Kind)
	assert.Same(t, b, iv.Existing)
	assert.Same(t, a, iv.Construct)

	// b may hold the same IRI both ways.
	require.NoError(t, b.AddSubjectIdentifier("http://x.org/shared"))
}

func TestIdentity_ItemIdentifierAgainstSubjectIdentifier(t *testing.T) {
	m := newMap(t)
	a := sidTopic(t, m, "http://x.org/a")
	typ := sidTopic(t, m, "http://x.org/type")
	occ, err := typ.CreateOccurrence(typ, "v", "")
	require.NoError(t, err)

	err = occ.AddItemIdentifier("http://x.org/a")

	iv, ok := AsIdentityViolation(err)
	require.True(t, ok)
	assert.Same(t, a, iv.Existing)
	assert.Empty(t, occ.ItemIdentifiers())
}

func TestIdentity_Table(t *testing.T) {
	tests := []struct {
		name    string
		kind    IdentityKind
		holder  IdentityKind
		wantErr bool
	}{
		{"iid vs iid", ItemIdentifier, ItemIdentifier, true},
		{"iid vs sid", ItemIdentifier, SubjectIdentifier, true},
		{"sid vs sid", SubjectIdentifier, SubjectIdentifier, true},
		{"sid vs iid", SubjectIdentifier, ItemIdentifier, true},
		{"slo vs slo", SubjectLocator, SubjectLocator, true},
		{"slo vs sid", SubjectLocator, SubjectIdentifier, false},
		{"sid vs slo", SubjectIdentifier, SubjectLocator, false},
		{"iid vs slo", ItemIdentifier, SubjectLocator, false},
	}
	add := func(topic *Topic, kind IdentityKind, iri string) error {
		switch kind {
		case ItemIdentifier:
			return topic.AddItemIdentifier(iri)
		case SubjectIdentifier:
			return topic.AddSubjectIdentifier(iri)
		default:
			return topic.AddSubjectLocator(iri)
		}
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMap(t)
			iri := fmt.Sprintf("http://x.org/%d", i)
			first, err := m.CreateTopic()
			require.NoError(t, err)
			second, err := m.CreateTopic()
			require.NoError(t, err)
			require.NoError(t, add(first, tt.holder, iri))

			err = add(second, tt.kind, iri)

			if tt.wantErr {
				iv, ok := AsIdentityViolation(err)
				require.True(t, ok, "expected identity violation, got %v", err)
				assert.Same(t, first, iv.Existing)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIdentity_NormalizedBeforeComparison(t *testing.T) {
	m := newMap(t)
	sidTopic(t, m, "http://x.org/a/b")
	b, err := m.CreateTopic()
	require.NoError(t, err)

	err = b.AddSubjectIdentifier("HTTP://X.ORG:80/a/./b")

	assert.True(t, IsIdentityViolation(err))
}

func TestIdentity_RemovalFreesIdentifier(t *testing.T) {
	m := newMap(t)
	a := sidTopic(t, m, "http://x.org/a")
	b, err := m.CreateTopic()
	require.NoError(t, err)

	require.NoError(t, a.RemoveSubjectIdentifier("http://x.org/a"))
	require.NoError(t, b.AddSubjectIdentifier("http://x.org/a"))

	assert.Same(t, b, m.TopicBySubjectIdentifier("http://x.org/a"))
	assert.Equal(t, 1, m.IdentityCount(SubjectIdentifier))
}

func TestIdentity_InvalidIRI(t *testing.T) {
	m := newMap(t)
	topic, err := m.CreateTopic()
	require.NoError(t, err)

	err = topic.AddSubjectIdentifier("   ")

	assert.True(t, IsViolation(err, CodeInvalidIRI))
	assert.False(t, IsIdentityViolation(err))
}

func TestIdentityViolation_Error(t *testing.T) {
	m := newMap(t)
	a := sidTopic(t, m, "http://x.org/a")
	b := sidTopic(t, m, "http://x.org/b")

	err := b.AddSubjectIdentifier("http://x.org/a")

	require.Error(t, err)
	assert.Equal(t, fmt.Sprintf("IDENTITY_VIOLATION: subject-identifier <http://x.org/a> of topic#%d collides with topic#%d",
		b.ID(), a.ID()), err.Error())
}
