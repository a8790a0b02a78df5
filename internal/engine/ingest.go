package engine

import "github.com/heuer/mappa/internal/tm"

// AddSubjectIdentifierMerging adds iri to t. When another topic already
// holds iri, t is merged into that topic and the survivor is returned.
// This is the merge-on-collision policy expected from ingestion code.
func (e *Engine) AddSubjectIdentifierMerging(t *tm.Topic, iri string) (*tm.Topic, error) {
	return e.addMerging(t, tm.SubjectIdentifier, iri)
}

// AddSubjectLocatorMerging is AddSubjectIdentifierMerging for subject
// locators.
func (e *Engine) AddSubjectLocatorMerging(t *tm.Topic, iri string) (*tm.Topic, error) {
	return e.addMerging(t, tm.SubjectLocator, iri)
}

// AddItemIdentifierMerging is AddSubjectIdentifierMerging for item
// identifiers. A collision with a construct other than a topic is
// returned as is.
func (e *Engine) AddItemIdentifierMerging(t *tm.Topic, iri string) (*tm.Topic, error) {
	return e.addMerging(t, tm.ItemIdentifier, iri)
}

func (e *Engine) addMerging(t *tm.Topic, kind tm.IdentityKind, iri string) (*tm.Topic, error) {
	if t == nil {
		return nil, &tm.ModelConstraintViolation{Code: tm.CodeNilArgument, Message: "topic must not be nil"}
	}
	err := addIdentity(t, kind, iri)
	iv, ok := tm.AsIdentityViolation(err)
	if !ok {
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	e.metrics.IncIdentityViolation()
	existing, ok := iv.Existing.(*tm.Topic)
	if !ok {
		return nil, err
	}
	if err := e.MergeTopics(t, existing); err != nil {
		return nil, err
	}
	survivor := e.m.TopicByID(existing.ID())
	if err := addIdentity(survivor, kind, iri); err != nil {
		return nil, err
	}
	return survivor, nil
}
