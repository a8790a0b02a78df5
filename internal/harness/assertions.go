package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/heuer/mappa/internal/tm"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Kind, event.Source)
		}
	}
	return buf.String()
}

// AssertionContext carries the final state assertions look at.
type AssertionContext struct {
	Map  *tm.TopicMap
	Refs map[string]tm.Construct
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertTopicCount:
		return assertCount(a.Type, a.Count, len(actx.Map.Topics()))
	case AssertAssociationCount:
		return assertCount(a.Type, a.Count, len(actx.Map.Associations()))
	case AssertJournalCount:
		return assertCount(a.Type, a.Count, result.Journaled)
	case AssertEventCount:
		return assertEventCount(result.Trace, a)
	case AssertEventOrder:
		return assertEventOrder(result.Trace, a)
	case AssertResolves:
		return assertResolves(a, actx)
	case AssertRemoved:
		return assertRemoved(a, actx)
	case AssertNames:
		return assertNames(a, actx)
	}
	return fmt.Errorf("unknown assertion type: %s", a.Type)
}

func assertCount(typ string, expected, actual int) error {
	if expected != actual {
		return &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("%d", expected),
			Actual:   fmt.Sprintf("%d", actual),
		}
	}
	return nil
}

// assertEventCount checks how often an event kind was delivered.
func assertEventCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, e := range trace {
		if e.Kind == a.Kind {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s events", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d %s events", n, a.Kind),
			Trace:    trace,
		}
	}
	return nil
}

// assertEventOrder checks that the kinds occur in the given order.
// Kinds need not be consecutive; intervening events are allowed.
func assertEventOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, e := range trace {
		if next < len(a.Kinds) && e.Kind == a.Kinds[next] {
			next++
		}
	}
	if next < len(a.Kinds) {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: strings.Join(a.Kinds, " -> "),
			Actual:   fmt.Sprintf("%s not found after %v", a.Kinds[next], a.Kinds[:next]),
			Trace:    trace,
		}
	}
	return nil
}

// assertResolves checks that an identity resolves to the ref's construct,
// or to nothing when Ref is empty.
func assertResolves(a Assertion, actx *AssertionContext) error {
	var got tm.Construct
	switch a.Kind {
	case "sid":
		if t := actx.Map.TopicBySubjectIdentifier(a.IRI); t != nil {
			got = t
		}
	case "slo":
		if t := actx.Map.TopicBySubjectLocator(a.IRI); t != nil {
			got = t
		}
	case "iid":
		got = actx.Map.ConstructByItemIdentifier(a.IRI)
	default:
		return fmt.Errorf("unknown identity kind %q", a.Kind)
	}

	want := tm.Construct(nil)
	if a.Ref != "" {
		c, err := resolveRef(a.Ref, actx)
		if err != nil {
			return err
		}
		want = c
	}
	if describe(want) != describe(got) {
		return &AssertionError{
			Type:     AssertResolves,
			Expected: fmt.Sprintf("%s %s -> %s", a.Kind, a.IRI, describe(want)),
			Actual:   describe(got),
		}
	}
	return nil
}

// assertRemoved checks that the ref's construct is gone. A topic merged
// into another counts as removed.
func assertRemoved(a Assertion, actx *AssertionContext) error {
	c, ok := actx.Refs[a.Ref]
	if !ok {
		return fmt.Errorf("unknown ref %q", a.Ref)
	}
	if !c.IsRemoved() {
		return &AssertionError{
			Type:     AssertRemoved,
			Expected: fmt.Sprintf("%s removed", a.Ref),
			Actual:   fmt.Sprintf("%s is live", tm.Describe(c)),
		}
	}
	return nil
}

// assertNames checks the name values of a topic, ignoring order.
func assertNames(a Assertion, actx *AssertionContext) error {
	c, err := resolveRef(a.Ref, actx)
	if err != nil {
		return err
	}
	t, ok := c.(*tm.Topic)
	if !ok {
		return fmt.Errorf("ref %q is a %s, not a topic", a.Ref, c.Kind())
	}
	var got []string
	for _, n := range t.Names() {
		got = append(got, n.Value())
	}
	want := slices.Clone(a.Values)
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertNames,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// resolveRef looks up a ref; topics resolve to their merge survivor.
func resolveRef(ref string, actx *AssertionContext) (tm.Construct, error) {
	c, ok := actx.Refs[ref]
	if !ok {
		return nil, fmt.Errorf("unknown ref %q", ref)
	}
	if t, ok := c.(*tm.Topic); ok {
		if survivor := actx.Map.TopicByID(t.ID()); survivor != nil {
			return survivor, nil
		}
	}
	return c, nil
}

func describe(c tm.Construct) string {
	if c == nil {
		return "nothing"
	}
	return tm.Describe(c)
}
