package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/heuer/mappa/internal/engine"
	"github.com/heuer/mappa/internal/metrics"
	"github.com/heuer/mappa/internal/store"
	"github.com/heuer/mappa/internal/testutil"
	"github.com/heuer/mappa/internal/tm"
)

// Harness executes the steps of one scenario.
type Harness struct {
	engine *engine.Engine
	maps   map[string]*tm.TopicMap
	refs   map[string]map[string]tm.Construct
}

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	store       *store.Store
	metrics     *metrics.Metrics
	logger      *slog.Logger
	baseLocator string
}

// WithStore journals the main map into st under a fresh UUIDv7 session
// instead of a private in-memory store.
func WithStore(st *store.Store) Option {
	return func(c *runConfig) { c.store = st }
}

// WithMetrics feeds the engine's collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *runConfig) { c.metrics = m }
}

// WithLogger replaces the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// WithBaseLocator sets the main map's base locator for scenarios that do
// not set one.
func WithBaseLocator(base string) Option {
	return func(c *runConfig) { c.baseLocator = base }
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against fresh topic maps. Item identifiers come from
// testutil.SequentialIDs, so the same scenario always produces the same
// trace and snapshot. Without WithStore the journal is a fresh in-memory
// database with a fixed session id.
//
// Execution flow:
// 1. Create the main map, its merge engine and its journal
// 2. Execute steps in order, stopping at the first unexpected error
// 3. Snapshot the main map
// 4. Evaluate assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		baseLocator: DefaultBaseLocator,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx := context.Background()

	base := scenario.BaseLocator
	if base == "" {
		base = cfg.baseLocator
	}
	main, err := tm.New(base, tm.WithIDGenerator(testutil.NewSequentialIDs("urn:"+MainMap+":")))
	if err != nil {
		return nil, fmt.Errorf("failed to create main map: %w", err)
	}

	st := cfg.store
	journalOpts := []store.JournalOption{store.WithLogger(cfg.logger), store.WithLabel(scenario.Name)}
	if st == nil {
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
		journalOpts = append(journalOpts, store.WithSessionGenerator(testutil.NewFixedSessionGenerator("")))
	}
	journal, err := st.Attach(ctx, main, journalOpts...)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		engine: engine.New(main, engine.WithLogger(cfg.logger), engine.WithMetrics(cfg.metrics)),
		maps:   map[string]*tm.TopicMap{MainMap: main},
		refs:   map[string]map[string]tm.Construct{},
	}
	defer h.engine.Close()

	result := NewResult()
	result.Session = journal.Session()
	sub := main.Bus().SubscribeAll(func(e tm.Event) {
		result.AddTrace(e.Seq, e.Kind.String(), tm.Describe(e.Source))
	})

	for i, step := range scenario.Steps {
		err := h.execute(step)
		if step.ExpectError != "" {
			if err == nil {
				result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got none", i, step.Op, step.ExpectError))
			} else if code := ErrorCode(err); code != step.ExpectError {
				result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %s: %v", i, step.Op, step.ExpectError, code, err))
			}
			continue
		}
		if err != nil {
			cfg.logger.Debug("step failed", "step", i, "op", step.Op, "error", err)
			result.AddError(fmt.Sprintf("step %d (%s): %v", i, step.Op, err))
			break
		}
	}
	main.Bus().Unsubscribe(sub)
	journal.Close()

	n, err := st.CountEvents(ctx, journal.Session())
	if err != nil {
		return nil, fmt.Errorf("failed to count journal events: %w", err)
	}
	result.Journaled = n
	result.Snapshot = Snapshot(scenario.Name, main)

	actx := &AssertionContext{Map: main, Refs: h.refs[MainMap]}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// ErrorCode maps an error to the code scenarios expect:
// "IDENTITY_VIOLATION", a model violation code or a merge error code.
// Other errors map to "ERROR".
func ErrorCode(err error) string {
	var mcv *tm.ModelConstraintViolation
	var me *engine.MergeError
	switch {
	case tm.IsIdentityViolation(err):
		return "IDENTITY_VIOLATION"
	case errors.As(err, &mcv):
		return string(mcv.Code)
	case errors.As(err, &me):
		return string(me.Code)
	}
	return "ERROR"
}

// mapOf returns the named map, creating it on first use.
func (h *Harness) mapOf(name string) (*tm.TopicMap, error) {
	if name == "" {
		name = MainMap
	}
	if m, ok := h.maps[name]; ok {
		return m, nil
	}
	m, err := tm.New("http://example.org/"+name+"/",
		tm.WithIDGenerator(testutil.NewSequentialIDs("urn:"+name+":")))
	if err != nil {
		return nil, err
	}
	h.maps[name] = m
	return m, nil
}

func (h *Harness) bind(mapName, ref string, c tm.Construct) {
	if ref == "" {
		return
	}
	if mapName == "" {
		mapName = MainMap
	}
	if h.refs[mapName] == nil {
		h.refs[mapName] = map[string]tm.Construct{}
	}
	h.refs[mapName][ref] = c
}

// lookup resolves a ref. Topic refs follow merges to the survivor.
func (h *Harness) lookup(m *tm.TopicMap, mapName, ref string) (tm.Construct, error) {
	if mapName == "" {
		mapName = MainMap
	}
	c, ok := h.refs[mapName][ref]
	if !ok {
		return nil, fmt.Errorf("unknown ref %q in map %q", ref, mapName)
	}
	if t, ok := c.(*tm.Topic); ok {
		if survivor := m.TopicByID(t.ID()); survivor != nil {
			return survivor, nil
		}
	}
	return c, nil
}

func (h *Harness) topic(m *tm.TopicMap, mapName, ref string) (*tm.Topic, error) {
	if ref == "" {
		return nil, nil
	}
	c, err := h.lookup(m, mapName, ref)
	if err != nil {
		return nil, err
	}
	t, ok := c.(*tm.Topic)
	if !ok {
		return nil, fmt.Errorf("ref %q is a %s, not a topic", ref, c.Kind())
	}
	return t, nil
}

func (h *Harness) topics(m *tm.TopicMap, mapName string, refs []string) ([]*tm.Topic, error) {
	out := make([]*tm.Topic, 0, len(refs))
	for _, ref := range refs {
		t, err := h.topic(m, mapName, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// execute runs one step.
func (h *Harness) execute(step Step) error {
	m, err := h.mapOf(step.Map)
	if err != nil {
		return err
	}
	switch step.Op {
	case OpTopic:
		return h.createTopic(m, step)
	case OpOccurrence:
		return h.createOccurrence(m, step)
	case OpName:
		return h.createName(m, step)
	case OpVariant:
		return h.createVariant(m, step)
	case OpAssociation:
		return h.createAssociation(m, step)
	case OpAddIdentity:
		return h.addIdentity(m, step)
	case OpRemoveIdentity:
		return h.removeIdentity(m, step)
	case OpAddType:
		return h.addType(m, step)
	case OpReify:
		return h.reify(m, step)
	case OpRemove:
		return h.remove(m, step)
	case OpMergeTopics:
		return h.mergeTopics(m, step)
	case OpMergeMap:
		return h.mergeMap(step)
	}
	return fmt.Errorf("unknown op %q", step.Op)
}

// createTopic creates a topic from its first identity and adds the rest.
func (h *Harness) createTopic(m *tm.TopicMap, step Step) error {
	var t *tm.Topic
	var err error
	type claim struct {
		kind string
		iri  string
	}
	var rest []claim
	for _, iri := range step.SubjectIdentifiers {
		rest = append(rest, claim{"sid", iri})
	}
	for _, iri := range step.SubjectLocators {
		rest = append(rest, claim{"slo", iri})
	}
	for _, iri := range step.ItemIdentifiers {
		rest = append(rest, claim{"iid", iri})
	}

	if len(rest) == 0 {
		t, err = m.CreateTopic()
	} else {
		first := rest[0]
		rest = rest[1:]
		switch first.kind {
		case "sid":
			t, err = m.CreateTopicBySubjectIdentifier(first.iri)
		case "slo":
			t, err = m.CreateTopicBySubjectLocator(first.iri)
		default:
			t, err = m.CreateTopicByItemIdentifier(first.iri)
		}
	}
	if err != nil {
		return err
	}
	h.bind(step.Map, step.Ref, t)

	for _, c := range rest {
		if t, err = h.identify(m, t, c.kind, c.iri, step.Merging); err != nil {
			return err
		}
	}
	return nil
}

// identify adds an identity to c and returns the construct that holds it
// afterwards, which differs from c after a merging add.
func (h *Harness) identify(m *tm.TopicMap, c tm.Construct, kind, iri string, merging bool) (*tm.Topic, error) {
	t, isTopic := c.(*tm.Topic)
	if merging {
		if !isTopic {
			return nil, fmt.Errorf("merging add requires a topic, got %s", tm.Describe(c))
		}
		if m != h.engine.Map() {
			return nil, fmt.Errorf("merging add requires the %s map", MainMap)
		}
		switch kind {
		case "sid":
			return h.engine.AddSubjectIdentifierMerging(t, iri)
		case "slo":
			return h.engine.AddSubjectLocatorMerging(t, iri)
		case "iid":
			return h.engine.AddItemIdentifierMerging(t, iri)
		}
		return nil, fmt.Errorf("unknown identity kind %q", kind)
	}

	var err error
	switch {
	case kind == "iid":
		err = c.AddItemIdentifier(iri)
	case !isTopic:
		return nil, fmt.Errorf("%s identity requires a topic, got %s", kind, tm.Describe(c))
	case kind == "sid":
		err = t.AddSubjectIdentifier(iri)
	case kind == "slo":
		err = t.AddSubjectLocator(iri)
	default:
		return nil, fmt.Errorf("unknown identity kind %q", kind)
	}
	return t, err
}

func (h *Harness) createOccurrence(m *tm.TopicMap, step Step) error {
	parent, err := h.topic(m, step.Map, step.Topic)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("occurrence requires a topic")
	}
	typ, err := h.topic(m, step.Map, step.Type)
	if err != nil {
		return err
	}
	scope, err := h.topics(m, step.Map, step.Scope)
	if err != nil {
		return err
	}
	o, err := parent.CreateOccurrence(typ, step.Value, step.Datatype, scope...)
	if err != nil {
		return err
	}
	h.bind(step.Map, step.Ref, o)
	return nil
}

func (h *Harness) createName(m *tm.TopicMap, step Step) error {
	parent, err := h.topic(m, step.Map, step.Topic)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("name requires a topic")
	}
	typ, err := h.topic(m, step.Map, step.Type)
	if err != nil {
		return err
	}
	scope, err := h.topics(m, step.Map, step.Scope)
	if err != nil {
		return err
	}
	n, err := parent.CreateName(typ, step.Value, scope...)
	if err != nil {
		return err
	}
	h.bind(step.Map, step.Ref, n)
	return nil
}

func (h *Harness) createVariant(m *tm.TopicMap, step Step) error {
	c, err := h.lookup(m, step.Map, step.Name)
	if err != nil {
		return err
	}
	n, ok := c.(*tm.Name)
	if !ok {
		return fmt.Errorf("ref %q is a %s, not a name", step.Name, c.Kind())
	}
	scope, err := h.topics(m, step.Map, step.Scope)
	if err != nil {
		return err
	}
	v, err := n.CreateVariant(step.Value, step.Datatype, scope...)
	if err != nil {
		return err
	}
	h.bind(step.Map, step.Ref, v)
	return nil
}

func (h *Harness) createAssociation(m *tm.TopicMap, step Step) error {
	typ, err := h.topic(m, step.Map, step.Type)
	if err != nil {
		return err
	}
	scope, err := h.topics(m, step.Map, step.Scope)
	if err != nil {
		return err
	}
	a, err := m.CreateAssociation(typ, scope...)
	if err != nil {
		return err
	}
	h.bind(step.Map, step.Ref, a)
	for _, rs := range step.Roles {
		rt, err := h.topic(m, step.Map, rs.Type)
		if err != nil {
			return err
		}
		player, err := h.topic(m, step.Map, rs.Player)
		if err != nil {
			return err
		}
		r, err := a.CreateRole(rt, player)
		if err != nil {
			return err
		}
		h.bind(step.Map, rs.Ref, r)
	}
	return nil
}

func (h *Harness) addIdentity(m *tm.TopicMap, step Step) error {
	c, err := h.lookup(m, step.Map, step.Construct)
	if err != nil {
		return err
	}
	_, err = h.identify(m, c, step.Kind, step.IRI, step.Merging)
	return err
}

func (h *Harness) removeIdentity(m *tm.TopicMap, step Step) error {
	c, err := h.lookup(m, step.Map, step.Construct)
	if err != nil {
		return err
	}
	if step.Kind == "iid" {
		return c.RemoveItemIdentifier(step.IRI)
	}
	t, ok := c.(*tm.Topic)
	if !ok {
		return fmt.Errorf("%s identity requires a topic, got %s", step.Kind, tm.Describe(c))
	}
	switch step.Kind {
	case "sid":
		return t.RemoveSubjectIdentifier(step.IRI)
	case "slo":
		return t.RemoveSubjectLocator(step.IRI)
	}
	return fmt.Errorf("unknown identity kind %q", step.Kind)
}

func (h *Harness) addType(m *tm.TopicMap, step Step) error {
	t, err := h.topic(m, step.Map, step.Topic)
	if err != nil {
		return err
	}
	typ, err := h.topic(m, step.Map, step.Type)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("add_type requires a topic")
	}
	return t.AddType(typ)
}

// reify sets the reifier of construct to topic. An empty construct ref
// denotes the map itself; an empty topic ref clears the reifier.
func (h *Harness) reify(m *tm.TopicMap, step Step) error {
	var target tm.Reifiable = m
	if step.Construct != "" {
		c, err := h.lookup(m, step.Map, step.Construct)
		if err != nil {
			return err
		}
		r, ok := c.(tm.Reifiable)
		if !ok {
			return fmt.Errorf("%s cannot be reified", tm.Describe(c))
		}
		target = r
	}
	reifier, err := h.topic(m, step.Map, step.Topic)
	if err != nil {
		return err
	}
	return target.SetReifier(reifier)
}

type removable interface {
	Remove() error
}

func (h *Harness) remove(m *tm.TopicMap, step Step) error {
	c, err := h.lookup(m, step.Map, step.Construct)
	if err != nil {
		return err
	}
	r, ok := c.(removable)
	if !ok {
		return fmt.Errorf("%s cannot be removed", tm.Describe(c))
	}
	return r.Remove()
}

func (h *Harness) mergeTopics(m *tm.TopicMap, step Step) error {
	if m != h.engine.Map() {
		return fmt.Errorf("merge_topics requires the %s map", MainMap)
	}
	source, err := h.topic(m, step.Map, step.Source)
	if err != nil {
		return err
	}
	target, err := h.topic(m, step.Map, step.Target)
	if err != nil {
		return err
	}
	return h.engine.MergeTopics(source, target)
}

// mergeMap merges the map named by Source into the main map.
func (h *Harness) mergeMap(step Step) error {
	name := strings.TrimSpace(step.Source)
	if name == "" || name == MainMap {
		return h.engine.MergeTopicMap(h.engine.Map())
	}
	source, ok := h.maps[name]
	if !ok {
		return fmt.Errorf("unknown map %q", name)
	}
	return h.engine.MergeTopicMap(source)
}
