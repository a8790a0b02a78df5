package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a topic map test scenario.
// Scenarios build one or more topic maps step by step, merge them, and
// assert on the delivered events and the final state of the main map.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// BaseLocator of the main map. Defaults to DefaultBaseLocator.
	BaseLocator string `yaml:"base_locator,omitempty"`

	// Steps are executed in order against the named maps.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultBaseLocator is the base locator of the main map when a scenario
// does not set one.
const DefaultBaseLocator = "http://example.org/map/"

// MainMap is the name of the map assertions and snapshots look at.
const MainMap = "main"

// Step is a single mutation.
//
// Construct arguments (Topic, Type, Scope, Player, Source, Target,
// Construct, Name) are refs bound by earlier steps. Topic refs follow
// merges: a ref to a merged-away topic denotes the survivor.
type Step struct {
	// Op selects the operation, see the Op* constants.
	Op string `yaml:"op"`

	// Map names the map the step applies to. Defaults to MainMap.
	Map string `yaml:"map,omitempty"`

	// Ref binds the created construct to a name.
	Ref string `yaml:"ref,omitempty"`

	// Identities of a new topic.
	SubjectIdentifiers []string `yaml:"sids,omitempty"`
	SubjectLocators    []string `yaml:"slos,omitempty"`
	ItemIdentifiers    []string `yaml:"iids,omitempty"`

	// Characteristics and associations.
	Topic    string     `yaml:"topic,omitempty"`
	Name     string     `yaml:"name,omitempty"`
	Type     string     `yaml:"type,omitempty"`
	Value    string     `yaml:"value,omitempty"`
	Datatype string     `yaml:"datatype,omitempty"`
	Scope    []string   `yaml:"scope,omitempty"`
	Roles    []RoleStep `yaml:"roles,omitempty"`

	// Identity changes: Kind is one of "sid", "slo", "iid".
	Kind string `yaml:"kind,omitempty"`
	IRI  string `yaml:"iri,omitempty"`

	// Merging resolves an identity collision by merging into the holder.
	Merging bool `yaml:"merging,omitempty"`

	// Merges, reification and removal.
	Source    string `yaml:"source,omitempty"`
	Target    string `yaml:"target,omitempty"`
	Construct string `yaml:"construct,omitempty"`

	// ExpectError is the error code the step must fail with
	// (e.g. "IDENTITY_VIOLATION", "TOPIC_IN_USE").
	ExpectError string `yaml:"expect_error,omitempty"`
}

// RoleStep describes one role of an association step.
type RoleStep struct {
	Ref    string `yaml:"ref,omitempty"`
	Type   string `yaml:"type"`
	Player string `yaml:"player"`
}

// Step operations.
const (
	OpTopic          = "topic"
	OpOccurrence     = "occurrence"
	OpName           = "name"
	OpVariant        = "variant"
	OpAssociation    = "association"
	OpAddIdentity    = "add_identity"
	OpRemoveIdentity = "remove_identity"
	OpAddType        = "add_type"
	OpReify          = "reify"
	OpRemove         = "remove"
	OpMergeTopics    = "merge_topics"
	OpMergeMap       = "merge_map"
)

// Assertion validates the trace or the final state of the main map.
type Assertion struct {
	// Type specifies the assertion type, see the Assert* constants.
	Type string `yaml:"type"`

	// Count is the expected number (topic_count, association_count,
	// event_count, journal_count).
	Count int `yaml:"count,omitempty"`

	// Kind is an event kind (event_count) or an identity kind (resolves).
	Kind string `yaml:"kind,omitempty"`

	// Kinds is the expected event order (event_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// IRI is looked up in the identity index (resolves).
	IRI string `yaml:"iri,omitempty"`

	// Ref names the expected construct (resolves, removed, names).
	Ref string `yaml:"ref,omitempty"`

	// Values are the expected name values of a topic (names).
	Values []string `yaml:"values,omitempty"`
}

// Assertion type constants.
const (
	AssertTopicCount       = "topic_count"
	AssertAssociationCount = "association_count"
	AssertEventCount       = "event_count"
	AssertEventOrder       = "event_order"
	AssertResolves         = "resolves"
	AssertRemoved          = "removed"
	AssertNames            = "names"
	AssertJournalCount     = "journal_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

var knownOps = map[string]bool{
	OpTopic: true, OpOccurrence: true, OpName: true, OpVariant: true,
	OpAssociation: true, OpAddIdentity: true, OpRemoveIdentity: true,
	OpAddType: true, OpReify: true, OpRemove: true,
	OpMergeTopics: true, OpMergeMap: true,
}

var knownAssertions = map[string]bool{
	AssertTopicCount: true, AssertAssociationCount: true,
	AssertEventCount: true, AssertEventOrder: true, AssertResolves: true,
	AssertRemoved: true, AssertNames: true, AssertJournalCount: true,
}

// validateScenario checks required fields and known operation names.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	for i, step := range s.Steps {
		if !knownOps[step.Op] {
			return fmt.Errorf("step %d: unknown op %q", i, step.Op)
		}
	}
	for i, a := range s.Assertions {
		if !knownAssertions[a.Type] {
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
	}
	return nil
}
