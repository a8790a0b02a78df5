package harness

import (
	"cmp"
	"slices"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/heuer/mappa/internal/ir"
	"github.com/heuer/mappa/internal/tm"
)

// Snapshot renders the attached state of m as an IR object.
//
// Constructs are identified by id; topics are listed by id, identities
// are sorted, and keys whose value would be empty are omitted, so equal
// maps built by the same steps snapshot to identical canonical JSON.
func Snapshot(scenarioName string, m *tm.TopicMap) ir.IRObject {
	topics := m.Topics()
	slices.SortFunc(topics, func(a, b *tm.Topic) int { return cmp.Compare(a.ID(), b.ID()) })
	topicList := make(ir.IRArray, len(topics))
	for i, t := range topics {
		topicList[i] = topicSnapshot(t)
	}

	assocs := m.Associations()
	slices.SortFunc(assocs, func(a, b *tm.Association) int { return cmp.Compare(a.ID(), b.ID()) })
	assocList := make(ir.IRArray, len(assocs))
	for i, a := range assocs {
		roles := make(ir.IRArray, 0, len(a.Roles()))
		for _, r := range a.Roles() {
			roles = append(roles, ir.IRObject{
				"type":   topicRef(r.Type()),
				"player": topicRef(r.Player()),
			})
		}
		assocList[i] = ir.IRObject{
			"id":    ir.IRInt(int64(a.ID())),
			"type":  topicRef(a.Type()),
			"scope": scopeOf(a.Scope()),
			"roles": roles,
		}
	}

	snap := ir.IRObject{
		"scenario":     ir.IRString(scenarioName),
		"topics":       topicList,
		"associations": assocList,
	}
	if r := m.Reifier(); r != nil {
		snap["reifier"] = topicRef(r)
	}
	return snap
}

func topicSnapshot(t *tm.Topic) ir.IRObject {
	obj := ir.IRObject{"id": ir.IRInt(int64(t.ID()))}
	putStrings(obj, "sids", t.SubjectIdentifiers())
	putStrings(obj, "slos", t.SubjectLocators())
	putStrings(obj, "iids", t.ItemIdentifiers())

	if types := t.Types(); len(types) > 0 {
		obj["types"] = scopeOf(types)
	}
	if occs := t.Occurrences(); len(occs) > 0 {
		list := make(ir.IRArray, len(occs))
		for i, o := range occs {
			list[i] = ir.IRObject{
				"type":     topicRef(o.Type()),
				"value":    ir.IRString(o.Value()),
				"datatype": ir.IRString(o.Datatype()),
				"scope":    scopeOf(o.Scope()),
			}
		}
		obj["occurrences"] = list
	}
	if names := t.Names(); len(names) > 0 {
		list := make(ir.IRArray, len(names))
		for i, n := range names {
			name := ir.IRObject{
				"type":  topicRef(n.Type()),
				"value": ir.IRString(n.Value()),
				"scope": scopeOf(n.Scope()),
			}
			if vs := n.Variants(); len(vs) > 0 {
				variants := make(ir.IRArray, len(vs))
				for j, v := range vs {
					variants[j] = ir.IRObject{
						"value":    ir.IRString(v.Value()),
						"datatype": ir.IRString(v.Datatype()),
						"scope":    scopeOf(v.OwnScope()),
					}
				}
				name["variants"] = variants
			}
			list[i] = name
		}
		obj["names"] = list
	}
	if r := t.Reified(); r != nil {
		obj["reifies"] = ir.IRString(tm.Describe(r))
	}
	return obj
}

func putStrings(obj ir.IRObject, key string, values []string) {
	if len(values) == 0 {
		return
	}
	slices.Sort(values)
	arr := make(ir.IRArray, len(values))
	for i, v := range values {
		arr[i] = ir.IRString(v)
	}
	obj[key] = arr
}

func topicRef(t *tm.Topic) ir.IRValue {
	if t == nil {
		return ir.IRInt(0)
	}
	return ir.IRInt(int64(t.ID()))
}

func scopeOf(themes []*tm.Topic) ir.IRArray {
	ids := make([]uint64, len(themes))
	for i, t := range themes {
		ids[i] = uint64(t.ID())
	}
	return ir.IntSet(ids)
}

// RunWithGolden executes a scenario and compares the snapshot of its main
// map against a golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check Pass and Errors as well.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's snapshot against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := ir.MarshalCanonical(result.Snapshot)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
