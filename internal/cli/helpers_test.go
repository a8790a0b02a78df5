package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const pairScenario = `
name: pair
description: "Two topics merged into one"
steps:
  - op: topic
    ref: a
    sids: ["http://x.org/a"]
  - op: topic
    ref: b
    sids: ["http://x.org/b"]
  - op: merge_topics
    source: b
    target: a
assertions:
  - type: topic_count
    count: 1
  - type: resolves
    kind: sid
    iri: "http://x.org/b"
    ref: a
`

const failingScenario = `
name: failing
steps:
  - op: topic
    ref: a
assertions:
  - type: topic_count
    count: 7
`

// pairGolden is the snapshot of pairScenario.
const pairGolden = `{"associations":[],"scenario":"pair","topics":[{"id":2,"sids":["http://x.org/a","http://x.org/b"]}]}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
