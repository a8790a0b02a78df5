package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommand_NoDirectory(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommand_NoScenarios(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No scenarios found.")
}

func TestTestCommand_PassAndFail(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pair.yaml", pairScenario)
	writeFile(t, dir, "failing.yaml", failingScenario)

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *Failure   `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeScenarioFailed, resp.Error.Code)
	assert.Equal(t, []string{"failing"}, resp.Error.Errors)
	require.Len(t, resp.Data.Scenarios, 2)
	for _, s := range resp.Data.Scenarios {
		assert.NotEmpty(t, s.Journal, s.Name)
		assert.Equal(t, GoldenNone, s.Golden, s.Name)
	}
}

func TestTestCommand_Filter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pair.yaml", pairScenario)
	writeFile(t, dir, "failing.yaml", failingScenario)

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir, "--filter", "pa*"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ pair")
	assert.Contains(t, buf.String(), "1 passed, 0 failed, 1 total")
}

func TestTestCommand_UpdateWritesGolden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pair.yaml", pairScenario)

	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{dir, "--update"})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(filepath.Join(dir, "golden", "pair.golden"))
	require.NoError(t, err)
	assert.Equal(t, pairGolden, string(data))
}

func TestTestCommand_GoldenMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pair.yaml", pairScenario)
	writeFile(t, dir, filepath.Join("golden", "pair.golden"), pairGolden)

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ All scenarios passed")
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pair.yaml", pairScenario)
	writeFile(t, dir, filepath.Join("golden", "pair.golden"), `{"topics":[]}`)

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ pair")
	assert.Contains(t, buf.String(), "golden file mismatch")
}

func TestTestCommand_GoldenMismatchJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pair.yaml", pairScenario)
	writeFile(t, dir, filepath.Join("golden", "pair.golden"), `{"topics":[]}`)

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})
	require.Error(t, cmd.Execute())

	var resp struct {
		Data  TestResult `json:"data"`
		Error *Failure   `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeGoldenMismatch, resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, GoldenMismatch, resp.Data.Scenarios[0].Golden)
}

func TestTestCommand_NestedDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, filepath.Join("merge", "pair.yml"), pairScenario)
	writeFile(t, dir, "notes.txt", "not a scenario")

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "1 passed, 0 failed, 1 total")
}

func TestTestCommand_InvalidFilter(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{t.TempDir(), "--filter", "["})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGoldenFilePath(t *testing.T) {
	got := goldenFilePath(filepath.Join("scenarios", "merge.yaml"))
	assert.Equal(t, filepath.Join("scenarios", "golden", "merge.golden"), got)
}
