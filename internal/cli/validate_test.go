package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mappa.cue", `base_locator: "HTTP://Example.org/map/"`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "base_locator: http://example.org/map/")
	assert.Contains(t, output, "journal:      disabled")
	assert.Contains(t, output, "log level:    info")
	assert.Contains(t, output, "✓ Config valid")
}

func TestValidate_ValidConfigJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mappa.cue", `
base_locator: "http://example.org/map/"
metrics: enabled: true
`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			BaseLocator string `json:"base_locator"`
			Metrics     struct {
				Enabled   bool   `json:"enabled"`
				Namespace string `json:"namespace"`
			} `json:"metrics"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "http://example.org/map/", resp.Data.BaseLocator)
	assert.True(t, resp.Data.Metrics.Enabled)
	assert.Equal(t, "mappa", resp.Data.Metrics.Namespace)
}

func TestValidate_MissingFile(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.cue")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E005]")
}

func TestValidate_ErrorCodes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    string
	}{
		{"syntax", `base_locator: "http://x.org/`, "E006"},
		{"unknown field", "base_locator: \"http://x.org/\"\nbogus: 1", "E201"},
		{"bad level", "base_locator: \"http://x.org/\"\nlog: level: \"loud\"", "E201"},
		{"relative base", `base_locator: "map/"`, "E201"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "mappa.cue", tt.content)

			buf := &bytes.Buffer{}
			cmd := NewValidateCommand(&RootOptions{Format: "json"})
			cmd.SetOut(buf)
			cmd.SetArgs([]string{path})

			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			var resp Response
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			if tt.code == "E006" {
				require.NotNil(t, resp.Error.Position)
				assert.Equal(t, path, resp.Error.Position.File)
			}
		})
	}
}
