// Package config loads engine configuration from CUE files.
//
// A configuration file is unified with the embedded #Config schema, so
// defaults are filled in and unknown fields are rejected with CUE
// positions.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/heuer/mappa/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// Config is the decoded configuration.
type Config struct {
	BaseLocator string  `json:"base_locator"`
	Journal     Journal `json:"journal"`
	Metrics     Metrics `json:"metrics"`
	Log         Log     `json:"log"`
}

// Journal configures the SQLite event journal.
type Journal struct {
	Path string `json:"path"`
}

// Enabled reports whether a journal file is configured.
func (j Journal) Enabled() bool { return j.Path != "" }

// Metrics configures the Prometheus collectors.
type Metrics struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace"`
}

// Log configures the slog level.
type Log struct {
	Level string `json:"level"`
}

// SlogLevel maps the configured level name to a slog.Level.
func (l Log) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Error codes, shared with the CLI.
const (
	ErrCodeNotFound           = "E005" // Config file not found or unreadable
	ErrCodeBuildFailed        = "E006" // CUE syntax or build error
	ErrCodeInvalidConfig      = "E201" // Config does not satisfy #Config
	ErrCodeInvalidBaseLocator = "E202" // Base locator is not an absolute IRI
)

// LoadError represents an error that occurred while loading a config.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsLoadError extracts a *LoadError from err.
func AsLoadError(err error) (*LoadError, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// Load reads and decodes the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading config: %v", err)}
	}
	return Parse(path, data)
}

// Parse decodes config source. filename is used in error positions.
func Parse(filename string, src []byte) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling embedded schema: %w", err)
	}

	value := ctx.CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, convertCUEError(ErrCodeBuildFailed, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, convertCUEError(ErrCodeInvalidConfig, err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, convertCUEError(ErrCodeInvalidConfig, err)
	}

	loc, err := ir.NormalizeIRI(cfg.BaseLocator)
	if err != nil {
		return nil, &LoadError{
			Code:    ErrCodeInvalidBaseLocator,
			Message: fmt.Sprintf("base_locator: %v", err),
			Pos:     value.LookupPath(cue.ParsePath("base_locator")).Pos(),
		}
	}
	cfg.BaseLocator = loc
	return &cfg, nil
}

// convertCUEError keeps the first CUE error with its position.
func convertCUEError(code string, err error) *LoadError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	msg := fmt.Sprintf(format, args...)
	if path := first.Path(); len(path) > 0 {
		msg = fmt.Sprintf("%s: %s", strings.Join(path, "."), msg)
	}
	return &LoadError{Code: code, Message: msg, Pos: first.Position()}
}
