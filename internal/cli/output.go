package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/heuer/mappa/internal/config"
	"github.com/heuer/mappa/internal/engine"
	"github.com/heuer/mappa/internal/harness"
	"github.com/heuer/mappa/internal/tm"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenario or validation failure
	ExitCommandError = 2 // Command error (invalid paths, unreadable journal, etc.)
)

// Failure codes of the CLI itself. Everything else comes from config
// (E-codes), tm (violation codes) or engine (merge error codes).
const (
	CodeScenarioFailed = "SCENARIO_FAILED"
	CodeGoldenMismatch = "GOLDEN_MISMATCH"
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response is the JSON envelope every command writes with --format json.
type Response struct {
	Status  string   `json:"status"` // "ok" or "error"
	Data    any      `json:"data,omitempty"`
	Error   *Failure `json:"error,omitempty"`
	Session string   `json:"session,omitempty"` // journal session read or written
}

// Failure describes why a command, a scenario or a topic map operation
// failed.
type Failure struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Construct string    `json:"construct,omitempty"` // "kind#id" of the rejected construct
	IRI       string    `json:"iri,omitempty"`
	Existing  string    `json:"existing,omitempty"` // construct already holding IRI
	Topics    []tm.ID   `json:"topics,omitempty"`   // source and target of a failed merge
	Position  *Position `json:"position,omitempty"`
	Errors    []string  `json:"errors,omitempty"`
}

// Position locates a configuration error.
type Position struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// failureOf classifies err by the typed errors of config, tm and engine.
func failureOf(err error) *Failure {
	if le, ok := config.AsLoadError(err); ok {
		f := &Failure{Code: le.Code, Message: le.Message}
		if le.Pos.IsValid() {
			f.Position = &Position{File: le.Pos.Filename(), Line: le.Pos.Line(), Column: le.Pos.Column()}
		}
		return f
	}
	f := &Failure{Code: harness.ErrorCode(err), Message: err.Error()}
	var mcv *tm.ModelConstraintViolation
	var me *engine.MergeError
	if iv, ok := tm.AsIdentityViolation(err); ok {
		f.IRI = iv.IRI
		f.Construct = tm.Describe(iv.Construct)
		f.Existing = tm.Describe(iv.Existing)
	} else if errors.As(err, &mcv) && mcv.Construct != nil {
		f.Construct = tm.Describe(mcv.Construct)
	} else if errors.As(err, &me) {
		f.Topics = []tm.ID{me.Source, me.Target}
	}
	return f
}

// printer writes command output as text or as a JSON Response.
type printer struct {
	asJSON  bool
	verbose bool
	out     io.Writer
	diag    io.Writer
}

func newPrinter(opts *RootOptions, cmd *cobra.Command) *printer {
	return &printer{
		asJSON:  opts.Format == "json",
		verbose: opts.Verbose,
		out:     cmd.OutOrStdout(),
		diag:    cmd.ErrOrStderr(),
	}
}

// ok writes a successful JSON response. Text output is up to the command.
func (p *printer) ok(data any, session string) error {
	return p.encode(Response{Status: "ok", Data: data, Session: session})
}

// fail writes f, as a JSON response or as an "Error [code]" block.
func (p *printer) fail(f *Failure, data any, session string) error {
	if p.asJSON {
		return p.encode(Response{Status: "error", Data: data, Error: f, Session: session})
	}
	fmt.Fprintf(p.out, "Error [%s]: %s\n", f.Code, f.Message)
	if f.Position != nil {
		fmt.Fprintf(p.out, "  at %s:%d:%d\n", f.Position.File, f.Position.Line, f.Position.Column)
	}
	if f.IRI != "" {
		fmt.Fprintf(p.out, "  %s <%s> held by %s\n", f.Construct, f.IRI, f.Existing)
	} else if f.Construct != "" {
		fmt.Fprintf(p.out, "  construct: %s\n", f.Construct)
	}
	for _, e := range f.Errors {
		fmt.Fprintf(p.out, "  %s\n", e)
	}
	return nil
}

// debugf writes a diagnostic line to stderr in verbose mode.
func (p *printer) debugf(format string, args ...any) {
	if p.verbose {
		fmt.Fprintf(p.diag, format+"\n", args...)
	}
}

func (p *printer) encode(r Response) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
