package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heuer/mappa/internal/harness"
	"github.com/heuer/mappa/internal/ir"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // rewrite golden files from the current snapshots
	Filter string // glob over scenario file names, without extension
}

// Golden file states of a scenario.
const (
	GoldenNone     = "none"
	GoldenMatch    = "match"
	GoldenMismatch = "mismatch"
	GoldenUpdated  = "updated"
)

// errGoldenMismatch is reported for a snapshot that differs from its golden file.
const errGoldenMismatch = "golden file mismatch (run with --update to regenerate)"

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name      string   `json:"name"`
	File      string   `json:"file"`
	Pass      bool     `json:"pass"`
	Events    int      `json:"events"`
	Journal   string   `json:"journal,omitempty"` // session id of the main map's journal
	Journaled int      `json:"journaled"`
	Golden    string   `json:"golden"`
	Errors    []string `json:"errors,omitempty"`
}

// TestResult is the outcome of a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r *TestResult) add(s ScenarioResult) {
	r.Scenarios = append(r.Scenarios, s)
	r.Total++
	if s.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// failureCode is CodeGoldenMismatch when golden files are the only
// reason scenarios failed.
func (r *TestResult) failureCode() string {
	for _, s := range r.Scenarios {
		if !s.Pass && (s.Golden != GoldenMismatch || len(s.Errors) != 1) {
			return CodeScenarioFailed
		}
	}
	return CodeGoldenMismatch
}

// failedNames returns the names of the failed scenarios.
func (r *TestResult) failedNames() []string {
	var out []string
	for _, s := range r.Scenarios {
		if !s.Pass {
			out = append(out, s.Name)
		}
	}
	return out
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run a directory of scenarios",
		Long: `Run every scenario file in a directory, each against fresh topic maps.

A scenario passes when its steps and assertions hold and, if
golden/<name>.golden exists next to it, the canonical JSON snapshot of the
final main map equals that file byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing directory, bad filter)

Examples:
  mappa test ./scenarios
  mappa test ./scenarios --filter "merge_*"
  mappa test ./scenarios --update
  mappa test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files from the current snapshots")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name matches this glob")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	p := newPrinter(opts.RootOptions, cmd)
	files, err := scenarioFiles(dir, opts.Filter)
	if err != nil {
		return err
	}

	result := TestResult{Scenarios: []ScenarioResult{}}
	for _, file := range files {
		p.debugf("running %s", file)
		sr := checkScenario(file, opts.Update)
		result.add(sr)
		if !p.asJSON {
			printScenario(p.out, sr)
		}
	}

	msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if p.asJSON {
		if result.Failed == 0 {
			return p.ok(result, "")
		}
		f := &Failure{Code: result.failureCode(), Message: msg, Errors: result.failedNames()}
		if err := p.fail(f, result, ""); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	if result.Total == 0 {
		fmt.Fprintln(p.out, "No scenarios found.")
		return nil
	}
	fmt.Fprintf(p.out, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, msg)
	}
	fmt.Fprintln(p.out, "✓ All scenarios passed")
	return nil
}

// scenarioFiles lists the .yaml and .yml files below dir in lexical order.
func scenarioFiles(dir, filter string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, WrapExitError(ExitCommandError, "scenarios directory not found: "+dir, err)
	}
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid filter", err)
		}
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to list scenarios", err)
	}
	return files, nil
}

// checkScenario runs one scenario file and compares or rewrites its golden
// snapshot.
func checkScenario(file string, update bool) ScenarioResult {
	sr := ScenarioResult{
		Name:   strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)),
		File:   file,
		Golden: GoldenNone,
	}
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Errors = []string{err.Error()}
		return sr
	}
	sr.Name = scenario.Name

	result, err := harness.Run(scenario)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("run: %v", err)}
		return sr
	}
	sr.Events = len(result.Trace)
	sr.Journal = result.Session
	sr.Journaled = result.Journaled
	sr.Errors = append(sr.Errors, result.Errors...)

	snapshot, err := ir.MarshalCanonical(result.Snapshot)
	if err != nil {
		sr.Errors = append(sr.Errors, fmt.Sprintf("snapshot: %v", err))
		return sr
	}
	golden := goldenFilePath(file)
	if update {
		if err := writeGolden(golden, snapshot); err != nil {
			sr.Errors = append(sr.Errors, err.Error())
		} else {
			sr.Golden = GoldenUpdated
		}
	} else {
		switch want, err := os.ReadFile(golden); {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			sr.Errors = append(sr.Errors, fmt.Sprintf("read golden file: %v", err))
		case bytes.Equal(want, snapshot):
			sr.Golden = GoldenMatch
		default:
			sr.Golden = GoldenMismatch
			sr.Errors = append(sr.Errors, errGoldenMismatch)
		}
	}
	sr.Pass = len(sr.Errors) == 0
	return sr
}

func printScenario(w io.Writer, sr ScenarioResult) {
	if !sr.Pass {
		fmt.Fprintf(w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return
	}
	switch sr.Golden {
	case GoldenUpdated:
		fmt.Fprintf(w, "✓ %s (%d events, golden updated)\n", sr.Name, sr.Events)
	case GoldenMatch:
		fmt.Fprintf(w, "✓ %s (%d events, golden match)\n", sr.Name, sr.Events)
	default:
		fmt.Fprintf(w, "✓ %s (%d events)\n", sr.Name, sr.Events)
	}
}

// goldenFilePath returns golden/<name>.golden next to the scenario file.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func writeGolden(path string, snapshot []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}
	if err := os.WriteFile(path, snapshot, 0644); err != nil {
		return fmt.Errorf("write golden file: %w", err)
	}
	return nil
}
