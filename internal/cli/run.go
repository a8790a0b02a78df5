package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/heuer/mappa/internal/config"
	"github.com/heuer/mappa/internal/harness"
	"github.com/heuer/mappa/internal/metrics"
	"github.com/heuer/mappa/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string // optional CUE config
	Database string // journal path, overrides the config
}

// RunResult is the outcome of a single scenario run.
type RunResult struct {
	Scenario  string             `json:"scenario"`
	Pass      bool               `json:"pass"`
	Errors    []string           `json:"errors,omitempty"`
	Events    int                `json:"events"`
	Journaled int                `json:"journaled"`
	Session   string             `json:"session,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario against a fresh topic map",
		Long: `Run a scenario file against a fresh topic map and report the result.

With --config the base locator, log level, journal and metrics come from a
CUE configuration. With --db (or journal.path) every delivered event is
appended to a SQLite journal; inspect it later with "mappa trace".

Exit codes:
  0 - Scenario passed
  1 - Scenario failed
  2 - Command error (invalid paths, bad config, etc.)

Examples:
  mappa run ./scenarios/merge.yaml
  mappa run ./scenarios/merge.yaml --db ./journal.db
  mappa run ./scenarios/merge.yaml --config ./mappa.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to CUE configuration")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	p := newPrinter(opts.RootOptions, cmd)
	cfg := &config.Config{Log: config.Log{Level: "info"}}
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			if perr := p.fail(failureOf(err), nil, ""); perr != nil {
				return perr
			}
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Log.SlogLevel(), opts.Verbose)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := []harness.Option{harness.WithLogger(logger)}
	if cfg.BaseLocator != "" {
		runOpts = append(runOpts, harness.WithBaseLocator(cfg.BaseLocator))
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Journal.Path
	}
	if dbPath != "" {
		logger.Info("opening journal", "path", dbPath)
		st, err := store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, harness.WithStore(st))
	}

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		mx, err := metrics.New(reg, cfg.Metrics.Namespace)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		runOpts = append(runOpts, harness.WithMetrics(mx))
	}

	logger.Debug("running scenario", "name", scenario.Name, "steps", len(scenario.Steps))
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	out := RunResult{
		Scenario:  scenario.Name,
		Pass:      result.Pass,
		Errors:    result.Errors,
		Events:    len(result.Trace),
		Journaled: result.Journaled,
	}
	if dbPath != "" {
		out.Session = result.Session
	}
	if reg != nil {
		if out.Metrics, err = gatherMetrics(reg); err != nil {
			logger.Warn("failed to gather metrics", "error", err)
		}
	}

	msg := fmt.Sprintf("scenario %s failed", scenario.Name)
	switch {
	case !p.asJSON:
		outputRunText(cmd, out, result.Trace, opts.Verbose)
	case out.Pass:
		if err := p.ok(out, out.Session); err != nil {
			return err
		}
	default:
		f := &Failure{Code: CodeScenarioFailed, Message: msg, Errors: out.Errors}
		if err := p.fail(f, out, out.Session); err != nil {
			return err
		}
	}

	if !out.Pass {
		return NewExitError(ExitFailure, msg)
	}
	return nil
}

func outputRunText(cmd *cobra.Command, out RunResult, trace []harness.TraceEvent, verbose bool) {
	w := cmd.OutOrStdout()
	if verbose {
		for _, e := range trace {
			fmt.Fprintf(w, "  [%d] %s %s\n", e.Seq, e.Kind, e.Source)
		}
	}
	if out.Pass {
		fmt.Fprintf(w, "✓ %s (%d events)\n", out.Scenario, out.Events)
	} else {
		fmt.Fprintf(w, "✗ %s\n", out.Scenario)
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	if out.Session != "" {
		fmt.Fprintf(w, "Journal session: %s (%d events)\n", out.Session, out.Journaled)
	}
	if len(out.Metrics) > 0 {
		names := make([]string, 0, len(out.Metrics))
		for name := range out.Metrics {
			names = append(names, name)
		}
		slices.Sort(names)
		fmt.Fprintln(w, "Metrics:")
		for _, name := range names {
			fmt.Fprintf(w, "  %s %g\n", name, out.Metrics[name])
		}
	}
}

// gatherMetrics flattens counters and gauges to "name{label=value}" keys.
func gatherMetrics(reg *prometheus.Registry) (map[string]float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			if pairs := m.GetLabel(); len(pairs) > 0 {
				labels := make([]string, len(pairs))
				for i, p := range pairs {
					labels[i] = fmt.Sprintf("%s=%q", p.GetName(), p.GetValue())
				}
				key += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}
	return out, nil
}
