package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heuer/mappa/internal/config"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <config.cue>",
		Short: "Validate an engine configuration",
		Long: `Validate a CUE configuration file against the engine schema.

Defaults are filled in and the resolved configuration is printed.
Errors carry the CUE position of the offending field.

Error codes:
  E005 - file not found or unreadable
  E006 - CUE syntax error
  E201 - configuration does not satisfy the schema
  E202 - base_locator is not an absolute IRI

Examples:
  mappa validate ./mappa.cue
  mappa validate ./mappa.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	p := newPrinter(opts.RootOptions, cmd)
	p.debugf("Validating config: %s", path)

	cfg, err := config.Load(path)
	if err != nil {
		le, ok := config.AsLoadError(err)
		if !ok {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		if err := p.fail(failureOf(le), nil, ""); err != nil {
			return err
		}
		code := ExitFailure
		if le.Code == config.ErrCodeNotFound {
			code = ExitCommandError
		}
		return WrapExitError(code, "invalid config", le)
	}

	if p.asJSON {
		return p.ok(cfg, "")
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "base_locator: %s\n", cfg.BaseLocator)
	if cfg.Journal.Enabled() {
		fmt.Fprintf(w, "journal:      %s\n", cfg.Journal.Path)
	} else {
		fmt.Fprintln(w, "journal:      disabled")
	}
	if cfg.Metrics.Enabled {
		fmt.Fprintf(w, "metrics:      namespace %s\n", cfg.Metrics.Namespace)
	} else {
		fmt.Fprintln(w, "metrics:      disabled")
	}
	fmt.Fprintf(w, "log level:    %s\n", cfg.Log.Level)
	fmt.Fprintln(w, "✓ Config valid")
	return nil
}
