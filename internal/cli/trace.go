package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/heuer/mappa/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Kind     string // optional - filter to one event kind
}

// TraceEvent is one journaled event in the timeline.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	Source string `json:"source"` // "kind#id"
	Old    string `json:"old,omitempty"`
	New    string `json:"new,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session  string       `json:"session"`
	MapID    string       `json:"map_id,omitempty"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	ByKind      map[string]int `json:"by_kind"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journaled events of a session",
		Long: `Show the events a journal recorded for one session.

Without --session the sessions of the journal are listed.

The output includes:
- Timeline: events in delivery order with their payloads
- Stats: number of events per kind

Examples:
  mappa trace --db ./journal.db
  mappa trace --db ./journal.db --session 0190a6f2-...
  mappa trace --db ./journal.db --session 0190a6f2-... --kind add-topic
  mappa trace --db ./journal.db --session 0190a6f2-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to trace")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	sessions, err := st.ReadSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read sessions", err)
	}

	if opts.Session == "" {
		return outputSessions(cmd, opts.Format, sessions)
	}

	var events []store.EventRecord
	if opts.Kind != "" {
		events, err = st.ReadEventsOfKind(ctx, opts.Session, opts.Kind)
	} else {
		events, err = st.ReadEvents(ctx, opts.Session)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	result := TraceResult{
		Session:  opts.Session,
		Timeline: buildTimeline(events),
		Stats:    TraceStats{TotalEvents: len(events), ByKind: map[string]int{}},
	}
	for _, sess := range sessions {
		if sess.ID == opts.Session {
			result.MapID = sess.MapID
		}
	}
	for _, e := range events {
		result.Stats.ByKind[e.Kind]++
	}

	if opts.Format == "json" {
		return newPrinter(opts.RootOptions, cmd).ok(result, result.Session)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// buildTimeline converts journal records to timeline events.
func buildTimeline(events []store.EventRecord) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(events))
	for _, e := range events {
		timeline = append(timeline, TraceEvent{
			Seq:    e.Seq,
			Kind:   e.Kind,
			Source: fmt.Sprintf("%s#%d", e.SourceKind, e.SourceID),
			Old:    e.Old,
			New:    e.New,
		})
	}
	return timeline
}

func outputSessions(cmd *cobra.Command, format string, sessions []store.Session) error {
	if format == "json" {
		type sessionJSON struct {
			ID    string `json:"id"`
			MapID string `json:"map_id"`
			Label string `json:"label,omitempty"`
		}
		out := make([]sessionJSON, len(sessions))
		for i, s := range sessions {
			out[i] = sessionJSON{ID: s.ID, MapID: s.MapID, Label: s.Label}
		}
		return (&printer{asJSON: true, out: cmd.OutOrStdout()}).ok(out, "")
	}

	w := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}
	fmt.Fprintln(w, "=== Sessions ===")
	for _, s := range sessions {
		if s.Label != "" {
			fmt.Fprintf(w, "  %s %s (%s)\n", s.ID, s.MapID, s.Label)
		} else {
			fmt.Fprintf(w, "  %s %s\n", s.ID, s.MapID)
		}
	}
	return nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Session: %s\n", result.Session)
	if result.MapID != "" {
		fmt.Fprintf(w, "Map: %s\n", result.MapID)
	}
	fmt.Fprintln(w)

	// Timeline section
	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, event := range result.Timeline {
			formatTimelineEvent(w, event, verbose)
		}
	}
	fmt.Fprintln(w)

	// Stats section
	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	kinds := make([]string, 0, len(result.Stats.ByKind))
	for k := range result.Stats.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-26s %d\n", k+":", result.Stats.ByKind[k])
	}

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
// Payloads are shown only in verbose mode.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	fmt.Fprintf(w, "  [%d] %s %s\n", event.Seq, event.Kind, event.Source)
	if !verbose {
		return
	}
	if event.Old != "" {
		fmt.Fprintf(w, "       Old: %s\n", event.Old)
	}
	if event.New != "" {
		fmt.Fprintf(w, "       New: %s\n", event.New)
	}
}
