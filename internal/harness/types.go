package harness

import "github.com/heuer/mappa/internal/ir"

// TraceEvent is one event delivered by the main map's bus.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	Source string `json:"source"` // "kind#id"
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains every event of the main map in delivery order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshot is the final state of the main map.
	Snapshot ir.IRObject `json:"-"`

	// Session is the journal session of the main map.
	Session string `json:"session"`

	// Journaled is the number of events the journal recorded.
	Journaled int `json:"journaled"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an error message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a delivered event.
func (r *Result) AddTrace(seq int64, kind, source string) {
	r.Trace = append(r.Trace, TraceEvent{Seq: seq, Kind: kind, Source: source})
}
