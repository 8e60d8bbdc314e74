package harness

import (
	"github.com/roach88/eagraph/internal/governance"
)

// TraceEvent records one flow step and what the repository did with it.
type TraceEvent struct {
	Seq     int      `json:"seq"`
	Invoke  string   `json:"invoke"`
	Ops     []string `json:"ops,omitempty"`
	Mode    string   `json:"mode,omitempty"`
	Outcome string   `json:"outcome"`
	Error   string   `json:"error,omitempty"`

	// Debt is the candidate's total debt when the gate evaluated one.
	Debt *int `json:"debt,omitempty"`

	ElementsRevision      int64 `json:"elementsRevision"`
	RelationshipsRevision int64 `json:"relationshipsRevision"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the governance report of the final current graph.
	Final *governance.Report `json:"final,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends one event.
func (r *Result) AddTrace(event TraceEvent) {
	event.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, event)
}
