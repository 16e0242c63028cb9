package harness

import "fmt"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq    int64          `json:"seq"`
	Op     string         `json:"op"`
	Args   map[string]any `json:"args,omitempty"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func (e TraceEvent) String() string {
	if e.Error != "" {
		return fmt.Sprintf("[%d] %s %v: %s", e.Seq, e.Op, e.Args, e.Error)
	}
	return fmt.Sprintf("[%d] %s %v -> %v", e.Seq, e.Op, e.Args, e.Result)
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per step, in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors lists failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Record appends an event to the trace.
func (r *Result) Record(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
