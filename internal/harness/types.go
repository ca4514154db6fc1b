package harness

// TraceEvent is one applied rewrite as seen by assertions and reports.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Iteration int    `json:"iteration"`
	Pattern   string `json:"pattern"`
	RootKind  string `json:"root_kind"`
	Created   int    `json:"created"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the pass behaved as expected and all assertions hold.
	Pass bool `json:"pass"`

	// Function is the name of the function under test.
	Function string `json:"function"`

	// Before and After are the printed function around the pass.
	Before string `json:"before"`
	After  string `json:"after"`

	// Converged and Iterations come from the driver.
	Converged  bool `json:"converged"`
	Iterations int  `json:"iterations"`

	// Trace contains every applied rewrite in order.
	Trace []TraceEvent `json:"trace"`

	// PassError is the pass failure, if any, expected or not.
	PassError string `json:"pass_error,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a rewrite to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
