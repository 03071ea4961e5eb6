package harness

import (
	"github.com/roach88/joindb/internal/engine"
)

// ErrCodeParse is the error code reported for statements that do not parse.
const ErrCodeParse = "PARSE_ERROR"

// CaseResult is the outcome of one case.
type CaseResult struct {
	Name string `json:"name"`

	// Pass is true if every expectation of the case held.
	Pass bool `json:"pass"`

	// Rows are the rows the query produced, in emission order.
	Rows []engine.Row `json:"rows"`

	// ErrorCode is the plan error code, or PARSE_ERROR. Empty on success.
	ErrorCode string `json:"error_code,omitempty"`

	// Error is the full error text. Empty on success.
	Error string `json:"error,omitempty"`

	// Diagnostics are the documents skipped while executing.
	Diagnostics []engine.Diagnostic `json:"-"`

	// Failures lists the expectations that did not hold.
	Failures []string `json:"failures,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	Scenario string `json:"scenario"`

	// Pass indicates overall test success.
	// True if all cases pass.
	Pass bool `json:"pass"`

	// Cases holds one result per case, in scenario order.
	Cases []CaseResult `json:"cases"`

	// Errors contains validation error messages, prefixed with the case
	// name. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Cases:    []CaseResult{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddCase appends a case result, folding its failures into the scenario.
func (r *Result) AddCase(c CaseResult) {
	r.Cases = append(r.Cases, c)
	for _, f := range c.Failures {
		r.AddError(c.Name + ": " + f)
	}
}
