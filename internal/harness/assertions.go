package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/joindb/internal/engine"
	"github.com/roach88/joindb/internal/ir"
)

// AssertionError is returned when an expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Expectation type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Rows     []engine.Row // Rows produced, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Rows) > 0 {
		fmt.Fprintf(&buf, "\nRows:\n")
		for i, row := range e.Rows {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, row)
		}
	}

	return buf.String()
}

// checkCase evaluates every expectation of c against its outcome.
func checkCase(c Case, res CaseResult) []error {
	var errs []error

	if c.ExpectError != "" {
		if err := assertError(c.ExpectError, res); err != nil {
			errs = append(errs, err)
		}
		return errs
	}
	if res.Error != "" {
		return append(errs, &AssertionError{
			Type:     "no_error",
			Expected: "query to succeed",
			Actual:   res.Error,
		})
	}

	if c.ExpectRows != nil {
		if err := assertRows(c.ExpectRows, res.Rows); err != nil {
			errs = append(errs, err)
		}
	}
	if c.ExpectCount != nil && len(res.Rows) != *c.ExpectCount {
		errs = append(errs, &AssertionError{
			Type:     "expect_count",
			Expected: fmt.Sprintf("%d rows", *c.ExpectCount),
			Actual:   fmt.Sprintf("%d rows", len(res.Rows)),
			Rows:     res.Rows,
		})
	}
	if c.ExpectDiagnostics != nil && len(res.Diagnostics) != *c.ExpectDiagnostics {
		errs = append(errs, &AssertionError{
			Type:     "expect_diagnostics",
			Expected: fmt.Sprintf("%d diagnostics", *c.ExpectDiagnostics),
			Actual:   fmt.Sprintf("%d diagnostics", len(res.Diagnostics)),
		})
	}
	return errs
}

// assertError checks that the case failed with the expected code.
func assertError(code string, res CaseResult) error {
	if res.ErrorCode == code {
		return nil
	}
	actual := "query succeeded"
	if res.Error != "" {
		actual = res.Error
	}
	return &AssertionError{
		Type:     "expect_error",
		Expected: code,
		Actual:   actual,
		Rows:     res.Rows,
	}
}

// assertRows compares rows in order. Each expected row must have exactly
// the same keys as the actual row; values compare with ir.Equal, so 1 and
// 1.0 match.
func assertRows(expected []map[string]any, actual []engine.Row) error {
	if len(expected) != len(actual) {
		return &AssertionError{
			Type:     "expect_rows",
			Expected: fmt.Sprintf("%d rows", len(expected)),
			Actual:   fmt.Sprintf("%d rows", len(actual)),
			Rows:     actual,
		}
	}

	for i, want := range expected {
		wantObj, err := toObject(want)
		if err != nil {
			return fmt.Errorf("expect_rows[%d]: %w", i, err)
		}
		got := actual[i].Object()
		if !ir.Equal(wantObj, got) {
			return &AssertionError{
				Type:     "expect_rows",
				Expected: fmt.Sprintf("row %d = %s", i+1, formatObject(wantObj)),
				Actual:   fmt.Sprintf("row %d = %s", i+1, actual[i]),
				Rows:     actual,
			}
		}
	}
	return nil
}

func toObject(m map[string]any) (ir.IRObject, error) {
	if m == nil {
		return ir.IRObject{}, nil
	}
	v, err := ir.FromGo(m)
	if err != nil {
		return nil, err
	}
	return v.(ir.IRObject), nil
}

func formatObject(obj ir.IRObject) string {
	data, err := ir.MarshalIRValue(obj)
	if err != nil {
		return fmt.Sprintf("%v", map[string]ir.IRValue(obj))
	}
	return string(data)
}
