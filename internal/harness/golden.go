package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot captures the observable outcome of a scenario: every case's rows
// in emission order (keys in selection order) or its error code.
type Snapshot struct {
	Scenario string         `json:"scenario"`
	Cases    []CaseSnapshot `json:"cases"`
}

// CaseSnapshot is one case within a Snapshot. Error text is left out so
// that message wording can change without churning golden files.
type CaseSnapshot struct {
	Name      string          `json:"name"`
	Rows      json.RawMessage `json:"rows,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
}

// NewSnapshot builds the snapshot of a result.
func NewSnapshot(result *Result) (*Snapshot, error) {
	snap := &Snapshot{Scenario: result.Scenario, Cases: make([]CaseSnapshot, len(result.Cases))}
	for i, c := range result.Cases {
		cs := CaseSnapshot{Name: c.Name, ErrorCode: c.ErrorCode}
		if c.ErrorCode == "" {
			rows, err := json.Marshal(c.Rows)
			if err != nil {
				return nil, err
			}
			cs.Rows = rows
		}
		snap.Cases[i] = cs
	}
	return snap, nil
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s *Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snap, err := NewSnapshot(result)
	if err != nil {
		return err
	}
	data, err := snap.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
