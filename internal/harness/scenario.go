package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios load a fixture, run a list of queries against it, and compare
// the rows (or plan errors) each query produces with the expected ones.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture is the data every case runs against: an inline fixture or a
	// path to a fixture file.
	Fixture FixtureRef `yaml:"fixture"`

	// Queries is an optional path to a CUE file or directory holding named
	// queries that cases reference with `query:`.
	Queries string `yaml:"queries,omitempty"`

	// Cases are the queries to run, each with its expectation.
	Cases []Case `yaml:"cases"`

	// Dir is the directory relative paths resolve against. Set by
	// LoadScenario to the scenario file's directory.
	Dir string `yaml:"-"`
}

// FixtureRef is either a path to a fixture file or an inline fixture.
type FixtureRef struct {
	Path   string
	Inline *Fixture
}

// UnmarshalYAML accepts a scalar path or a fixture mapping.
func (r *FixtureRef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&r.Path)
	case yaml.MappingNode:
		var f Fixture
		if err := node.Decode(&f); err != nil {
			return err
		}
		r.Inline = &f
		return nil
	default:
		return fmt.Errorf("line %d: fixture must be a path or a mapping", node.Line)
	}
}

// IsZero reports whether no fixture was given.
func (r FixtureRef) IsZero() bool {
	return r.Path == "" && r.Inline == nil
}

// Case is one query with its expected outcome.
type Case struct {
	// Name identifies the case within its scenario.
	Name string `yaml:"name"`

	// Statement is a SELECT statement. Exactly one of Statement and Query
	// is set.
	Statement string `yaml:"statement,omitempty"`

	// Query names a CUE query from the scenario's Queries path.
	Query string `yaml:"query,omitempty"`

	// ExpectRows lists the expected rows in emission order. Keys absent
	// from a row must be absent from the result too.
	ExpectRows []map[string]any `yaml:"expect_rows,omitempty"`

	// ExpectCount checks only the number of rows.
	ExpectCount *int `yaml:"expect_count,omitempty"`

	// ExpectError is the expected error code: a plan error code such as
	// UNKNOWN_ALIAS, or PARSE_ERROR for malformed statements.
	ExpectError string `yaml:"expect_error,omitempty"`

	// ExpectDiagnostics is the expected number of skipped documents.
	ExpectDiagnostics *int `yaml:"expect_diagnostics,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Relative fixture and query paths resolve against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scenario path: %w", err)
	}
	return ParseScenario(data, filepath.Dir(abs))
}

// ParseScenario parses scenario YAML, resolving relative paths against dir.
func ParseScenario(data []byte, dir string) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "case:" vs "cases:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.Dir = dir

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// resolve returns p relative to the scenario directory.
func (s *Scenario) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || s.Dir == "" {
		return p
	}
	return filepath.Join(s.Dir, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Fixture.IsZero() {
		return fmt.Errorf("fixture is required")
	}
	if s.Fixture.Inline != nil {
		if err := s.Fixture.Inline.validate(); err != nil {
			return fmt.Errorf("fixture: %w", err)
		}
	} else if _, err := os.Stat(s.resolve(s.Fixture.Path)); os.IsNotExist(err) {
		return fmt.Errorf("fixture file not found: %s", s.Fixture.Path)
	}

	if s.Queries != "" {
		if _, err := os.Stat(s.resolve(s.Queries)); os.IsNotExist(err) {
			return fmt.Errorf("queries path not found: %s", s.Queries)
		}
	}

	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Cases))
	for i := range s.Cases {
		if err := validateCase(i, &s.Cases[i], s.Queries != ""); err != nil {
			return err
		}
		if seen[s.Cases[i].Name] {
			return fmt.Errorf("cases[%d]: duplicate case name %q", i, s.Cases[i].Name)
		}
		seen[s.Cases[i].Name] = true
	}

	return nil
}

// validateCase validates a single case.
func validateCase(index int, c *Case, haveQueries bool) error {
	if c.Name == "" {
		return fmt.Errorf("cases[%d]: name is required", index)
	}

	switch {
	case c.Statement == "" && c.Query == "":
		return fmt.Errorf("cases[%d]: one of statement or query is required", index)
	case c.Statement != "" && c.Query != "":
		return fmt.Errorf("cases[%d]: statement and query are mutually exclusive", index)
	case c.Query != "" && !haveQueries:
		return fmt.Errorf("cases[%d]: query %q needs a scenario-level queries path", index, c.Query)
	}

	if c.ExpectError != "" && (c.ExpectRows != nil || c.ExpectCount != nil) {
		return fmt.Errorf("cases[%d]: expect_error cannot be combined with row expectations", index)
	}
	if c.ExpectCount != nil && *c.ExpectCount < 0 {
		return fmt.Errorf("cases[%d]: expect_count must be non-negative", index)
	}
	return nil
}
