package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a statement test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Specs lists CUE files holding the catalog and statements.
	// Paths are relative to the scenario file location.
	Specs []string `yaml:"specs"`

	// Setup holds raw SQL run before the steps, usually DDL and seed rows.
	Setup []string `yaml:"setup,omitempty"`

	// Steps execute named statements in order.
	Steps []Step `yaml:"steps"`

	// Assertions check the final trace and database state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step executes one named statement.
type Step struct {
	// Statement is the statement name from the specs.
	Statement string `yaml:"statement"`

	// Args bind the statement's deferred parameters positionally.
	Args []any `yaml:"args,omitempty"`

	// Run executes through Statement.Run, which refuses parameters.
	Run bool `yaml:"run,omitempty"`

	// Expect checks the step outcome. If nil, the step must not fail.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step. Unset fields are not
// checked.
type Expect struct {
	SQL      string           `yaml:"sql,omitempty"`
	Affected *int64           `yaml:"affected,omitempty"`
	Rows     []map[string]any `yaml:"rows,omitempty"`

	// Error is a composition error code such as STRUCTURAL_INCOMPLETENESS,
	// or DRIVER_ERROR.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": statement appears in trace (with args, if given)
	// - "trace_order": statements appear in order
	// - "trace_count": statement appears exactly Count times
	// - "final_state": query table and verify expected values
	// - "row_count": table holds exactly Count rows
	Type string `yaml:"type"`

	// Statement is used by trace_contains and trace_count.
	Statement string `yaml:"statement,omitempty"`

	// Args are the exact expected arguments (used by trace_contains).
	Args []any `yaml:"args,omitempty"`

	// Statements is the expected order (used by trace_order).
	Statements []string `yaml:"statements,omitempty"`

	// Table is the table name (used by final_state and row_count).
	Table string `yaml:"table,omitempty"`

	// Where specifies equality filters (used by final_state and row_count).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values (used by final_state).
	// Subset match - only specified columns are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is used by trace_count and row_count.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertRowCount      = "row_count"
)

// LoadScenario reads and parses a scenario YAML file, resolving spec paths
// relative to the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving relative spec paths against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !validIdentifier.MatchString(s.Name) {
		return fmt.Errorf("name %q must be an identifier (it names the golden file)", s.Name)
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i, step := range s.Steps {
		if step.Statement == "" {
			return fmt.Errorf("steps[%d]: statement is required", i)
		}
		if step.Run && len(step.Args) > 0 {
			return fmt.Errorf("steps[%d]: run takes no args", i)
		}
		if e := step.Expect; e != nil && e.Error != "" && (e.Affected != nil || e.Rows != nil) {
			return fmt.Errorf("steps[%d].expect: error cannot be combined with affected or rows", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Statement == "" {
			return fmt.Errorf("assertions[%d]: statement is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Statements) == 0 {
			return fmt.Errorf("assertions[%d]: statements list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Statement == "" {
			return fmt.Errorf("assertions[%d]: statement is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
