package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/NinoDS/jssat/internal/types"
)

// Scenario defines one compilation to run and check.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the path of the program description, relative to the
	// scenario file once loaded.
	Program string `yaml:"program"`

	// Policy is the join policy, "fail" (default) or "widen".
	Policy string `yaml:"policy,omitempty"`

	// MaxSteps and MaxDepth override the engine defaults when positive.
	MaxSteps int `yaml:"max_steps,omitempty"`
	MaxDepth int `yaml:"max_depth,omitempty"`

	// Calls are explored in order against one engine. When empty, the
	// program's own entry is explored.
	Calls []Call `yaml:"calls,omitempty"`

	// Assertions validate the trace, the assembled program and the stored
	// report.
	Assertions []Assertion `yaml:"assertions"`

	// Golden enables the snapshot comparison of RunWithGolden.
	Golden bool `yaml:"golden,omitempty"`
}

// Call is one exploration request.
type Call struct {
	// Entry is the function name.
	Entry string `yaml:"entry"`

	// Args are argument types in text form, e.g. "int 3" or "boolean".
	Args []string `yaml:"args"`

	// Expect checks the result of the call. If nil, the call must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies how a call ends. At most one field is set.
type ExpectClause struct {
	// Outcome is the expected outcome text, e.g. "value int 6".
	Outcome string `yaml:"outcome,omitempty"`

	// Error is the expected error code, e.g. "JOIN_CONFLICT".
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the result of a scenario.
type Assertion struct {
	// Type selects the check; see the Assert* constants.
	Type string `yaml:"type"`

	// Function names a source function (specialization, specialization_count).
	Function string `yaml:"function,omitempty"`

	// Signature and Outcome narrow a specialization assertion.
	Signature string `yaml:"signature,omitempty"`
	Outcome   string `yaml:"outcome,omitempty"`

	// Count is the expected number of specializations.
	Count int `yaml:"count,omitempty"`

	// Functions is the expected first-specialization order.
	Functions []string `yaml:"functions,omitempty"`

	// Text is searched in the assembled program (assembled_contains).
	Text string `yaml:"text,omitempty"`

	// Table, Where and Expect drive a stored assertion. Rows are always
	// restricted to the scenario's run.
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertSpecialization      = "specialization"
	AssertSpecializationOrder = "specialization_order"
	AssertSpecializationCount = "specialization_count"
	AssertAssembledContains   = "assembled_contains"
	AssertStored              = "stored"
)

// LoadScenario reads and parses a scenario YAML file and resolves its
// program path against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Program != "" && !filepath.IsAbs(scenario.Program) {
		scenario.Program = filepath.Join(filepath.Dir(path), scenario.Program)
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
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if _, err := os.Stat(s.Program); os.IsNotExist(err) {
		return fmt.Errorf("program file not found: %s", s.Program)
	}
	if _, err := types.ParseJoinPolicy(s.Policy); err != nil {
		return err
	}
	if s.MaxSteps < 0 || s.MaxDepth < 0 {
		return fmt.Errorf("max_steps and max_depth must be non-negative")
	}
	if len(s.Assertions) == 0 && !s.Golden {
		return fmt.Errorf("assertions list is required unless golden is set")
	}

	for i, c := range s.Calls {
		if c.Entry == "" {
			return fmt.Errorf("calls[%d]: entry is required", i)
		}
		if c.Expect != nil && c.Expect.Outcome != "" && c.Expect.Error != "" {
			return fmt.Errorf("calls[%d].expect: outcome and error are exclusive", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
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
	case AssertSpecialization:
		if a.Function == "" {
			return fmt.Errorf("assertions[%d]: function is required for specialization", index)
		}
	case AssertSpecializationOrder:
		if len(a.Functions) == 0 {
			return fmt.Errorf("assertions[%d]: functions list is required for specialization_order", index)
		}
	case AssertSpecializationCount:
		if a.Function == "" {
			return fmt.Errorf("assertions[%d]: function is required for specialization_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for specialization_count", index)
		}
	case AssertAssembledContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for assembled_contains", index)
		}
	case AssertStored:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for stored", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for stored", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
