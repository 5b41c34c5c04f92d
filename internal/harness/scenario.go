package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/recsql/internal/outcome"
	"github.com/roach88/recsql/internal/request"
)

// Scenario is a sequence of engine operations on a fresh demo database.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Setup holds SQL statements run before the first step.
	Setup []string `yaml:"setup,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one engine call.
type Step struct {
	Op      string    `yaml:"op"`
	User    string    `yaml:"user,omitempty"`
	Groups  []string  `yaml:"groups,omitempty"`
	Request yaml.Node `yaml:"request"`
	Expect  *Expect   `yaml:"expect,omitempty"`

	req *request.Request
}

// Expect is what a step must produce. Unset fields are not checked.
type Expect struct {
	Status string `yaml:"status"`
	Count  *int64 `yaml:"count,omitempty"`
	ID     any    `yaml:"id,omitempty"`

	// IDs are the identities of a list result, in order.
	IDs []any `yaml:"ids,omitempty"`

	// Record is a subset of the attributes of a get result.
	Record map[string]any `yaml:"record,omitempty"`
}

// Assertion checks the trace or the final database state.
type Assertion struct {
	Type string `yaml:"type"`

	// final_state and row_count.
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`

	// row_count and trace_count.
	Count int `yaml:"count,omitempty"`

	// trace_count.
	Op     string `yaml:"op,omitempty"`
	Status string `yaml:"status,omitempty"`
}

// Step operations.
const (
	OpList   = "list"
	OpCount  = "count"
	OpGet    = "get"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Assertion types.
const (
	AssertFinalState = "final_state"
	AssertRowCount   = "row_count"
	AssertTraceCount = "trace_count"
)

var validOps = map[string]bool{
	OpList: true, OpCount: true, OpGet: true, OpCreate: true, OpUpdate: true, OpDelete: true,
}

// LoadScenario reads and parses a scenario file. Unknown fields are
// rejected, in the scenario as in its requests.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i := range s.Steps {
		step := &s.Steps[i]
		if !validOps[step.Op] {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.Request.Kind == 0 {
			return fmt.Errorf("steps[%d]: request is required", i)
		}
		req, err := request.FromNode(&step.Request)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		step.req = req
		if step.Expect != nil {
			if _, err := outcome.ParseStatus(step.Expect.Status); err != nil {
				return fmt.Errorf("steps[%d]: expect: %w", i, err)
			}
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertFinalState, AssertRowCount:
			if a.Table == "" {
				return fmt.Errorf("assertions[%d]: %s requires table", i, a.Type)
			}
		case AssertTraceCount:
			if !validOps[a.Op] {
				return fmt.Errorf("assertions[%d]: unknown op %q", i, a.Op)
			}
			if _, err := outcome.ParseStatus(a.Status); err != nil {
				return fmt.Errorf("assertions[%d]: %w", i, err)
			}
		default:
			return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
	}
	return nil
}
