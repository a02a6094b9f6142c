package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of canvas edits plus the checks that
// must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// DeltaRunLimit overrides the store's compaction threshold when positive.
	DeltaRunLimit int `yaml:"delta_run_limit,omitempty"`

	// Steps run in order against one service.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final logs and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one service call.
type Step struct {
	// Op is one of create, paint, undo, set_colour.
	Op string `yaml:"op"`

	// Canvas is the scenario alias of the target canvas.
	Canvas string `yaml:"canvas,omitempty"`

	// User is the author of a create or paint, or the owner of a colour.
	User string `yaml:"user,omitempty"`

	// Size is the edge length for create. Zero means canvas.DefaultSize.
	Size int `yaml:"size,omitempty"`

	// Cells are the indices a paint sets.
	Cells []int `yaml:"cells,omitempty"`

	// Color is the paint colour or the colour to store for set_colour.
	// A paint without it uses the user's stored colour.
	Color string `yaml:"color,omitempty"`

	// Repeat runs the step this many times. Expect applies to the last run.
	Repeat int `yaml:"repeat,omitempty"`

	// Expect, when set, is checked against the step's outcome.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the outcome a step must have.
type Expect struct {
	Seq     *int64 `yaml:"seq,omitempty"`
	Kind    string `yaml:"kind,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`
	Error   string `yaml:"error,omitempty"`
}

// Assertion validates the final state of a scenario.
type Assertion struct {
	Type string `yaml:"type"`

	// Canvas is the alias the assertion reads (key, log_shape, verified).
	Canvas string `yaml:"canvas,omitempty"`

	// Seq selects a historical key instead of the current one (key).
	Seq *int64 `yaml:"seq,omitempty"`

	// Fill is the colour of every cell not listed in Cells (key).
	Fill string `yaml:"fill,omitempty"`

	// Cells maps indices to expected colours (key).
	Cells map[int]string `yaml:"cells,omitempty"`

	// Shape is the expected log shape, one S or D per entry (log_shape).
	Shape string `yaml:"shape,omitempty"`

	// User and Color are used by user_colour.
	User  string `yaml:"user,omitempty"`
	Color string `yaml:"color,omitempty"`

	// Op and Count are used by op_count.
	Op    string `yaml:"op,omitempty"`
	Count int    `yaml:"count,omitempty"`
}

// Step operations.
const (
	OpCreate    = "create"
	OpPaint     = "paint"
	OpUndo      = "undo"
	OpSetColour = "set_colour"
)

// Assertion type constants.
const (
	AssertKey        = "key"
	AssertLogShape   = "log_shape"
	AssertVerified   = "verified"
	AssertUserColour = "user_colour"
	AssertOpCount    = "op_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Op {
	case OpCreate, OpUndo:
		if step.Canvas == "" {
			return fmt.Errorf("%s needs a canvas", step.Op)
		}
	case OpPaint:
		if step.Canvas == "" {
			return fmt.Errorf("paint needs a canvas")
		}
		if len(step.Cells) == 0 {
			return fmt.Errorf("paint needs at least one cell")
		}
	case OpSetColour:
		if step.Color == "" {
			return fmt.Errorf("set_colour needs a color")
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	if step.Repeat < 0 {
		return fmt.Errorf("repeat must not be negative")
	}
	if e := step.Expect; e != nil {
		if e.Kind != "" && e.Kind != "snapshot" && e.Kind != "delta" {
			return fmt.Errorf("expect.kind must be snapshot or delta, got %q", e.Kind)
		}
		if e.Outcome != "" && step.Op != OpUndo {
			return fmt.Errorf("expect.outcome only applies to undo")
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertKey:
		if a.Canvas == "" {
			return fmt.Errorf("key needs a canvas")
		}
		if a.Fill == "" && len(a.Cells) == 0 {
			return fmt.Errorf("key needs fill or cells")
		}
	case AssertLogShape:
		if a.Canvas == "" {
			return fmt.Errorf("log_shape needs a canvas")
		}
		if strings.Trim(a.Shape, "SD") != "" {
			return fmt.Errorf("log_shape may only contain S and D, got %q", a.Shape)
		}
	case AssertVerified:
		if a.Canvas == "" {
			return fmt.Errorf("verified needs a canvas")
		}
	case AssertUserColour:
		if a.Color == "" {
			return fmt.Errorf("user_colour needs a color")
		}
	case AssertOpCount:
		if a.Op == "" {
			return fmt.Errorf("op_count needs an op")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
