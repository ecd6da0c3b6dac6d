package harness

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/procstep/internal/fault"
	"github.com/roach88/procstep/internal/state"
	"github.com/roach88/procstep/internal/trace"
	"github.com/roach88/procstep/internal/unit"
)

// ErrInvalidScenario wraps every error for a scenario that parsed but failed
// validation.
var ErrInvalidScenario = errors.New("invalid scenario")

// Source formats a scenario can be written in.
const (
	FormatYAML = "yaml"
	FormatCUE  = "cue"
)

// Scenario defines one process run and the assertions it must satisfy.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// Unit is the prototype ID to run, e.g. "example.p".
	Unit string `yaml:"unit" json:"unit"`

	// Seed seeds the unit's RNG. Zero is a valid seed.
	Seed uint64 `yaml:"seed" json:"seed"`

	// Params are handed to Configure unchanged.
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`

	Scale   ScaleSpec    `yaml:"scale" json:"scale"`
	Inputs  []InputSpec  `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs []OutputSpec `yaml:"outputs,omitempty" json:"outputs,omitempty"`

	// History is "double" (default) or "full".
	History string `yaml:"history,omitempty" json:"history,omitempty"`

	// Process is an optional fixed process ID for deterministic traces.
	// If empty, testutil.DefaultProcessID is used.
	Process string `yaml:"process,omitempty" json:"process,omitempty"`

	// Assertions validate the run. A scenario without assertions only has
	// to run without error.
	Assertions []Assertion `yaml:"assertions,omitempty" json:"assertions,omitempty"`

	// Format and Source record where the scenario came from. They are set
	// by the loaders and never decoded.
	Format string `yaml:"-" json:"-"`
	Source []byte `yaml:"-" json:"-"`
}

// ScaleSpec describes the extents of a scenario. Extents are laid out time
// first, then space, then the other extents in order.
type ScaleSpec struct {
	Time   *TimeSpec    `yaml:"time,omitempty" json:"time,omitempty"`
	Grid   *GridSpec    `yaml:"grid,omitempty" json:"grid,omitempty"`
	Shapes []ShapeSpec  `yaml:"shapes,omitempty" json:"shapes,omitempty"`
	Other  []ExtentSpec `yaml:"other,omitempty" json:"other,omitempty"`
}

// TimeSpec is a temporal extent. Start (RFC 3339) and Step (a Go duration
// such as "24h") are optional but must be given together.
type TimeSpec struct {
	Steps int    `yaml:"steps" json:"steps"`
	Start string `yaml:"start,omitempty" json:"start,omitempty"`
	Step  string `yaml:"step,omitempty" json:"step,omitempty"`
}

type GridSpec struct {
	Cols int `yaml:"cols" json:"cols"`
	Rows int `yaml:"rows" json:"rows"`
}

// ShapeSpec is one shape of an irregular spatial extent, given by its centroid.
type ShapeSpec struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

type ExtentSpec struct {
	Name string `yaml:"name" json:"name"`
	Size int    `yaml:"size" json:"size"`
}

// InputSpec declares an input variable. With Value the input is constant
// over the domain; with Values it is given per slot. With neither the input
// is declared but not available to the unit.
type InputSpec struct {
	Name   string   `yaml:"name" json:"name"`
	Kind   string   `yaml:"kind,omitempty" json:"kind,omitempty"`
	Value  *Number  `yaml:"value,omitempty" json:"value,omitempty"`
	Values []Number `yaml:"values,omitempty" json:"values,omitempty"`
}

type OutputSpec struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
}

// Number is a state value in a scenario file. It accepts numbers and the
// strings "nan" and "undefined".
type Number float64

// Float returns the value as a float64; undefined is NaN.
func (n Number) Float() float64 { return float64(n) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: value must be a number or \"nan\"", node.Line)
	}
	v, err := trace.ParseValue(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid value %q", node.Line, node.Value)
	}
	*n = Number(v)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler. CUE scenarios are decoded
// through JSON.
func (n *Number) UnmarshalJSON(b []byte) error {
	s := string(b)
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	v, err := trace.ParseValue(s)
	if err != nil {
		return fmt.Errorf("invalid value %s", b)
	}
	*n = Number(v)
	return nil
}

// LoadScenario reads and parses a scenario file. The format is chosen by
// extension: .yaml and .yml are YAML, .cue is CUE.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".cue":
		format = FormatCUE
	default:
		return nil, fmt.Errorf("unsupported scenario file %s: want .yaml, .yml or .cue", path)
	}
	return ParseScenario(data, format)
}

// ParseScenario parses scenario source in the given format and validates it.
func ParseScenario(data []byte, format string) (*Scenario, error) {
	var (
		scenario Scenario
		err      error
	)
	switch format {
	case FormatYAML:
		err = decodeYAML(data, &scenario)
	case FormatCUE:
		err = decodeCUE(data, &scenario)
	default:
		return nil, fmt.Errorf("unknown scenario format %q", format)
	}
	if err != nil {
		return nil, err
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	scenario.Format = format
	scenario.Source = data
	return &scenario, nil
}

func decodeYAML(data []byte, s *Scenario) error {
	// Reject unknown fields so typos like "assertion:" surface.
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(s); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// decodeCUE evaluates the CUE source, exports it as JSON and decodes that
// with unknown fields rejected, matching the YAML loader.
func decodeCUE(data []byte, s *Scenario) error {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data)
	if err := v.Err(); err != nil {
		return fmt.Errorf("failed to compile CUE: %w", formatCUEError(err))
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("failed to evaluate CUE: %w", formatCUEError(err))
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to export CUE: %w", formatCUEError(err))
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	decoder.UseNumber()
	if err := decoder.Decode(s); err != nil {
		return fmt.Errorf("failed to decode CUE: %w", err)
	}
	return nil
}

// formatCUEError keeps the first error with its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		return fmt.Errorf("%s: %s", pos[0], first.Error())
	}
	return first
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Unit == "" {
		return fmt.Errorf("unit is required")
	}

	if _, err := state.ParseHistory(s.History); err != nil {
		return err
	}
	if err := s.Scale.validate(); err != nil {
		return fmt.Errorf("scale: %w", err)
	}

	seen := make(map[string]string)
	for i, in := range s.Inputs {
		if in.Name == "" {
			return fmt.Errorf("inputs[%d]: name is required", i)
		}
		if _, err := unit.ParseKind(in.Kind); err != nil {
			return fmt.Errorf("inputs[%d]: %w", i, err)
		}
		if in.Value != nil && len(in.Values) > 0 {
			return fmt.Errorf("inputs[%d]: value and values are mutually exclusive", i)
		}
		if prev, dup := seen[in.Name]; dup {
			return fmt.Errorf("inputs[%d]: %q already declared as %s", i, in.Name, prev)
		}
		seen[in.Name] = "input"
	}
	for i, out := range s.Outputs {
		if out.Name == "" {
			return fmt.Errorf("outputs[%d]: name is required", i)
		}
		if _, err := unit.ParseKind(out.Kind); err != nil {
			return fmt.Errorf("outputs[%d]: %w", i, err)
		}
		if prev, dup := seen[out.Name]; dup {
			return fmt.Errorf("outputs[%d]: %q already declared as %s", i, out.Name, prev)
		}
		seen[out.Name] = "output"
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], s); err != nil {
			return err
		}
	}
	return nil
}

func (sp ScaleSpec) validate() error {
	if sp.Grid != nil && len(sp.Shapes) > 0 {
		return fmt.Errorf("grid and shapes are mutually exclusive")
	}
	if t := sp.Time; t != nil {
		if (t.Start == "") != (t.Step == "") {
			return fmt.Errorf("time: start and step must be given together")
		}
		if t.Start != "" {
			if _, err := time.Parse(time.RFC3339, t.Start); err != nil {
				return fmt.Errorf("time.start: %w", err)
			}
			if _, err := time.ParseDuration(t.Step); err != nil {
				return fmt.Errorf("time.step: %w", err)
			}
		}
	}
	_, err := sp.Build()
	return err
}

// historyOf returns the parsed history policy; validateScenario has already
// rejected bad values.
func (s *Scenario) historyOf() state.History {
	h, _ := state.ParseHistory(s.History)
	return h
}

// errorKindOf parses an error_kind assertion value.
func errorKindOf(s string) (fault.Kind, bool) {
	for _, k := range fault.Kinds {
		if string(k) == strings.ToUpper(s) {
			return k, true
		}
	}
	return "", false
}
