package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/procstep/internal/engine"
	"github.com/roach88/procstep/internal/fault"
	"github.com/roach88/procstep/internal/scale"
	"github.com/roach88/procstep/internal/state"
	"github.com/roach88/procstep/internal/trace"
)

// Assertion validates one property of a run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "disposable_at": the unit first reported disposable after Transition
	// - "non_negative": every recorded value of Output is >= 0 or undefined
	// - "init_range": every initialized value of Output lies in [Min, Max]
	// - "undefined_at": Output is undefined at Offset after Transition
	// - "value_at": Output equals Value at Offset after Transition
	// - "compute_count": Compute ran exactly Count times
	// - "error_kind": the run failed with an error of Kind
	Type string `yaml:"type" json:"type"`

	// Output names the output variable (non_negative, init_range,
	// undefined_at, value_at).
	Output string `yaml:"output,omitempty" json:"output,omitempty"`

	// Transition is the transition index (disposable_at; optional for
	// undefined_at and value_at, default 0).
	Transition *int `yaml:"transition,omitempty" json:"transition,omitempty"`

	// Offset is the domain offset (undefined_at, value_at).
	Offset *int `yaml:"offset,omitempty" json:"offset,omitempty"`

	// Min and Max bound init_range, inclusive.
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`

	// Count is the expected number of compute calls (compute_count).
	Count *int `yaml:"count,omitempty" json:"count,omitempty"`

	// Kind is the expected error kind, e.g. "TYPE_MISMATCH" (error_kind).
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Value is the expected value (value_at). "nan" is accepted.
	Value *Number `yaml:"value,omitempty" json:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertDisposableAt = "disposable_at"
	AssertNonNegative  = "non_negative"
	AssertInitRange    = "init_range"
	AssertUndefinedAt  = "undefined_at"
	AssertValueAt      = "value_at"
	AssertComputeCount = "compute_count"
	AssertErrorKind    = "error_kind"
)

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, s *Scenario) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	needOutput := func() error {
		if a.Output == "" {
			return fmt.Errorf("assertions[%d]: output is required for %s", index, a.Type)
		}
		for _, out := range s.Outputs {
			if out.Name == a.Output {
				return nil
			}
		}
		return fmt.Errorf("assertions[%d]: output %q is not declared", index, a.Output)
	}

	switch a.Type {
	case AssertDisposableAt:
		if a.Transition == nil {
			return fmt.Errorf("assertions[%d]: transition is required for disposable_at", index)
		}
	case AssertNonNegative:
		return needOutput()
	case AssertInitRange:
		if a.Min == nil || a.Max == nil {
			return fmt.Errorf("assertions[%d]: min and max are required for init_range", index)
		}
		if *a.Min > *a.Max {
			return fmt.Errorf("assertions[%d]: min %g exceeds max %g", index, *a.Min, *a.Max)
		}
		return needOutput()
	case AssertUndefinedAt, AssertValueAt:
		if a.Offset == nil {
			return fmt.Errorf("assertions[%d]: offset is required for %s", index, a.Type)
		}
		if a.Type == AssertValueAt && a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for value_at", index)
		}
		return needOutput()
	case AssertComputeCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for compute_count", index)
		}
	case AssertErrorKind:
		if _, ok := errorKindOf(a.Kind); !ok {
			return fmt.Errorf("assertions[%d]: unknown error kind %q", index, a.Kind)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Trace    []trace.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", ev.Seq, ev.Kind)
			if ev.Transition != fault.NoTransition {
				fmt.Fprintf(&buf, " t=%d", ev.Transition)
			}
			if ev.Disposable {
				buf.WriteString(" disposable")
			}
			if ev.ErrorKind != "" {
				fmt.Fprintf(&buf, " %s", ev.ErrorKind)
			}
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

// run is what assertions are evaluated against.
type run struct {
	scale  *scale.Scale
	trace  []trace.Event
	result *engine.Result
	err    error
}

func (r run) fail(a Assertion, expected, actual string) error {
	return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: r.trace}
}

func (r run) failedDescription() string {
	return fmt.Sprintf("run failed: %v", r.err)
}

func assertDisposableAt(r run, a Assertion) error {
	want := *a.Transition
	if r.result == nil {
		return r.fail(a, fmt.Sprintf("disposable after t=%d", want), r.failedDescription())
	}
	if got := r.result.DisposableAt; got != want {
		actual := fmt.Sprintf("disposable after t=%d", got)
		if got == fault.NoTransition {
			actual = "never disposable"
		}
		return r.fail(a, fmt.Sprintf("disposable after t=%d", want), actual)
	}
	return nil
}

func assertNonNegative(r run, a Assertion) error {
	for _, ev := range r.trace {
		for slot, text := range ev.Outputs[a.Output] {
			v, err := trace.ParseValue(text)
			if err != nil {
				return fmt.Errorf("event %d: %w", ev.Seq, err)
			}
			if !state.IsUndefined(v) && v < 0 {
				return r.fail(a,
					fmt.Sprintf("%s >= 0 everywhere", a.Output),
					fmt.Sprintf("%s = %s at slot %d (event %d, %s)", a.Output, text, slot, ev.Seq, ev.Kind))
			}
		}
	}
	return nil
}

func assertInitRange(r run, a Assertion) error {
	ev, ok := r.eventAt(a.Output, 0)
	if !ok {
		return r.fail(a, fmt.Sprintf("%s initialized", a.Output), "no initialize event carries it")
	}
	for slot, text := range ev.Outputs[a.Output] {
		v, err := trace.ParseValue(text)
		if err != nil {
			return fmt.Errorf("event %d: %w", ev.Seq, err)
		}
		if state.IsUndefined(v) || v < *a.Min || v > *a.Max {
			return r.fail(a,
				fmt.Sprintf("%s in [%g, %g]", a.Output, *a.Min, *a.Max),
				fmt.Sprintf("%s = %s at slot %d", a.Output, text, slot))
		}
	}
	return nil
}

// assertValue handles undefined_at and value_at.
func assertValue(r run, a Assertion) error {
	t := 0
	if a.Transition != nil {
		t = *a.Transition
	}
	v, err := r.valueAt(a.Output, t, *a.Offset)
	if err != nil {
		return r.fail(a, fmt.Sprintf("%s recorded at offset %d, t=%d", a.Output, *a.Offset, t), err.Error())
	}

	if a.Type == AssertUndefinedAt {
		if !state.IsUndefined(v) {
			return r.fail(a, fmt.Sprintf("%s undefined at offset %d, t=%d", a.Output, *a.Offset, t), trace.FormatValue(v))
		}
		return nil
	}

	want := a.Value.Float()
	if state.IsUndefined(want) && state.IsUndefined(v) {
		return nil
	}
	if v != want {
		return r.fail(a,
			fmt.Sprintf("%s = %s at offset %d, t=%d", a.Output, trace.FormatValue(want), *a.Offset, t),
			trace.FormatValue(v))
	}
	return nil
}

func assertComputeCount(r run, a Assertion) error {
	count := 0
	for _, ev := range r.trace {
		if ev.Kind == string(engine.EventCompute) {
			count++
		}
	}
	if count != *a.Count {
		return r.fail(a, fmt.Sprintf("%d compute calls", *a.Count), fmt.Sprintf("%d compute calls", count))
	}
	return nil
}

func assertErrorKind(r run, a Assertion) error {
	want, _ := errorKindOf(a.Kind)
	if r.err == nil {
		return r.fail(a, fmt.Sprintf("run to fail with %s", want), "run succeeded")
	}
	if got := fault.KindOf(r.err); got != want {
		return r.fail(a, fmt.Sprintf("run to fail with %s", want), fmt.Sprintf("%s (%v)", got, r.err))
	}
	return nil
}

// eventAt returns the last event at transition t that carries output.
func (r run) eventAt(output string, t int) (trace.Event, bool) {
	for i := len(r.trace) - 1; i >= 0; i-- {
		ev := r.trace[i]
		if ev.Transition != t || ev.Outputs[output] == nil {
			continue
		}
		if ev.Kind == string(engine.EventInitialize) || ev.Kind == string(engine.EventCompute) {
			return ev, true
		}
	}
	return trace.Event{}, false
}

func (r run) valueAt(output string, t, offset int) (float64, error) {
	if offset < 0 || offset >= r.scale.Cardinality() {
		return 0, fault.OutOfRange("offset", offset, r.scale.Cardinality())
	}
	ev, ok := r.eventAt(output, t)
	if !ok {
		return 0, fmt.Errorf("no event carries %s at t=%d", output, t)
	}
	slot := r.scale.Slot(offset)
	values := ev.Outputs[output]
	if slot >= len(values) {
		return 0, fmt.Errorf("event %d has %d slots, want slot %d", ev.Seq, len(values), slot)
	}
	return trace.ParseValue(values[slot])
}

// evaluateAssertions evaluates every assertion against a run and returns the
// failure messages. A failed run with no error_kind assertion is itself a
// failure.
func evaluateAssertions(r run, assertions []Assertion) []string {
	var errs []string

	expectsError := false
	for _, a := range assertions {
		if a.Type == AssertErrorKind {
			expectsError = true
		}
	}
	if r.err != nil && !expectsError {
		errs = append(errs, r.failedDescription())
	}

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertDisposableAt:
			err = assertDisposableAt(r, a)
		case AssertNonNegative:
			err = assertNonNegative(r, a)
		case AssertInitRange:
			err = assertInitRange(r, a)
		case AssertUndefinedAt, AssertValueAt:
			err = assertValue(r, a)
		case AssertComputeCount:
			err = assertComputeCount(r, a)
		case AssertErrorKind:
			err = assertErrorKind(r, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
