package unit

import (
	"context"
	"maps"
	"slices"

	"github.com/roach88/procstep/internal/scale"
	"github.com/roach88/procstep/internal/state"
)

// PointFunc computes the output value at one offset from the input values
// at that offset. Inputs that are missing or undefined are passed as
// state.Undefined.
type PointFunc func(offset int, inputs map[string]float64) float64

// Sum adds every input in name order, so equal inputs always give the same
// rounding. Any undefined input makes the result undefined. With no inputs
// the result is undefined.
func Sum(_ int, inputs map[string]float64) float64 {
	if len(inputs) == 0 {
		return state.Undefined
	}
	total := 0.0
	for _, name := range slices.Sorted(maps.Keys(inputs)) {
		total += inputs[name]
	}
	return total
}

// StateContextualizer applies a PointFunc independently at every offset.
// Each output receives the same value. It is deterministic.
type StateContextualizer struct {
	lifecycle

	fn      PointFunc
	inputs  []string
	names   []string
	outputs map[string]*state.State
}

// NewStateContextualizer returns a unit applying fn; nil means Sum.
func NewStateContextualizer(fn PointFunc) *StateContextualizer {
	if fn == nil {
		fn = Sum
	}
	return &StateContextualizer{fn: fn}
}

// Configure accepts no parameters; every name is ignored.
func (u *StateContextualizer) Configure(map[string]any) error { return nil }

// Initialize creates the outputs and evaluates the function over the
// initialization slice using the available inputs.
func (u *StateContextualizer) Initialize(ctx context.Context, req InitRequest) (map[string]*state.State, error) {
	if err := u.begin(req); err != nil {
		return nil, err
	}
	u.inputs = sortedKeys(req.Inputs)
	u.names = sortedKeys(req.Outputs)
	u.outputs = make(map[string]*state.State, len(u.names))
	for _, name := range u.names {
		st, err := u.store.Create(name)
		if err != nil {
			u.phase = PhaseFailed
			return nil, err
		}
		u.outputs[name] = st
	}

	if err := u.apply(scale.Initialization, func(name string, off int) (float64, error) {
		in, ok := req.Available[name]
		if !ok {
			return state.Undefined, nil
		}
		return in.Get(off), nil
	}); err != nil {
		u.phase = PhaseFailed
		return nil, err
	}

	u.settle()
	return maps.Clone(u.outputs), nil
}

// Compute evaluates the function over the offsets of t using the input
// values at t.
func (u *StateContextualizer) Compute(ctx context.Context, t scale.Transition, inputs map[string]state.Reader) (map[string]*state.State, error) {
	if err := u.step(ctx, t); err != nil {
		return nil, err
	}
	if err := u.apply(t, func(name string, off int) (float64, error) {
		in, ok := inputs[name]
		if !ok {
			return state.Undefined, nil
		}
		return in.GetAt(off, t)
	}); err != nil {
		return nil, err
	}
	u.done(t)
	return maps.Clone(u.outputs), nil
}

func (u *StateContextualizer) apply(loc scale.Locator, read func(name string, off int) (float64, error)) error {
	type point struct {
		off int
		v   float64
	}
	var points []point
	values := make(map[string]float64, len(u.inputs))
	for off := range u.scale.Offsets(loc) {
		clear(values)
		for _, name := range u.inputs {
			v, err := read(name, off)
			if err != nil {
				return err
			}
			values[name] = v
		}
		points = append(points, point{off: off, v: u.fn(off, values)})
	}
	for _, name := range u.names {
		st := u.outputs[name]
		for _, p := range points {
			if err := st.Set(p.off, p.v); err != nil {
				return err
			}
		}
	}
	return nil
}
