package unit

import (
	"context"
	"log/slog"
	"maps"

	"github.com/roach88/procstep/internal/scale"
	"github.com/roach88/procstep/internal/state"
)

const (
	// perturbationWidth bounds the per-step perturbation to [-50, 50).
	perturbationWidth = 100.0
	// fallbackMax bounds initial values drawn when no input is available.
	fallbackMax = 500.0
)

// MultiplierArg is the only parameter ProcessUnit accepts.
var MultiplierArg = Arg{
	Names:       []string{"multiplier", "m"},
	Type:        ArgInt,
	Optional:    true,
	Description: "scales the random perturbation applied at each step",
}

// ProcessUnit is the reference process: it seeds each output from the first
// available input (or a uniform draw when there is none) and then perturbs
// it by a bounded random amount at every transition, clamping at zero.
type ProcessUnit struct {
	lifecycle

	multiplier int
	input      state.Reader
	outputs    map[string]*state.State
	names      []string
}

// NewProcessUnit returns a unit with multiplier 1.
func NewProcessUnit() *ProcessUnit {
	return &ProcessUnit{multiplier: 1}
}

// Multiplier returns the configured multiplier.
func (u *ProcessUnit) Multiplier() int { return u.multiplier }

// Configure applies the multiplier parameter. Unknown names are ignored.
func (u *ProcessUnit) Configure(params map[string]any) error {
	m, ok, err := IntParam(params, MultiplierArg)
	if err != nil {
		return err
	}
	if ok {
		u.multiplier = m
	}
	return nil
}

// Initialize validates the declared variables, creates one output state per
// expected output and seeds it over the initialization slice.
func (u *ProcessUnit) Initialize(ctx context.Context, req InitRequest) (map[string]*state.State, error) {
	if err := u.begin(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		u.phase = PhaseFailed
		return nil, err
	}

	for _, name := range sortedKeys(req.Inputs) {
		if in, ok := req.Available[name]; ok {
			u.input = in
			break
		}
	}

	u.names = sortedKeys(req.Outputs)
	u.outputs = make(map[string]*state.State, len(u.names))
	for _, name := range u.names {
		st, err := u.store.Create(name)
		if err != nil {
			u.phase = PhaseFailed
			return nil, err
		}
		for off := range u.scale.Offsets(scale.Initialization) {
			if err := st.Set(off, u.initial(off)); err != nil {
				u.phase = PhaseFailed
				return nil, err
			}
		}
		u.outputs[name] = st
	}

	u.settle()
	u.log.Debug("process initialized",
		"scale", u.scale.String(),
		"outputs", len(u.names),
		"seeded_from_input", u.input != nil,
		"disposable", u.Disposable())
	return u.result(), nil
}

func (u *ProcessUnit) initial(off int) float64 {
	if u.input == nil {
		return u.rng.Uniform(0, fallbackMax)
	}
	return clamp(u.input.Get(off) + u.rng.Perturbation(perturbationWidth, u.multiplier))
}

// Compute perturbs every output over the offsets of t, starting from the
// values recorded at the previous transition.
//
// Values are computed for all offsets before any is written, so a failed
// read leaves the outputs untouched.
func (u *ProcessUnit) Compute(ctx context.Context, t scale.Transition, _ map[string]state.Reader) (map[string]*state.State, error) {
	if err := u.step(ctx, t); err != nil {
		return nil, err
	}
	prev, err := previousOf(t)
	if err != nil {
		return nil, err
	}

	offsets := make([]int, 0, u.scale.Slots())
	for off := range u.scale.Offsets(t) {
		offsets = append(offsets, off)
	}

	next := make(map[string][]float64, len(u.names))
	for _, name := range u.names {
		next[name] = make([]float64, len(offsets))
	}
	for i, off := range offsets {
		for _, name := range u.names {
			prior, err := u.outputs[name].GetAt(off, prev)
			if err != nil {
				return nil, err
			}
			next[name][i] = clamp(prior + u.rng.Perturbation(perturbationWidth, u.multiplier))
		}
	}

	for _, name := range u.names {
		st := u.outputs[name]
		for i, off := range offsets {
			if err := st.Set(off, next[name][i]); err != nil {
				return nil, err
			}
		}
	}

	u.done(t)
	if u.log.Enabled(ctx, slog.LevelDebug) {
		u.log.Debug("process computed", "transition", t.String(), "offsets", len(offsets))
	}
	return u.result(), nil
}

func (u *ProcessUnit) result() map[string]*state.State {
	return maps.Clone(u.outputs)
}

// clamp floors v at zero. Undefined stays undefined.
func clamp(v float64) float64 {
	if state.IsUndefined(v) || v >= 0 {
		return v
	}
	return 0
}
