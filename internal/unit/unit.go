package unit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/procstep/internal/fault"
	"github.com/roach88/procstep/internal/rng"
	"github.com/roach88/procstep/internal/scale"
	"github.com/roach88/procstep/internal/state"
)

// Unit is a stateful computing entity driven by a host.
//
// The host calls Configure, then Initialize exactly once, then Compute once
// per transition in strictly increasing order. It reads Disposable after
// every call and stops calling the unit once it reports true.
type Unit interface {
	Configure(params map[string]any) error
	Initialize(ctx context.Context, req InitRequest) (map[string]*state.State, error)
	Compute(ctx context.Context, t scale.Transition, inputs map[string]state.Reader) (map[string]*state.State, error)
	Disposable() bool
}

// InitRequest carries everything Initialize needs from the host.
type InitRequest struct {
	// Scale is the domain the unit is contextualized over. Required.
	Scale *scale.Scale

	// Inputs and Outputs declare the expected variables by formal name.
	Inputs  map[string]Observable
	Outputs map[string]Observable

	// Available holds input states that already have values.
	Available map[string]state.Reader

	// Store receives the unit's output states. When nil the unit creates
	// its own with the default history policy.
	Store *state.Store

	// RNG drives stochastic update rules. When nil the unit seeds one from
	// the wall clock.
	RNG *rng.RNG

	// Logger is the monitoring channel. When nil logs are discarded.
	Logger *slog.Logger
}

// Phase is a lifecycle position.
type Phase int

const (
	PhaseCreated Phase = iota
	PhaseInitialized
	PhaseStepping
	PhaseDisposable
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseInitialized:
		return "initialized"
	case PhaseStepping:
		return "stepping"
	case PhaseDisposable:
		return "disposable"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// lifecycle tracks the phase machine shared by every unit in this package.
type lifecycle struct {
	phase Phase
	last  int // last computed transition index, -1 before the first compute
	scale *scale.Scale
	store *state.Store
	rng   *rng.RNG
	log   *slog.Logger
}

// begin validates an InitRequest and moves to the initialized phase.
// On failure the unit is left in PhaseFailed.
func (l *lifecycle) begin(req InitRequest) error {
	if l.phase != PhaseCreated {
		return fault.StaleRead("", fault.NoTransition, fault.NoOffset,
			fmt.Sprintf("initialize called in phase %s", l.phase))
	}
	if req.Scale == nil {
		l.phase = PhaseFailed
		return fmt.Errorf("initialize: scale is required")
	}
	if err := checkKinds("input", req.Inputs); err != nil {
		l.phase = PhaseFailed
		return err
	}
	if err := checkKinds("output", req.Outputs); err != nil {
		l.phase = PhaseFailed
		return err
	}

	l.scale = req.Scale
	l.store = req.Store
	if l.store == nil {
		l.store = state.NewStore(req.Scale)
	}
	l.rng = req.RNG
	if l.rng == nil {
		l.rng = rng.New(uint64(time.Now().UnixNano()))
	}
	l.log = req.Logger
	if l.log == nil {
		l.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	l.last = -1
	return nil
}

// settle finishes initialize: a scale without meaningful time is done.
func (l *lifecycle) settle() {
	if l.scale.IsTemporallyDistributed() {
		l.phase = PhaseInitialized
		return
	}
	l.phase = PhaseDisposable
}

// step checks that t may be computed now.
func (l *lifecycle) step(ctx context.Context, t scale.Transition) error {
	switch l.phase {
	case PhaseCreated:
		return fault.StaleRead("", t.Index(), fault.NoOffset, "compute called before initialize")
	case PhaseFailed:
		return fault.StaleRead("", t.Index(), fault.NoOffset, "compute called after failed initialize")
	case PhaseDisposable:
		return fault.StaleRead("", t.Index(), fault.NoOffset, "compute called on a disposable unit")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.Scale() != l.scale {
		return fmt.Errorf("compute: transition %s does not belong to the unit's scale", t)
	}
	if t.Index() <= l.last {
		return fault.StaleRead("", t.Index(), fault.NoOffset,
			fmt.Sprintf("transitions must strictly increase (last computed %d)", l.last))
	}
	if active := l.store.Active(); active != t.Index() {
		return fault.StaleRead("", t.Index(), fault.NoOffset,
			fmt.Sprintf("store is at transition %d", active))
	}
	return nil
}

// done records a completed compute and updates disposability.
func (l *lifecycle) done(t scale.Transition) {
	l.last = t.Index()
	if t.IsLast() {
		l.phase = PhaseDisposable
		return
	}
	l.phase = PhaseStepping
}

// Phase returns the current lifecycle phase.
func (l *lifecycle) Phase() Phase { return l.phase }

// Disposable reports whether the host may retire the unit.
func (l *lifecycle) Disposable() bool { return l.phase == PhaseDisposable }

// Store returns the store holding the unit's outputs, nil before initialize.
func (l *lifecycle) Store() *state.Store { return l.store }

func checkKinds(role string, vars map[string]Observable) error {
	for _, name := range sortedKeys(vars) {
		if k := vars[name].Kind; !k.Numeric() {
			return fault.TypeMismatch(role, name, k.String())
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// previousOf returns the transition whose values seed t. Index 0 reads the
// initialized values in place.
func previousOf(t scale.Transition) (scale.Transition, error) {
	if t.Index() == 0 {
		return t, nil
	}
	return t.Previous()
}
