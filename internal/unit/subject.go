package unit

import (
	"context"

	"github.com/roach88/procstep/internal/scale"
	"github.com/roach88/procstep/internal/state"
)

// SubjectContextualizer observes a subject without producing states. It only
// follows the lifecycle: a scale without meaningful time retires it after
// initialize, otherwise it retires on the last transition.
type SubjectContextualizer struct {
	lifecycle
}

// NewSubjectContextualizer returns a fresh subject contextualizer.
func NewSubjectContextualizer() *SubjectContextualizer {
	return &SubjectContextualizer{}
}

// Configure accepts no parameters; every name is ignored.
func (u *SubjectContextualizer) Configure(map[string]any) error { return nil }

// Initialize validates the declared variables.
func (u *SubjectContextualizer) Initialize(ctx context.Context, req InitRequest) (map[string]*state.State, error) {
	if err := u.begin(req); err != nil {
		return nil, err
	}
	u.settle()
	u.log.Debug("subject contextualizer initialized", "disposable", u.Disposable())
	return map[string]*state.State{}, nil
}

// Compute records the transition.
func (u *SubjectContextualizer) Compute(ctx context.Context, t scale.Transition, _ map[string]state.Reader) (map[string]*state.State, error) {
	if err := u.step(ctx, t); err != nil {
		return nil, err
	}
	u.done(t)
	return map[string]*state.State{}, nil
}

// SubjectInstantiator creates subjects at each transition. The reference
// instantiator creates none; it exists to exercise the lifecycle of units
// that produce no states.
type SubjectInstantiator struct {
	lifecycle
}

// NewSubjectInstantiator returns a fresh instantiator.
func NewSubjectInstantiator() *SubjectInstantiator {
	return &SubjectInstantiator{}
}

// Configure accepts no parameters; every name is ignored.
func (u *SubjectInstantiator) Configure(map[string]any) error { return nil }

// Initialize validates the declared variables.
func (u *SubjectInstantiator) Initialize(ctx context.Context, req InitRequest) (map[string]*state.State, error) {
	if err := u.begin(req); err != nil {
		return nil, err
	}
	u.settle()
	return map[string]*state.State{}, nil
}

// Compute instantiates the subjects for t.
func (u *SubjectInstantiator) Compute(ctx context.Context, t scale.Transition, _ map[string]state.Reader) (map[string]*state.State, error) {
	if err := u.step(ctx, t); err != nil {
		return nil, err
	}
	u.done(t)
	u.log.Debug("subjects instantiated", "transition", t.String(), "count", 0)
	return map[string]*state.State{}, nil
}
