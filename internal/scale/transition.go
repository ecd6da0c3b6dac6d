package scale

import (
	"fmt"
	"iter"
	"time"

	"github.com/roach88/procstep/internal/fault"
)

// Transition is one temporal step of a run: the domain restricted to a single
// time slice. It is a Locator that fixes the temporal extent.
type Transition struct {
	scale *Scale
	index int
}

// Transition returns the transition at index i.
func (s *Scale) Transition(i int) (Transition, error) {
	if i < 0 || i >= s.Multiplicity() {
		return Transition{}, fault.OutOfRange("transition", i, s.Multiplicity())
	}
	return Transition{scale: s, index: i}, nil
}

// Transitions yields every transition in increasing order.
func (s *Scale) Transitions() iter.Seq[Transition] {
	return func(yield func(Transition) bool) {
		for i := 0; i < s.Multiplicity(); i++ {
			if !yield(Transition{scale: s, index: i}) {
				return
			}
		}
	}
}

// Scale returns the scale the transition belongs to.
func (t Transition) Scale() *Scale { return t.scale }

// Index returns the 0-based time index.
func (t Transition) Index() int { return t.index }

// IsLast reports whether this is the final time slice.
func (t Transition) IsLast() bool {
	return t.scale != nil && t.index == t.scale.Multiplicity()-1
}

// Previous returns the transition for index-1. It fails with an
// OUT_OF_RANGE error on the initial transition.
func (t Transition) Previous() (Transition, error) {
	if t.index == 0 {
		size := 0
		if t.scale != nil {
			size = t.scale.Multiplicity()
		}
		return Transition{}, fault.OutOfRange("previous transition", -1, size)
	}
	return Transition{scale: t.scale, index: t.index - 1}, nil
}

// Coordinate implements Locator.
func (t Transition) Coordinate(e Extent) (int, bool) {
	if e.Kind == KindTime {
		return t.index, true
	}
	return 0, false
}

// Period returns the wall-time interval of the transition when the
// temporal extent is anchored.
func (t Transition) Period() (start, end time.Time, ok bool) {
	if t.scale == nil {
		return time.Time{}, time.Time{}, false
	}
	e, has := t.scale.Time()
	if !has || e.Step == 0 {
		return time.Time{}, time.Time{}, false
	}
	start = e.Start.Add(time.Duration(t.index) * e.Step)
	return start, start.Add(e.Step), true
}

// String returns "t=<index>".
func (t Transition) String() string {
	if t.IsLast() {
		return fmt.Sprintf("t=%d (last)", t.index)
	}
	return fmt.Sprintf("t=%d", t.index)
}
