package state

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/roach88/procstep/internal/fault"
	"github.com/roach88/procstep/internal/scale"
)

// Undefined is the "no value" sentinel. It is NaN, so any arithmetic
// involving it yields Undefined.
var Undefined = math.NaN()

// IsUndefined reports whether v is the undefined sentinel.
func IsUndefined(v float64) bool { return math.IsNaN(v) }

// History selects how much per-transition history a State retains.
type History int

const (
	// DoubleBuffer keeps the current and the previous transition.
	DoubleBuffer History = iota
	// FullHistory keeps every transition since the state was created.
	FullHistory
)

// String returns "double" or "full".
func (h History) String() string {
	if h == FullHistory {
		return "full"
	}
	return "double"
}

// ParseHistory parses "double" or "full". The empty string means DoubleBuffer.
func ParseHistory(s string) (History, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "double", "double_buffer":
		return DoubleBuffer, nil
	case "full", "full_history":
		return FullHistory, nil
	default:
		return DoubleBuffer, fmt.Errorf("unknown history policy %q (want double|full)", s)
	}
}

// Reader is the read-only view of a State.
type Reader interface {
	Name() string
	Len() int
	Get(offset int) float64
	GetAt(offset int, t scale.Transition) (float64, error)
}

// State is a named per-offset numeric array with per-transition history.
//
// Thread-safety: reads may run concurrently with each other; a State is
// written only by the process that owns it.
type State struct {
	name    string
	scale   *scale.Scale
	history History

	mu      sync.RWMutex
	created int
	active  int
	cur     []float64
	prev    []float64   // DoubleBuffer: values as of active-1, nil before the first Advance
	layers  [][]float64 // FullHistory: layers[i] holds values as of created+i
	written []int       // transition of the first Set per slot, -1 if never
	frozen  bool
}

// New creates an unowned state with every value Undefined, active at the
// first transition.
func New(name string, sc *scale.Scale, history History) *State {
	return newAt(name, sc, history, 0)
}

func newAt(name string, sc *scale.Scale, history History, active int) *State {
	cur := make([]float64, sc.Slots())
	written := make([]int, sc.Slots())
	for i := range cur {
		cur[i] = Undefined
		written[i] = -1
	}
	return &State{
		name:    name,
		scale:   sc,
		history: history,
		created: active,
		active:  active,
		cur:     cur,
		written: written,
	}
}

// Constant creates a frozen input whose value is v at every offset and
// every transition.
func Constant(name string, sc *scale.Scale, v float64) *State {
	s := New(name, sc, DoubleBuffer)
	for i := range s.cur {
		s.cur[i] = v
	}
	s.frozen = true
	return s
}

// FromSlots creates a frozen input from one value per slot (one time slice).
func FromSlots(name string, sc *scale.Scale, values []float64) (*State, error) {
	if len(values) != sc.Slots() {
		return nil, fmt.Errorf("state %s: got %d values, scale has %d slots", name, len(values), sc.Slots())
	}
	s := New(name, sc, DoubleBuffer)
	copy(s.cur, values)
	s.frozen = true
	return s, nil
}

// Name returns the variable name.
func (s *State) Name() string { return s.name }

// Len returns the scale cardinality. It never changes.
func (s *State) Len() int { return s.scale.Cardinality() }

// Scale returns the scale the state is defined over.
func (s *State) Scale() *scale.Scale { return s.scale }

// History returns the retention policy.
func (s *State) History() History { return s.history }

// Active returns the transition index Set currently records at.
func (s *State) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Get returns the current value at offset, or Undefined if it was never
// set or the offset is outside the scale.
func (s *State) Get(offset int) float64 {
	if offset < 0 || offset >= s.scale.Cardinality() {
		return Undefined
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur[s.scale.Slot(offset)]
}

// GetAt returns the value at offset as it stood at transition t.
//
// Transitions at or after the active one observe the current value. Earlier
// transitions observe what was recorded then; if that is no longer retained,
// or predates the state, GetAt fails with STALE_READ. Reading a slot never
// written at or before t also fails, except at the transition the state was
// created in, where it reads Undefined.
func (s *State) GetAt(offset int, t scale.Transition) (float64, error) {
	if offset < 0 || offset >= s.scale.Cardinality() {
		return Undefined, fault.OutOfRange("offset", offset, s.scale.Cardinality())
	}
	idx := t.Index()
	slot := s.scale.Slot(offset)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.frozen {
		return s.cur[slot], nil
	}
	if idx < s.created {
		return Undefined, fault.StaleRead(s.name, idx, offset,
			fmt.Sprintf("no value recorded: state created at transition %d", s.created))
	}
	if w := s.written[slot]; idx > s.created && (w < 0 || w > idx) {
		return Undefined, fault.StaleRead(s.name, idx, offset,
			fmt.Sprintf("no value recorded at or before transition %d", idx))
	}
	if idx >= s.active {
		return s.cur[slot], nil
	}

	switch s.history {
	case FullHistory:
		return s.layers[idx-s.created][slot], nil
	default:
		if idx == s.active-1 && s.prev != nil {
			return s.prev[slot], nil
		}
		return Undefined, fault.StaleRead(s.name, idx, offset,
			fmt.Sprintf("transition outside retained history (active %d, double buffer)", s.active))
	}
}

// Set records v at offset for the active transition. Earlier transitions
// keep observing their own values.
func (s *State) Set(offset int, v float64) error {
	if offset < 0 || offset >= s.scale.Cardinality() {
		return fault.OutOfRange("offset", offset, s.scale.Cardinality())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return fmt.Errorf("state %s is read-only", s.name)
	}
	slot := s.scale.Slot(offset)
	s.cur[slot] = v
	if s.written[slot] < 0 {
		s.written[slot] = s.active
	}
	return nil
}

// Snapshot returns a copy of the current values, one per slot.
func (s *State) Snapshot() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, len(s.cur))
	copy(out, s.cur)
	return out
}

// advance moves the state to transition idx, retaining the outgoing values
// according to the history policy. Values not written at idx carry over.
func (s *State) advance(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return
	}
	switch s.history {
	case FullHistory:
		layer := make([]float64, len(s.cur))
		copy(layer, s.cur)
		s.layers = append(s.layers, layer)
	default:
		if s.prev == nil {
			s.prev = make([]float64, len(s.cur))
		}
		copy(s.prev, s.cur)
	}
	s.active = idx
}
