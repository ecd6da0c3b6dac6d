package state

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/procstep/internal/fault"
	"github.com/roach88/procstep/internal/scale"
)

// Store owns the output states of a single process and the transition they
// record at.
type Store struct {
	scale   *scale.Scale
	history History

	mu     sync.Mutex
	active int
	states map[string]*State
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithHistory sets the retention policy for states created by the store.
func WithHistory(h History) StoreOption {
	return func(s *Store) { s.history = h }
}

// NewStore creates a store over sc, active at the initialization transition.
func NewStore(sc *scale.Scale, opts ...StoreOption) *Store {
	s := &Store{
		scale:  sc,
		states: make(map[string]*State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scale returns the scale states are created over.
func (s *Store) Scale() *scale.Scale { return s.scale }

// History returns the retention policy.
func (s *Store) History() History { return s.history }

// Active returns the transition index new writes record at.
func (s *Store) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Create returns the state named name, creating it with every value
// Undefined if it does not exist yet. A new state starts at the active
// transition and cannot be read at earlier ones.
func (s *Store) Create(name string) (*State, error) {
	if name == "" {
		return nil, fmt.Errorf("state name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[name]; ok {
		return st, nil
	}
	st := newAt(name, s.scale, s.history, s.active)
	s.states[name] = st
	return st, nil
}

// Lookup returns the named state, if any.
func (s *Store) Lookup(name string) (*State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[name]
	return st, ok
}

// Names returns the state names in sorted order.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.states))
	for name := range s.states {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Advance moves every state to transition t. Transitions must be visited
// in order; skipping or revisiting one fails with STALE_READ and leaves the
// store unchanged.
func (s *Store) Advance(t scale.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Index() != s.active+1 {
		return fault.StaleRead("", t.Index(), fault.NoOffset,
			fmt.Sprintf("cannot advance from transition %d to %d", s.active, t.Index()))
	}
	for _, st := range s.states {
		st.advance(t.Index())
	}
	s.active = t.Index()
	return nil
}
