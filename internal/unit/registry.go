package unit

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// Role is what a prototype contextualizes.
type Role string

const (
	RoleProcess      Role = "process"
	RoleSubject      Role = "subject"
	RoleInstantiator Role = "instantiator"
	RoleState        Role = "state"
)

// Prototype describes a registered unit: its identifier, its role and the
// parameters it accepts.
type Prototype struct {
	ID          string
	Role        Role
	Description string
	Args        []Arg
	// Published prototypes are advertised beyond the local host.
	Published bool
}

// Factory constructs a fresh unit.
type Factory func() Unit

type entry struct {
	proto   Prototype
	factory Factory
}

// Registry maps prototype IDs to factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a factory under p.ID. Registering an ID twice fails.
func (r *Registry) Register(p Prototype, f Factory) error {
	if p.ID == "" || f == nil {
		return fmt.Errorf("register: prototype ID and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[p.ID]; dup {
		return fmt.Errorf("register: prototype %q already registered", p.ID)
	}
	r.entries[p.ID] = entry{proto: p, factory: f}
	return nil
}

// Lookup returns the prototype registered under id.
func (r *Registry) Lookup(id string) (Prototype, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e.proto, ok
}

// New constructs a fresh unit for id.
func (r *Registry) New(id string) (Unit, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown unit %q", id)
	}
	return e.factory(), nil
}

// Prototypes returns every prototype sorted by ID.
func (r *Registry) Prototypes() []Prototype {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Prototype, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.proto)
	}
	slices.SortFunc(out, func(a, b Prototype) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

var defaultRegistry = NewRegistry()

// Default returns the registry holding the built-in prototypes.
func Default() *Registry { return defaultRegistry }

// Register adds a factory to the default registry.
func Register(p Prototype, f Factory) error { return defaultRegistry.Register(p, f) }

// Lookup finds a prototype in the default registry.
func Lookup(id string) (Prototype, bool) { return defaultRegistry.Lookup(id) }

// Prototypes lists the default registry.
func Prototypes() []Prototype { return defaultRegistry.Prototypes() }

// Built-in prototype IDs.
const (
	ProcessID      = "example.p"
	SubjectID      = "example.s"
	InstantiatorID = "example.i"
	StateID        = "example.q"
)

func init() {
	builtins := []struct {
		proto Prototype
		f     Factory
	}{
		{
			Prototype{
				ID:          ProcessID,
				Role:        RoleProcess,
				Description: "seeds outputs from the first input and perturbs them at each transition",
				Args:        []Arg{MultiplierArg},
			},
			func() Unit { return NewProcessUnit() },
		},
		{
			Prototype{ID: SubjectID, Role: RoleSubject, Description: "follows the lifecycle without producing states"},
			func() Unit { return NewSubjectContextualizer() },
		},
		{
			Prototype{ID: InstantiatorID, Role: RoleInstantiator, Description: "instantiates no subjects"},
			func() Unit { return NewSubjectInstantiator() },
		},
		{
			Prototype{ID: StateID, Role: RoleState, Description: "sums inputs at every offset"},
			func() Unit { return NewStateContextualizer(nil) },
		},
	}
	for _, b := range builtins {
		if err := defaultRegistry.Register(b.proto, b.f); err != nil {
			panic(err)
		}
	}
}
