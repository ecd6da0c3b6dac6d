package engine

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/procstep/internal/state"
	"github.com/roach88/procstep/internal/unit"
)

// Process is a live unit and the store holding its outputs.
type Process struct {
	ID     string
	UnitID string
	Unit   unit.Unit
	Store  *state.Store
}

// Pool holds live processes by ID. A process enters the pool when the host
// creates its unit and leaves it when the unit is retired or fails.
//
// Thread-safety: Pool is safe for concurrent use.
type Pool struct {
	mu    sync.Mutex
	procs map[string]*Process
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{procs: make(map[string]*Process)}
}

// Put adds p. IDs must be unique among live processes.
func (p *Pool) Put(proc *Process) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.procs[proc.ID]; dup {
		return fmt.Errorf("process %s already live", proc.ID)
	}
	p.procs[proc.ID] = proc
	return nil
}

// Get returns the live process with id.
func (p *Pool) Get(id string) (*Process, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	proc, ok := p.procs[id]
	return proc, ok
}

// Release removes id from the pool. Releasing an unknown id is a no-op.
func (p *Pool) Release(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.procs, id)
}

// Len returns the number of live processes.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.procs)
}

// IDs returns the live process IDs in sorted order.
func (p *Pool) IDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.procs))
	for id := range p.procs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
