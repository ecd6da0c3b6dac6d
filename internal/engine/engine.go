package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/procstep/internal/fault"
	"github.com/roach88/procstep/internal/rng"
	"github.com/roach88/procstep/internal/scale"
	"github.com/roach88/procstep/internal/state"
	"github.com/roach88/procstep/internal/unit"
)

// Job describes one process to run.
type Job struct {
	// Name labels the job in logs and results.
	Name string

	// Unit is the prototype ID to instantiate.
	Unit string

	// Params is applied with Configure before Initialize.
	Params map[string]any

	Scale   *scale.Scale
	Inputs  map[string]unit.Observable
	Outputs map[string]unit.Observable

	// Available are the input states supplied to the unit. They are shared
	// read-only and may be reused across jobs.
	Available map[string]state.Reader

	// History is the retention policy of the process's store.
	History state.History

	// Seed seeds the unit's RNG.
	Seed uint64
}

// Result is the outcome of a completed process.
type Result struct {
	Process string
	Name    string
	Unit    string
	Seed    uint64

	// Computed lists the transition indices Compute was called with.
	Computed []int

	// DisposableAt is the transition index after which the unit first
	// reported disposable; 0 means right after initialize. It is
	// fault.NoTransition when the unit never did and the host retired it at
	// the end of time.
	DisposableAt int

	// Outputs are the unit's output states after the last call.
	Outputs map[string]*state.State
}

// Host drives units through their lifecycle.
//
// Thread-safety: Run and RunAll are safe for concurrent use. Each process
// is driven by exactly one goroutine.
type Host struct {
	registry    *unit.Registry
	clock       Sequencer
	observer    Observer
	ids         IDGenerator
	parallelism int
	logger      *slog.Logger
	pool        *Pool
}

// Option configures a Host.
type Option func(*Host)

// WithRegistry sets the registry units are created from.
// Default: unit.Default().
func WithRegistry(r *unit.Registry) Option {
	return func(h *Host) { h.registry = r }
}

// WithClock sets the logical clock. Used to append to a recorded run.
func WithClock(c Sequencer) Option {
	return func(h *Host) { h.clock = c }
}

// WithObserver sets the lifecycle event observer.
func WithObserver(o Observer) Option {
	return func(h *Host) { h.observer = o }
}

// WithIDGenerator sets the process ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(h *Host) { h.ids = g }
}

// WithParallelism bounds how many processes RunAll drives at once.
// n <= 0 removes the bound. Default: GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(h *Host) { h.parallelism = n }
}

// WithLogger sets the logger handed to units and used for host messages.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// New creates a Host.
func New(opts ...Option) *Host {
	h := &Host{
		registry:    unit.Default(),
		clock:       NewClock(),
		ids:         UUIDv7Generator{},
		parallelism: runtime.GOMAXPROCS(0),
		logger:      slog.Default(),
		pool:        NewPool(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Pool returns the pool of live processes.
func (h *Host) Pool() *Pool { return h.pool }

// Clock returns the host's logical clock.
func (h *Host) Clock() Sequencer { return h.clock }

// Run drives one process from creation to retirement.
//
// Configure and Initialize are called once. If the unit is not disposable
// afterwards, each later transition is entered by advancing the store and
// calling Compute, until the unit reports disposable or time runs out.
// Cancellation is checked at every transition boundary.
func (h *Host) Run(ctx context.Context, job Job) (*Result, error) {
	if job.Scale == nil {
		return nil, fmt.Errorf("job %q: scale is required", job.Name)
	}

	id := h.ids.Generate()
	log := h.logger.With("process", id, "unit", job.Unit)

	fail := func(phase Phase, transition int, err error) (*Result, error) {
		h.pool.Release(id)
		pe := &ProcessError{Process: id, Unit: job.Unit, Phase: phase, Transition: transition, Err: err}
		log.Error("process failed",
			"phase", phase,
			"transition", transition,
			"kind", fault.KindOf(err),
			"error", err,
		)
		if oerr := h.emit(Event{
			Process:    id,
			Unit:       job.Unit,
			Kind:       EventFail,
			Transition: transition,
			Error:      err.Error(),
			ErrorKind:  fault.KindOf(err),
		}, nil); oerr != nil {
			return nil, errors.Join(pe, oerr)
		}
		return nil, pe
	}

	u, err := h.registry.New(job.Unit)
	if err != nil {
		return fail(PhaseCreate, fault.NoTransition, err)
	}
	store := state.NewStore(job.Scale, state.WithHistory(job.History))
	if err := h.pool.Put(&Process{ID: id, UnitID: job.Unit, Unit: u, Store: store}); err != nil {
		return fail(PhaseCreate, fault.NoTransition, err)
	}

	log.Info("process started", "job", job.Name, "scale", job.Scale.String(), "seed", job.Seed)

	if err := u.Configure(job.Params); err != nil {
		return fail(PhaseConfigure, fault.NoTransition, err)
	}
	if err := h.emit(Event{Process: id, Unit: job.Unit, Kind: EventConfigure, Transition: fault.NoTransition}, nil); err != nil {
		return fail(PhaseConfigure, fault.NoTransition, err)
	}

	outs, err := u.Initialize(ctx, unit.InitRequest{
		Scale:     job.Scale,
		Inputs:    job.Inputs,
		Outputs:   job.Outputs,
		Available: job.Available,
		Store:     store,
		RNG:       rng.New(job.Seed),
		Logger:    log,
	})
	if err != nil {
		return fail(PhaseInitialize, 0, err)
	}
	if err := h.emit(Event{Process: id, Unit: job.Unit, Kind: EventInitialize, Transition: 0, Disposable: u.Disposable()}, outs); err != nil {
		return fail(PhaseInitialize, 0, err)
	}

	res := &Result{
		Process:      id,
		Name:         job.Name,
		Unit:         job.Unit,
		Seed:         job.Seed,
		DisposableAt: fault.NoTransition,
	}
	last := 0
	if u.Disposable() {
		res.DisposableAt = 0
	}

	for tr := range job.Scale.Transitions() {
		if res.DisposableAt != fault.NoTransition {
			break
		}
		if tr.Index() == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fail(PhaseCompute, tr.Index(), err)
		}
		if err := store.Advance(tr); err != nil {
			return fail(PhaseAdvance, tr.Index(), err)
		}

		outs, err = u.Compute(ctx, tr, job.Available)
		if err != nil {
			return fail(PhaseCompute, tr.Index(), err)
		}
		res.Computed = append(res.Computed, tr.Index())
		last = tr.Index()

		if err := h.emit(Event{Process: id, Unit: job.Unit, Kind: EventCompute, Transition: tr.Index(), Disposable: u.Disposable()}, outs); err != nil {
			return fail(PhaseCompute, tr.Index(), err)
		}
		log.Debug("transition computed", "transition", tr.String(), "disposable", u.Disposable())

		if u.Disposable() {
			res.DisposableAt = tr.Index()
		}
	}

	if res.DisposableAt == fault.NoTransition {
		log.Warn("unit never reported disposable, retiring at end of time", "last", last)
	}

	h.pool.Release(id)
	if err := h.emit(Event{Process: id, Unit: job.Unit, Kind: EventRetire, Transition: last, Disposable: u.Disposable()}, nil); err != nil {
		return nil, &ProcessError{Process: id, Unit: job.Unit, Phase: PhaseCompute, Transition: last, Err: err}
	}

	res.Outputs = outs
	log.Info("process retired", "computed", len(res.Computed), "disposable_at", res.DisposableAt)
	return res, nil
}

// RunAll runs independent jobs concurrently, at most parallelism at a time.
// Results are returned in job order. The first failure cancels the jobs
// still running; their slots in the result slice stay nil.
func (h *Host) RunAll(ctx context.Context, jobs []Job) ([]*Result, error) {
	results := make([]*Result, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	limit := h.parallelism
	if limit <= 0 {
		limit = -1
	}
	g.SetLimit(limit)

	for i, job := range jobs {
		g.Go(func() error {
			res, err := h.Run(ctx, job)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

// emit stamps ev and hands it to the observer. Output snapshots are only
// taken when someone is listening.
func (h *Host) emit(ev Event, outs map[string]*state.State) error {
	ev.Seq = h.clock.Next()
	if h.observer == nil {
		return nil
	}
	if len(outs) > 0 {
		ev.Outputs = make(map[string][]float64, len(outs))
		for name, st := range outs {
			ev.Outputs[name] = st.Snapshot()
		}
	}
	return h.observer.Observe(ev)
}
