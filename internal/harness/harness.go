package harness

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/procstep/internal/engine"
	"github.com/roach88/procstep/internal/state"
	"github.com/roach88/procstep/internal/store"
	"github.com/roach88/procstep/internal/testutil"
	"github.com/roach88/procstep/internal/unit"
)

// Option adjusts how a scenario is run.
type Option func(*config)

type config struct {
	store    *store.Store
	runID    string
	ids      engine.IDGenerator
	clock    engine.Sequencer
	logger   *slog.Logger
	registry *unit.Registry
	seed     *uint64
	history  *state.History
	watch    []engine.Observer
}

// WithStore records the run into st instead of a private in-memory store.
func WithStore(st *store.Store) Option {
	return func(c *config) { c.store = st }
}

// WithRunID fixes the run ID. Default: the scenario name for the in-memory
// store, a UUIDv7 otherwise.
func WithRunID(id string) Option {
	return func(c *config) { c.runID = id }
}

// WithIDGenerator sets the process ID generator.
// Default: testutil.FixedProcessGenerator with the scenario's process ID.
func WithIDGenerator(g engine.IDGenerator) Option {
	return func(c *config) { c.ids = g }
}

// WithClock sets the event clock. Default: a fresh engine.Clock per run.
func WithClock(s engine.Sequencer) Option {
	return func(c *config) { c.clock = s }
}

// WithLogger sets the logger for the host and the unit. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithRegistry sets the registry units are created from.
func WithRegistry(r *unit.Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithSeed overrides the scenario seed.
func WithSeed(seed uint64) Option {
	return func(c *config) { c.seed = &seed }
}

// WithHistory overrides the scenario history policy.
func WithHistory(h state.History) Option {
	return func(c *config) { c.history = &h }
}

// WithObserver adds an observer that sees every event after it is recorded.
// An observer error aborts the process like a failed write.
func WithObserver(o engine.Observer) Option {
	return func(c *config) { c.watch = append(c.watch, o) }
}

// Run executes a scenario and evaluates its assertions.
//
// Execution flow:
//  1. Build the job (scale, inputs, outputs) from the scenario
//  2. Open a fresh in-memory store unless one was given
//  3. Record the run header, then drive the process with the store's recorder
//     as observer
//  4. Read the recorded events back as the trace
//  5. Evaluate assertions against the trace and the engine result
//
// The returned error covers setup and storage failures only. A failing
// process is reported through Result.Err and the assertions.
func Run(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	cfg := config{
		logger:   testutil.DiscardLogger(),
		registry: unit.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	job, err := s.Job()
	if err != nil {
		return nil, err
	}
	if cfg.seed != nil {
		job.Seed = *cfg.seed
	}
	if cfg.history != nil {
		job.History = *cfg.history
	}

	st := cfg.store
	runID := cfg.runID
	if st == nil {
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
		if runID == "" {
			runID = s.Name
		}
	}
	if runID == "" {
		runID = engine.UUIDv7Generator{}.Generate()
	}

	if err := st.WriteRun(ctx, store.Run{
		ID:       runID,
		Scenario: s.Name,
		Unit:     s.Unit,
		Seed:     job.Seed,
		History:  job.History.String(),
		Scale:    job.Scale.String(),
		Format:   s.Format,
		Source:   string(s.Source),
	}); err != nil {
		return nil, err
	}

	ids := cfg.ids
	if ids == nil {
		ids = testutil.NewFixedProcessGenerator(s.Process)
	}
	clock := cfg.clock
	if clock == nil {
		clock = engine.NewClock()
	}
	observers := append(engine.Observers{st.Recorder(ctx, runID)}, cfg.watch...)
	host := engine.New(
		engine.WithRegistry(cfg.registry),
		engine.WithObserver(observers),
		engine.WithIDGenerator(ids),
		engine.WithClock(clock),
		engine.WithLogger(cfg.logger),
	)

	res, runErr := host.Run(ctx, job)

	status, msg := store.StatusRetired, ""
	if runErr != nil {
		status, msg = store.StatusFailed, runErr.Error()
	}
	if err := st.FinishRun(ctx, runID, status, msg); err != nil {
		return nil, err
	}

	events, err := st.ReadEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	result := NewResult(s.Name)
	result.RunID = runID
	result.Seed = job.Seed
	result.Trace = events
	result.Run = res
	result.Err = runErr

	for _, msg := range evaluateAssertions(run{
		scale:  job.Scale,
		trace:  events,
		result: res,
		err:    runErr,
	}, s.Assertions) {
		result.AddError(msg)
	}

	cfg.logger.Info("scenario finished",
		"scenario", s.Name,
		"run", runID,
		"pass", result.Pass,
		"events", len(events),
	)
	return result, nil
}

// RunAll runs independent scenarios concurrently, at most parallelism at a
// time (n <= 0 removes the bound). Results are returned in scenario order.
//
// Each scenario gets its own clock; WithClock and WithRunID are ignored.
func RunAll(ctx context.Context, scenarios []*Scenario, parallelism int, opts ...Option) ([]*Result, error) {
	results := make([]*Result, len(scenarios))

	g, ctx := errgroup.WithContext(ctx)
	if parallelism <= 0 {
		parallelism = -1
	}
	g.SetLimit(parallelism)

	for i, s := range scenarios {
		g.Go(func() error {
			perRun := append(append([]Option{}, opts...), WithClock(engine.NewClock()), WithRunID(""))
			res, err := Run(ctx, s, perRun...)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", s.Name, err)
			}
			results[i] = res
			return nil
		})
	}

	err := g.Wait()
	return results, err
}
