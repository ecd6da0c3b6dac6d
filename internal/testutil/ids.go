package testutil

import (
	"io"
	"log/slog"

	"github.com/roach88/procstep/internal/engine"
)

// DefaultProcessID is used when a scenario does not name its process.
const DefaultProcessID = "test-process-default"

// Seed is the seed used by tests that do not care which one they get.
const Seed uint64 = 42

// FixedProcessGenerator returns the same process ID every time.
//
// Unlike engine.FixedGenerator, which hands out IDs in sequence and panics
// when they run out, this generator never runs dry. A scenario run with it
// produces byte-identical traces, which golden comparison relies on.
//
// Thread-safety: FixedProcessGenerator is stateless and safe for concurrent use.
type FixedProcessGenerator struct {
	id string
}

var _ engine.IDGenerator = (*FixedProcessGenerator)(nil)

// NewFixedProcessGenerator returns a generator for id, or for
// DefaultProcessID when id is empty.
func NewFixedProcessGenerator(id string) *FixedProcessGenerator {
	if id == "" {
		id = DefaultProcessID
	}
	return &FixedProcessGenerator{id: id}
}

// Generate implements engine.IDGenerator.
func (g *FixedProcessGenerator) Generate() string {
	return g.id
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
