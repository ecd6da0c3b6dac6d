package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procstep/internal/store"
	"github.com/roach88/procstep/internal/trace"
)

const noInputsYAML = `name: no_inputs
unit: example.p
seed: 42
params: { multiplier: 1 }
scale:
  time: { steps: 3 }
  grid: { cols: 1, rows: 1 }
outputs:
  - { name: runoff, kind: numeric }
assertions:
  - { type: compute_count, count: 2 }
`

const typeMismatchYAML = `name: type_mismatch
unit: example.p
seed: 3
scale:
  time: { steps: 2 }
outputs:
  - { name: label, kind: text }
assertions:
  - { type: error_kind, kind: TYPE_MISMATCH }
`

type replayResponse struct {
	Status string       `json:"status"`
	Data   ReplayResult `json:"data"`
	Error  *CLIError    `json:"error"`
}

func TestReplay_AllRunsDeterministic(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	recordRun(t, writeFile(t, dir, "no_inputs.yaml", noInputsYAML), dbPath, "r1")
	recordRun(t, writeFile(t, dir, "sum_state.yaml", sumStateYAML), dbPath, "r2")
	recordRun(t, writeFile(t, dir, "type_mismatch.yaml", typeMismatchYAML), dbPath, "r3")

	out, err := executeRoot(t, "replay", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Summary: 3 run(s)")
	assert.Contains(t, out, "✓ Run: r1 (no_inputs)")
	assert.Contains(t, out, "✓ Run: r3 (type_mismatch)")
	assert.Contains(t, out, "✓ All runs verified deterministic")
}

func TestReplay_SeedOverrideIsReplayed(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	path := writeFile(t, dir, "no_inputs.yaml", noInputsYAML)

	_, err := executeRoot(t, "run", path, "--db", dbPath, "--run-id", "seeded", "--seed", "1234", "--history", "full")
	require.NoError(t, err)

	out, err := executeRoot(t, "--format", "json", "replay", "--db", dbPath, "--run", "seeded")
	require.NoError(t, err)

	var resp replayResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.AllDeterministic)
	require.Len(t, resp.Data.Runs, 1)
	run := resp.Data.Runs[0]
	assert.Equal(t, uint64(1234), run.Seed)
	assert.Equal(t, run.Recorded, run.Replayed)
	assert.True(t, run.Deterministic)
	assert.Zero(t, run.FirstDifference)
}

func TestReplay_DetectsTamperedTrace(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	recordRun(t, writeFile(t, dir, "sum_state.yaml", sumStateYAML), dbPath, "r1")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE event_values SET value = '99' WHERE run_id = ? AND seq = 3 AND slot = 0`, "r1")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := executeRoot(t, "replay", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Run: r1 (sum_state)")
	assert.Contains(t, out, "traces diverge at seq 3")
	assert.Contains(t, out, "✗ Determinism verification failed")
}

func TestReplay_EmptyDatabase(t *testing.T) {
	out, err := executeRoot(t, "replay", "--db", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found in database.")
}

func TestReplay_RunNotFound(t *testing.T) {
	_, err := executeRoot(t, "replay", "--db", filepath.Join(t.TempDir(), "runs.db"), "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeRunNotFound)
}

func TestReplayRun_UsesRecordedProcessIDs(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	recordRun(t, writeFile(t, dir, "sum_state.yaml", sumStateYAML), dbPath, "r1")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	run, err := st.ReadRun(ctx, "r1")
	require.NoError(t, err)

	res, err := replayRun(ctx, st, run)
	require.NoError(t, err)
	assert.True(t, res.Deterministic)
	assert.Equal(t, 4, res.Recorded)
	assert.Equal(t, 4, res.Replayed)
}

func TestFirstDifference(t *testing.T) {
	base := []trace.Event{
		{Seq: 1, Kind: "configure", Transition: -1},
		{Seq: 2, Kind: "initialize", Outputs: map[string][]string{"a": {"1"}}},
	}
	changed := []trace.Event{
		base[0],
		{Seq: 2, Kind: "initialize", Outputs: map[string][]string{"a": {"2"}}},
	}

	tests := []struct {
		name string
		want trace.Snapshot
		got  trace.Snapshot
		diff int64
	}{
		{"identical", trace.Snapshot{Events: base}, trace.Snapshot{Events: base}, -1},
		{"changed value", trace.Snapshot{Events: base}, trace.Snapshot{Events: changed}, 2},
		{"missing event", trace.Snapshot{Events: base}, trace.Snapshot{Events: base[:1]}, 2},
		{"extra event", trace.Snapshot{Events: base[:1]}, trace.Snapshot{Events: base}, 2},
		{"header only", trace.Snapshot{Seed: 1, Events: base}, trace.Snapshot{Seed: 2, Events: base}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff, err := firstDifference(tt.want, tt.got)
			require.NoError(t, err)
			assert.Equal(t, tt.diff, diff)
		})
	}
}
