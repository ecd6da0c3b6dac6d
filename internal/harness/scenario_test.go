package harness

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procstep/internal/scale"
	"github.com/roach88/procstep/internal/state"
	"github.com/roach88/procstep/internal/unit"
)

func writeScenario(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidYAML(t *testing.T) {
	path := writeScenario(t, "test.yaml", `
name: test_scenario
description: "Test scenario for validation"
unit: example.p
seed: 9
params: { multiplier: 2 }
scale:
  time: { steps: 3, start: "2024-01-01T00:00:00Z", step: 24h }
  grid: { cols: 2, rows: 2 }
inputs:
  - { name: rain, kind: numeric, values: [1, 2, nan, 4] }
outputs:
  - { name: runoff }
history: full
assertions:
  - { type: disposable_at, transition: 2 }
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", s.Name)
	assert.Equal(t, "example.p", s.Unit)
	assert.Equal(t, uint64(9), s.Seed)
	assert.Equal(t, 2, s.Params["multiplier"])
	assert.Equal(t, FormatYAML, s.Format)
	assert.NotEmpty(t, s.Source)
	require.Len(t, s.Inputs, 1)
	require.Len(t, s.Inputs[0].Values, 4)
	assert.True(t, math.IsNaN(s.Inputs[0].Values[2].Float()))
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, 2, *s.Assertions[0].Transition)
}

func TestLoadScenario_ValidCUE(t *testing.T) {
	path := writeScenario(t, "test.cue", `
name: "cue_scenario"
unit: "example.q"
seed: 5
scale: grid: {cols: 1, rows: 1}
inputs: [{name: "a", value: "nan"}]
outputs: [{name: "b"}]
assertions: [{type: "undefined_at", output: "b", offset: 0}]
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "cue_scenario", s.Name)
	assert.Equal(t, uint64(5), s.Seed)
	assert.Equal(t, FormatCUE, s.Format)
	require.NotNil(t, s.Inputs[0].Value)
	assert.True(t, math.IsNaN(s.Inputs[0].Value.Float()))
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnsupportedExtension(t *testing.T) {
	path := writeScenario(t, "test.json", `{}`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scenario file")
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	tests := []struct {
		name, file, content string
	}{
		{"yaml", "typo.yaml", "name: x\nunit: example.p\nassertion: []\n"},
		{"cue", "typo.cue", `name: "x", unit: "example.p", assertion: []`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "assertion")
		})
	}
}

func TestLoadScenario_InvalidCUE(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, "bad.cue", `name: "x" name: "y"`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CUE")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "unit: example.p\n",
			wantErr: "name is required",
		},
		{
			name:    "missing unit",
			content: "name: x\n",
			wantErr: "unit is required",
		},
		{
			name:    "bad history",
			content: "name: x\nunit: example.p\nhistory: triple\n",
			wantErr: "triple",
		},
		{
			name:    "grid and shapes",
			content: "name: x\nunit: example.p\nscale: { grid: {cols: 1, rows: 1}, shapes: [{x: 0, y: 0}] }\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "start without step",
			content: "name: x\nunit: example.p\nscale: { time: {steps: 2, start: \"2024-01-01T00:00:00Z\"} }\n",
			wantErr: "start and step",
		},
		{
			name:    "bad step",
			content: "name: x\nunit: example.p\nscale: { time: {steps: 2, start: \"2024-01-01T00:00:00Z\", step: fortnight} }\n",
			wantErr: "time.step",
		},
		{
			name:    "zero steps",
			content: "name: x\nunit: example.p\nscale: { time: {steps: 0} }\n",
			wantErr: "size must be positive",
		},
		{
			name:    "unknown kind",
			content: "name: x\nunit: example.p\noutputs: [{name: o, kind: colour}]\n",
			wantErr: "colour",
		},
		{
			name:    "value and values",
			content: "name: x\nunit: example.p\ninputs: [{name: i, value: 1, values: [1]}]\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "duplicate variable",
			content: "name: x\nunit: example.p\ninputs: [{name: v}]\noutputs: [{name: v}]\n",
			wantErr: "already declared",
		},
		{
			name:    "bad value",
			content: "name: x\nunit: example.p\ninputs: [{name: i, value: lots}]\n",
			wantErr: "invalid value",
		},
		{
			name:    "unknown assertion",
			content: "name: x\nunit: example.p\nassertions: [{type: trace_contains}]\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "assertion on undeclared output",
			content: "name: x\nunit: example.p\nassertions: [{type: non_negative, output: ghost}]\n",
			wantErr: "not declared",
		},
		{
			name:    "init_range bounds",
			content: "name: x\nunit: example.p\noutputs: [{name: o}]\nassertions: [{type: init_range, output: o, min: 5, max: 1}]\n",
			wantErr: "exceeds max",
		},
		{
			name:    "value_at without value",
			content: "name: x\nunit: example.p\noutputs: [{name: o}]\nassertions: [{type: value_at, output: o, offset: 0}]\n",
			wantErr: "value is required",
		},
		{
			name:    "unknown error kind",
			content: "name: x\nunit: example.p\nassertions: [{type: error_kind, kind: OOPS}]\n",
			wantErr: "unknown error kind",
		},
		{
			name:    "negative count",
			content: "name: x\nunit: example.p\nassertions: [{type: compute_count, count: -1}]\n",
			wantErr: "non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content), FormatYAML)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_UnknownFormat(t *testing.T) {
	_, err := ParseScenario([]byte("name: x"), "toml")
	assert.ErrorContains(t, err, "unknown scenario format")
}

func TestParseScenario_ErrorKindCaseInsensitive(t *testing.T) {
	_, err := ParseScenario([]byte("name: x\nunit: example.p\nassertions: [{type: error_kind, kind: stale_read}]\n"), FormatYAML)
	assert.NoError(t, err)
}

func TestScaleSpec_Build(t *testing.T) {
	sp := ScaleSpec{
		Time:   &TimeSpec{Steps: 4, Start: "2024-01-01T00:00:00Z", Step: "1h"},
		Shapes: []ShapeSpec{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}},
		Other:  []ExtentSpec{{Name: "band", Size: 2}},
	}
	sc, err := sp.Build()
	require.NoError(t, err)

	assert.Equal(t, 24, sc.Cardinality())
	assert.Equal(t, 6, sc.Slots())
	assert.Equal(t, 4, sc.Multiplicity())

	tm, ok := sc.Time()
	require.True(t, ok)
	assert.Equal(t, time.Hour, tm.Step)

	pos, ok := sc.Position(1 * 2)
	require.True(t, ok)
	assert.Equal(t, scale.Point{X: 3, Y: 4}, pos)
}

func TestScaleSpec_BuildEmptyIsScalar(t *testing.T) {
	sc, err := ScaleSpec{}.Build()
	require.NoError(t, err)
	assert.Equal(t, 1, sc.Cardinality())
	assert.False(t, sc.IsTemporallyDistributed())
}

func TestScenario_Job(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: job
unit: example.p
seed: 4
params: { m: 3 }
scale:
  time: { steps: 2 }
  grid: { cols: 2, rows: 1 }
inputs:
  - { name: c, value: 2 }
  - { name: v, values: [1, 5] }
  - { name: declared }
outputs:
  - { name: o, kind: text }
history: full
`), FormatYAML)
	require.NoError(t, err)

	job, err := s.Job()
	require.NoError(t, err)

	assert.Equal(t, "job", job.Name)
	assert.Equal(t, uint64(4), job.Seed)
	assert.Equal(t, state.FullHistory, job.History)
	assert.Equal(t, 4, job.Scale.Cardinality())
	assert.Len(t, job.Inputs, 3)
	assert.Equal(t, unit.KindText, job.Outputs["o"].Kind)

	require.Contains(t, job.Available, "c")
	require.Contains(t, job.Available, "v")
	assert.NotContains(t, job.Available, "declared")
	assert.Equal(t, 2.0, job.Available["c"].Get(3))
	assert.Equal(t, 5.0, job.Available["v"].Get(3))
}

func TestScenario_JobSlotCountMismatch(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: job
unit: example.q
scale:
  grid: { cols: 3, rows: 1 }
inputs:
  - { name: v, values: [1, 2] }
`), FormatYAML)
	require.NoError(t, err)

	_, err = s.Job()
	assert.Error(t, err)
}

func TestParseScenario_InvalidIsDistinguishable(t *testing.T) {
	_, err := ParseScenario([]byte("unit: example.p\n"), FormatYAML)
	assert.ErrorIs(t, err, ErrInvalidScenario)

	_, err = ParseScenario([]byte("name: [unclosed\n"), FormatYAML)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidScenario)
}
