package harness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procstep/internal/engine"
	"github.com/roach88/procstep/internal/fault"
	"github.com/roach88/procstep/internal/scale"
	"github.com/roach88/procstep/internal/trace"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func numberPtr(v float64) *Number { n := Number(v); return &n }

// testRun is a two-step run over two cells of output "o".
func testRun() run {
	sc := scale.MustNew(scale.TimeExtent(2), scale.GridExtent(2, 1))
	return run{
		scale: sc,
		trace: []trace.Event{
			{Seq: 1, Kind: string(engine.EventConfigure), Transition: fault.NoTransition},
			{Seq: 2, Kind: string(engine.EventInitialize), Transition: 0, Outputs: map[string][]string{"o": {"1", "undefined"}}},
			{Seq: 3, Kind: string(engine.EventCompute), Transition: 1, Disposable: true, Outputs: map[string][]string{"o": {"2", "-3"}}},
			{Seq: 4, Kind: string(engine.EventRetire), Transition: 1, Disposable: true},
		},
		result: &engine.Result{Computed: []int{1}, DisposableAt: 1},
	}
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	assertions := []Assertion{
		{Type: AssertDisposableAt, Transition: intPtr(1)},
		{Type: AssertUndefinedAt, Output: "o", Offset: intPtr(1)},
		{Type: AssertValueAt, Output: "o", Offset: intPtr(0), Value: numberPtr(1)},
		{Type: AssertValueAt, Output: "o", Offset: intPtr(2), Transition: intPtr(1), Value: numberPtr(2)},
		{Type: AssertComputeCount, Count: intPtr(1)},
	}
	assert.Empty(t, evaluateAssertions(testRun(), assertions))
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{
			name:      "disposable_at",
			assertion: Assertion{Type: AssertDisposableAt, Transition: intPtr(0)},
			want:      "disposable after t=1",
		},
		{
			name:      "non_negative",
			assertion: Assertion{Type: AssertNonNegative, Output: "o"},
			want:      "o = -3 at slot 1",
		},
		{
			name:      "init_range rejects undefined",
			assertion: Assertion{Type: AssertInitRange, Output: "o", Min: floatPtr(0), Max: floatPtr(10)},
			want:      "o = undefined at slot 1",
		},
		{
			name:      "undefined_at",
			assertion: Assertion{Type: AssertUndefinedAt, Output: "o", Offset: intPtr(0)},
			want:      "Actual: 1",
		},
		{
			name:      "value_at",
			assertion: Assertion{Type: AssertValueAt, Output: "o", Offset: intPtr(3), Transition: intPtr(1), Value: numberPtr(3)},
			want:      "Actual: -3",
		},
		{
			name:      "value_at offset out of range",
			assertion: Assertion{Type: AssertValueAt, Output: "o", Offset: intPtr(4), Value: numberPtr(0)},
			want:      "OUT_OF_RANGE",
		},
		{
			name:      "value_at missing transition",
			assertion: Assertion{Type: AssertValueAt, Output: "o", Offset: intPtr(0), Transition: intPtr(5), Value: numberPtr(0)},
			want:      "no event carries o at t=5",
		},
		{
			name:      "compute_count",
			assertion: Assertion{Type: AssertComputeCount, Count: intPtr(3)},
			want:      "1 compute calls",
		},
		{
			name:      "error_kind on success",
			assertion: Assertion{Type: AssertErrorKind, Kind: "STALE_READ"},
			want:      "run succeeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := evaluateAssertions(testRun(), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
			assert.Contains(t, errs[0], "Assertion failed: "+tt.assertion.Type)
		})
	}
}

func TestEvaluateAssertions_NonNegativeAllowsUndefined(t *testing.T) {
	r := testRun()
	r.trace[2].Outputs["o"] = []string{"0", "undefined"}
	assert.Empty(t, evaluateAssertions(r, []Assertion{{Type: AssertNonNegative, Output: "o"}}))
}

func TestEvaluateAssertions_InitRangeInclusive(t *testing.T) {
	r := testRun()
	r.trace[1].Outputs["o"] = []string{"0", "500"}
	assert.Empty(t, evaluateAssertions(r, []Assertion{
		{Type: AssertInitRange, Output: "o", Min: floatPtr(0), Max: floatPtr(500)},
	}))
}

func TestEvaluateAssertions_ValueAtUndefined(t *testing.T) {
	errs := evaluateAssertions(testRun(), []Assertion{
		{Type: AssertValueAt, Output: "o", Offset: intPtr(1), Value: numberPtr(math.NaN())},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_FailedRun(t *testing.T) {
	failed := run{
		scale: scale.MustNew(scale.TimeExtent(2)),
		trace: []trace.Event{{Seq: 1, Kind: string(engine.EventFail), Transition: 0, ErrorKind: "TYPE_MISMATCH"}},
		err:   fault.TypeMismatch("output", "label", "text"),
	}

	t.Run("unexpected failure", func(t *testing.T) {
		errs := evaluateAssertions(failed, nil)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "run failed")
	})

	t.Run("expected kind", func(t *testing.T) {
		errs := evaluateAssertions(failed, []Assertion{{Type: AssertErrorKind, Kind: "type_mismatch"}})
		assert.Empty(t, errs)
	})

	t.Run("other kind", func(t *testing.T) {
		errs := evaluateAssertions(failed, []Assertion{{Type: AssertErrorKind, Kind: "CONFIGURATION"}})
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "run to fail with CONFIGURATION")
		assert.Contains(t, errs[0], "TYPE_MISMATCH")
	})

	t.Run("disposable_at after failure", func(t *testing.T) {
		errs := evaluateAssertions(failed, []Assertion{
			{Type: AssertErrorKind, Kind: "TYPE_MISMATCH"},
			{Type: AssertDisposableAt, Transition: intPtr(0)},
		})
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "run failed")
	})
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertComputeCount,
		Expected: "2 compute calls",
		Actual:   "0 compute calls",
		Trace: []trace.Event{
			{Seq: 1, Kind: "configure", Transition: fault.NoTransition},
			{Seq: 2, Kind: "initialize", Transition: 0, Disposable: true},
			{Seq: 3, Kind: "fail", Transition: 0, ErrorKind: "STALE_READ"},
		},
	}

	want := "Assertion failed: compute_count\n" +
		"  Expected: 2 compute calls\n" +
		"  Actual: 0 compute calls\n" +
		"\nFull trace:\n" +
		"  [1] configure\n" +
		"  [2] initialize t=0 disposable\n" +
		"  [3] fail t=0 STALE_READ\n"
	assert.Equal(t, want, err.Error())
}
