package unit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procstep/internal/fault"
	"github.com/roach88/procstep/internal/scale"
	"github.com/roach88/procstep/internal/state"
)

func TestSubjectUnits_Disposability(t *testing.T) {
	factories := map[string]func() Unit{
		"contextualizer": func() Unit { return NewSubjectContextualizer() },
		"instantiator":   func() Unit { return NewSubjectInstantiator() },
	}
	for name, f := range factories {
		t.Run(name, func(t *testing.T) {
			timeless := scale.MustNew(scale.GridExtent(2, 2))
			u := f()
			assert.Empty(t, run(t, u, request(timeless), nil))
			assert.True(t, u.Disposable())

			timed := scale.MustNew(scale.TimeExtent(4))
			u = f()
			assert.Equal(t, []int{1, 2, 3}, run(t, u, request(timed), nil))
			assert.True(t, u.Disposable())
		})
	}
}

func TestSubjectContextualizer_NotDisposableMidRun(t *testing.T) {
	sc := scale.MustNew(scale.TimeExtent(3))
	req := request(sc)
	u := NewSubjectContextualizer()
	ctx := context.Background()

	outs, err := u.Initialize(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, outs)
	assert.False(t, u.Disposable())

	t1, _ := sc.Transition(1)
	require.NoError(t, req.Store.Advance(t1))
	_, err = u.Compute(ctx, t1, nil)
	require.NoError(t, err)
	assert.False(t, u.Disposable())
}

func TestSubjectInstantiator_RejectsTextOutputs(t *testing.T) {
	req := request(scale.MustNew(scale.TimeExtent(2)))
	req.Outputs["name"] = Observable{Name: "name", Kind: KindText}

	_, err := NewSubjectInstantiator().Initialize(context.Background(), req)
	assert.True(t, fault.IsTypeMismatch(err))
}

func TestStateContextualizer_SumsInputs(t *testing.T) {
	sc := scale.MustNew(scale.TimeExtent(2), scale.GridExtent(2, 1))
	a, err := state.FromSlots("a", sc, []float64{1, state.Undefined})
	require.NoError(t, err)
	b := state.Constant("b", sc, 2)
	inputs := map[string]state.Reader{"a": a, "b": b}

	req := request(sc, "total")
	req.Inputs = map[string]Observable{"a": Numeric("a"), "b": Numeric("b")}
	req.Available = inputs

	u := NewStateContextualizer(nil)

	run(t, u, req, inputs)
	assert.True(t, u.Disposable())

	st, _ := req.Store.Lookup("total")
	assert.Equal(t, 3.0, st.Get(2))
	assert.True(t, state.IsUndefined(st.Get(3)))
}

func TestStateContextualizer_MissingInputIsUndefined(t *testing.T) {
	sc := scale.MustNew(scale.GridExtent(1, 1))
	req := request(sc, "total")
	req.Inputs = map[string]Observable{"a": Numeric("a")}

	outs, err := NewStateContextualizer(nil).Initialize(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, state.IsUndefined(outs["total"].Get(0)))
}

func TestStateContextualizer_CustomFunc(t *testing.T) {
	sc := scale.MustNew(scale.GridExtent(3, 1))
	req := request(sc, "idx")

	double := func(offset int, _ map[string]float64) float64 { return float64(offset * 2) }
	outs, err := NewStateContextualizer(double).Initialize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 4}, outs["idx"].Snapshot())
}

func TestSum(t *testing.T) {
	assert.Equal(t, 5.0, Sum(0, map[string]float64{"a": 2, "b": 3}))
	assert.True(t, state.IsUndefined(Sum(0, nil)))
	assert.True(t, state.IsUndefined(Sum(0, map[string]float64{"a": state.Undefined})))
}

func TestSum_OrderIndependentOfMapIteration(t *testing.T) {
	seen := make(map[float64]int)
	for range 100 {
		inputs := map[string]float64{"a": 0.1, "b": 0.2, "c": 0.3, "d": 1e16, "e": -1e16}
		seen[Sum(0, inputs)]++
	}
	require.Len(t, seen, 1)
	assert.Equal(t, 100, seen[0.0], "a through e in name order cancels to zero")
}
