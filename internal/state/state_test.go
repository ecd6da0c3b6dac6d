package state

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procstep/internal/fault"
	"github.com/roach88/procstep/internal/scale"
)

func transition(t *testing.T, sc *scale.Scale, i int) scale.Transition {
	t.Helper()
	tr, err := sc.Transition(i)
	require.NoError(t, err)
	return tr
}

func TestUndefined(t *testing.T) {
	assert.True(t, IsUndefined(Undefined))
	assert.True(t, IsUndefined(Undefined+3))
	assert.True(t, IsUndefined(math.Max(Undefined, 0)))
	assert.False(t, IsUndefined(0))
}

func TestParseHistory(t *testing.T) {
	h, err := ParseHistory("")
	require.NoError(t, err)
	assert.Equal(t, DoubleBuffer, h)

	h, err = ParseHistory("FULL")
	require.NoError(t, err)
	assert.Equal(t, FullHistory, h)
	assert.Equal(t, "full", h.String())

	_, err = ParseHistory("triple")
	assert.Error(t, err)
}

func TestState_FreshReadsUndefined(t *testing.T) {
	sc := scale.MustNew(scale.TimeExtent(3), scale.GridExtent(2, 1))
	store := NewStore(sc)
	s, err := store.Create("out")
	require.NoError(t, err)

	assert.Equal(t, 6, s.Len())
	for off := range sc.Offsets(scale.All()) {
		assert.True(t, IsUndefined(s.Get(off)))
	}

	v, err := s.GetAt(0, transition(t, sc, 0))
	require.NoError(t, err)
	assert.True(t, IsUndefined(v))
}

func TestState_SetThenGet(t *testing.T) {
	sc := scale.MustNew(scale.GridExtent(3, 1))
	s := New("x", sc, DoubleBuffer)

	require.NoError(t, s.Set(1, 4.5))
	assert.Equal(t, 4.5, s.Get(1))
	assert.True(t, IsUndefined(s.Get(0)))

	v, err := s.GetAt(1, transition(t, sc, 0))
	require.NoError(t, err)
	assert.Equal(t, 4.5, v)
}

func TestState_OffsetsOutsideScale(t *testing.T) {
	sc := scale.MustNew(scale.GridExtent(2, 1))
	s := New("x", sc, DoubleBuffer)

	assert.True(t, fault.IsOutOfRange(s.Set(2, 1)))
	assert.True(t, IsUndefined(s.Get(-1)))
	_, err := s.GetAt(5, transition(t, sc, 0))
	assert.True(t, fault.IsOutOfRange(err))
}

func TestState_HistoryNotOverwrittenRetroactively(t *testing.T) {
	for _, h := range []History{DoubleBuffer, FullHistory} {
		t.Run(h.String(), func(t *testing.T) {
			sc := scale.MustNew(scale.TimeExtent(3), scale.GridExtent(1, 1))
			store := NewStore(sc, WithHistory(h))
			s, err := store.Create("x")
			require.NoError(t, err)

			require.NoError(t, s.Set(0, 1))
			require.NoError(t, store.Advance(transition(t, sc, 1)))

			// offset 1 is the single cell at t=1
			require.NoError(t, s.Set(1, 2))

			before, err := s.GetAt(0, transition(t, sc, 0))
			require.NoError(t, err)
			assert.Equal(t, 1.0, before)

			now, err := s.GetAt(1, transition(t, sc, 1))
			require.NoError(t, err)
			assert.Equal(t, 2.0, now)
		})
	}
}

func TestState_UnwrittenValuesCarryForward(t *testing.T) {
	sc := scale.MustNew(scale.TimeExtent(2), scale.GridExtent(2, 1))
	store := NewStore(sc)
	s, _ := store.Create("x")

	require.NoError(t, s.Set(0, 7))
	require.NoError(t, store.Advance(transition(t, sc, 1)))

	v, err := s.GetAt(2, transition(t, sc, 1))
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
}

func TestState_NeverWrittenIsStaleAfterCreation(t *testing.T) {
	for _, h := range []History{DoubleBuffer, FullHistory} {
		t.Run(h.String(), func(t *testing.T) {
			sc := scale.MustNew(scale.TimeExtent(3), scale.GridExtent(2, 1))
			store := NewStore(sc, WithHistory(h))
			s, _ := store.Create("x")

			require.NoError(t, s.Set(0, 1))
			require.NoError(t, store.Advance(transition(t, sc, 1)))

			// offset 3 is the second cell at t=1; it was never set
			_, err := s.GetAt(3, transition(t, sc, 1))
			require.Error(t, err)
			assert.True(t, fault.IsStaleRead(err))

			require.NoError(t, s.Set(3, 5))
			v, err := s.GetAt(3, transition(t, sc, 1))
			require.NoError(t, err)
			assert.Equal(t, 5.0, v)

			require.NoError(t, store.Advance(transition(t, sc, 2)))
			v, err = s.GetAt(3, transition(t, sc, 1))
			require.NoError(t, err)
			assert.Equal(t, 5.0, v)
		})
	}
}

func TestState_DoubleBufferEvictsOlderTransitions(t *testing.T) {
	sc := scale.MustNew(scale.TimeExtent(4))
	store := NewStore(sc)
	s, _ := store.Create("x")

	require.NoError(t, s.Set(0, 10))
	require.NoError(t, store.Advance(transition(t, sc, 1)))
	require.NoError(t, s.Set(1, 11))
	require.NoError(t, store.Advance(transition(t, sc, 2)))

	v, err := s.GetAt(1, transition(t, sc, 1))
	require.NoError(t, err)
	assert.Equal(t, 11.0, v)

	_, err = s.GetAt(0, transition(t, sc, 0))
	require.Error(t, err)
	assert.True(t, fault.IsStaleRead(err))
}

func TestState_FullHistoryKeepsEveryTransition(t *testing.T) {
	sc := scale.MustNew(scale.TimeExtent(4))
	store := NewStore(sc, WithHistory(FullHistory))
	s, _ := store.Create("x")

	for i := 0; i < 4; i++ {
		if i > 0 {
			require.NoError(t, store.Advance(transition(t, sc, i)))
		}
		require.NoError(t, s.Set(i, float64(i*10)))
	}

	for i := 0; i < 4; i++ {
		v, err := s.GetAt(i, transition(t, sc, i))
		require.NoError(t, err)
		assert.Equal(t, float64(i*10), v)
	}
}

func TestState_ReadBeforeCreationIsStale(t *testing.T) {
	sc := scale.MustNew(scale.TimeExtent(3))
	store := NewStore(sc, WithHistory(FullHistory))
	require.NoError(t, store.Advance(transition(t, sc, 1)))

	late, err := store.Create("late")
	require.NoError(t, err)
	assert.Equal(t, 1, late.Active())

	_, err = late.GetAt(0, transition(t, sc, 0))
	require.Error(t, err)
	assert.True(t, fault.IsStaleRead(err))

	var fe *fault.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "late", fe.Variable)
	assert.Equal(t, 0, fe.Transition)
}

func TestState_Constant(t *testing.T) {
	sc := scale.MustNew(scale.TimeExtent(3), scale.GridExtent(2, 2))
	c := Constant("in", sc, 10)

	for tr := range sc.Transitions() {
		for off := range sc.Offsets(tr) {
			v, err := c.GetAt(off, tr)
			require.NoError(t, err)
			assert.Equal(t, 10.0, v)
		}
	}
	assert.Error(t, c.Set(0, 1))
}

func TestState_FromSlots(t *testing.T) {
	sc := scale.MustNew(scale.TimeExtent(2), scale.GridExtent(2, 1))

	s, err := FromSlots("in", sc, []float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2.0, s.Get(3))

	_, err = FromSlots("in", sc, []float64{1, 2, 3})
	assert.Error(t, err)
}

func TestState_SnapshotIsACopy(t *testing.T) {
	sc := scale.MustNew(scale.GridExtent(2, 1))
	s := New("x", sc, DoubleBuffer)
	require.NoError(t, s.Set(0, 1))

	snap := s.Snapshot()
	snap[0] = 99
	assert.Equal(t, 1.0, s.Get(0))
}

func TestState_ConcurrentReaders(t *testing.T) {
	sc := scale.MustNew(scale.GridExtent(8, 8))
	c := Constant("in", sc, 3)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for off := range sc.Offsets(scale.All()) {
				assert.Equal(t, 3.0, c.Get(off))
			}
		}()
	}
	wg.Wait()
}
