package trace

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procstep/internal/engine"
	"github.com/roach88/procstep/internal/fault"
)

func TestCollector_OrdersBySeq(t *testing.T) {
	c := NewCollector()
	require.NoError(t, c.Observe(engine.Event{Seq: 2, Process: "b", Kind: engine.EventInitialize}))
	require.NoError(t, c.Observe(engine.Event{Seq: 1, Process: "a", Kind: engine.EventConfigure, Transition: fault.NoTransition}))
	require.NoError(t, c.Observe(engine.Event{Seq: 3, Process: "a", Kind: engine.EventRetire}))

	events := c.Events()
	require.Len(t, events, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{events[0].Seq, events[1].Seq, events[2].Seq})

	a := c.Process("a")
	require.Len(t, a, 2)
	assert.Equal(t, "configure", a[0].Kind)
	assert.Equal(t, "retire", a[1].Kind)
}

func TestFromEngine_FormatsOutputs(t *testing.T) {
	ev := FromEngine(engine.Event{
		Seq:     4,
		Kind:    engine.EventCompute,
		Outputs: map[string][]float64{"out": {1.5, math.NaN()}},
	})
	assert.Equal(t, []string{"1.5", "undefined"}, ev.Outputs["out"])
}

func TestSnapshot_Canonical(t *testing.T) {
	s := Snapshot{
		Scenario: "demo",
		Seed:     9,
		Events: []Event{
			{Seq: 1, Kind: "configure", Process: "p", Unit: "example.p", Transition: fault.NoTransition},
			{Seq: 2, Kind: "initialize", Process: "p", Unit: "example.p", Transition: 0, Disposable: true,
				Outputs: map[string][]string{"out": {"10"}}},
			{Seq: 3, Kind: "fail", Process: "q", Unit: "example.p", Transition: 1,
				Error: "STALE_READ: x", ErrorKind: "STALE_READ"},
		},
	}

	got, err := s.Canonical()
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario":"demo","seed":9,"trace":[`+
			`{"disposable":false,"kind":"configure","process":"p","seq":1,"unit":"example.p"},`+
			`{"disposable":true,"kind":"initialize","outputs":{"out":["10"]},"process":"p","seq":2,"transition":0,"unit":"example.p"},`+
			`{"disposable":false,"error":"STALE_READ: x","error_kind":"STALE_READ","kind":"fail","process":"q","seq":3,"transition":1,"unit":"example.p"}`+
			`]}`,
		string(got))
}
