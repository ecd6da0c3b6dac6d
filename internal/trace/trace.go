package trace

import (
	"sort"
	"sync"

	"github.com/roach88/procstep/internal/engine"
	"github.com/roach88/procstep/internal/fault"
)

// Event is the serializable form of an engine lifecycle event.
type Event struct {
	Seq        int64               `json:"seq"`
	Kind       string              `json:"kind"`
	Process    string              `json:"process"`
	Unit       string              `json:"unit"`
	Transition int                 `json:"transition"`
	Disposable bool                `json:"disposable"`
	Outputs    map[string][]string `json:"outputs,omitempty"`
	Error      string              `json:"error,omitempty"`
	ErrorKind  string              `json:"error_kind,omitempty"`
}

// FromEngine converts an engine event, formatting output values as text.
func FromEngine(ev engine.Event) Event {
	out := Event{
		Seq:        ev.Seq,
		Kind:       string(ev.Kind),
		Process:    ev.Process,
		Unit:       ev.Unit,
		Transition: ev.Transition,
		Disposable: ev.Disposable,
		Error:      ev.Error,
		ErrorKind:  string(ev.ErrorKind),
	}
	if len(ev.Outputs) > 0 {
		out.Outputs = make(map[string][]string, len(ev.Outputs))
		for name, vs := range ev.Outputs {
			out.Outputs[name] = FormatValues(vs)
		}
	}
	return out
}

// canonicalMap converts the event for Marshal. Optional fields are omitted
// when empty; a transition of fault.NoTransition is omitted too.
func (e Event) canonicalMap() map[string]any {
	m := map[string]any{
		"seq":        e.Seq,
		"kind":       e.Kind,
		"process":    e.Process,
		"unit":       e.Unit,
		"disposable": e.Disposable,
	}
	if e.Transition != fault.NoTransition {
		m["transition"] = e.Transition
	}
	if len(e.Outputs) > 0 {
		outs := make(map[string]any, len(e.Outputs))
		for name, vs := range e.Outputs {
			outs[name] = vs
		}
		m["outputs"] = outs
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	if e.ErrorKind != "" {
		m["error_kind"] = e.ErrorKind
	}
	return m
}

// Snapshot is the complete trace of one scenario run.
type Snapshot struct {
	Scenario string
	Seed     uint64
	Events   []Event
}

// Canonical returns the canonical JSON of the snapshot.
func (s Snapshot) Canonical() ([]byte, error) {
	events := make([]any, len(s.Events))
	for i, ev := range s.Events {
		events[i] = ev.canonicalMap()
	}
	return Marshal(map[string]any{
		"scenario": s.Scenario,
		"seed":     s.Seed,
		"trace":    events,
	})
}

// Collector is an engine.Observer that accumulates events.
//
// Thread-safety: Collector is safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Observe implements engine.Observer.
func (c *Collector) Observe(ev engine.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, FromEngine(ev))
	return nil
}

// Events returns the collected events ordered by Seq.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Process returns the events of one process in order.
func (c *Collector) Process(id string) []Event {
	var out []Event
	for _, ev := range c.Events() {
		if ev.Process == id {
			out = append(out, ev)
		}
	}
	return out
}
