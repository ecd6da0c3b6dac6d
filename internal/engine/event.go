package engine

import "github.com/roach88/procstep/internal/fault"

// EventKind identifies a lifecycle event.
type EventKind string

const (
	EventConfigure  EventKind = "configure"
	EventInitialize EventKind = "initialize"
	EventCompute    EventKind = "compute"
	EventRetire     EventKind = "retire"
	EventFail       EventKind = "fail"
)

// Event is one lifecycle call as seen by the host.
type Event struct {
	// Seq is the logical clock stamp.
	Seq int64

	Process string
	Unit    string
	Kind    EventKind

	// Transition is the transition index, or fault.NoTransition for
	// configure and a failed create.
	Transition int

	// Disposable is the unit's flag after the call.
	Disposable bool

	// Outputs holds a per-slot snapshot of every output after initialize
	// and compute, keyed by state name.
	Outputs map[string][]float64

	// Error is set on EventFail.
	Error string

	// ErrorKind is the fault kind of a failure, if any.
	ErrorKind fault.Kind
}

// Observer receives lifecycle events. Calls for one process are sequential;
// calls for different processes may be concurrent.
type Observer interface {
	Observe(Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event) error

// Observe implements Observer.
func (f ObserverFunc) Observe(ev Event) error { return f(ev) }

// Observers fans an event out to each observer in order, stopping at the
// first error.
type Observers []Observer

// Observe implements Observer.
func (os Observers) Observe(ev Event) error {
	for _, o := range os {
		if err := o.Observe(ev); err != nil {
			return err
		}
	}
	return nil
}
