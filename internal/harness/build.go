package harness

import (
	"fmt"
	"time"

	"github.com/roach88/procstep/internal/engine"
	"github.com/roach88/procstep/internal/scale"
	"github.com/roach88/procstep/internal/state"
	"github.com/roach88/procstep/internal/unit"
)

// Build constructs the scale sp describes, time first.
func (sp ScaleSpec) Build() (*scale.Scale, error) {
	var extents []scale.Extent

	if t := sp.Time; t != nil {
		if t.Start == "" {
			extents = append(extents, scale.TimeExtent(t.Steps))
		} else {
			start, err := time.Parse(time.RFC3339, t.Start)
			if err != nil {
				return nil, fmt.Errorf("time.start: %w", err)
			}
			step, err := time.ParseDuration(t.Step)
			if err != nil {
				return nil, fmt.Errorf("time.step: %w", err)
			}
			extents = append(extents, scale.RegularTime(t.Steps, start, step))
		}
	}

	switch {
	case sp.Grid != nil:
		extents = append(extents, scale.GridExtent(sp.Grid.Cols, sp.Grid.Rows))
	case len(sp.Shapes) > 0:
		points := make([]scale.Point, len(sp.Shapes))
		for i, s := range sp.Shapes {
			points[i] = scale.Point{X: s.X, Y: s.Y}
		}
		extents = append(extents, scale.ShapeExtent(points...))
	}

	for _, o := range sp.Other {
		extents = append(extents, scale.OtherExtent(o.Name, o.Size))
	}

	return scale.New(extents...)
}

// Job converts the scenario into an engine job. Input states are built over
// the scenario's scale and shared read-only with the unit.
func (s *Scenario) Job() (engine.Job, error) {
	sc, err := s.Scale.Build()
	if err != nil {
		return engine.Job{}, fmt.Errorf("scenario %s: scale: %w", s.Name, err)
	}

	job := engine.Job{
		Name:      s.Name,
		Unit:      s.Unit,
		Params:    s.Params,
		Scale:     sc,
		Inputs:    make(map[string]unit.Observable, len(s.Inputs)),
		Outputs:   make(map[string]unit.Observable, len(s.Outputs)),
		Available: make(map[string]state.Reader),
		History:   s.historyOf(),
		Seed:      s.Seed,
	}

	for _, in := range s.Inputs {
		kind, err := unit.ParseKind(in.Kind)
		if err != nil {
			return engine.Job{}, fmt.Errorf("input %s: %w", in.Name, err)
		}
		job.Inputs[in.Name] = unit.Observable{Name: in.Name, Kind: kind}

		switch {
		case in.Value != nil:
			job.Available[in.Name] = state.Constant(in.Name, sc, in.Value.Float())
		case len(in.Values) > 0:
			values := make([]float64, len(in.Values))
			for i, v := range in.Values {
				values[i] = v.Float()
			}
			st, err := state.FromSlots(in.Name, sc, values)
			if err != nil {
				return engine.Job{}, fmt.Errorf("input %s: %w", in.Name, err)
			}
			job.Available[in.Name] = st
		}
	}

	for _, out := range s.Outputs {
		kind, err := unit.ParseKind(out.Kind)
		if err != nil {
			return engine.Job{}, fmt.Errorf("output %s: %w", out.Name, err)
		}
		job.Outputs[out.Name] = unit.Observable{Name: out.Name, Kind: kind}
	}

	return job, nil
}
