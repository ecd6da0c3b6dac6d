package scale

import (
	"fmt"
	"iter"
	"strings"

	"github.com/roach88/procstep/internal/fault"
)

// Scale is an immutable multi-extent domain with linear addressing.
//
// INVARIANTS:
//   - extents never change after New
//   - strides and slot strides are computed once in New
//   - at most one spatial and one temporal extent
type Scale struct {
	extents []Extent
	strides []int
	card    int

	// slotStrides address the domain with the temporal coordinate removed.
	// The stride of the time extent itself is 0.
	slotStrides []int
	slots       int

	space int // index of the spatial extent, -1 if none
	time  int // index of the temporal extent, -1 if none
}

// New builds a Scale from extents in order. A Scale with no extents has a
// single offset.
func New(extents ...Extent) (*Scale, error) {
	s := &Scale{
		extents: make([]Extent, len(extents)),
		strides: make([]int, len(extents)),
		space:   -1,
		time:    -1,
	}
	copy(s.extents, extents)

	seen := make(map[string]bool, len(extents))
	for i, e := range s.extents {
		if err := e.validate(); err != nil {
			return nil, err
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("duplicate extent name %q", e.Name)
		}
		seen[e.Name] = true

		switch e.Kind {
		case KindSpace:
			if s.space >= 0 {
				return nil, fmt.Errorf("scale has more than one spatial extent")
			}
			s.space = i
		case KindTime:
			if s.time >= 0 {
				return nil, fmt.Errorf("scale has more than one temporal extent")
			}
			s.time = i
		}
	}

	s.card = 1
	for i := len(s.extents) - 1; i >= 0; i-- {
		s.strides[i] = s.card
		s.card *= s.extents[i].Size
	}

	s.slotStrides = make([]int, len(s.extents))
	s.slots = 1
	for i := len(s.extents) - 1; i >= 0; i-- {
		if i == s.time {
			continue
		}
		s.slotStrides[i] = s.slots
		s.slots *= s.extents[i].Size
	}

	return s, nil
}

// MustNew is like New but panics on error. Intended for tests and fixed
// literals.
func MustNew(extents ...Extent) *Scale {
	s, err := New(extents...)
	if err != nil {
		panic(err)
	}
	return s
}

// Cardinality returns the total number of offsets in the domain.
func (s *Scale) Cardinality() int { return s.card }

// Slots returns the number of offsets in one time slice.
func (s *Scale) Slots() int { return s.slots }

// Extents returns a copy of the extents in order.
func (s *Scale) Extents() []Extent {
	out := make([]Extent, len(s.extents))
	copy(out, s.extents)
	return out
}

// Extent returns the extent with the given name.
func (s *Scale) Extent(name string) (Extent, bool) {
	i := s.indexOf(name)
	if i < 0 {
		return Extent{}, false
	}
	return s.extents[i], true
}

// Space returns the spatial extent, if any.
func (s *Scale) Space() (Extent, bool) {
	if s.space < 0 {
		return Extent{}, false
	}
	return s.extents[s.space], true
}

// Time returns the temporal extent, if any.
func (s *Scale) Time() (Extent, bool) {
	if s.time < 0 {
		return Extent{}, false
	}
	return s.extents[s.time], true
}

// Multiplicity returns the number of time steps, or 1 when there is no time.
func (s *Scale) Multiplicity() int {
	if s.time < 0 {
		return 1
	}
	return s.extents[s.time].Size
}

// IsTemporallyDistributed reports whether the scale has a meaningful
// temporal extent, i.e. more than one time step.
func (s *Scale) IsTemporallyDistributed() bool {
	return s.Multiplicity() > 1
}

// ExtentOffset returns the coordinate of offset along extent e.
// Pure; O(1) once the extent is located.
func (s *Scale) ExtentOffset(e Extent, offset int) (int, error) {
	i := s.indexOf(e.Name)
	if i < 0 {
		return 0, fmt.Errorf("extent %q not in scale", e.Name)
	}
	if offset < 0 || offset >= s.card {
		return 0, fault.OutOfRange("offset", offset, s.card)
	}
	return (offset / s.strides[i]) % s.extents[i].Size, nil
}

// Coordinates decomposes an offset into one coordinate per extent.
func (s *Scale) Coordinates(offset int) ([]int, error) {
	if offset < 0 || offset >= s.card {
		return nil, fault.OutOfRange("offset", offset, s.card)
	}
	coords := make([]int, len(s.extents))
	for i, e := range s.extents {
		coords[i] = (offset / s.strides[i]) % e.Size
	}
	return coords, nil
}

// Offset composes per-extent coordinates into an offset.
func (s *Scale) Offset(coords ...int) (int, error) {
	if len(coords) != len(s.extents) {
		return 0, fmt.Errorf("expected %d coordinates, got %d", len(s.extents), len(coords))
	}
	off := 0
	for i, c := range coords {
		if c < 0 || c >= s.extents[i].Size {
			return 0, fault.OutOfRange(s.extents[i].Name, c, s.extents[i].Size)
		}
		off += c * s.strides[i]
	}
	return off, nil
}

// Slot maps an offset to its position within a single time slice. Offsets
// that differ only in their temporal coordinate share a slot.
func (s *Scale) Slot(offset int) int {
	slot := 0
	for i, e := range s.extents {
		slot += ((offset / s.strides[i]) % e.Size) * s.slotStrides[i]
	}
	return slot
}

// Position returns the 2-D position of the spatial coordinate of offset.
// ok is false when the scale has no spatial extent or it has no geometry.
func (s *Scale) Position(offset int) (Point, bool) {
	if s.space < 0 || offset < 0 || offset >= s.card {
		return Point{}, false
	}
	e := s.extents[s.space]
	if e.Geometry == nil {
		return Point{}, false
	}
	cell := (offset / s.strides[s.space]) % e.Size
	return e.Geometry.Position(cell), true
}

// Offsets returns the offsets selected by loc, in increasing order.
//
// A nil loc means Initialization. Coordinates fixed outside their extent
// select nothing. The sequence is restartable: every range over it starts
// from the first offset.
func (s *Scale) Offsets(loc Locator) iter.Seq[int] {
	if loc == nil {
		loc = Initialization
	}

	fixed := make([]int, len(s.extents))
	for i, e := range s.extents {
		c, ok := loc.Coordinate(e)
		if !ok {
			fixed[i] = -1
			continue
		}
		if c < 0 || c >= e.Size {
			return func(func(int) bool) {}
		}
		fixed[i] = c
	}

	return func(yield func(int) bool) {
		coords := make([]int, len(fixed))
		for i, c := range fixed {
			if c >= 0 {
				coords[i] = c
			}
		}
		for {
			off := 0
			for i, c := range coords {
				off += c * s.strides[i]
			}
			if !yield(off) {
				return
			}

			i := len(coords) - 1
			for ; i >= 0; i-- {
				if fixed[i] >= 0 {
					continue
				}
				coords[i]++
				if coords[i] < s.extents[i].Size {
					break
				}
				coords[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}

// Count returns the number of offsets selected by loc.
func (s *Scale) Count(loc Locator) int {
	n := 0
	for range s.Offsets(loc) {
		n++
	}
	return n
}

// String describes the scale, e.g. "time[3] x space[4x2] = 24".
func (s *Scale) String() string {
	parts := make([]string, 0, len(s.extents))
	for _, e := range s.extents {
		if g, ok := e.Grid(); ok {
			parts = append(parts, fmt.Sprintf("%s[%dx%d]", e.Name, g.Cols, g.Rows))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s[%d]", e.Name, e.Size))
	}
	if len(parts) == 0 {
		return "scalar = 1"
	}
	return fmt.Sprintf("%s = %d", strings.Join(parts, " x "), s.card)
}

func (s *Scale) indexOf(name string) int {
	for i, e := range s.extents {
		if e.Name == name {
			return i
		}
	}
	return -1
}
