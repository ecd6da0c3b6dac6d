package scale

// Locator fixes zero or more extents to a coordinate.
type Locator interface {
	// Coordinate returns the fixed coordinate along e, or ok=false when e
	// is free.
	Coordinate(e Extent) (coord int, ok bool)
}

// At is a Locator fixing extents by name.
type At map[string]int

// Coordinate implements Locator.
func (a At) Coordinate(e Extent) (int, bool) {
	c, ok := a[e.Name]
	return c, ok
}

// All returns the empty locator, which selects every offset.
func All() Locator { return At(nil) }

type initialization struct{}

func (initialization) Coordinate(e Extent) (int, bool) {
	if e.Kind == KindTime {
		return 0, true
	}
	return 0, false
}

// Initialization is the pre-simulation locator. It fixes time at the first
// slice and leaves every other extent free. It is distinct from any real
// Transition even though it selects the same offsets as transition 0.
var Initialization Locator = initialization{}
