package scale

import (
	"fmt"
	"time"
)

// Kind classifies an extent.
type Kind int

const (
	// KindOther is a dimension that is neither space nor time.
	KindOther Kind = iota
	// KindSpace is a spatial dimension (grid cells or shapes).
	KindSpace
	// KindTime is the temporal dimension.
	KindTime
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindSpace:
		return "space"
	case KindTime:
		return "time"
	default:
		return "other"
	}
}

// Point is a 2-D position. For grids X is the column and Y the row; for
// shapes it is the centroid, with X = longitude and Y = latitude when the
// shapes are geographic.
type Point struct {
	X float64
	Y float64
}

// Geometry maps a spatial coordinate to a 2-D position.
type Geometry interface {
	Position(coord int) Point
}

// Grid is a regular grid geometry stored row-major.
type Grid struct {
	Cols int
	Rows int
}

// XY returns the column and row of a cell.
func (g Grid) XY(cell int) (x, y int) {
	return cell % g.Cols, cell / g.Cols
}

// Position implements Geometry.
func (g Grid) Position(cell int) Point {
	x, y := g.XY(cell)
	return Point{X: float64(x), Y: float64(y)}
}

// Shapes is an irregular spatial geometry given by shape centroids.
type Shapes []Point

// Position implements Geometry.
func (s Shapes) Position(i int) Point { return s[i] }

// Extent is one named dimension of the domain.
// Extents are values; once passed to New they are never modified.
type Extent struct {
	Name     string
	Kind     Kind
	Size     int
	Geometry Geometry

	// Start and Step anchor a temporal extent in wall time. Both are
	// optional; a zero Step means the extent is a plain sequence.
	Start time.Time
	Step  time.Duration
}

// Grid returns the grid geometry of a spatial extent, if it has one.
func (e Extent) Grid() (Grid, bool) {
	g, ok := e.Geometry.(Grid)
	return g, ok
}

// GridExtent returns a spatial extent over a cols x rows grid.
func GridExtent(cols, rows int) Extent {
	return Extent{
		Name:     "space",
		Kind:     KindSpace,
		Size:     cols * rows,
		Geometry: Grid{Cols: cols, Rows: rows},
	}
}

// ShapeExtent returns a spatial extent made of shapes with the given centroids.
func ShapeExtent(centroids ...Point) Extent {
	return Extent{
		Name:     "space",
		Kind:     KindSpace,
		Size:     len(centroids),
		Geometry: Shapes(centroids),
	}
}

// TimeExtent returns a temporal extent of n steps with no wall-time anchor.
func TimeExtent(steps int) Extent {
	return Extent{Name: "time", Kind: KindTime, Size: steps}
}

// RegularTime returns a temporal extent of n steps starting at start, each
// lasting step.
func RegularTime(steps int, start time.Time, step time.Duration) Extent {
	return Extent{Name: "time", Kind: KindTime, Size: steps, Start: start, Step: step}
}

// OtherExtent returns a generic named dimension.
func OtherExtent(name string, size int) Extent {
	return Extent{Name: name, Kind: KindOther, Size: size}
}

func (e Extent) validate() error {
	if e.Name == "" {
		return fmt.Errorf("extent name is required")
	}
	if e.Size <= 0 {
		return fmt.Errorf("extent %s: size must be positive, got %d", e.Name, e.Size)
	}
	if g, ok := e.Geometry.(Grid); ok && g.Cols*g.Rows != e.Size {
		return fmt.Errorf("extent %s: grid %dx%d does not match size %d", e.Name, g.Cols, g.Rows, e.Size)
	}
	if s, ok := e.Geometry.(Shapes); ok && len(s) != e.Size {
		return fmt.Errorf("extent %s: %d shapes do not match size %d", e.Name, len(s), e.Size)
	}
	if e.Kind != KindTime && e.Step != 0 {
		return fmt.Errorf("extent %s: only temporal extents take a step", e.Name)
	}
	return nil
}
