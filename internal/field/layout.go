package field

import (
	"errors"
	"fmt"
	"math"

	"github.com/irfansharif/canopy/internal/geom"
)

var (
	ErrInvalidSpacing   = errors.New("instance spacing must be positive")
	ErrInvalidMargin    = errors.New("margin cells must not be negative")
	ErrTooManyInstances = errors.New("layout exceeds instance limit")
	ErrLayoutNotReady   = errors.New("layout has no columns or rows")
	ErrInstanceMismatch = errors.New("instance, rotation and buffer sizes differ")
)

// maxCells bounds a single layout dimension so that Columns*Rows cannot
// overflow an int.
const maxCells = 1 << 20

// Layout is the covering grid of instance slots. It is immutable once planned.
type Layout struct {
	Columns           int
	Rows              int
	HorizontalSpacing float64
	VerticalSpacing   float64
	InstanceCount     int // Columns * Rows
}

// Valid reports whether the layout has at least one slot.
func (l Layout) Valid() bool { return l.Columns > 0 && l.Rows > 0 }

// Index returns the slot of grid cell (x, y).
func (l Layout) Index(x, y int) int { return x + y*l.Columns }

// SpacingFor derives instance spacing from a single geometry's size. Factors
// below one overlap neighbouring instances.
func SpacingFor(size geom.Size, columnFactor, rowFactor float64) (sx, sy float64) {
	return size.X * columnFactor, size.Y * rowFactor
}

// PlanLayout computes the grid that covers bounds with instances spaced sx
// apart horizontally and sy apart vertically, plus margin extra columns and
// rows. The margin covers the gap that the half-spacing row stagger would
// otherwise leave at the right edge.
func PlanLayout(bounds geom.Rect, sx, sy float64, margin int) (Layout, error) {
	if !(sx > 0) || !(sy > 0) || math.IsInf(sx, 0) || math.IsInf(sy, 0) {
		return Layout{}, fmt.Errorf("%w: got %vx%v", ErrInvalidSpacing, sx, sy)
	}
	if margin < 0 {
		return Layout{}, fmt.Errorf("%w: got %d", ErrInvalidMargin, margin)
	}

	cols := math.Ceil(bounds.Width/sx) + float64(margin)
	rows := math.Ceil(bounds.Height/sy) + float64(margin)
	if cols > maxCells || rows > maxCells {
		return Layout{}, fmt.Errorf("%w: %.0fx%.0f cells", ErrTooManyInstances, cols, rows)
	}

	l := Layout{
		Columns:           int(cols),
		Rows:              int(rows),
		HorizontalSpacing: sx,
		VerticalSpacing:   sy,
	}
	l.InstanceCount = l.Columns * l.Rows
	return l, nil
}
