package app

import (
	"github.com/irfansharif/canopy/internal/geom"
)

// View tracks the window's logical size and the world-space rectangle the
// field covers. The rectangle is fixed when the view is created; resizing only
// changes the pixel size, and the projection stretches to fit.
type View struct {
	Width, Height int
	Scale         float64
	Bounds        geom.Rect
}

// NewView maps a width x height window, in screen coordinates, to world space
// at scale units per coordinate.
func NewView(width, height int, scale float64) (*View, error) {
	bounds, err := geom.ViewportBounds(width, height, scale)
	if err != nil {
		return nil, err
	}
	return &View{
		Width:  width,
		Height: height,
		Scale:  scale,
		Bounds: bounds,
	}, nil
}

// SetViewport updates the viewport dimensions.
func (vs *View) SetViewport(width, height int) {
	vs.Width = width
	vs.Height = height
}
