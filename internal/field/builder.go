package field

import (
	"fmt"
	"image/color"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/irfansharif/canopy/internal/geom"
	"github.com/irfansharif/canopy/internal/palette"
)

// Instance is one leaf of the field. Index is its slot in the instance buffer
// and never changes; position and color are fixed at build time.
type Instance struct {
	Index         int
	X, Y          int // grid cell
	Position      mgl64.Vec3
	BaseRotationX float64
	Color         color.RGBA
}

// BuildInstances lays out one instance per grid cell, in ascending index
// order. Rows run top to bottom from bounds.Top and columns left to right from
// bounds.Left; odd rows are shifted left by half a spacing unit so that seams
// between neighbours do not line up.
func BuildInstances(layout Layout, bounds geom.Rect, baseRotationX, depthZ float64, picker palette.Picker) ([]Instance, error) {
	if !layout.Valid() {
		return nil, ErrLayoutNotReady
	}
	if picker == nil {
		return nil, fmt.Errorf("build instances: %w", palette.ErrEmptyPalette)
	}

	sx, sy := layout.HorizontalSpacing, layout.VerticalSpacing
	instances := make([]Instance, 0, layout.InstanceCount)
	for y := 0; y < layout.Rows; y++ {
		for x := 0; x < layout.Columns; x++ {
			index := layout.Index(x, y)

			posX := bounds.Left + float64(x)*sx
			if y%2 == 1 {
				posX -= sx / 2
			}
			posY := bounds.Top - float64(y)*sy

			instances = append(instances, Instance{
				Index:         index,
				X:             x,
				Y:             y,
				Position:      mgl64.Vec3{posX, posY, depthZ},
				BaseRotationX: baseRotationX,
				Color:         picker.Pick(x, y, index),
			})
		}
	}
	return instances, nil
}
