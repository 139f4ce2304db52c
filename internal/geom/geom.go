// Package geom provides the geometric primitives shared by the leaf field:
// - 2D points for mesh outlines
// - World-space viewport rectangles derived from window dimensions
// - Axis-aligned 3D boxes and bounding spheres
package geom

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrInvalidScale    = errors.New("viewport scale must be positive")
	ErrInvalidViewport = errors.New("viewport dimensions must be positive")
)

// Point represents a 2D point or vector in Cartesian coordinates.
type Point struct {
	X float64
	Y float64
}

func MakePoint(x, y float64) Point { return Point{X: x, Y: y} }

// Rect is a world-space rectangle. Width == Right-Left and Height ==
// Top-Bottom; Top is the larger Y.
type Rect struct {
	Left, Right float64
	Top, Bottom float64
	Width       float64
	Height      float64
}

// Size holds the extents of an axis-aligned box along each axis.
type Size struct {
	X, Y, Z float64
}

// Box3 represents an axis-aligned 3D box.
type Box3 struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Sphere is a bounding sphere.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

// ViewportBounds maps a window of the given pixel dimensions to a world-space
// rectangle centered on the origin. scale is the number of world units per
// pixel from the center to each edge, so a 1280px wide window at scale 0.01
// spans [-12.8, 12.8].
func ViewportBounds(width, height int, scale float64) (Rect, error) {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return Rect{}, fmt.Errorf("%w: got %v", ErrInvalidScale, scale)
	}
	if width <= 0 || height <= 0 {
		return Rect{}, fmt.Errorf("%w: got %dx%d", ErrInvalidViewport, width, height)
	}

	r := Rect{
		Left:   -float64(width) * scale,
		Right:  float64(width) * scale,
		Top:    float64(height) * scale,
		Bottom: -float64(height) * scale,
	}
	r.Width = r.Right - r.Left
	r.Height = r.Top - r.Bottom
	return r, nil
}

// EmptyBox returns an inverted box that any point will expand.
func EmptyBox() Box3 {
	inf := float32(math.Inf(1))
	return Box3{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// BoxFromPoints returns the tight bounding box of pts. ok is false when pts is
// empty.
func BoxFromPoints(pts []mgl32.Vec3) (b Box3, ok bool) {
	if len(pts) == 0 {
		return Box3{}, false
	}
	b = EmptyBox()
	for _, p := range pts {
		b = b.ExpandPoint(p)
	}
	return b, true
}

// IsEmpty reports whether the box contains no points.
func (b Box3) IsEmpty() bool {
	return b.Max.X() < b.Min.X() || b.Max.Y() < b.Min.Y() || b.Max.Z() < b.Min.Z()
}

// ExpandPoint returns the smallest box containing both b and p.
func (b Box3) ExpandPoint(p mgl32.Vec3) Box3 {
	for i := 0; i < 3; i++ {
		b.Min[i] = min(b.Min[i], p[i])
		b.Max[i] = max(b.Max[i], p[i])
	}
	return b
}

// Union returns the smallest box containing both boxes.
func (b Box3) Union(o Box3) Box3 {
	if o.IsEmpty() {
		return b
	}
	return b.ExpandPoint(o.Min).ExpandPoint(o.Max)
}

// Size returns the box extents. An empty box has zero size.
func (b Box3) Size() Size {
	if b.IsEmpty() {
		return Size{}
	}
	d := b.Max.Sub(b.Min)
	return Size{X: float64(d.X()), Y: float64(d.Y()), Z: float64(d.Z())}
}

// Center returns the midpoint of the box.
func (b Box3) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Corners returns the eight corners of the box.
func (b Box3) Corners() [8]mgl32.Vec3 {
	var c [8]mgl32.Vec3
	for i := range c {
		x, y, z := b.Min.X(), b.Min.Y(), b.Min.Z()
		if i&1 != 0 {
			x = b.Max.X()
		}
		if i&2 != 0 {
			y = b.Max.Y()
		}
		if i&4 != 0 {
			z = b.Max.Z()
		}
		c[i] = mgl32.Vec3{x, y, z}
	}
	return c
}

// Transform returns the bounding box of b's corners under m.
func (b Box3) Transform(m mgl32.Mat4) Box3 {
	out := EmptyBox()
	for _, c := range b.Corners() {
		out = out.ExpandPoint(mgl32.TransformCoordinate(c, m))
	}
	return out
}

// Intersects reports whether the two boxes overlap (touching counts).
func (b Box3) Intersects(o Box3) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	for i := 0; i < 3; i++ {
		if b.Max[i] < o.Min[i] || o.Max[i] < b.Min[i] {
			return false
		}
	}
	return true
}

// BoundingSphere returns the sphere centered on the box that encloses it.
func (b Box3) BoundingSphere() Sphere {
	if b.IsEmpty() {
		return Sphere{}
	}
	return Sphere{
		Center: b.Center(),
		Radius: b.Max.Sub(b.Min).Len() / 2,
	}
}

// ViewVolume returns the world-space box seen by an orthographic camera at
// the origin looking down -Z over bounds, clipped to [near, far].
func ViewVolume(bounds Rect, near, far float64) Box3 {
	return Box3{
		Min: mgl32.Vec3{float32(bounds.Left), float32(bounds.Bottom), float32(-far)},
		Max: mgl32.Vec3{float32(bounds.Right), float32(bounds.Top), float32(-near)},
	}
}

// ViewProjection returns the matrix taking ViewVolume(bounds, near, far) to
// clip space.
func ViewProjection(bounds Rect, near, far float64) mgl32.Mat4 {
	return mgl32.Ortho(
		float32(bounds.Left), float32(bounds.Right),
		float32(bounds.Bottom), float32(bounds.Top),
		float32(near), float32(far),
	)
}
