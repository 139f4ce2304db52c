package field

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/irfansharif/canopy/internal/geom"
	"github.com/irfansharif/canopy/internal/memory"
	"github.com/irfansharif/canopy/internal/palette"
)

// InstanceMatrix composes an instance transform: translate to pos, then
// rotate around X and Z (XYZ Euler order with no yaw).
func InstanceMatrix(pos mgl64.Vec3, r Rotation) mgl32.Mat4 {
	return mgl32.Translate3D(float32(pos[0]), float32(pos[1]), float32(pos[2])).
		Mul4(mgl32.HomogRotate3DX(float32(r.X))).
		Mul4(mgl32.HomogRotate3DZ(float32(r.Z)))
}

// Apply writes this frame's transforms into buf, one slot per instance, and
// then commits the matrix region so it is marked dirty exactly once. After the
// commit the bounding volume is recomputed from the written transforms and
// local, the bounds of the shared geometry.
func Apply(buf *memory.InstanceBuffer, instances []Instance, rotations []Rotation, local geom.Box3) error {
	if len(instances) != len(rotations) || len(instances) != buf.Len() {
		return fmt.Errorf("%w: %d instances, %d rotations, %d slots",
			ErrInstanceMismatch, len(instances), len(rotations), buf.Len())
	}

	for i := range instances {
		inst := &instances[i]
		if err := buf.SetMatrix(inst.Index, InstanceMatrix(inst.Position, rotations[inst.Index])); err != nil {
			return err
		}
	}
	if err := buf.Commit(memory.RegionMatrices); err != nil {
		return err
	}

	box := geom.EmptyBox()
	for slot := 0; slot < buf.Len(); slot++ {
		box = box.Union(local.Transform(buf.Matrix(slot)))
	}
	buf.SetBounds(box, box.BoundingSphere())
	return nil
}

// WriteColors writes every instance's color into buf and commits the color
// region. Colors never change after the field is built, so this runs once.
func WriteColors(buf *memory.InstanceBuffer, instances []Instance) error {
	if len(instances) != buf.Len() {
		return fmt.Errorf("%w: %d instances, %d slots", ErrInstanceMismatch, len(instances), buf.Len())
	}
	for i := range instances {
		if err := buf.SetColor(instances[i].Index, palette.Floats(instances[i].Color)); err != nil {
			return err
		}
	}
	return buf.Commit(memory.RegionColors)
}
