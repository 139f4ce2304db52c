// Package render draws the leaf field with a single instanced draw call.
//
// The shared leaf geometry lives in one static vertex buffer. Per-instance
// model matrices and colors live in two more buffers whose attributes advance
// once per instance. Each frame the renderer:
// 1. Uploads whichever instance regions were committed since the last frame.
// 2. Skips the draw when the field's bounds fall outside the view volume.
// 3. Issues one DrawArraysInstanced for every leaf.
package render

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/irfansharif/canopy/internal/geom"
	"github.com/irfansharif/canopy/internal/memory"
	"github.com/irfansharif/canopy/internal/mesh"
)

const bytesPerFloat = 4

var ErrNotPrepared = errors.New("renderer has no instance buffer")

type Renderer struct {
	shaderManager *ShaderManager

	vao                          uint32
	meshVBO, matrixVBO, colorVBO uint32
	vertexCount                  int32
	instances                    int

	viewProj mgl32.Mat4
	view     geom.Box3
	stats    Stats
}

// Stats tracks rendering performance metrics.
type Stats struct {
	LastPrepareTimeMs float64 // time spent in last Prepare() call in milliseconds
	LastDrawTimeUs    float64 // time spent in last Draw() call in microseconds
	DrawCalls         uint64
	Uploads           uint64
	Culled            uint64 // frames skipped because the field was out of view
	Triangles         int    // per draw, across all instances
}

// NewRenderer compiles the shaders. A GL context must be current.
func NewRenderer() *Renderer {
	gl.Enable(gl.DEPTH_TEST)
	return &Renderer{
		shaderManager: NewShaderManager(),
		viewProj:      mgl32.Ident4(),
		view:          geom.EmptyBox(),
	}
}

// SetView points the orthographic camera at bounds.
func (r *Renderer) SetView(bounds geom.Rect, near, far float64) {
	r.viewProj = geom.ViewProjection(bounds, near, far)
	r.view = geom.ViewVolume(bounds, near, far)
}

// Prepare uploads the leaf geometry and allocates the instance buffers to
// match buf, replacing anything prepared before.
func (r *Renderer) Prepare(m *mesh.Mesh, buf *memory.InstanceBuffer) error {
	startTime := time.Now()

	if m == nil || len(m.Vertices) == 0 {
		return mesh.ErrEmptyGeometry
	}
	if buf.Len() == 0 {
		return fmt.Errorf("cannot prepare renderer: %w", ErrNotPrepared)
	}
	r.release()

	gl.GenVertexArrays(1, &r.vao)
	gl.BindVertexArray(r.vao)

	vertices := m.Floats()
	gl.GenBuffers(1, &r.meshVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.meshVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*bytesPerFloat, gl.Ptr(vertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(locPosition)
	gl.VertexAttribPointer(locPosition, 3, gl.FLOAT, false, 3*bytesPerFloat, gl.PtrOffset(0))

	// Model matrices are column-major; each column is its own vec4 attribute.
	matrices := buf.Data(memory.RegionMatrices)
	gl.GenBuffers(1, &r.matrixVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.matrixVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(matrices)*bytesPerFloat, gl.Ptr(matrices), gl.DYNAMIC_DRAW)
	stride := int32(memory.FloatsPerMatrix * bytesPerFloat)
	for col := uint32(0); col < 4; col++ {
		gl.EnableVertexAttribArray(locModel + col)
		gl.VertexAttribPointer(locModel+col, 4, gl.FLOAT, false, stride, gl.PtrOffset(int(col)*4*bytesPerFloat))
		gl.VertexAttribDivisor(locModel+col, 1)
	}

	colors := buf.Data(memory.RegionColors)
	gl.GenBuffers(1, &r.colorVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.colorVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(colors)*bytesPerFloat, gl.Ptr(colors), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(locColor)
	gl.VertexAttribPointer(locColor, 4, gl.FLOAT, false, memory.FloatsPerColor*bytesPerFloat, gl.PtrOffset(0))
	gl.VertexAttribDivisor(locColor, 1)

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	// Both regions were just uploaded whole.
	buf.TakeDirty(memory.RegionMatrices)
	buf.TakeDirty(memory.RegionColors)

	r.vertexCount = int32(len(m.Vertices))
	r.instances = buf.Len()
	r.stats.Triangles = m.TriangleCount() * r.instances
	r.stats.LastPrepareTimeMs = float64(time.Since(startTime).Microseconds()) / 1000.0
	return nil
}

// Draw uploads committed instance data and draws every leaf.
func (r *Renderer) Draw(buf *memory.InstanceBuffer) error {
	startTime := time.Now()

	if r.vao == 0 {
		return ErrNotPrepared
	}
	if buf.Len() != r.instances {
		return fmt.Errorf("instance buffer has %d slots, renderer prepared for %d", buf.Len(), r.instances)
	}

	r.upload(buf, memory.RegionMatrices, r.matrixVBO)
	r.upload(buf, memory.RegionColors, r.colorVBO)

	if box, _ := buf.Bounds(); !box.Intersects(r.view) {
		r.stats.Culled++
		r.stats.LastDrawTimeUs = float64(time.Since(startTime).Microseconds())
		return nil
	}

	r.shaderManager.Use()
	r.shaderManager.SetViewProj(r.viewProj)
	gl.BindVertexArray(r.vao)
	gl.DrawArraysInstanced(gl.TRIANGLES, 0, r.vertexCount, int32(r.instances))
	gl.BindVertexArray(0)

	r.stats.DrawCalls++
	r.stats.LastDrawTimeUs = float64(time.Since(startTime).Microseconds())
	return nil
}

// upload copies a committed region into its vertex buffer.
func (r *Renderer) upload(buf *memory.InstanceBuffer, region memory.Region, vbo uint32) {
	if !buf.TakeDirty(region) {
		return
	}
	data := buf.Data(region)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(data)*bytesPerFloat, gl.Ptr(data))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	r.stats.Uploads++
}

// Stats returns the current performance statistics
func (r *Renderer) Stats() Stats {
	return r.stats
}

// Cleanup releases all GL objects.
func (r *Renderer) Cleanup() {
	r.release()
	r.shaderManager.Delete()
}

func (r *Renderer) release() {
	if r.vao != 0 {
		gl.DeleteVertexArrays(1, &r.vao)
		r.vao = 0
	}
	for _, vbo := range []*uint32{&r.meshVBO, &r.matrixVBO, &r.colorVBO} {
		if *vbo != 0 {
			gl.DeleteBuffers(1, vbo)
			*vbo = 0
		}
	}
	r.vertexCount, r.instances = 0, 0
}
