// Package mesh loads the leaf geometry that every field instance shares.
//
// A leaf is described by a JSON outline document:
//
//	{"name": "leaf0", "curl": 0.15, "outline": [x0, y0, x1, y1, ...]}
//
// The outline is a simple polygon in the XY plane with the stem at the origin.
// It is triangulated with earcut, and each vertex is pushed back along Z by
// curl*y*y so the leaf bends away from the viewer towards its tip.
package mesh

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/irfansharif/canopy/internal/geom"
)

// DefaultName is the embedded leaf document.
const DefaultName = "leaf.json"

var (
	ErrEmptyGeometry = errors.New("geometry has no vertices")
	ErrBadOutline    = errors.New("invalid leaf outline")
)

//go:embed data/*.json
var embedded embed.FS

var meshLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("CANOPY_DEBUG_MESH") == "1" {
		meshLogger = log.New(os.Stdout, "[mesh] ", log.Ltime|log.Lmsgprefix)
	}
}

// AssetID uniquely identifies a loaded mesh.
type AssetID string

// Mesh is a triangle list: every three consecutive vertices form a triangle.
type Mesh struct {
	ID       AssetID
	Name     string
	Vertices []mgl32.Vec3
}

// TriangleCount returns the number of triangles in the mesh.
func (m *Mesh) TriangleCount() int { return len(m.Vertices) / 3 }

// Floats returns the vertex positions as a flat [x, y, z, ...] slice.
func (m *Mesh) Floats() []float32 {
	out := make([]float32, 0, len(m.Vertices)*3)
	for _, v := range m.Vertices {
		out = append(out, v.X(), v.Y(), v.Z())
	}
	return out
}

// Bounds returns the tight axis-aligned bounding box of the mesh.
func Bounds(m *Mesh) (geom.Box3, error) {
	if m == nil {
		return geom.Box3{}, ErrEmptyGeometry
	}
	b, ok := geom.BoxFromPoints(m.Vertices)
	if !ok {
		return geom.Box3{}, fmt.Errorf("%w: mesh %q", ErrEmptyGeometry, m.Name)
	}
	return b, nil
}

// Extent measures the mesh's bounding box extents.
func Extent(m *Mesh) (geom.Size, error) {
	b, err := Bounds(m)
	if err != nil {
		return geom.Size{}, err
	}
	return b.Size(), nil
}

type document struct {
	Name    string    `json:"name"`
	Curl    float64   `json:"curl"`
	Outline []float64 `json:"outline"` // flat [x0,y0,x1,y1,...]
}

// Decode reads a leaf outline document and triangulates it.
func Decode(r io.Reader) (*Mesh, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadOutline, err)
	}
	if len(doc.Outline)%2 != 0 {
		return nil, fmt.Errorf("%w: odd coordinate count %d", ErrBadOutline, len(doc.Outline))
	}
	if len(doc.Outline) == 0 {
		return nil, fmt.Errorf("%w: mesh %q", ErrEmptyGeometry, doc.Name)
	}

	outline := make([]geom.Point, 0, len(doc.Outline)/2)
	for i := 0; i < len(doc.Outline); i += 2 {
		x, y := doc.Outline[i], doc.Outline[i+1]
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			return nil, fmt.Errorf("%w: non-finite coordinate at %d", ErrBadOutline, i/2)
		}
		outline = append(outline, geom.MakePoint(x, y))
	}

	triangles, err := earClip(outline)
	if err != nil {
		return nil, err
	}

	m := &Mesh{
		ID:       AssetID(uuid.NewString()),
		Name:     doc.Name,
		Vertices: make([]mgl32.Vec3, 0, len(triangles)*3),
	}
	for _, tri := range triangles {
		for _, p := range tri {
			z := -doc.Curl * p.Y * p.Y
			m.Vertices = append(m.Vertices, mgl32.Vec3{float32(p.X), float32(p.Y), float32(z)})
		}
	}
	return m, nil
}

// DefaultFS returns the file system holding the embedded leaf documents.
func DefaultFS() fs.FS {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		log.Fatalf("cannot open embedded mesh data: %v", err)
	}
	return sub
}

// Result is the outcome of an asynchronous load.
type Result struct {
	Mesh *Mesh
	Err  error
}

// Loader reads leaf documents from a file system.
type Loader struct {
	fsys fs.FS
}

// NewLoader returns a loader over fsys. A nil fsys uses the embedded data.
func NewLoader(fsys fs.FS) *Loader {
	if fsys == nil {
		fsys = DefaultFS()
	}
	return &Loader{fsys: fsys}
}

// Load reads and triangulates the named document.
func (l *Loader) Load(name string) (*Mesh, error) {
	f, err := l.fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open mesh %q: %w", name, err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode mesh %q: %w", name, err)
	}
	meshLogger.Printf("loaded %q (%s): %d triangles", m.Name, m.ID, m.TriangleCount())
	return m, nil
}

// LoadAsync loads the named document on its own goroutine. The returned
// channel receives exactly one Result and is then closed. A cancelled context
// yields ctx.Err().
func (l *Loader) LoadAsync(ctx context.Context, name string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		if err := ctx.Err(); err != nil {
			ch <- Result{Err: err}
			return
		}
		m, err := l.Load(name)
		ch <- Result{Mesh: m, Err: err}
	}()
	return ch
}
