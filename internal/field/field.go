// Package field populates a viewport-covering plane with leaf instances and
// animates them.
//
// A Field starts Uninitialized. Initialize measures the leaf mesh, plans the
// covering grid and builds the instances, moving the field to Ready. Frame is
// called once per rendered frame; it does nothing until the field is Ready,
// after which it recomputes every rotation from coherent noise and writes the
// transforms into the instance buffer.
package field

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/irfansharif/canopy/internal/geom"
	"github.com/irfansharif/canopy/internal/memory"
	"github.com/irfansharif/canopy/internal/mesh"
	"github.com/irfansharif/canopy/internal/palette"
)

var fieldLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("CANOPY_DEBUG_FIELD") == "1" {
		fieldLogger = log.New(os.Stdout, "[field] ", log.Ltime|log.Lmsgprefix)
	}
}

// State is either Uninitialized or Ready.
type State interface {
	isState()
}

// Uninitialized is the state before the leaf mesh is available, and after a
// failed load or build.
type Uninitialized struct{}

// Ready holds everything built from the loaded mesh.
type Ready struct {
	Bounds    geom.Rect
	Layout    Layout
	Instances []Instance
	Local     geom.Box3 // bounds of the shared leaf geometry
	MeshID    mesh.AssetID
}

func (Uninitialized) isState() {}
func (Ready) isState()         {}

// Config holds the layout and animation parameters of a field.
type Config struct {
	MarginCells   int
	DepthZ        float64
	BaseRotationX float64 // rest pitch in radians; negative droops
	ColumnSpacing float64 // horizontal spacing as a fraction of leaf width
	RowSpacing    float64 // vertical spacing as a fraction of leaf height
	MaxInstances  int     // 0 means unlimited
	Palette       palette.Palette
	ColorPolicy   palette.Policy
	Seed          int64
	Animator      AnimatorConfig
}

// Stats tracks per-frame timings.
type Stats struct {
	Frames        uint64
	Instances     int
	LastAnimateUs float64
	LastSyncUs    float64
}

// Field owns the layout and instances and drives the per-frame animation.
type Field struct {
	cfg       Config
	state     State
	animator  *Animator
	rotations []Rotation
	stats     Stats
}

// New returns an Uninitialized field. noise may be nil, in which case
// OpenSimplex noise seeded with cfg.Seed is used.
func New(cfg Config, noise Noise) (*Field, error) {
	a, err := NewAnimator(cfg.Seed, noise, cfg.Animator)
	if err != nil {
		return nil, err
	}
	return &Field{cfg: cfg, state: Uninitialized{}, animator: a}, nil
}

// State returns the current state.
func (f *Field) State() State { return f.state }

// Animator returns the field's animator.
func (f *Field) Animator() *Animator { return f.animator }

// Stats returns the latest frame statistics.
func (f *Field) Stats() Stats { return f.stats }

// Initialize builds the field for bounds from the loaded leaf mesh and moves
// it to Ready. On error the field is left Uninitialized.
func (f *Field) Initialize(bounds geom.Rect, m *mesh.Mesh) (Ready, error) {
	ready, err := f.build(bounds, m)
	if err != nil {
		f.state = Uninitialized{}
		return Ready{}, err
	}
	f.state = ready
	f.rotations = make([]Rotation, ready.Layout.InstanceCount)
	f.stats.Instances = ready.Layout.InstanceCount

	fieldLogger.Printf("ready: %dx%d grid (%d instances), spacing %.3fx%.3f, seed %d",
		ready.Layout.Columns, ready.Layout.Rows, ready.Layout.InstanceCount,
		ready.Layout.HorizontalSpacing, ready.Layout.VerticalSpacing, f.cfg.Seed)
	return ready, nil
}

func (f *Field) build(bounds geom.Rect, m *mesh.Mesh) (Ready, error) {
	local, err := mesh.Bounds(m)
	if err != nil {
		return Ready{}, fmt.Errorf("measure leaf: %w", err)
	}

	sx, sy := SpacingFor(local.Size(), f.cfg.ColumnSpacing, f.cfg.RowSpacing)
	layout, err := PlanLayout(bounds, sx, sy, f.cfg.MarginCells)
	if err != nil {
		return Ready{}, fmt.Errorf("plan layout: %w", err)
	}
	if f.cfg.MaxInstances > 0 && layout.InstanceCount > f.cfg.MaxInstances {
		return Ready{}, fmt.Errorf("%w: %d > %d", ErrTooManyInstances, layout.InstanceCount, f.cfg.MaxInstances)
	}

	picker, err := palette.NewPicker(f.cfg.ColorPolicy, f.cfg.Palette, f.cfg.Seed)
	if err != nil {
		return Ready{}, fmt.Errorf("color picker: %w", err)
	}
	instances, err := BuildInstances(layout, bounds, f.cfg.BaseRotationX, f.cfg.DepthZ, picker)
	if err != nil {
		return Ready{}, fmt.Errorf("build instances: %w", err)
	}

	return Ready{
		Bounds:    bounds,
		Layout:    layout,
		Instances: instances,
		Local:     local,
		MeshID:    m.ID,
	}, nil
}

// Reset drops the built field and returns it to Uninitialized.
func (f *Field) Reset() {
	f.state = Uninitialized{}
	f.rotations = nil
	f.stats.Instances = 0
}

// Frame animates one frame into buf. It reports false, and touches nothing,
// while the field is Uninitialized. The animator only advances after the
// frame is committed, so a failed frame is retried at the same time.
func (f *Field) Frame(buf *memory.InstanceBuffer, dt time.Duration) (bool, error) {
	switch s := f.state.(type) {
	case Uninitialized:
		return false, nil

	case Ready:
		start := time.Now()
		rotations, err := f.animator.Sample(s.Layout, f.cfg.BaseRotationX, f.rotations)
		if err != nil {
			return false, err
		}
		f.rotations = rotations
		f.stats.LastAnimateUs = float64(time.Since(start).Microseconds())

		start = time.Now()
		if err := Apply(buf, s.Instances, rotations, s.Local); err != nil {
			return false, err
		}
		f.stats.LastSyncUs = float64(time.Since(start).Microseconds())

		// Time only moves once the frame is committed.
		f.animator.Advance(dt)
		f.stats.Frames = f.animator.Frame()
		return true, nil

	default:
		return false, fmt.Errorf("unexpected field state %T", s)
	}
}
