// Package memory holds the CPU-side staging copy of the shared instance buffer.
//
// The buffer has two regions, per-instance transform matrices and per-instance
// colors, each with its own dirty flag. Writes land in a back copy of the
// region; a commit, accepted only once every slot has been written, swaps it
// to the front and marks the region dirty. The renderer only ever reads the
// front copy, so it never uploads a partially written frame. The renderer
// takes the dirty flag, uploads the region and records the upload.
package memory

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/irfansharif/canopy/internal/geom"
)

var memoryLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("CANOPY_DEBUG_MEMORY") == "1" {
		memoryLogger = log.New(os.Stdout, "[memory] ", log.Ltime|log.Lmsgprefix)
	}
}

const (
	FloatsPerMatrix = 16
	FloatsPerColor  = 4
	bytesPerFloat   = 4
)

var (
	ErrPartialWrite   = errors.New("instance region not fully written")
	ErrSlotOutOfRange = errors.New("instance slot out of range")
)

// Region identifies one of the buffer's independently uploaded regions.
type Region int

const (
	RegionMatrices Region = iota
	RegionColors
)

func (r Region) String() string {
	switch r {
	case RegionMatrices:
		return "matrices"
	case RegionColors:
		return "colors"
	default:
		return "unknown"
	}
}

// Stats tracks counters for the instance buffer.
type Stats struct {
	Instances      int
	GPUBytes       int64
	Commits        map[Region]int
	Uploads        map[Region]int
	PartialRejects int
	Version        uint64 // matrix commits so far
}

type region struct {
	data    []float32 // last committed frame
	back    []float32 // frame being written
	stride  int
	touched []bool
	pending int // distinct slots written since the last commit
	dirty   bool
}

func newRegion(count, stride int) *region {
	return &region{
		data:    make([]float32, count*stride),
		back:    make([]float32, count*stride),
		stride:  stride,
		touched: make([]bool, count),
	}
}

// swap publishes the back copy. Commit only swaps after every slot was
// rewritten, so the stale frame left in the new back is never published.
func (r *region) swap() {
	r.data, r.back = r.back, r.data
}

func (r *region) write(slot int, vals []float32) {
	copy(r.back[slot*r.stride:(slot+1)*r.stride], vals)
	if !r.touched[slot] {
		r.touched[slot] = true
		r.pending++
	}
}

// InstanceBuffer is the staging copy of the shared instance buffer. It is not
// safe for concurrent use; the frame loop is its only user.
type InstanceBuffer struct {
	count   int
	regions map[Region]*region
	box     geom.Box3
	sphere  geom.Sphere
	stats   Stats
}

// NewInstanceBuffer allocates a buffer with count slots.
func NewInstanceBuffer(count int) *InstanceBuffer {
	if count < 0 {
		count = 0
	}
	return &InstanceBuffer{
		count: count,
		regions: map[Region]*region{
			RegionMatrices: newRegion(count, FloatsPerMatrix),
			RegionColors:   newRegion(count, FloatsPerColor),
		},
		box: geom.EmptyBox(),
		stats: Stats{
			Instances: count,
			GPUBytes:  int64(count) * (FloatsPerMatrix + FloatsPerColor) * bytesPerFloat,
			Commits:   make(map[Region]int),
			Uploads:   make(map[Region]int),
		},
	}
}

// Len returns the number of slots.
func (b *InstanceBuffer) Len() int { return b.count }

func (b *InstanceBuffer) checkSlot(slot int) error {
	if slot < 0 || slot >= b.count {
		return fmt.Errorf("%w: slot %d, capacity %d", ErrSlotOutOfRange, slot, b.count)
	}
	return nil
}

// SetMatrix stages the transform of the given slot.
func (b *InstanceBuffer) SetMatrix(slot int, m mgl32.Mat4) error {
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	b.regions[RegionMatrices].write(slot, m[:])
	return nil
}

// SetColor stages the RGBA color of the given slot.
func (b *InstanceBuffer) SetColor(slot int, c [4]float32) error {
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	b.regions[RegionColors].write(slot, c[:])
	return nil
}

// Matrix returns the last committed transform of the given slot.
func (b *InstanceBuffer) Matrix(slot int) mgl32.Mat4 {
	var m mgl32.Mat4
	copy(m[:], b.regions[RegionMatrices].data[slot*FloatsPerMatrix:])
	return m
}

// Color returns the last committed color of the given slot.
func (b *InstanceBuffer) Color(slot int) [4]float32 {
	var c [4]float32
	copy(c[:], b.regions[RegionColors].data[slot*FloatsPerColor:])
	return c
}

// Commit marks the region dirty for upload. Every slot must have been written
// since the previous commit, otherwise the region is left untouched and
// ErrPartialWrite is returned.
func (b *InstanceBuffer) Commit(r Region) error {
	reg := b.regions[r]
	if reg.pending != b.count {
		b.stats.PartialRejects++
		return fmt.Errorf("%w: %s %d/%d slots", ErrPartialWrite, r, reg.pending, b.count)
	}
	reg.swap()
	clear(reg.touched)
	reg.pending = 0
	reg.dirty = true

	b.stats.Commits[r]++
	if r == RegionMatrices {
		b.stats.Version++
	}
	return nil
}

// Pending returns how many distinct slots of the region were written since
// the last commit.
func (b *InstanceBuffer) Pending(r Region) int { return b.regions[r].pending }

// Dirty reports whether the region has a committed, not yet uploaded frame.
func (b *InstanceBuffer) Dirty(r Region) bool { return b.regions[r].dirty }

// Data returns the raw floats of the region's last committed frame, for
// upload. Writes since that commit are not visible here.
func (b *InstanceBuffer) Data(r Region) []float32 { return b.regions[r].data }

// Stride returns the number of floats per slot in the region.
func (b *InstanceBuffer) Stride(r Region) int { return b.regions[r].stride }

// TakeDirty clears the region's dirty flag and reports whether it was set. The
// caller is expected to upload Data(r) when it returns true.
func (b *InstanceBuffer) TakeDirty(r Region) bool {
	reg := b.regions[r]
	if !reg.dirty {
		return false
	}
	reg.dirty = false
	b.stats.Uploads[r]++
	return true
}

// SetBounds records the bounding volume of the committed instances.
func (b *InstanceBuffer) SetBounds(box geom.Box3, sphere geom.Sphere) {
	b.box, b.sphere = box, sphere
}

// Bounds returns the last recorded bounding volume.
func (b *InstanceBuffer) Bounds() (geom.Box3, geom.Sphere) { return b.box, b.sphere }

// Stats returns a snapshot of the buffer counters.
func (b *InstanceBuffer) Stats() Stats {
	s := b.stats
	s.Commits = make(map[Region]int, len(b.stats.Commits))
	for k, v := range b.stats.Commits {
		s.Commits[k] = v
	}
	s.Uploads = make(map[Region]int, len(b.stats.Uploads))
	for k, v := range b.stats.Uploads {
		s.Uploads[k] = v
	}
	return s
}

// PrintStats outputs buffer statistics with visual bars.
func (b *InstanceBuffer) PrintStats() {
	stats := b.Stats()

	memoryLogger.Println("===== Instance Buffer Stats =====")
	memoryLogger.Printf("%s instances, %s GPU, version %d, %d partial writes rejected",
		formatNumber(int64(stats.Instances)),
		formatNumber(stats.GPUBytes),
		stats.Version,
		stats.PartialRejects,
	)
	for _, r := range []Region{RegionMatrices, RegionColors} {
		written := 0.0
		if b.count > 0 {
			written = float64(b.Pending(r)) / float64(b.count)
		}
		memoryLogger.Printf("  [%8s] %s %.0f%% pending, %d commits, %d uploads, dirty=%t",
			r.String(),
			makeUtilizationBar(written, 12),
			written*100,
			stats.Commits[r],
			stats.Uploads[r],
			b.Dirty(r),
		)
	}
	memoryLogger.Println("=================================")
}

// makeUtilizationBar creates a visual bar for utilization percentage.
func makeUtilizationBar(utilization float64, width int) string {
	if utilization < 0 {
		utilization = 0
	}
	if utilization > 1 {
		utilization = 1
	}

	filled := int(utilization * float64(width))
	empty := width - filled

	return strings.Repeat("█", filled) + strings.Repeat("░", empty)
}

// formatNumber formats large numbers with K/M suffixes for readability.
func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000.0)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000.0)
}
