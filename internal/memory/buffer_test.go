package memory

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfansharif/canopy/internal/geom"
)

func TestInstanceBuffer_CommitRequiresAllSlots(t *testing.T) {
	buf := NewInstanceBuffer(3)
	require.Equal(t, 3, buf.Len())

	require.NoError(t, buf.SetMatrix(0, mgl32.Ident4()))
	require.NoError(t, buf.SetMatrix(2, mgl32.Ident4()))
	require.NoError(t, buf.SetMatrix(2, mgl32.Ident4())) // rewrites do not count twice
	assert.Equal(t, 2, buf.Pending(RegionMatrices))

	err := buf.Commit(RegionMatrices)
	assert.ErrorIs(t, err, ErrPartialWrite)
	assert.False(t, buf.Dirty(RegionMatrices), "a partial frame is never marked dirty")
	assert.Equal(t, 1, buf.Stats().PartialRejects)

	require.NoError(t, buf.SetMatrix(1, mgl32.Ident4()))
	require.NoError(t, buf.Commit(RegionMatrices))
	assert.True(t, buf.Dirty(RegionMatrices))
	assert.Equal(t, 0, buf.Pending(RegionMatrices))
	assert.Equal(t, uint64(1), buf.Stats().Version)
}

func TestInstanceBuffer_TakeDirty(t *testing.T) {
	buf := NewInstanceBuffer(1)
	assert.False(t, buf.TakeDirty(RegionColors))

	require.NoError(t, buf.SetColor(0, [4]float32{1, 0.5, 0, 1}))
	require.NoError(t, buf.Commit(RegionColors))

	assert.True(t, buf.TakeDirty(RegionColors))
	assert.False(t, buf.TakeDirty(RegionColors), "dirty flag is consumed by the upload")
	assert.Equal(t, 1, buf.Stats().Uploads[RegionColors])
	assert.Equal(t, 0, buf.Stats().Uploads[RegionMatrices])
	assert.Equal(t, [4]float32{1, 0.5, 0, 1}, buf.Color(0))
}

func TestInstanceBuffer_SlotLayout(t *testing.T) {
	buf := NewInstanceBuffer(2)
	m := mgl32.Translate3D(1, 2, 3)
	require.NoError(t, buf.SetMatrix(1, m))
	assert.Equal(t, mgl32.Mat4{}, buf.Matrix(1), "uncommitted writes are not visible")

	require.NoError(t, buf.SetMatrix(0, mgl32.Mat4{}))
	require.NoError(t, buf.Commit(RegionMatrices))
	assert.Equal(t, m, buf.Matrix(1))
	assert.Equal(t, mgl32.Mat4{}, buf.Matrix(0))

	data := buf.Data(RegionMatrices)
	require.Len(t, data, 2*FloatsPerMatrix)
	assert.Equal(t, m[:], data[FloatsPerMatrix:])
	assert.Equal(t, FloatsPerMatrix, buf.Stride(RegionMatrices))
	assert.Equal(t, FloatsPerColor, buf.Stride(RegionColors))
}

func TestInstanceBuffer_NoTornFrames(t *testing.T) {
	first, second := mgl32.Translate3D(1, 1, 1), mgl32.Translate3D(2, 2, 2)

	tests := []struct {
		name string
		// uploadFirst consumes the first frame before the second starts.
		uploadFirst bool
	}{
		{name: "first frame uploaded", uploadFirst: true},
		{name: "first frame still dirty"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := NewInstanceBuffer(2)
			require.NoError(t, buf.SetMatrix(0, first))
			require.NoError(t, buf.SetMatrix(1, first))
			require.NoError(t, buf.Commit(RegionMatrices))
			if tc.uploadFirst {
				require.True(t, buf.TakeDirty(RegionMatrices))
			}

			// The next frame is only half written.
			require.NoError(t, buf.SetMatrix(0, second))

			assert.Equal(t, !tc.uploadFirst, buf.TakeDirty(RegionMatrices))
			data := buf.Data(RegionMatrices)
			assert.Equal(t, first[:], data[:FloatsPerMatrix], "slot 0 still holds the committed frame")
			assert.Equal(t, first[:], data[FloatsPerMatrix:])
			assert.Equal(t, first, buf.Matrix(0))

			require.NoError(t, buf.SetMatrix(1, second))
			require.NoError(t, buf.Commit(RegionMatrices))
			require.True(t, buf.TakeDirty(RegionMatrices))
			data = buf.Data(RegionMatrices)
			assert.Equal(t, second[:], data[:FloatsPerMatrix])
			assert.Equal(t, second[:], data[FloatsPerMatrix:])
		})
	}
}

func TestInstanceBuffer_OutOfRange(t *testing.T) {
	buf := NewInstanceBuffer(2)
	assert.ErrorIs(t, buf.SetMatrix(2, mgl32.Ident4()), ErrSlotOutOfRange)
	assert.ErrorIs(t, buf.SetMatrix(-1, mgl32.Ident4()), ErrSlotOutOfRange)
	assert.ErrorIs(t, buf.SetColor(5, [4]float32{}), ErrSlotOutOfRange)
	assert.Equal(t, 0, buf.Pending(RegionMatrices))
}

func TestInstanceBuffer_Bounds(t *testing.T) {
	buf := NewInstanceBuffer(1)
	box, _ := buf.Bounds()
	assert.True(t, box.IsEmpty())

	want := geom.Box3{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	buf.SetBounds(want, want.BoundingSphere())
	box, sphere := buf.Bounds()
	assert.Equal(t, want, box)
	assert.Equal(t, want.BoundingSphere(), sphere)
}

func TestInstanceBuffer_Stats(t *testing.T) {
	buf := NewInstanceBuffer(10)
	stats := buf.Stats()
	assert.Equal(t, 10, stats.Instances)
	assert.Equal(t, int64(10*(16+4)*4), stats.GPUBytes)

	// Snapshots do not alias the live counters.
	stats.Commits[RegionMatrices] = 99
	assert.Equal(t, 0, buf.Stats().Commits[RegionMatrices])

	buf.PrintStats()
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1.5K", formatNumber(1500))
	assert.Equal(t, "2.0M", formatNumber(2000000))
}

func TestMakeUtilizationBar(t *testing.T) {
	assert.Equal(t, "██░░", makeUtilizationBar(0.5, 4))
	assert.Equal(t, "░░░░", makeUtilizationBar(-1, 4))
	assert.Equal(t, "████", makeUtilizationBar(2, 4))
}
