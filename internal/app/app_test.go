package app

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfansharif/canopy/internal/config"
	"github.com/irfansharif/canopy/internal/field"
	"github.com/irfansharif/canopy/internal/geom"
	"github.com/irfansharif/canopy/internal/memory"
	"github.com/irfansharif/canopy/internal/mesh"
)

const squareDoc = `{"name": "square", "curl": 0.1, "outline": [-0.5,0, 0.5,0, 0.5,-1, -0.5,-1]}`

type fakeSurface struct {
	w, h  int
	scale int // framebuffer pixels per screen coordinate, 0 means 1
	title string
}

func (s *fakeSurface) GetSize() (int, int)   { return s.w, s.h }
func (s *fakeSurface) ShouldClose() bool     { return false }
func (s *fakeSurface) SetTitle(title string) { s.title = title }
func (s *fakeSurface) SwapBuffers()          {}

func (s *fakeSurface) GetFramebufferSize() (int, int) {
	if s.scale == 0 {
		return s.w, s.h
	}
	return s.w * s.scale, s.h * s.scale
}

type fakeDrawer struct {
	bounds      geom.Rect
	prepared    *mesh.Mesh
	prepareErr  error
	draws       int
	dirtyAtDraw []bool
}

func (d *fakeDrawer) SetView(bounds geom.Rect, _, _ float64) { d.bounds = bounds }

func (d *fakeDrawer) Prepare(m *mesh.Mesh, buf *memory.InstanceBuffer) error {
	if d.prepareErr != nil {
		return d.prepareErr
	}
	d.prepared = m
	buf.TakeDirty(memory.RegionColors)
	return nil
}

func (d *fakeDrawer) Draw(buf *memory.InstanceBuffer) error {
	d.draws++
	d.dirtyAtDraw = append(d.dirtyAtDraw, buf.Dirty(memory.RegionMatrices))
	buf.TakeDirty(memory.RegionMatrices)
	return nil
}

func newTestApp(t *testing.T, drawer *fakeDrawer) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Seed = 1
	cfg.MeshName = "square.json"
	a, err := NewApp(&fakeSurface{w: 400, h: 200}, drawer, cfg)
	require.NoError(t, err)
	return a
}

func testLoader() *mesh.Loader {
	return mesh.NewLoader(fstest.MapFS{"square.json": {Data: []byte(squareDoc)}})
}

func waitReady(t *testing.T, a *App) {
	t.Helper()
	var err error
	require.Eventually(t, func() bool {
		var ready bool
		ready, err = a.PollMesh()
		return ready || err != nil
	}, 2*time.Second, time.Millisecond)
	require.NoError(t, err)
}

func TestNewApp(t *testing.T) {
	d := &fakeDrawer{}
	a := newTestApp(t, d)

	assert.Equal(t, geom.Rect{Left: -4, Right: 4, Top: 2, Bottom: -2, Width: 8, Height: 4}, d.bounds)
	assert.Equal(t, d.bounds, a.View.Bounds)
	assert.IsType(t, field.Uninitialized{}, a.Field.State())
	assert.Nil(t, a.Buffer)

	_, err := NewApp(&fakeSurface{w: 0, h: 200}, d, config.Default())
	assert.ErrorIs(t, err, geom.ErrInvalidViewport)
}

func TestNewApp_HiDPI(t *testing.T) {
	for _, scale := range []int{1, 2, 3} {
		d := &fakeDrawer{}
		a, err := NewApp(&fakeSurface{w: 400, h: 200, scale: scale}, d, config.Default())
		require.NoError(t, err)

		assert.Equal(t, geom.Rect{Left: -4, Right: 4, Top: 2, Bottom: -2, Width: 8, Height: 4}, d.bounds,
			"framebuffer scale %d must not change the field", scale)
		assert.Equal(t, 400, a.View.Width)
		assert.Equal(t, 200, a.View.Height)
	}
}

func TestApp_FramesBeforeLoadAreNoops(t *testing.T) {
	d := &fakeDrawer{}
	a := newTestApp(t, d)

	for i := 0; i < 3; i++ {
		require.NoError(t, a.Frame(16*time.Millisecond))
	}
	assert.Zero(t, d.draws)
	assert.Equal(t, uint64(0), a.Field.Animator().Frame())
}

func TestApp_LoadAndDraw(t *testing.T) {
	d := &fakeDrawer{}
	a := newTestApp(t, d)
	a.LoadMesh(context.Background(), testLoader())
	waitReady(t, a)

	ready, ok := a.Field.State().(field.Ready)
	require.True(t, ok)
	require.NotNil(t, a.Buffer)
	assert.Equal(t, ready.Layout.InstanceCount, a.Buffer.Len())
	assert.Equal(t, ready.Layout.Columns*ready.Layout.Rows, a.Buffer.Len())
	require.NotNil(t, d.prepared)
	assert.Equal(t, "square", d.prepared.Name)
	assert.Equal(t, 1, a.Buffer.Stats().Commits[memory.RegionColors])

	for i := 0; i < 4; i++ {
		require.NoError(t, a.Frame(16*time.Millisecond))
	}
	assert.Equal(t, 4, d.draws)
	assert.Equal(t, []bool{true, true, true, true}, d.dirtyAtDraw, "every draw sees a freshly committed frame")
	assert.Equal(t, uint64(4), a.Field.Animator().Frame())
	assert.Equal(t, 4, a.Buffer.Stats().Uploads[memory.RegionMatrices])

	// Nothing left to pick up.
	became, err := a.PollMesh()
	assert.NoError(t, err)
	assert.False(t, became)
}

func TestApp_LoadFailure(t *testing.T) {
	tests := []struct {
		name   string
		loader *mesh.Loader
		ctx    func() context.Context
		target error
	}{
		{
			name:   "missing document",
			loader: mesh.NewLoader(fstest.MapFS{}),
			ctx:    context.Background,
		},
		{
			name:   "bad outline",
			loader: mesh.NewLoader(fstest.MapFS{"square.json": {Data: []byte(`{"outline": [0, 1, 2]}`)}}),
			ctx:    context.Background,
			target: mesh.ErrBadOutline,
		},
		{
			name:   "cancelled",
			loader: testLoader(),
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			target: context.Canceled,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := &fakeDrawer{}
			a := newTestApp(t, d)
			a.LoadMesh(tc.ctx(), tc.loader)

			require.Eventually(t, func() bool {
				_, err := a.PollMesh()
				return err != nil
			}, 2*time.Second, time.Millisecond)

			require.Error(t, a.LoadErr())
			if tc.target != nil {
				assert.ErrorIs(t, a.LoadErr(), tc.target)
			}

			// The field never leaves Uninitialized and frames draw nothing.
			for i := 0; i < 3; i++ {
				require.NoError(t, a.Frame(16*time.Millisecond))
			}
			assert.IsType(t, field.Uninitialized{}, a.Field.State())
			assert.Zero(t, d.draws)
			assert.Nil(t, a.Buffer)
		})
	}
}

func TestApp_PrepareFailure(t *testing.T) {
	d := &fakeDrawer{prepareErr: errors.New("no GL")}
	a := newTestApp(t, d)
	a.LoadMesh(context.Background(), testLoader())

	require.Eventually(t, func() bool {
		_, err := a.PollMesh()
		return err != nil
	}, 2*time.Second, time.Millisecond)

	assert.ErrorContains(t, a.LoadErr(), "no GL")
	assert.IsType(t, field.Uninitialized{}, a.Field.State())
	require.NoError(t, a.Frame(time.Millisecond))
	assert.Zero(t, d.draws)
	assert.Equal(t, uint64(0), a.Field.Animator().Frame())
}

func TestApp_Resize(t *testing.T) {
	a := newTestApp(t, &fakeDrawer{})
	bounds := a.View.Bounds

	a.Resize(800, 600)
	assert.Equal(t, 800, a.View.Width)
	assert.Equal(t, 600, a.View.Height)
	assert.Equal(t, bounds, a.View.Bounds, "the field keeps its original bounds")
}
