// Package app wires the leaf field to a window and a renderer. App is the
// single context value the driver threads through its frame loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/irfansharif/canopy/internal/config"
	"github.com/irfansharif/canopy/internal/field"
	"github.com/irfansharif/canopy/internal/geom"
	"github.com/irfansharif/canopy/internal/memory"
	"github.com/irfansharif/canopy/internal/mesh"
)

// Surface is the window the app presents to. *glfw.Window satisfies it.
// GetSize is in screen coordinates and sizes the field; GetFramebufferSize is
// in pixels and only feeds the GL viewport.
type Surface interface {
	GetSize() (width, height int)
	GetFramebufferSize() (width, height int)
	ShouldClose() bool
	SetTitle(title string)
	SwapBuffers()
}

// Drawer uploads instance data and draws the field.
type Drawer interface {
	SetView(bounds geom.Rect, near, far float64)
	Prepare(m *mesh.Mesh, buf *memory.InstanceBuffer) error
	Draw(buf *memory.InstanceBuffer) error
}

// App encapsulates the main application state and logic.
type App struct {
	Window Surface
	Drawer Drawer
	View   *View
	Field  *field.Field
	Buffer *memory.InstanceBuffer // nil until the leaf mesh is loaded
	Config config.Config

	pending <-chan mesh.Result
	loadErr error
}

// NewApp creates a new application instance sized to the window's logical
// size, so HiDPI framebuffers do not change the field. The field starts
// Uninitialized; call LoadMesh to populate it.
func NewApp(window Surface, drawer Drawer, cfg config.Config) (*App, error) {
	w, h := window.GetSize()
	view, err := NewView(w, h, cfg.ViewportScale)
	if err != nil {
		return nil, fmt.Errorf("viewport: %w", err)
	}
	fc, err := cfg.Field()
	if err != nil {
		return nil, err
	}
	f, err := field.New(fc, nil)
	if err != nil {
		return nil, err
	}
	drawer.SetView(view.Bounds, cfg.Near, cfg.Far)

	return &App{
		Window: window,
		Drawer: drawer,
		View:   view,
		Field:  f,
		Config: cfg,
	}, nil
}

// LoadMesh starts loading the configured leaf document in the background.
// PollMesh picks up the result.
func (app *App) LoadMesh(ctx context.Context, loader *mesh.Loader) {
	app.pending = loader.LoadAsync(ctx, app.Config.MeshName)
}

// PollMesh checks for a finished load without blocking and, once the mesh
// arrives, builds the field and prepares the drawer. It reports whether the
// field became Ready. A failed load is logged once and leaves the field
// Uninitialized for good.
func (app *App) PollMesh() (bool, error) {
	if app.pending == nil {
		return false, nil
	}

	var res mesh.Result
	select {
	case r, ok := <-app.pending:
		app.pending = nil
		if !ok {
			r.Err = errors.New("mesh loader closed without a result")
		}
		res = r
	default:
		return false, nil // still loading
	}

	if err := app.adopt(res); err != nil {
		app.loadErr = err
		log.Printf("WARNING: leaf field unavailable: %v", err)
		return false, err
	}
	return true, nil
}

func (app *App) adopt(res mesh.Result) error {
	if res.Err != nil {
		return res.Err
	}
	ready, err := app.Field.Initialize(app.View.Bounds, res.Mesh)
	if err != nil {
		return err
	}

	buf := memory.NewInstanceBuffer(ready.Layout.InstanceCount)
	if err := field.WriteColors(buf, ready.Instances); err != nil {
		app.Field.Reset()
		return err
	}
	if err := app.Drawer.Prepare(res.Mesh, buf); err != nil {
		app.Field.Reset()
		return fmt.Errorf("prepare renderer: %w", err)
	}
	app.Buffer = buf
	return nil
}

// LoadErr returns the error that ended the mesh load, if any.
func (app *App) LoadErr() error { return app.loadErr }

// Frame runs one frame: pick up a finished load, animate the field and draw
// it. Nothing is drawn while the field is Uninitialized.
func (app *App) Frame(dt time.Duration) error {
	app.PollMesh() // failures are terminal and already logged

	if app.Buffer == nil {
		return nil
	}
	animated, err := app.Field.Frame(app.Buffer, dt)
	if err != nil {
		return fmt.Errorf("animate field: %w", err)
	}
	if !animated {
		return nil
	}
	return app.Drawer.Draw(app.Buffer)
}

// Resize records the new window size in screen coordinates. The field keeps
// the bounds it was built for.
func (app *App) Resize(width, height int) {
	app.View.SetViewport(width, height)
}
