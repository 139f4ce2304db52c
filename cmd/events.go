package main

import (
	"log"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/irfansharif/canopy/internal/app"
	"github.com/irfansharif/canopy/internal/field"
	"github.com/irfansharif/canopy/internal/memory"
)

// EventHandlers manages all event handling for the application.
type EventHandlers struct {
	application *app.App
}

// NewEventHandlers creates a new event handlers manager.
func NewEventHandlers(application *app.App, window *glfw.Window) *EventHandlers {
	eh := &EventHandlers{application: application}
	eh.SetupCallbacks(window)
	return eh
}

// SetupCallbacks configures all GLFW event callbacks.
func (eh *EventHandlers) SetupCallbacks(window *glfw.Window) {
	window.SetKeyCallback(func(wnd *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		eh.handleKey(wnd, key, action)
	})
	window.SetSizeCallback(func(_ *glfw.Window, newW, newH int) {
		eh.handleResize(newW, newH)
	})
	window.SetFramebufferSizeCallback(func(_ *glfw.Window, newW, newH int) {
		runtimeLogger.Printf("framebuffer resized to %dx%d", newW, newH)
	})
}

// handleResize handles window resize events. The field is not rebuilt; the
// main loop reads the framebuffer size for glViewport every frame.
func (eh *EventHandlers) handleResize(newW, newH int) {
	eh.application.Resize(newW, newH)
	runtimeLogger.Printf("window resized to %dx%d", newW, newH)
}

// handleKey handles keyboard input events.
func (eh *EventHandlers) handleKey(window *glfw.Window, key glfw.Key, action glfw.Action) {
	if action != glfw.Press {
		return
	}

	switch key {
	case glfw.KeyEscape, glfw.KeyQ:
		window.SetShouldClose(true)
	case glfw.KeyS:
		eh.printStats()
	}
}

// printStats logs a snapshot of the field and its instance buffer.
func (eh *EventHandlers) printStats() {
	a := eh.application
	switch s := a.Field.State().(type) {
	case field.Uninitialized:
		if err := a.LoadErr(); err != nil {
			log.Printf("Field unavailable: %v", err)
		} else {
			log.Printf("Field not ready, leaf mesh still loading")
		}
	case field.Ready:
		fs := a.Field.Stats()
		ms := a.Buffer.Stats()
		log.Printf("Field: %dx%d grid, %d leaves, frame %d, t=%.3f, seed %d",
			s.Layout.Columns, s.Layout.Rows, s.Layout.InstanceCount,
			fs.Frames, a.Field.Animator().Time(), a.Field.Animator().Seed())
		log.Printf("Buffer: version %d, %d matrix uploads, %d partial writes rejected",
			ms.Version, ms.Uploads[memory.RegionMatrices], ms.PartialRejects)
		a.Buffer.PrintStats()
	}
}
