package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/irfansharif/canopy/internal/app"
	"github.com/irfansharif/canopy/internal/config"
	"github.com/irfansharif/canopy/internal/field"
	"github.com/irfansharif/canopy/internal/memory"
	"github.com/irfansharif/canopy/internal/mesh"
	"github.com/irfansharif/canopy/internal/render"
)

const logFlags = log.Ltime | log.Lshortfile

var runtimeLogger *log.Logger = log.New(io.Discard, "", 0)

var _ app.Surface = (*glfw.Window)(nil)

func init() {
	// OpenGL contexts are tied to specific OS threads - let's pin to just one.
	runtime.LockOSThread()
	log.SetFlags(logFlags)

	if os.Getenv("CANOPY_DEBUG_RUNTIME") == "1" {
		runtimeLogger = log.New(os.Stdout, "[runtime] ", log.Ltime|log.Lmsgprefix)
	}
}

func makeTitle(fps float64, avgFrameTime float64, fieldStats field.Stats, renderStats render.Stats, memStats memory.Stats) string {
	return fmt.Sprintf("Canopy (%.1f FPS, %.2fms/frame, %d leaves, %d triangles, %.2fM triangles/sec, %.0fµs/animate, %.0fµs/sync, %.2fµs/draw, %.2fMiB GPU)",
		fps,
		avgFrameTime,
		fieldStats.Instances,
		renderStats.Triangles,
		fps*float64(renderStats.Triangles)/1000000.0,
		fieldStats.LastAnimateUs,
		fieldStats.LastSyncUs,
		renderStats.LastDrawTimeUs,
		float64(memStats.GPUBytes)/(1024.0*1024.0),
	)
}

func main() {
	cfg := config.Default()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := glfw.Init(); err != nil {
		log.Fatalf("Failed to initialize GLFW: %v", err)
	}
	defer glfw.Terminate()

	// Configure GLFW window hints - use OpenGL 4.1.
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)

	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, "Canopy", nil, nil)
	if err != nil {
		log.Fatalf("Failed to create window: %v", err)
	}
	window.MakeContextCurrent()
	glfw.SwapInterval(1)

	if err := gl.Init(); err != nil {
		log.Fatalf("Failed to initialize OpenGL: %v", err)
	}

	renderer := render.NewRenderer()
	defer renderer.Cleanup()

	application, err := app.NewApp(window, renderer, cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	runtimeLogger.Printf("seed %d, viewport [%.2f, %.2f]x[%.2f, %.2f]", cfg.Seed,
		application.View.Bounds.Left, application.View.Bounds.Right,
		application.View.Bounds.Bottom, application.View.Bounds.Top)

	// The leaf loads in the background; frames draw nothing until it lands.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	application.LoadMesh(ctx, mesh.NewLoader(meshFS(cfg.MeshDir)))

	NewEventHandlers(application, window)

	frameCount, frameTimeSum := 0, 0.0
	lastFPSUpdate := time.Now()
	lastFrame := time.Now()

	// Main loop.
	for !window.ShouldClose() {
		frameStart := time.Now()
		dt := frameStart.Sub(lastFrame)
		lastFrame = frameStart

		w, h := window.GetFramebufferSize()
		gl.Viewport(0, 0, int32(w), int32(h))
		gl.ClearColor(0.95, 0.93, 0.88, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

		if err := application.Frame(dt); err != nil {
			log.Fatalf("Frame failed: %v", err)
		}
		window.SwapBuffers()
		glfw.PollEvents()

		frameTime := time.Since(frameStart).Seconds() * 1000.0 // ms
		frameTimeSum += frameTime

		frameCount++
		now := time.Now()
		if now.Sub(lastFPSUpdate) >= time.Second {
			fps := float64(frameCount) / now.Sub(lastFPSUpdate).Seconds()
			avgFrameTime := frameTimeSum / float64(frameCount)
			frameCount, frameTimeSum = 0, 0.0
			lastFPSUpdate = now

			var memStats memory.Stats
			if application.Buffer != nil {
				memStats = application.Buffer.Stats()
			}
			fieldStats := application.Field.Stats()
			renderStats := renderer.Stats()

			window.SetTitle(makeTitle(fps, avgFrameTime, fieldStats, renderStats, memStats))

			runtimeLogger.Println("=== Performance statistics ===")
			runtimeLogger.Printf("Frame rate:     %.1f FPS (%.2f ms/frame, %d draw calls, %d culled)", fps, avgFrameTime, renderStats.DrawCalls, renderStats.Culled)
			runtimeLogger.Printf("Leaves:         %d instances, %d triangles", fieldStats.Instances, renderStats.Triangles)
			runtimeLogger.Printf("GPU memory:     %.2f MiB instance data", float64(memStats.GPUBytes)/(1024.0*1024.0))
			runtimeLogger.Printf("Frame work:     %.0f µs animate, %.0f µs sync, %.2f µs draw", fieldStats.LastAnimateUs, fieldStats.LastSyncUs, renderStats.LastDrawTimeUs)
			runtimeLogger.Printf("Uploads:        %d total, %.2f ms last prepare", renderStats.Uploads, renderStats.LastPrepareTimeMs)
			runtimeLogger.Println("==============================")

			if application.Buffer != nil {
				application.Buffer.PrintStats()
			}
		}
	}
}

// meshFS returns the directory to load leaf documents from, or nil for the
// embedded leaf.
func meshFS(dir string) fs.FS {
	if dir == "" {
		return nil
	}
	return os.DirFS(dir)
}
