//go:build !nogl

package render

import (
	"fmt"

	"github.com/go-gl/gl/v2.1/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

const floatSize = 4

// glSurface draws through a GLFW window and a legacy GL vertex buffer.
// All methods must be called from the goroutine that created it, with the
// OS thread locked.
type glSurface struct {
	window *glfw.Window
	vbo    uint32
	points int
}

func newGLSurface(cfg SurfaceConfig) (_ Surface, err error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("init glfw: %w", err)
	}
	defer func() {
		if err != nil {
			glfw.Terminate()
		}
	}()

	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.Samples, 8)
	glfw.WindowHint(glfw.ContextVersionMajor, 2)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)

	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	defer func() {
		if err != nil {
			window.Destroy()
		}
	}()

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Release {
			w.SetShouldClose(true)
		}
	})
	window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		gl.Viewport(0, 0, int32(width), int32(height))
	})

	if monitor := glfw.GetPrimaryMonitor(); monitor != nil {
		if mode := monitor.GetVideoMode(); mode != nil {
			w, h := window.GetSize()
			window.SetPos((mode.Width-w)/2, (mode.Height-h)/2)
		}
	}

	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("init gl: %w", err)
	}
	glfw.SwapInterval(1)

	fbw, fbh := window.GetFramebufferSize()
	gl.Viewport(0, 0, int32(fbw), int32(fbh))
	gl.ClearColor(0, 0, 0, 1)
	gl.PointSize(1)

	zero := make([]float32, cfg.Points*2)
	var vbo uint32
	gl.GenBuffers(1, &vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(zero)*floatSize, gl.Ptr(zero), gl.STREAM_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	window.Show()

	return &glSurface{window: window, vbo: vbo, points: cfg.Points}, nil
}

func (s *glSurface) Draw(points []float32) error {
	n := len(points) / 2
	if n > s.points {
		n = s.points
	}

	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	gl.BindBuffer(gl.ARRAY_BUFFER, s.vbo)
	if n > 0 {
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, n*2*floatSize, gl.Ptr(points))
	}

	gl.Color4f(0, 1, 0, 1)
	gl.VertexPointer(2, gl.FLOAT, 0, nil)
	gl.EnableClientState(gl.VERTEX_ARRAY)
	gl.DrawArrays(gl.POINTS, 0, int32(n))
	gl.DisableClientState(gl.VERTEX_ARRAY)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	s.window.SwapBuffers()
	return nil
}

// PollEvents runs GLFW callbacks; Escape is handled by the key callback.
func (s *glSurface) PollEvents() {
	glfw.PollEvents()
}

func (s *glSurface) ShouldClose() bool {
	return s.window.ShouldClose()
}

// Close releases the buffer, the window and GLFW, in that order.
func (s *glSurface) Close() error {
	if s.window == nil {
		return nil
	}
	gl.DeleteBuffers(1, &s.vbo)
	s.window.Destroy()
	s.window = nil
	glfw.Terminate()
	return nil
}

// SupportsGL reports whether the gl backend was compiled in.
func SupportsGL() bool { return true }
