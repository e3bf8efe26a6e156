// Package render draws the waveform buffer as an X/Y point cloud.
package render

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
)

// ErrRendererQuit is returned by a Surface when the user asked to quit.
var ErrRendererQuit = errors.New("renderer quit")

// Surface is a window (or terminal) that can show one frame of points.
type Surface interface {
	// Draw uploads points, laid out as (x, y) pairs in [-1, 1], draws
	// len(points)/2 points and presents the frame.
	Draw(points []float32) error
	// PollEvents processes pending input; close requests are reported by
	// ShouldClose.
	PollEvents()
	ShouldClose() bool
	Close() error
}

// SurfaceConfig configures a new Surface.
type SurfaceConfig struct {
	Title  string
	Width  int
	Height int
	// Points is the number of points every Draw call carries.
	Points int
	// UseANSI enables color output on the terminal surface.
	UseANSI bool
	Log     *log.Logger
}

const (
	BackendGL       = "gl"
	BackendSDL      = "sdl"
	BackendTerminal = "terminal"
)

var backends = map[string]func(SurfaceConfig) (Surface, error){
	BackendGL:       newGLSurface,
	BackendSDL:      newSDLSurface,
	BackendTerminal: newTerminalSurface,
}

// BackendNames returns the available surface identifiers.
func BackendNames() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the surface registered under name.
func New(name string, cfg SurfaceConfig) (Surface, error) {
	key := strings.ToLower(name)
	if key == "" {
		key = BackendGL
	}
	ctor, ok := backends[key]
	if !ok {
		return nil, fmt.Errorf("unknown render backend %q (want one of %s)", name, strings.Join(BackendNames(), ", "))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d height=%d", cfg.Width, cfg.Height)
	}
	if cfg.Points <= 0 {
		return nil, fmt.Errorf("invalid point count %d", cfg.Points)
	}
	if cfg.Title == "" {
		cfg.Title = "loopscope"
	}
	return ctor(cfg)
}
