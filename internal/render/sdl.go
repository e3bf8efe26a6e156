//go:build sdl

package render

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"
)

type sdlSurface struct {
	window      *sdl.Window
	renderer    *sdl.Renderer
	points      []sdl.Point
	shouldClose bool
}

func newSDLSurface(cfg SurfaceConfig) (_ Surface, err error) {
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("init sdl video: %w", err)
	}
	state := &sdlSurface{points: make([]sdl.Point, 0, cfg.Points)}
	defer func() {
		if err != nil {
			_ = state.Close()
		}
	}()

	window, err := sdl.CreateWindow(
		cfg.Title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(cfg.Width), int32(cfg.Height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE,
	)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	state.window = window

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	state.renderer = renderer
	return state, nil
}

func (s *sdlSurface) Draw(points []float32) error {
	w, h, err := s.renderer.GetOutputSize()
	if err != nil {
		return err
	}

	s.points = s.points[:0]
	for i := 0; i+1 < len(points); i += 2 {
		col, row, ok := project(points[i], points[i+1], int(w), int(h))
		if !ok {
			continue
		}
		s.points = append(s.points, sdl.Point{X: int32(col), Y: int32(row)})
	}

	if err := s.renderer.SetDrawColor(0, 0, 0, 255); err != nil {
		return err
	}
	if err := s.renderer.Clear(); err != nil {
		return err
	}
	if err := s.renderer.SetDrawColor(0, 255, 0, 255); err != nil {
		return err
	}
	if len(s.points) > 0 {
		if err := s.renderer.DrawPoints(s.points); err != nil {
			return err
		}
	}
	s.renderer.Present()
	return nil
}

func (s *sdlSurface) PollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			s.shouldClose = true
		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYUP && e.Keysym.Sym == sdl.K_ESCAPE {
				s.shouldClose = true
			}
		}
	}
}

func (s *sdlSurface) ShouldClose() bool { return s.shouldClose }

func (s *sdlSurface) Close() error {
	if s.renderer != nil {
		s.renderer.Destroy()
		s.renderer = nil
	}
	if s.window != nil {
		s.window.Destroy()
		s.window = nil
	}
	sdl.QuitSubSystem(sdl.INIT_VIDEO)
	return nil
}

// SupportsSDL reports whether the sdl backend was compiled in.
func SupportsSDL() bool { return true }
