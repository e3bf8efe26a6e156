//go:build !sdl

package render

import "errors"

func newSDLSurface(SurfaceConfig) (Surface, error) {
	return nil, errors.New("SDL backend not enabled; rebuild with -tags sdl")
}

// SupportsSDL reports whether the sdl backend was compiled in.
func SupportsSDL() bool { return false }
