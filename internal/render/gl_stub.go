//go:build nogl

package render

import "errors"

func newGLSurface(SurfaceConfig) (Surface, error) {
	return nil, errors.New("GL backend disabled; rebuild without -tags nogl")
}

// SupportsGL reports whether the gl backend was compiled in.
func SupportsGL() bool { return false }
