package render

import "math"

// project maps a point in normalized device coordinates ([-1, 1] on both
// axes, y up) onto a width x height grid with row 0 at the top. Points
// outside the unit square are reported as not visible.
func project(x, y float32, width, height int) (col, row int, ok bool) {
	if width <= 0 || height <= 0 {
		return 0, 0, false
	}
	if math.IsNaN(float64(x)) || math.IsNaN(float64(y)) || x < -1 || x > 1 || y < -1 || y > 1 {
		return 0, 0, false
	}
	col = int((x+1)*0.5*float32(width-1) + 0.5)
	row = int((1-y)*0.5*float32(height-1) + 0.5)
	return clampInt(col, 0, width-1), clampInt(row, 0, height-1), true
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
