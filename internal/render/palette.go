package render

import "strconv"

// densityPalette orders glyphs by how many points landed in a terminal cell.
var densityPalette = []rune(" .:+*#@")

// greenRamp holds 256-color indices from dim to bright green.
var greenRamp = []int{22, 28, 34, 40, 46, 82, 118}

var (
	resetANSI       = "\x1b[0m"
	precomputedANSI [256]string
)

func init() {
	for i := range precomputedANSI {
		precomputedANSI[i] = "\x1b[38;5;" + strconv.Itoa(i) + "m"
	}
}

// densityLevel maps a hit count to an index into densityPalette, where the
// densest cell of the frame gets the last glyph.
func densityLevel(hits, maxHits int) int {
	if hits <= 0 || maxHits <= 0 {
		return 0
	}
	last := len(densityPalette) - 1
	level := (hits*last + maxHits - 1) / maxHits
	return clampInt(level, 1, last)
}

func colorCode(level int) string {
	idx := clampInt(level-1, 0, len(greenRamp)-1)
	return precomputedANSI[greenRamp[idx]]
}
