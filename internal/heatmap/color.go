package heatmap

import (
	"fmt"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Ramp is the 12-stop colour scale, dark purple (low) to light cream (high)
var Ramp = []string{
	"#0d0887",
	"#2d0594",
	"#4c02a1",
	"#6a00a8",
	"#8b0aa5",
	"#a91e9d",
	"#c53a8c",
	"#dd5470",
	"#f0744f",
	"#fb9b06",
	"#f7c932",
	"#fcffa4",
}

var rampColors = mustParseRamp(Ramp)

func mustParseRamp(hexes []string) []colorful.Color {
	out := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(fmt.Sprintf("heatmap: bad ramp colour %q: %v", h, err))
		}
		out[i] = c
	}
	return out
}

// Color maps value onto the ramp relative to max. A non-positive max is
// treated as 1.
func Color(value, max float64) string {
	if max <= 0 {
		max = 1
	}
	t := value / max
	if t < 0 || math.IsNaN(t) {
		t = 0
	}
	if t > 1 {
		t = 1
	}

	scaled := t * float64(len(rampColors)-1)
	index := int(math.Floor(scaled))
	if index >= len(rampColors)-1 {
		return Ramp[len(Ramp)-1]
	}
	fraction := scaled - float64(index)
	return rampColors[index].BlendRgb(rampColors[index+1], fraction).Hex()
}
