package mosaic

import(
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// A PaletteFunc maps a normalized display value in [0,1] to an output
// color.
type PaletteFunc func(t float64) color.RGBA

func GrayPalette(t float64) color.RGBA {
	g := uint8(math.Round(t * 255.0))
	return color.RGBA{g, g, g, 0xff}
}

// HeatPalette is a false-color ramp from deep blue through red to
// white, the usual way to make faint nebulosity visible.
func HeatPalette(t float64) color.RGBA {
	// Hue walks 240 (blue) down to 0 (red); value ramps up so the
	// background stays dark.
	h := 240.0 * (1.0 - t)
	v := 0.15 + 0.85*t
	c := colorful.Hsv(h, 1.0, v)
	r, g, b := c.RGB255()
	return color.RGBA{r, g, b, 0xff}
}
