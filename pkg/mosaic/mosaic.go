package mosaic

import(
	"errors"
	"fmt"
	"image"

	"skybrowse/pkg/fgrid"
)

var(
	ErrEmptyFrameSet      = errors.New("no frames to composite")
	ErrIncompatibleFrames = errors.New("frames cannot be reconciled into one canvas")
)

// A Mosaic is the single combined intensity grid built from one or
// more frames, plus the 8-bit display rendition derived from it. The
// display range is computed once, globally, and reused for every
// pyramid level - per-tile normalization would put brightness seams
// between tiles.
type Mosaic struct {
	Grid           fgrid.FloatGrid
	Img            *image.RGBA
	ClipLo, ClipHi float64

	opts Options
}

func (m *Mosaic)Width() int  { return m.Grid.Dx() }
func (m *Mosaic)Height() int { return m.Grid.Dy() }

func (m *Mosaic)String() string {
	return fmt.Sprintf("Mosaic[%dx%d, clip{%f,%f}]", m.Width(), m.Height(), m.ClipLo, m.ClipHi)
}
