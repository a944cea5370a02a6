package frame

import(
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"skybrowse/pkg/fgrid"
)

// ErrUnreadableFrame marks a source file that cannot be decoded into a
// usable intensity grid.
var ErrUnreadableFrame = errors.New("unreadable frame")

// A Frame is one raw single-exposure image, loaded into a float
// intensity grid in its native value range. Immutable once loaded; the
// compositor owns normalization.
type Frame struct {
	LoadFilename string
	Grid         fgrid.FloatGrid
	Offset       image.Point // coarse alignment offset within the mosaic canvas

	BitDepth     int
	ExposureSecs float64 // 0 when the source carries no exposure info
	Min, Max     float64
}

func (f Frame)Filename() string {
	return filepath.Base(f.LoadFilename)
}

func (f Frame)String() string {
	return fmt.Sprintf("%s: %dx%d, %d bit, exp %.3fs, vals{%f,%f}, offset%v",
		f.Filename(), f.Grid.Dx(), f.Grid.Dy(), f.BitDepth, f.ExposureSecs, f.Min, f.Max, f.Offset)
}

// trackRange recomputes the frame's min/max from its grid.
func (f *Frame)trackRange() {
	first := true
	for y:=0; y<f.Grid.Dy(); y++ {
		for x:=0; x<f.Grid.Dx(); x++ {
			v := f.Grid.Get(x, y)
			if first || v < f.Min { f.Min = v }
			if first || v > f.Max { f.Max = v }
			first = false
		}
	}
}
