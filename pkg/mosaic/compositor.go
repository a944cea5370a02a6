package mosaic

import(
	"fmt"
	"image"
	"log"
	"math"

	"github.com/skypies/util/histogram"

	"skybrowse/pkg/fgrid"
	"skybrowse/pkg/frame"
)

// Guard against a stray alignment offset exploding the canvas.
const maxCanvasPixels = 1 << 28

// Compose combines the frames into one intensity grid. Frames are
// placed at their offsets within the union bounding box; pixels no
// frame covers stay at background 0.
func Compose(frames []frame.Frame, opts Options) (*Mosaic, error) {
	if len(frames) == 0 {
		return nil, ErrEmptyFrameSet
	}
	if opts.reducer == nil {
		if err := opts.Finalize(); err != nil {
			return nil, err
		}
	}

	// Union bounding box over all offset frames
	bbox := image.Rectangle{}
	for i, fr := range frames {
		if fr.Grid.Dx() <= 0 || fr.Grid.Dy() <= 0 {
			return nil, fmt.Errorf("%w: frame '%s' has no pixels", ErrIncompatibleFrames, fr.Filename())
		}
		r := image.Rectangle{
			Min: fr.Offset,
			Max: fr.Offset.Add(image.Point{fr.Grid.Dx(), fr.Grid.Dy()}),
		}
		if i == 0 {
			bbox = r
		} else {
			bbox = bbox.Union(r)
		}
	}
	if int64(bbox.Dx())*int64(bbox.Dy()) > maxCanvasPixels {
		return nil, fmt.Errorf("%w: union canvas %v too large", ErrIncompatibleFrames, bbox)
	}

	log.Printf("Compositing %d frames onto %dx%d canvas (%s reducer)\n",
		len(frames), bbox.Dx(), bbox.Dy(), opts.ReducerStrategy)

	m := &Mosaic{
		Grid: fgrid.NewFloatGrid(bbox.Dx(), bbox.Dy()),
		opts: opts,
	}

	vals := make([]float64, 0, len(frames))
	weights := make([]float64, 0, len(frames))

	for y:=0; y<bbox.Dy(); y++ {
		for x:=0; x<bbox.Dx(); x++ {
			vals, weights = vals[:0], weights[:0]

			// Canvas coords back to frame coords via each frame's offset
			cx, cy := x+bbox.Min.X, y+bbox.Min.Y
			for i := range frames {
				fx, fy := cx-frames[i].Offset.X, cy-frames[i].Offset.Y
				if fx >= 0 && fy >= 0 && fx < frames[i].Grid.Dx() && fy < frames[i].Grid.Dy() {
					vals = append(vals, frames[i].Grid.Get(fx, fy))
					weights = append(weights, frames[i].ExposureSecs)
				}
			}

			if len(vals) > 0 {
				m.Grid.Set(x, y, opts.reducer(vals, weights))
			}
		}
	}

	return m, nil
}

// Normalize computes the global display range from a percentile clip
// of the non-background intensities, then maps the whole grid into
// 8-bit display values through the configured palette. One global
// pass; the range is never recomputed per tile or per level.
func (m *Mosaic)Normalize() {
	m.ClipLo, m.ClipHi = m.Grid.RangeAtPercentiles(m.opts.ClipLoPct, m.opts.ClipHiPct)
	if m.ClipHi <= m.ClipLo {
		m.ClipHi = m.ClipLo + 1 // flat input, render as black
	}

	hist := histogram.Histogram{NumBuckets: 256, ValMin: 0, ValMax: 256}

	m.Img = image.NewRGBA(image.Rect(0, 0, m.Width(), m.Height()))
	for y:=0; y<m.Height(); y++ {
		for x:=0; x<m.Width(); x++ {
			t := (m.Grid.Get(x, y) - m.ClipLo) / (m.ClipHi - m.ClipLo)
			if t < 0 { t = 0 }
			if t > 1 { t = 1 }
			v := math.Round(t * 255.0)

			hist.Add(histogram.ScalarVal(int(v)))
			m.Img.SetRGBA(x, y, m.opts.palette(t))
		}
	}

	log.Printf("Mosaic normalized: %s, display histogram %v\n", m, hist)
}
