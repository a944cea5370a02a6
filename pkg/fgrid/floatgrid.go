package fgrid

import(
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// A FloatGrid is a grid of intensity samples, with some operations
type FloatGrid struct {
	stride int
	values []float64
}

func NewFloatGrid(w, h int) FloatGrid {
	return FloatGrid{
		stride: w,
		values: make([]float64, w*h),
	}
}

func (fg *FloatGrid)Set(x, y int, v float64) { fg.values[fg.stride*y + x] = v }
func (fg *FloatGrid)Get(x, y int) float64    { return fg.values[fg.stride*y + x] }
func (fg *FloatGrid)Dx() int                 { return fg.stride }
func (fg *FloatGrid)Dy() int                 { return len(fg.values) / fg.stride }

func (g1 *FloatGrid)Copy() *FloatGrid {
	g2 := FloatGrid{stride: g1.stride, values:make([]float64, len(g1.values))}
	copy(g2.values, g1.values)
	return &g2
}

// DownSample returns a grid half the size in each dimension (rounding
// up on odd dimensions), area-averaging the values that map into each
// output cell.
func (g1 *FloatGrid)DownSample() FloatGrid {
	width := (g1.Dx() + 1) / 2
	height := (g1.Dy() + 1) / 2
	g2 := NewFloatGrid(width, height)

	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			sum, n := 0.0, 0
			for dy:=0; dy<2; dy++ {
				for dx:=0; dx<2; dx++ {
					sx, sy := 2*x+dx, 2*y+dy
					if sx < g1.Dx() && sy < g1.Dy() {
						sum += g1.Get(sx, sy)
						n++
					}
				}
			}
			g2.Set(x, y, sum/float64(n))
		}
	}

	return g2
}

// RangeAtPercentiles returns the values at the given percentiles
// (in [0,100]) over the non-zero samples in the grid. Zero samples are
// background, not measurements, so they are left out of the ranking.
func (fg *FloatGrid)RangeAtPercentiles(loPct, hiPct float64) (float64, float64) {
	vals := []float64{}
	for i:=0; i<len(fg.values); i++ {
		if v := fg.values[i]; v != 0.0 {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, 0
	}

	sort.Float64s(vals)

	lo := stat.Quantile(loPct/100.0, stat.Empirical, vals, nil)
	hi := stat.Quantile(hiPct/100.0, stat.Empirical, vals, nil)
	return lo, hi
}

func (fg *FloatGrid)Stats() string {
	min := math.MaxFloat64
	max := -1.0 * min

	for i:=0; i<len(fg.values); i++ {
		if fg.values[i] > max { max = fg.values[i] }
		if fg.values[i] < min { min = fg.values[i] }
	}
	return fmt.Sprintf("fg[%dx%d, vals{%f,%f}]", fg.Dx(), fg.Dy(), min, max)
}
