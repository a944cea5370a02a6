package pyramid

import "fmt"

// Metadata describes a published tile pyramid. The viewer computes
// every tile address from this; it never infers layout from tile
// content.
//
// Zoom levels run 0..MaxZoom, where MaxZoom is native resolution and
// each level below halves it, until the whole image fits in roughly
// one tile.
type Metadata struct {
	TileSize int `json:"tile_size"`
	Width    int `json:"width"`
	Height   int `json:"height"`
	MaxZoom  int `json:"max_zoom"`
}

func (md Metadata)String() string {
	return fmt.Sprintf("Pyramid[%dx%d, tile %d, maxzoom %d]", md.Width, md.Height, md.TileSize, md.MaxZoom)
}

// MaxZoomFor is ceil(log2(maxDim/tileSize)), floored at 0.
func MaxZoomFor(w, h, tileSize int) int {
	maxDim := w
	if h > maxDim { maxDim = h }

	z := 0
	for size := tileSize; size < maxDim; size *= 2 {
		z++
	}
	return z
}

// LevelDims returns the pixel dimensions of zoom level z.
func (md Metadata)LevelDims(z int) (int, int) {
	shift := uint(md.MaxZoom - z)
	return ceilShift(md.Width, shift), ceilShift(md.Height, shift)
}

// TileGrid returns how many tile columns and rows level z has.
func (md Metadata)TileGrid(z int) (int, int) {
	w, h := md.LevelDims(z)
	return ceilDiv(w, md.TileSize), ceilDiv(h, md.TileSize)
}

// InRange reports whether (zoom,col,row) addresses a tile that the
// pyramid contains.
func (md Metadata)InRange(zoom, col, row int) bool {
	if zoom < 0 || zoom > md.MaxZoom || col < 0 || row < 0 {
		return false
	}
	cols, rows := md.TileGrid(zoom)
	return col < cols && row < rows
}

func ceilShift(n int, shift uint) int {
	d := 1 << shift
	return (n + d - 1) / d
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
