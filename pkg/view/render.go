package view

import(
	"image"
	"image/color"

	"github.com/fogleman/gg"
)

var placeholderGray = color.RGBA{0x30, 0x30, 0x30, 0xff}

// redraw composites the current tile set onto the session surface:
// clear to black, draw tiles under the viewport transform, apply the
// brightness filter, then overlay labels. Brightness touches only the
// surface, never the cached tiles, and labels land after it so
// annotation ink stays constant.
func (s *Session)redraw() {
	dc := gg.NewContextForRGBA(s.surface)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	// Mosaic -> screen: scale then translate, matching ScreenToMosaic
	dc.Scale(s.State.Scale, s.State.Scale)
	dc.Translate(-s.State.OffsetX, -s.State.OffsetY)

	ts := float64(s.md.TileSize)
	cols, rows := s.md.TileGrid(s.md.MaxZoom)
	for row:=0; row<rows; row++ {
		for col:=0; col<cols; col++ {
			key := tileKey{col, row}
			if img, ok := s.tiles[key]; ok {
				dc.DrawImage(img, col*s.md.TileSize, row*s.md.TileSize)
			} else if s.failed[key] {
				dc.SetColor(placeholderGray)
				dc.DrawRectangle(float64(col)*ts, float64(row)*ts, ts, ts)
				dc.Fill()
			}
		}
	}

	applyBrightness(s.surface, s.State.Brightness)

	if s.ShowLabels {
		s.drawLabels()
	}
}

// applyBrightness is a pure display-time multiply over the surface.
func applyBrightness(img *image.RGBA, b float64) {
	if b == 1.0 {
		return
	}
	pix := img.Pix
	for i:=0; i<len(pix); i+=4 {
		pix[i+0] = scaleByte(pix[i+0], b)
		pix[i+1] = scaleByte(pix[i+1], b)
		pix[i+2] = scaleByte(pix[i+2], b)
	}
}

func scaleByte(v uint8, b float64) uint8 {
	out := float64(v) * b
	if out > 255 {
		return 255
	}
	return uint8(out + 0.5)
}

func (s *Session)drawLabels() {
	dc := gg.NewContextForRGBA(s.surface)
	for _, l := range s.Labels {
		if !l.Visible {
			continue
		}
		sx, sy := s.State.MosaicToScreen(l.X, l.Y)
		if sx < 0 || sy < 0 || sx >= float64(s.W) || sy >= float64(s.H) {
			continue
		}
		dc.SetRGB(1, 1, 0)
		dc.DrawCircle(sx, sy, 3)
		dc.Fill()
		dc.DrawStringAnchored(l.Text, sx+6, sy, 0, 0.35)
	}
}
