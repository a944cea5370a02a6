package view

// ViewportState is the continuous pan/zoom/brightness state of one
// viewing session. Single-owner: only the session's event loop
// mutates it.
type ViewportState struct {
	Scale      float64
	OffsetX    float64 // mosaic coords of the screen's top-left corner
	OffsetY    float64
	Brightness float64
}

// A Label is an annotation anchored in mosaic pixel coordinates, so
// it stays over the same piece of sky under pan and zoom.
type Label struct {
	X, Y    float64
	Text    string
	Visible bool
}

// ScreenToMosaic maps a screen position into mosaic coordinates.
// The inverse of MosaicToScreen; both are scale-compensated so a drag
// covers the same mosaic distance at every zoom.
func (v ViewportState)ScreenToMosaic(sx, sy float64) (float64, float64) {
	return sx/v.Scale + v.OffsetX, sy/v.Scale + v.OffsetY
}

func (v ViewportState)MosaicToScreen(mx, my float64) (float64, float64) {
	return (mx - v.OffsetX) * v.Scale, (my - v.OffsetY) * v.Scale
}

// Pan moves the view by a cursor delta in screen pixels. Dividing by
// Scale keeps drag distance consistent across zoom levels.
func (v *ViewportState)Pan(dx, dy float64) {
	v.OffsetX -= dx / v.Scale
	v.OffsetY -= dy / v.Scale
}

// ZoomAbout multiplies Scale by factor, keeping the mosaic point
// under (sx,sy) fixed on screen.
func (v *ViewportState)ZoomAbout(factor, sx, sy float64) {
	mx, my := v.ScreenToMosaic(sx, sy)
	v.Scale *= factor
	v.OffsetX = mx - sx/v.Scale
	v.OffsetY = my - sy/v.Scale
}
