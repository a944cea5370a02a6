package mosaic

import(
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
)

// The raw mosaic grid is high dynamic range; exporting it as Radiance
// RGBE lets you inspect the un-normalized intensities in an HDR tool.

// Implement image.Image
func (m *Mosaic)ColorModel() color.Model { return hdrcolor.RGBModel }
func (m *Mosaic)Bounds() image.Rectangle { return image.Rect(0, 0, m.Width(), m.Height()) }
func (m *Mosaic)At(x, y int) color.Color { return m.HDRAt(x, y) }

// Implement hdr.Image
func (m *Mosaic)HDRAt(x, y int) hdrcolor.Color {
	v := m.Grid.Get(x, y)
	return hdrcolor.RGB{R: v, G: v, B: v}
}
func (m *Mosaic)Size() int { return m.Width() * m.Height() }

func WriteHDR(img hdr.Image, filename string) error {
	if writer, err := os.Create(filename); err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	} else {
		defer writer.Close()
		return rgbe.Encode(writer, img)
	}
}
