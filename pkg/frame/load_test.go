package frame

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestLoadImageFileBitDepth(t *testing.T) {
	dir := t.TempDir()

	img8 := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img8.Pix {
		img8.Pix[i] = 0x80
	}
	path8 := filepath.Join(dir, "eight.png")
	writePNG(t, path8, img8)

	img16 := image.NewGray16(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img16.SetGray16(x, y, color.Gray16{Y: 0x8000})
		}
	}
	path16 := filepath.Join(dir, "sixteen.png")
	writePNG(t, path16, img16)

	fr8, err := LoadImageFile(path8)
	if err != nil {
		t.Fatalf("load 8-bit: %v", err)
	}
	if fr8.BitDepth != 8 {
		t.Errorf("8-bit PNG loaded with BitDepth %d", fr8.BitDepth)
	}

	fr16, err := LoadImageFile(path16)
	if err != nil {
		t.Fatalf("load 16-bit: %v", err)
	}
	if fr16.BitDepth != 16 {
		t.Errorf("16-bit grayscale PNG loaded with BitDepth %d", fr16.BitDepth)
	}
}
