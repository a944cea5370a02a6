package frame

import(
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/tiff"

	"skybrowse/pkg/fgrid"
)

// LoadAll loads every supported frame under the given paths,
// recursing into directories. Files are visited in sorted order so a
// dataset always loads the same way.
func LoadAll(paths ...string) ([]Frame, error) {
	frames := []Frame{}

	for _, arg := range paths {
		item, err := os.Stat(arg)

		switch {

		case err != nil:
			return nil, fmt.Errorf("load %s: %w", arg, err)

		case item.IsDir():
			contents, err := os.ReadDir(arg)
			if err != nil {
				return nil, fmt.Errorf("readdir %s: %w", arg, err)
			}
			names := []string{}
			for _, content := range contents {
				names = append(names, content.Name())
			}
			sort.Strings(names)
			for _, name := range names {
				sub, err := LoadAll(filepath.Join(arg, name))
				if err != nil {
					return nil, err
				}
				frames = append(frames, sub...)
			}

		default:
			fr, ok, err := LoadFile(arg)
			if err != nil {
				return nil, fmt.Errorf("loadfile %s: %w", arg, err)
			}
			if ok {
				frames = append(frames, fr)
			}
		}
	}

	return frames, nil
}

// LoadFile loads a single frame, dispatching on extension. The bool
// is false for file types we don't treat as frames.
func LoadFile(filename string) (Frame, bool, error) {
	switch strings.ToLower(filepath.Ext(filename)) {

	case ".fits", ".fit", ".fts":
		fr, err := LoadFITS(filename)
		return fr, err == nil, err

	case ".tif", ".tiff", ".png", ".jpg", ".jpeg":
		fr, err := LoadImageFile(filename)
		return fr, err == nil, err
	}

	return Frame{}, false, nil
}

// LoadImageFile loads a TIFF/PNG/JPEG frame. EXIF exposure time is
// picked up when present, so the weighted-mean reducer has something
// to work with; frames without EXIF just get weight 1.
func LoadImageFile(filename string) (Frame, error) {
	fr := Frame{LoadFilename: filename}

	// First pass: EXIF metadata. Entirely optional.
	if reader, err := os.Open(filename); err == nil {
		if ex, err := exif.Decode(reader); err == nil {
			if tag, err := ex.Get(exif.ExposureTime); err == nil {
				if num, denom, err := tag.Rat2(0); err == nil && denom != 0 {
					fr.ExposureSecs = float64(num) / float64(denom)
				}
			}
		}
		reader.Close()
	}

	// Second pass: the image data
	reader, err := os.Open(filename)
	if err != nil {
		return fr, fmt.Errorf("open+r img '%s': %w", filename, err)
	}
	defer reader.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tif", ".tiff":
		img, err = tiff.Decode(reader)
	case ".png":
		img, err = png.Decode(reader)
	default:
		img, err = jpeg.Decode(reader)
	}
	if err != nil {
		return fr, fmt.Errorf("%w: decode '%s': %v", ErrUnreadableFrame, filename, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return fr, fmt.Errorf("%w: '%s' has no pixels", ErrUnreadableFrame, filename)
	}

	fr.Grid = fgrid.NewFloatGrid(bounds.Dx(), bounds.Dy())
	fr.BitDepth = bitDepthOf(img)
	for y:=bounds.Min.Y; y<bounds.Max.Y; y++ {
		for x:=bounds.Min.X; x<bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			lum := 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)
			fr.Grid.Set(x-bounds.Min.X, y-bounds.Min.Y, lum)
		}
	}

	fr.trackRange()
	log.Printf("Loaded frame %s\n", fr)
	return fr, nil
}

// bitDepthOf reports the source sample depth from the decoded color
// model. The grid always holds values in RGBA()'s 16-bit range; this
// records what the file actually carried.
func bitDepthOf(img image.Image) int {
	switch img.ColorModel() {
	case color.Gray16Model, color.RGBA64Model, color.NRGBA64Model:
		return 16
	}
	return 8
}
