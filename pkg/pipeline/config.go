package pipeline

import(
	"fmt"
	"image"
	"os"

	"gopkg.in/yaml.v2"

	"skybrowse/pkg/frame"
	"skybrowse/pkg/mosaic"
)

/* Example config file ...

rendering:
  tilesize: 256
  workers: 4
  reducerstrategy: mean
  colormap: gray
  cliplopct: 0.5
  cliphipct: 99.5
  hdroutputfilename: mosaic.hdr

alignment:
  j8m801010_drz.fits: [  0,  0]
  j8m801020_drz.fits: [ -5,  3]
  j8m801030_drz.fits: [ -7,  6]

exclude:
  - j8m801040_drz.fits

*/

type RenderOptions struct {
	mosaic.Options

	TileSize          int
	Workers           int
	HDROutputFilename string
}

// Maps filenames to [X,Y] coords. Note that origin is top-left, so Y axis goes downwards.
type AlignmentData map[string][2]int

type Config struct {
	Rendering RenderOptions
	Alignment AlignmentData
	Exclude   []string
}

func NewConfig() Config {
	return Config{
		Rendering: RenderOptions{
			Options:  mosaic.NewOptions(),
			TileSize: 256,
			Workers:  4,
		},
		Alignment: AlignmentData{},
		Exclude:   []string{},
	}
}

func LoadConfig(filename string) (Config, error) {
	c := NewConfig()

	if contents, err := os.ReadFile(filename); err != nil {
		return c, fmt.Errorf("read '%s': %v", filename, err)
	} else if err := yaml.Unmarshal(contents, &c); err != nil {
		return c, fmt.Errorf("parse '%s': %v", filename, err)
	}

	return c, c.Finalize()
}

// Finalize does sanity checks and other post-processing
func (c *Config)Finalize() error {
	if c.Rendering.TileSize <= 0 { c.Rendering.TileSize = 256 }
	if c.Rendering.Workers <= 0  { c.Rendering.Workers = 4 }

	return c.Rendering.Options.Finalize()
}

// applyAlignment copies configured per-frame offsets onto the loaded
// frames. Frames not listed keep offset (0,0).
func (c Config)applyAlignment(frames []frame.Frame) {
	for i := range frames {
		if vals, exists := c.Alignment[frames[i].Filename()]; exists {
			frames[i].Offset = image.Point{X: vals[0], Y: vals[1]}
		}
	}
}

func (c Config)filterExcluded(frames []frame.Frame) []frame.Frame {
	if len(c.Exclude) == 0 {
		return frames
	}
	kept := frames[:0]
	for _, fr := range frames {
		excluded := false
		for _, name := range c.Exclude {
			if fr.Filename() == name {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, fr)
		}
	}
	return kept
}
