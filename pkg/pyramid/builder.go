package pyramid

import(
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log"
	"sync"
)

var(
	ErrDownsample = errors.New("cannot build pyramid from degenerate mosaic")
	ErrPersist    = errors.New("tile persist failed")
)

// Builder slices a mosaic into a quad-tree of PNG tiles. The same
// input always produces byte-identical output: downsampling is plain
// integer area averaging and the PNG encoder settings are pinned.
type Builder struct {
	TileSize int
	Workers  int // parallel tile encoders per level
}

func NewBuilder(tileSize, workers int) Builder {
	if tileSize <= 0 { tileSize = 256 }
	if workers <= 0  { workers = 4 }
	return Builder{TileSize: tileSize, Workers: workers}
}

// Build writes every level of the pyramid into the store, metadata
// last, and commits. Any failure aborts the whole build; nothing is
// published and a previously committed pyramid stays as it was.
func (b Builder)Build(img image.Image, st Store) (Metadata, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w <= 0 || h <= 0 {
		return Metadata{}, fmt.Errorf("%w: %dx%d", ErrDownsample, w, h)
	}

	md := Metadata{
		TileSize: b.TileSize,
		Width:    w,
		Height:   h,
		MaxZoom:  MaxZoomFor(w, h, b.TileSize),
	}
	log.Printf("Building %s\n", md)

	level := toRGBA(img)

	// Levels are strictly sequential: each level's input is the
	// previous level's output.
	for z := md.MaxZoom; z >= 0; z-- {
		if err := b.writeLevel(st, md, z, level); err != nil {
			st.Abort()
			return Metadata{}, err
		}
		if z > 0 {
			level = downsampleRGBA(level)
		}
	}

	if err := st.WriteMetadata(md); err != nil {
		st.Abort()
		return Metadata{}, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := st.Commit(); err != nil {
		st.Abort()
		return Metadata{}, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	log.Printf("Pyramid published: %s\n", md)
	return md, nil
}

// writeLevel encodes and persists every tile of one level. Tiles are
// independently addressed so they fan out across workers.
func (b Builder)writeLevel(st Store, md Metadata, z int, level *image.RGBA) error {
	cols, rows := md.TileGrid(z)

	type coord struct{ col, row int }
	jobs := make(chan coord, cols*rows)
	for row:=0; row<rows; row++ {
		for col:=0; col<cols; col++ {
			jobs <- coord{col, row}
		}
	}
	close(jobs)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i:=0; i<b.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				tile := b.extractTile(level, job.col, job.row)

				var buf bytes.Buffer
				enc := png.Encoder{CompressionLevel: png.DefaultCompression}
				if err := enc.Encode(&buf, tile); err == nil {
					err = st.WriteTile(z, job.col, job.row, buf.Bytes())
					if err == nil {
						continue
					}
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("%w: tile (%d,%d,%d): %v", ErrPersist, z, job.col, job.row, err)
					}
					mu.Unlock()
				} else {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("%w: encode tile (%d,%d,%d): %v", ErrPersist, z, job.col, job.row, err)
					}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	return firstErr
}

// extractTile cuts one tileSize^2 tile out of a level, padding edge
// tiles with opaque background so every tile is the same size.
func (b Builder)extractTile(level *image.RGBA, col, row int) *image.RGBA {
	tile := image.NewRGBA(image.Rect(0, 0, b.TileSize, b.TileSize))
	draw.Draw(tile, tile.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	src := image.Rect(col*b.TileSize, row*b.TileSize, (col+1)*b.TileSize, (row+1)*b.TileSize)
	src = src.Intersect(level.Bounds())
	if !src.Empty() {
		dst := image.Rect(0, 0, src.Dx(), src.Dy())
		draw.Draw(tile, dst, level, src.Min, draw.Src)
	}
	return tile
}

// downsampleRGBA halves a level with per-channel area averaging
// (rounding to nearest), never nearest-pixel sampling.
func downsampleRGBA(src *image.RGBA) *image.RGBA {
	w := (src.Bounds().Dx() + 1) / 2
	h := (src.Bounds().Dy() + 1) / 2
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	for y:=0; y<h; y++ {
		for x:=0; x<w; x++ {
			var r, g, b, a, n uint32
			for dy:=0; dy<2; dy++ {
				for dx:=0; dx<2; dx++ {
					sx, sy := 2*x+dx, 2*y+dy
					if sx < src.Bounds().Dx() && sy < src.Bounds().Dy() {
						c := src.RGBAAt(sx, sy)
						r += uint32(c.R)
						g += uint32(c.G)
						b += uint32(c.B)
						a += uint32(c.A)
						n++
					}
				}
			}
			dst.SetRGBA(x, y, color.RGBA{
				uint8((r + n/2) / n),
				uint8((g + n/2) / n),
				uint8((b + n/2) / n),
				uint8((a + n/2) / n),
			})
		}
	}

	return dst
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}
