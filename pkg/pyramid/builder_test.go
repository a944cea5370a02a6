package pyramid

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"testing"
)

// memStore is an in-memory Store for exercising the builder.
type memStore struct {
	mu        sync.Mutex
	staged    map[string][]byte
	live      map[string][]byte
	md        Metadata
	liveMD    bool
	committed bool

	failAfter int // fail the Nth tile write when > 0
	writes    int
}

func newMemStore() *memStore {
	return &memStore{staged: map[string][]byte{}, live: map[string][]byte{}}
}

func tileKey(z, c, r int) string { return fmt.Sprintf("%d/%d_%d", z, c, r) }

func (ms *memStore)WriteTile(zoom, col, row int, data []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.writes++
	if ms.failAfter > 0 && ms.writes >= ms.failAfter {
		return errors.New("disk full")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	ms.staged[tileKey(zoom, col, row)] = cp
	return nil
}

func (ms *memStore)WriteMetadata(md Metadata) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.md = md
	return nil
}

func (ms *memStore)Commit() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.live = ms.staged
	ms.staged = map[string][]byte{}
	ms.liveMD = true
	ms.committed = true
	return nil
}

func (ms *memStore)Abort() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.staged = map[string][]byte{}
}

func (ms *memStore)ReadTile(zoom, col, row int) ([]byte, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	data, ok := ms.live[tileKey(zoom, col, row)]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (ms *memStore)ReadMetadata() (Metadata, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if !ms.liveMD {
		return Metadata{}, ErrNotFound
	}
	return ms.md, nil
}

func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 0, 0xff})
		}
	}
	return img
}

func TestMaxZoomFor(t *testing.T) {
	cases := []struct {
		w, h, tile, want int
	}{
		{2048, 2048, 256, 3},
		{256, 256, 256, 0},
		{100, 100, 256, 0},
		{257, 100, 256, 1},
		{8192, 4096, 256, 5},
	}
	for _, c := range cases {
		if got := MaxZoomFor(c.w, c.h, c.tile); got != c.want {
			t.Errorf("MaxZoomFor(%d,%d,%d) = %d, want %d", c.w, c.h, c.tile, got, c.want)
		}
	}
}

func TestLevelArithmetic2048(t *testing.T) {
	md := Metadata{TileSize: 256, Width: 2048, Height: 2048, MaxZoom: 3}

	w, h := md.LevelDims(3)
	if w != 2048 || h != 2048 {
		t.Errorf("level 3: got %dx%d", w, h)
	}
	cols, rows := md.TileGrid(3)
	if cols*rows != 64 {
		t.Errorf("level 3 should have 64 tiles, got %d", cols*rows)
	}

	w, h = md.LevelDims(0)
	if w != 256 || h != 256 {
		t.Errorf("level 0: got %dx%d, want 256x256", w, h)
	}
	cols, rows = md.TileGrid(0)
	if cols != 1 || rows != 1 {
		t.Errorf("level 0 should be a single tile, got %dx%d", cols, rows)
	}
}

func TestBuildCompleteGrid(t *testing.T) {
	st := newMemStore()
	b := NewBuilder(256, 2)

	md, err := b.Build(gradientImage(600, 400), st)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if md.MaxZoom != 2 {
		t.Fatalf("expected maxZoom 2 for 600x400/256, got %d", md.MaxZoom)
	}

	// Every in-range coordinate resolves to a tile of exactly
	// tileSize x tileSize - no gaps.
	for z := 0; z <= md.MaxZoom; z++ {
		cols, rows := md.TileGrid(z)
		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				data, err := st.ReadTile(z, col, row)
				if err != nil {
					t.Fatalf("missing tile (%d,%d,%d): %v", z, col, row, err)
				}
				img, err := png.Decode(bytes.NewReader(data))
				if err != nil {
					t.Fatalf("tile (%d,%d,%d) not a PNG: %v", z, col, row, err)
				}
				if img.Bounds().Dx() != 256 || img.Bounds().Dy() != 256 {
					t.Fatalf("tile (%d,%d,%d) is %dx%d, want 256x256",
						z, col, row, img.Bounds().Dx(), img.Bounds().Dy())
				}
			}
		}
	}

	// Level geometry invariant: level z is ceil(level z+1 / 2)
	for z := 0; z < md.MaxZoom; z++ {
		w0, h0 := md.LevelDims(z)
		w1, h1 := md.LevelDims(z + 1)
		if w0 != (w1+1)/2 || h0 != (h1+1)/2 {
			t.Errorf("level %d dims %dx%d not half of level %d dims %dx%d", z, w0, h0, z+1, w1, h1)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	img := gradientImage(520, 310)

	st1, st2 := newMemStore(), newMemStore()
	b := NewBuilder(256, 3)

	if _, err := b.Build(img, st1); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := b.Build(img, st2); err != nil {
		t.Fatalf("second build: %v", err)
	}

	if len(st1.live) != len(st2.live) {
		t.Fatalf("tile counts differ: %d vs %d", len(st1.live), len(st2.live))
	}
	for key, data := range st1.live {
		if !bytes.Equal(data, st2.live[key]) {
			t.Errorf("tile %s differs between builds", key)
		}
	}
}

func TestBuildAbortsOnPersistFailure(t *testing.T) {
	st := newMemStore()
	st.failAfter = 3

	b := NewBuilder(256, 2)
	_, err := b.Build(gradientImage(600, 400), st)
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if st.committed {
		t.Error("failed build must not commit")
	}
	if _, err := st.ReadMetadata(); !errors.Is(err, ErrNotFound) {
		t.Error("failed build must not publish metadata")
	}
}

func TestBuildDegenerateMosaic(t *testing.T) {
	st := newMemStore()
	b := NewBuilder(256, 1)
	_, err := b.Build(image.NewRGBA(image.Rect(0, 0, 0, 0)), st)
	if !errors.Is(err, ErrDownsample) {
		t.Errorf("expected ErrDownsample, got %v", err)
	}
}

func TestDownsampleAreaAverage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.SetRGBA(0, 0, color.RGBA{0, 0, 0, 0xff})
	src.SetRGBA(1, 0, color.RGBA{100, 0, 0, 0xff})
	src.SetRGBA(0, 1, color.RGBA{100, 0, 0, 0xff})
	src.SetRGBA(1, 1, color.RGBA{200, 0, 0, 0xff})

	dst := downsampleRGBA(src)
	if dst.Bounds().Dx() != 1 || dst.Bounds().Dy() != 1 {
		t.Fatalf("expected 1x1, got %v", dst.Bounds())
	}
	if got := dst.RGBAAt(0, 0).R; got != 100 {
		t.Errorf("expected area-averaged R=100, got %d", got)
	}
}

func TestDiskStoreRoundTrip(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tiles")
	ds := NewDiskStore(root)

	b := NewBuilder(128, 2)
	md, err := b.Build(gradientImage(300, 200), ds)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := ds.ReadMetadata()
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if got != md {
		t.Errorf("metadata round trip: got %+v want %+v", got, md)
	}

	if _, err := ds.ReadTile(md.MaxZoom, 0, 0); err != nil {
		t.Errorf("ReadTile(maxZoom,0,0): %v", err)
	}
	if _, err := ds.ReadTile(md.MaxZoom+1, 0, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound above maxZoom, got %v", err)
	}

	// Rebuilding replaces the published pyramid in place
	if _, err := b.Build(gradientImage(300, 200), ds); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if _, err := ds.ReadMetadata(); err != nil {
		t.Errorf("metadata gone after rebuild: %v", err)
	}
}

func TestActiveStoreSwitch(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(128, 2)

	dsA := NewDiskStore(filepath.Join(dir, "a"))
	mdA, err := b.Build(gradientImage(300, 200), dsA)
	if err != nil {
		t.Fatalf("build a: %v", err)
	}
	dsB := NewDiskStore(filepath.Join(dir, "b"))
	mdB, err := b.Build(gradientImage(520, 130), dsB)
	if err != nil {
		t.Fatalf("build b: %v", err)
	}

	// Nothing selected yet reads as not-published
	as := NewActiveStore(nil)
	if _, err := as.ReadMetadata(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound before Select, got %v", err)
	}
	if _, err := as.ReadTile(0, 0, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound before Select, got %v", err)
	}

	as.Select(dsA)
	if got, err := as.ReadMetadata(); err != nil || got != mdA {
		t.Errorf("after Select(a): got %+v (%v), want %+v", got, err, mdA)
	}

	// Switching serves b's pyramid, leaving a's intact on disk
	as.Select(dsB)
	if got, err := as.ReadMetadata(); err != nil || got != mdB {
		t.Errorf("after Select(b): got %+v (%v), want %+v", got, err, mdB)
	}
	if _, err := as.ReadTile(mdB.MaxZoom, 0, 0); err != nil {
		t.Errorf("ReadTile via active store: %v", err)
	}
	if _, err := dsA.ReadMetadata(); err != nil {
		t.Errorf("a's pyramid disturbed by switching: %v", err)
	}
}
