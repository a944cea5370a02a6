package view

import(
	"context"
	"fmt"
	"image"
	"log"
	"math"

	"skybrowse/pkg/pyramid"
)

const zoomStepFactor = 1.2

// Session phases. There is no terminal phase; the session ends when
// its event channel is closed.
type Phase int

const (
	Loading Phase = iota // tiles for the current view in flight
	Ready                // all needed tiles present, frame drawn
)

// Input events. One event, one state change, one synchronous redraw.
type Event interface{ isEvent() }

type PanEvent struct{ DX, DY float64 }
type ZoomEvent struct{ Steps int }          // positive in, negative out
type BrightnessEvent struct{ Delta float64 }
type AddLabelEvent struct {
	ScreenX, ScreenY float64
	Text             string
}
type ToggleLabelsEvent struct{ Show bool }
type ReloadEvent struct{} // refetch tiles, e.g. after a regenerate
type CloseEvent struct{}

func (PanEvent)isEvent()          {}
func (ZoomEvent)isEvent()         {}
func (BrightnessEvent)isEvent()   {}
func (AddLabelEvent)isEvent()     {}
func (ToggleLabelsEvent)isEvent() {}
func (ReloadEvent)isEvent()       {}
func (CloseEvent)isEvent()        {}

type tileKey struct{ col, row int }

type fetchResult struct {
	gen  int
	key  tileKey
	img  image.Image
	err  error
}

// A Session owns one viewport over one published pyramid. It keeps a
// single fetched zoom level (the maximum) and zooms with continuous
// scale; all fields are owned by the event loop goroutine, with tile
// fetches reporting back over a channel.
type Session struct {
	src     TileSource
	md      pyramid.Metadata
	W, H    int // screen surface dims

	State      ViewportState
	Labels     []Label
	ShowLabels bool

	phase   Phase
	tiles   map[tileKey]image.Image
	failed  map[tileKey]bool
	surface *image.RGBA

	// In-flight fetch bookkeeping. gen counts view refreshes; a
	// result stamped with an older gen is stale and discarded.
	gen     int
	pending int
	staged  map[tileKey]image.Image
	stagedF map[tileKey]bool
	fetchc  chan fetchResult
}

// NewSession fetches metadata, centers the view, and blocks until
// every tile of the max zoom level has arrived and the first frame is
// drawn. Rendering never starts with holes in it.
func NewSession(ctx context.Context, src TileSource, screenW, screenH int) (*Session, error) {
	md, err := src.Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("viewer init: %w", err)
	}

	s := &Session{
		src:        src,
		md:         md,
		W:          screenW,
		H:          screenH,
		ShowLabels: true,
		tiles:      map[tileKey]image.Image{},
		failed:     map[tileKey]bool{},
		surface:    image.NewRGBA(image.Rect(0, 0, screenW, screenH)),
		fetchc:     make(chan fetchResult, 64),
	}

	// Initial view: whole mosaic fitted and centered
	scale := math.Min(float64(screenW)/float64(md.Width), float64(screenH)/float64(md.Height))
	s.State = ViewportState{
		Scale:      scale,
		OffsetX:    (float64(md.Width) - float64(screenW)/scale) / 2,
		OffsetY:    (float64(md.Height) - float64(screenH)/scale) / 2,
		Brightness: 1.0,
	}

	s.beginRefresh(ctx)
	// The await-all-tiles barrier
	for s.pending > 0 {
		select {
		case res := <-s.fetchc:
			s.handleFetch(res)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return s, nil
}

func (s *Session)Phase() Phase             { return s.phase }
func (s *Session)Surface() *image.RGBA    { return s.surface }
func (s *Session)Metadata() pyramid.Metadata { return s.md }

// Run pumps events until the channel closes or the context ends.
// This is the whole cooperative loop: inputs and fetch results
// interleave on one goroutine, so state needs no locking.
func (s *Session)Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-s.fetchc:
			s.handleFetch(res)
		case ev, ok := <-events:
			if !ok {
				return
			}
			if _, closed := ev.(CloseEvent); closed {
				return
			}
			s.HandleEvent(ctx, ev)
		}
	}
}

// HandleEvent applies one input event and redraws synchronously.
func (s *Session)HandleEvent(ctx context.Context, ev Event) {
	switch e := ev.(type) {

	case PanEvent:
		s.State.Pan(e.DX, e.DY)

	case ZoomEvent:
		factor := math.Pow(zoomStepFactor, float64(e.Steps))
		s.State.ZoomAbout(factor, float64(s.W)/2, float64(s.H)/2)

	case BrightnessEvent:
		s.State.Brightness += e.Delta
		if s.State.Brightness < 0.2 { s.State.Brightness = 0.2 }
		if s.State.Brightness > 5.0 { s.State.Brightness = 5.0 }

	case AddLabelEvent:
		mx, my := s.State.ScreenToMosaic(e.ScreenX, e.ScreenY)
		s.Labels = append(s.Labels, Label{X: mx, Y: my, Text: e.Text, Visible: true})

	case ToggleLabelsEvent:
		s.ShowLabels = e.Show

	case ReloadEvent:
		s.beginRefresh(ctx)
		return // redraw happens when the new tile set lands
	}

	s.redraw()
}

// beginRefresh starts an async fetch of every tile in the viewed
// level. Results land on s.fetchc stamped with the new generation;
// anything still in flight from an earlier generation is discarded on
// arrival. Failed tiles degrade to placeholders, they never abort the
// session; a later refresh retries them.
func (s *Session)beginRefresh(ctx context.Context) {
	s.gen++
	s.phase = Loading
	s.staged = map[tileKey]image.Image{}
	s.stagedF = map[tileKey]bool{}

	zoom := s.md.MaxZoom
	cols, rows := s.md.TileGrid(zoom)
	s.pending = cols * rows

	gen := s.gen
	for row:=0; row<rows; row++ {
		for col:=0; col<cols; col++ {
			key := tileKey{col, row}
			go func() {
				img, err := s.src.FetchTile(ctx, zoom, key.col, key.row)
				s.fetchc <- fetchResult{gen: gen, key: key, img: img, err: err}
			}()
		}
	}
}

// handleFetch folds one fetch result into the staged tile set. Only
// once the whole set has arrived does it replace the live tiles and
// trigger a redraw - a frame is never drawn from a half-arrived set.
func (s *Session)handleFetch(res fetchResult) {
	if res.gen != s.gen {
		return // superseded view, drop it
	}

	if res.err != nil {
		log.Printf("tile (%d,%d) fetch failed: %v\n", res.key.col, res.key.row, res.err)
		s.stagedF[res.key] = true
	} else {
		s.staged[res.key] = res.img
	}

	s.pending--
	if s.pending == 0 {
		s.tiles = s.staged
		s.failed = s.stagedF
		s.staged, s.stagedF = nil, nil
		s.phase = Ready
		s.redraw()
	}
}
