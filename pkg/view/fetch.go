package view

import(
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"

	"skybrowse/pkg/pyramid"
)

// A TileSource is where the viewer gets its metadata and tiles from:
// an HTTP tile server in the browser-equivalent setup, or a local
// store when viewing directly off disk.
type TileSource interface {
	Metadata(ctx context.Context) (pyramid.Metadata, error)
	FetchTile(ctx context.Context, zoom, col, row int) (image.Image, error)
}

// StoreSource reads straight from a pyramid store.
type StoreSource struct {
	St pyramid.Store
}

func (ss StoreSource)Metadata(ctx context.Context) (pyramid.Metadata, error) {
	return ss.St.ReadMetadata()
}

func (ss StoreSource)FetchTile(ctx context.Context, zoom, col, row int) (image.Image, error) {
	data, err := ss.St.ReadTile(zoom, col, row)
	if err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(data))
}

// HTTPSource fetches from a running tile server.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

func (hs HTTPSource)client() *http.Client {
	if hs.Client != nil {
		return hs.Client
	}
	return http.DefaultClient
}

func (hs HTTPSource)Metadata(ctx context.Context) (pyramid.Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", hs.BaseURL+"/metadata", nil)
	if err != nil {
		return pyramid.Metadata{}, err
	}
	resp, err := hs.client().Do(req)
	if err != nil {
		return pyramid.Metadata{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return pyramid.Metadata{}, pyramid.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return pyramid.Metadata{}, fmt.Errorf("metadata: http %d", resp.StatusCode)
	}

	md := pyramid.Metadata{}
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return pyramid.Metadata{}, fmt.Errorf("metadata: %w", err)
	}
	return md, nil
}

func (hs HTTPSource)FetchTile(ctx context.Context, zoom, col, row int) (image.Image, error) {
	u := fmt.Sprintf("%s/tiles/%d/%d/%d.png", hs.BaseURL, zoom, col, row)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := hs.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, pyramid.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile (%d,%d,%d): http %d", zoom, col, row, resp.StatusCode)
	}
	return png.Decode(resp.Body)
}
