package tilesrv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"skybrowse/pkg/archive"
	"skybrowse/pkg/pyramid"
)

func buildTestPyramid(t *testing.T, w, h, tileSize int) *pyramid.DiskStore {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 0, 0xff})
		}
	}
	st := pyramid.NewDiskStore(filepath.Join(t.TempDir(), "tiles"))
	if _, err := pyramid.NewBuilder(tileSize, 2).Build(img, st); err != nil {
		t.Fatalf("build pyramid: %v", err)
	}
	return st
}

func newTestServer(t *testing.T, st pyramid.Store) (*httptest.Server, *archive.Catalog, *[]string) {
	t.Helper()
	dir := t.TempDir()
	catalog, err := archive.LoadCatalog(filepath.Join(dir, "catalog.json"))
	if err != nil {
		t.Fatal(err)
	}

	regenerated := &[]string{}
	s := New(Config{
		Store:   st,
		Labels:  NewLabelStore(filepath.Join(dir, "labels.json")),
		Catalog: catalog,
		Regenerate: func(name string) error {
			*regenerated = append(*regenerated, name)
			return nil
		},
		Download: func(ctx context.Context, object, telescope string, maxFiles int) (string, error) {
			return strings.ToLower(object), nil
		},
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, catalog, regenerated
}

func TestMetadataEndpoint(t *testing.T) {
	st := buildTestPyramid(t, 600, 400, 256)
	srv, _, _ := newTestServer(t, st)

	resp, err := http.Get(srv.URL + "/metadata")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("metadata: http %d", resp.StatusCode)
	}

	var md pyramid.Metadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		t.Fatal(err)
	}
	if md.Width != 600 || md.Height != 400 || md.TileSize != 256 || md.MaxZoom != 2 {
		t.Errorf("unexpected metadata: %+v", md)
	}
}

func TestMetadataNotPublished(t *testing.T) {
	st := pyramid.NewDiskStore(filepath.Join(t.TempDir(), "tiles"))
	srv, _, _ := newTestServer(t, st)

	resp, err := http.Get(srv.URL + "/metadata")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("expected 404 before any build, got %d", resp.StatusCode)
	}
}

func TestTileEndpoint(t *testing.T) {
	st := buildTestPyramid(t, 600, 400, 256)
	srv, _, _ := newTestServer(t, st)

	resp, err := http.Get(srv.URL + "/tiles/2/0/0.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("tile: http %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type: %s", ct)
	}

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("tile not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 256 || img.Bounds().Dy() != 256 {
		t.Errorf("tile is %v, want 256x256", img.Bounds())
	}
}

func TestTileOutOfRange(t *testing.T) {
	st := buildTestPyramid(t, 600, 400, 256) // maxZoom 2, level 2 is 3x2 tiles
	srv, _, _ := newTestServer(t, st)

	for _, path := range []string{
		"/tiles/3/0/0.png", // zoom = maxZoom+1
		"/tiles/2/3/0.png", // col out of range
		"/tiles/2/0/2.png", // row out of range
		"/tiles/-1/0/0.png",
		"/tiles/2/0/0",    // missing .png
		"/tiles/2/a/0.png",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != 404 {
			t.Errorf("GET %s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}

func TestEveryInRangeTileServes(t *testing.T) {
	st := buildTestPyramid(t, 520, 300, 256)
	srv, _, _ := newTestServer(t, st)

	md, err := st.ReadMetadata()
	if err != nil {
		t.Fatal(err)
	}
	for z := 0; z <= md.MaxZoom; z++ {
		cols, rows := md.TileGrid(z)
		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				resp, err := http.Get(fmt.Sprintf("%s/tiles/%d/%d/%d.png", srv.URL, z, col, row))
				if err != nil {
					t.Fatal(err)
				}
				resp.Body.Close()
				if resp.StatusCode != 200 {
					t.Fatalf("hole at (%d,%d,%d): http %d", z, col, row, resp.StatusCode)
				}
			}
		}
	}
}

func TestLabelsEndpoint(t *testing.T) {
	st := buildTestPyramid(t, 300, 300, 256)
	srv, _, _ := newTestServer(t, st)

	body := bytes.NewBufferString(`{"x": 120.5, "y": 80.25, "text": "possible nebula"}`)
	resp, err := http.Post(srv.URL+"/labels", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("post label: http %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/labels")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var labels []Label
	if err := json.NewDecoder(resp.Body).Decode(&labels); err != nil {
		t.Fatal(err)
	}
	if len(labels) != 1 || labels[0].Text != "possible nebula" || labels[0].X != 120.5 {
		t.Errorf("unexpected labels: %+v", labels)
	}
}

func TestDatasetEndpoints(t *testing.T) {
	st := buildTestPyramid(t, 300, 300, 256)
	srv, catalog, regenerated := newTestServer(t, st)

	dsDir := t.TempDir()
	if err := catalog.Add(archive.Dataset{Name: "m16", Dir: dsDir}); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/datasets")
	if err != nil {
		t.Fatal(err)
	}
	var list []archive.Summary
	json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if len(list) != 1 || list[0].Name != "m16" {
		t.Fatalf("unexpected dataset list: %+v", list)
	}

	resp, err = http.Post(srv.URL+"/datasets/m16/regenerate", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("regenerate: http %d", resp.StatusCode)
	}
	if len(*regenerated) != 1 || (*regenerated)[0] != "m16" {
		t.Errorf("regenerate hook saw %v", *regenerated)
	}

	resp, err = http.Post(srv.URL+"/datasets/nope/regenerate", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("regenerate unknown dataset: expected 404, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest("DELETE", srv.URL+"/datasets/m16", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("delete: http %d", resp.StatusCode)
	}
	if _, err := os.Stat(dsDir); !os.IsNotExist(err) {
		t.Error("dataset dir should be gone after delete")
	}
}

func TestDownloadEndpoint(t *testing.T) {
	st := buildTestPyramid(t, 300, 300, 256)
	srv, _, _ := newTestServer(t, st)

	body := bytes.NewBufferString(`{"target": "M16", "telescope": "HST", "max_files": 5}`)
	resp, err := http.Post(srv.URL+"/download", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("download: http %d", resp.StatusCode)
	}
	var out map[string]string
	json.NewDecoder(resp.Body).Decode(&out)
	if out["name"] != "m16" {
		t.Errorf("expected dataset name m16, got %q", out["name"])
	}
}
