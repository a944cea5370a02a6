package main

import(
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"skybrowse/pkg/archive"
	"skybrowse/pkg/pipeline"
	"skybrowse/pkg/pyramid"
	"skybrowse/pkg/tilesrv"
)

var(
	Log *log.Logger

	fAddr string
	fDataDir string
	fTilesDir string
	fConfigFilename string
)

func init() {
	flag.StringVar(&fAddr, "addr", ":8080", "address to serve tiles on")
	flag.StringVar(&fDataDir, "data", "data", "root directory for downloaded datasets and the catalog")
	flag.StringVar(&fTilesDir, "tiles", "tiles", "root directory for per-dataset tile pyramids")
	flag.StringVar(&fConfigFilename, "config", "", "YAML config file (alignment, exclusions, rendering)")
	flag.Parse()

	Log = log.New(os.Stdout,"", log.Ldate|log.Ltime)//log.Lshortfile
	log.Printf("Starting\n")
}

func loadConfig() pipeline.Config {
	if fConfigFilename == "" {
		return pipeline.NewConfig()
	}
	cfg, err := pipeline.LoadConfig(fConfigFilename)
	if err != nil {
		Log.Fatal(err)
	}
	return cfg
}

// Each dataset keeps its own pyramid under the tiles root, so deleting
// or rebuilding one dataset never touches another's tiles.
func tilesDirFor(name string) string {
	return filepath.Join(fTilesDir, name)
}

// mostRecentMosaic picks the dataset to serve on startup: the latest
// download that has a published pyramid.
func mostRecentMosaic(catalog *archive.Catalog) (archive.Dataset, bool) {
	best, found := archive.Dataset{}, false
	for _, sum := range catalog.List() {
		d, ok := catalog.Get(sum.Name)
		if ok && d.HasMosaic() && (!found || d.DownloadedAt.After(best.DownloadedAt)) {
			best, found = d, true
		}
	}
	return best, found
}

func main() {
	if err := os.MkdirAll(fDataDir, 0755); err != nil {
		Log.Fatal(err)
	}

	catalog, err := archive.LoadCatalog(filepath.Join(fDataDir, "downloaded_catalog.json"))
	if err != nil {
		Log.Fatal(err)
	}

	cfg := loadConfig()
	mast := archive.NewClient()

	active := pyramid.NewActiveStore(nil)
	if ds, ok := mostRecentMosaic(catalog); ok {
		log.Printf("Serving existing pyramid for '%s'\n", ds.Name)
		active.Select(pyramid.NewDiskStore(ds.TilesDir))
	}

	s := tilesrv.New(tilesrv.Config{
		Store:   active,
		Labels:  tilesrv.NewLabelStore(filepath.Join(fDataDir, "labels.json")),
		Catalog: catalog,

		Regenerate: func(name string) error {
			ds, ok := catalog.Get(name)
			if !ok {
				return fmt.Errorf("regenerate '%s': no such dataset", name)
			}
			if _, err := pipeline.Regenerate(ds.Dir, ds.TilesDir, cfg); err != nil {
				return err
			}
			active.Select(pyramid.NewDiskStore(ds.TilesDir))
			return nil
		},

		Download: func(ctx context.Context, object, telescope string, maxFiles int) (string, error) {
			name := strings.ToLower(strings.ReplaceAll(object, " ", "_"))
			dsDir := filepath.Join(fDataDir, name)
			tilesDir := tilesDirFor(name)

			files, err := mast.DownloadDataset(ctx, object, telescope, maxFiles, dsDir)
			if err != nil {
				return "", err
			}
			log.Printf("Downloaded %d files for '%s' into '%s'\n", len(files), object, dsDir)

			if err := catalog.Add(archive.Dataset{
				Name:         name,
				Dir:          dsDir,
				TilesDir:     tilesDir,
				Telescope:    telescope,
				FileCount:    len(files),
				DownloadedAt: time.Now().UTC(),
			}); err != nil {
				return "", err
			}

			if _, err := pipeline.Generate(dsDir, tilesDir, cfg); err != nil {
				return "", fmt.Errorf("mosaic for '%s': %v", name, err)
			}
			active.Select(pyramid.NewDiskStore(tilesDir))
			return name, nil
		},
	})

	log.Printf("Serving tiles on %s\n", fAddr)
	Log.Fatal(http.ListenAndServe(fAddr, s.Handler()))
}
