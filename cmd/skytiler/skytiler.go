package main

import(
	"flag"
	"log"
	"os"

	"skybrowse/pkg/pipeline"
)

var(
	Log *log.Logger

	fTilesDir string
	fConfigFilename string
	fTileSize int
	fWorkers int
	fReducerStrategy string
	fColormap string
	fClipLoPct float64
	fClipHiPct float64
	fHDROutputFilename string
)

func init() {
	flag.StringVar(&fTilesDir, "o", "tiles", "directory to publish the tile pyramid into")
	flag.StringVar(&fConfigFilename, "config", "", "YAML config file (alignment, exclusions, rendering)")
	flag.IntVar(&fTileSize, "tilesize", 0, "tile edge length in pixels")
	flag.IntVar(&fWorkers, "workers", 0, "parallel tile encoders per pyramid level")

	flag.StringVar(&fReducerStrategy, "reducer", "", "how to reduce overlapping frame values into one pixel")
	flag.StringVar(&fColormap, "colormap", "", "how to color normalized intensities")
	// Percentiles can legitimately be 0, so unset is negative
	flag.Float64Var(&fClipLoPct, "cliplo", -1, "percentile mapped to black")
	flag.Float64Var(&fClipHiPct, "cliphi", -1, "percentile mapped to white")
	flag.StringVar(&fHDROutputFilename, "hdr", "", "also dump the float mosaic as a Radiance HDR file")

	Log = log.New(os.Stdout,"", log.Ldate|log.Ltime)//log.Lshortfile
}

// Override the config file with command line args, if relevant
func applyFlagOverrides(cfg *pipeline.Config) {
	if fTileSize > 0           { cfg.Rendering.TileSize = fTileSize }
	if fWorkers > 0            { cfg.Rendering.Workers = fWorkers }
	if fReducerStrategy != ""  { cfg.Rendering.ReducerStrategy = fReducerStrategy }
	if fColormap != ""         { cfg.Rendering.Colormap = fColormap }
	if fClipLoPct >= 0         { cfg.Rendering.ClipLoPct = fClipLoPct }
	if fClipHiPct >= 0         { cfg.Rendering.ClipHiPct = fClipHiPct }
	if fHDROutputFilename != "" { cfg.Rendering.HDROutputFilename = fHDROutputFilename }
}

func main() {
	flag.Parse()
	log.Printf("Starting\n")

	if flag.NArg() != 1 {
		Log.Fatal("usage: skytiler [flags] <dataset-dir>")
	}

	cfg := pipeline.NewConfig()
	if fConfigFilename != "" {
		var err error
		if cfg, err = pipeline.LoadConfig(fConfigFilename); err != nil {
			Log.Fatal(err)
		}
	}
	applyFlagOverrides(&cfg)

	md, err := pipeline.Generate(flag.Arg(0), fTilesDir, cfg)
	if err != nil {
		log.Fatalf("generate failed, err: %v\n", err)
	}

	log.Printf("Pyramid published to '%s': %dx%d px, maxzoom %d\n", fTilesDir, md.Width, md.Height, md.MaxZoom)
}
