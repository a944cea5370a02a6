package pipeline

import(
	"fmt"
	"log"

	"skybrowse/pkg/frame"
	"skybrowse/pkg/mosaic"
	"skybrowse/pkg/pyramid"
)

// Generate runs the whole batch path for one dataset: load raw
// frames, composite them into a mosaic, normalize, and build the tile
// pyramid. On failure nothing is published and any prior pyramid for
// the dataset survives.
func Generate(datasetDir, tilesDir string, cfg Config) (pyramid.Metadata, error) {
	if err := cfg.Finalize(); err != nil {
		return pyramid.Metadata{}, err
	}

	frames, err := frame.LoadAll(datasetDir)
	if err != nil {
		return pyramid.Metadata{}, fmt.Errorf("load frames from '%s': %w", datasetDir, err)
	}
	frames = cfg.filterExcluded(frames)
	cfg.applyAlignment(frames)

	m, err := mosaic.Compose(frames, cfg.Rendering.Options)
	if err != nil {
		return pyramid.Metadata{}, fmt.Errorf("composite '%s': %w", datasetDir, err)
	}
	m.Normalize()

	if cfg.Rendering.HDROutputFilename != "" {
		if err := mosaic.WriteHDR(m, cfg.Rendering.HDROutputFilename); err != nil {
			log.Printf("HDR debug dump failed: %v\n", err) // debug artifact, not fatal
		}
	}

	b := pyramid.NewBuilder(cfg.Rendering.TileSize, cfg.Rendering.Workers)
	return b.Build(m.Img, pyramid.NewDiskStore(tilesDir))
}

// Regenerate re-runs Generate over the same raw frames. The pipeline
// is deterministic end to end, so this is idempotent: the recovery
// path after an aborted or visibly wrong build.
func Regenerate(datasetDir, tilesDir string, cfg Config) (pyramid.Metadata, error) {
	log.Printf("Regenerating mosaic for '%s'\n", datasetDir)
	return Generate(datasetDir, tilesDir, cfg)
}
