package main

import (
	"testing"

	"skybrowse/pkg/pipeline"
)

func TestClipFlagsDistinguishZeroFromUnset(t *testing.T) {
	defer func() { fClipLoPct, fClipHiPct = -1, -1 }()

	// Unset flags leave the config defaults alone
	fClipLoPct, fClipHiPct = -1, -1
	cfg := pipeline.NewConfig()
	applyFlagOverrides(&cfg)
	if cfg.Rendering.ClipLoPct != 0.5 || cfg.Rendering.ClipHiPct != 99.5 {
		t.Errorf("unset clip flags changed defaults: %v/%v",
			cfg.Rendering.ClipLoPct, cfg.Rendering.ClipHiPct)
	}

	// An explicit 0th-percentile low clip must take effect
	fClipLoPct, fClipHiPct = 0, 98
	cfg = pipeline.NewConfig()
	applyFlagOverrides(&cfg)
	if cfg.Rendering.ClipLoPct != 0 {
		t.Errorf("-cliplo 0 ignored, got %v", cfg.Rendering.ClipLoPct)
	}
	if cfg.Rendering.ClipHiPct != 98 {
		t.Errorf("-cliphi 98 not applied, got %v", cfg.Rendering.ClipHiPct)
	}
}

func TestStrategyFlagOverrides(t *testing.T) {
	defer func() { fReducerStrategy, fColormap, fTileSize = "", "", 0 }()

	fReducerStrategy, fColormap, fTileSize = "max", "heat", 128
	cfg := pipeline.NewConfig()
	applyFlagOverrides(&cfg)
	if cfg.Rendering.ReducerStrategy != "max" || cfg.Rendering.Colormap != "heat" || cfg.Rendering.TileSize != 128 {
		t.Errorf("flag overrides not applied: %+v", cfg.Rendering)
	}
}
