package mosaic

import "fmt"

// Options control how frames are combined and how the combined grid
// is mapped to display values.
type Options struct {
	// Values from config / command line
	ReducerStrategy string
	Colormap        string
	ClipLoPct       float64
	ClipHiPct       float64

	// Values we derive/compute
	reducer ReducerFunc
	palette PaletteFunc
}

func NewOptions() Options {
	return Options{
		ReducerStrategy: "mean",
		Colormap:        "gray",
		ClipLoPct:       0.5,
		ClipHiPct:       99.5,
	}
}

// Finalize does sanity checks and resolves strategy names to funcs.
func (o *Options)Finalize() error {
	if o.ReducerStrategy == "" { o.ReducerStrategy = "mean" }
	if o.Colormap == ""        { o.Colormap = "gray" }
	if o.ClipLoPct == 0 && o.ClipHiPct == 0 {
		o.ClipLoPct, o.ClipHiPct = 0.5, 99.5
	}

	if o.ClipLoPct < 0 || o.ClipHiPct > 100 || o.ClipLoPct >= o.ClipHiPct {
		return fmt.Errorf("bad clip percentiles [%f,%f]", o.ClipLoPct, o.ClipHiPct)
	}

	switch o.ReducerStrategy {
	case "mean":   o.reducer = ReduceMean
	case "max":    o.reducer = ReduceMax
	case "median": o.reducer = ReduceMedian
	case "wmean":  o.reducer = ReduceWeightedMean
	default:
		return fmt.Errorf("no ReducerStrategy named '%s'", o.ReducerStrategy)
	}

	switch o.Colormap {
	case "gray": o.palette = GrayPalette
	case "heat": o.palette = HeatPalette
	default:
		return fmt.Errorf("no Colormap named '%s'", o.Colormap)
	}

	return nil
}
