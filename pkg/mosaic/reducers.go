package mosaic

import "sort"

// A ReducerFunc folds the samples from every frame covering one pixel
// into a single intensity. Weights are per-frame exposure times;
// frames without exposure info get weight 1.
type ReducerFunc func(vals, weights []float64) float64

func ReduceMean(vals, weights []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func ReduceMax(vals, weights []float64) float64 {
	max := vals[0]
	for _, v := range vals[1:] {
		if v > max { max = v }
	}
	return max
}

func ReduceMedian(vals, weights []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2.0
}

// ReduceWeightedMean weights each sample by its frame's exposure
// time, so a 10s exposure counts for more than a 1s one.
func ReduceWeightedMean(vals, weights []float64) float64 {
	sum, wsum := 0.0, 0.0
	for i, v := range vals {
		w := weights[i]
		if w <= 0 { w = 1.0 }
		sum += v * w
		wsum += w
	}
	return sum / wsum
}
