package usecase

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// quantiles returns the 25th, 50th and 75th percentiles of values using
// linear interpolation between ranks. With fewer than four samples no
// quantile is fabricated and nil is returned; callers fall back to
// reporting the raw values.
func quantiles(values []float64) []float64 {
	if len(values) < 4 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	median, err := stats.Median(stats.Float64Data(sorted))
	if err != nil {
		return nil
	}
	return []float64{
		percentile(sorted, 0.25),
		median,
		percentile(sorted, 0.75),
	}
}

// percentile interpolates linearly between the two ranks surrounding the
// requested fraction of sorted.
func percentile(sorted []float64, p float64) float64 {
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (rank-float64(lo))*(sorted[hi]-sorted[lo])
}
