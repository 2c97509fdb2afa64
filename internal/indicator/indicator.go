// Package indicator computes technical indicator series over close prices.
//
// Every series function returns a slice aligned with its input. Positions that
// do not yet have enough history hold NaN, so callers can read the current
// and previous values by index and test them with Valid.
package indicator

import (
	"math"

	"github.com/rxtech-lab/argo-algo/pkg/errors"
)

// Valid reports whether v is a computed value rather than warm-up padding.
func Valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// LastTwo returns the previous and current values of a series.
// ok is false when either is missing.
func LastTwo(series []float64) (prev float64, curr float64, ok bool) {
	if len(series) < 2 {
		return 0, 0, false
	}

	prev, curr = series[len(series)-2], series[len(series)-1]

	return prev, curr, Valid(prev) && Valid(curr)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	return out
}

func checkPeriod(period int) error {
	if period <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	return nil
}
