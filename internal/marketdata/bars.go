package marketdata

import (
	"sort"
	"time"

	"github.com/rxtech-lab/argo-algo/internal/types"
)

// DefaultBarInterval is the bucket width used by bar-aligned strategies.
const DefaultBarInterval = 5 * time.Minute

// BucketStart returns the start of the interval bucket containing t.
func BucketStart(t time.Time, interval time.Duration) time.Time {
	return t.Truncate(interval)
}

// Resample aggregates ticks into interval bars using first/max/min/last/sum.
// Ticks may arrive in any order; the result is time ordered with one bar per bucket.
func Resample(ticks []types.Tick, interval time.Duration) []types.Bar {
	if len(ticks) == 0 || interval <= 0 {
		return nil
	}

	sorted := make([]types.Tick, len(ticks))
	copy(sorted, ticks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var series BarSeries

	for _, tick := range sorted {
		bar := tick.AsBar()
		bar.Timestamp = BucketStart(tick.Timestamp, interval)
		series.Append(bar)
	}

	return series.Bars()
}

// ClosedBars drops bars whose bucket has not fully elapsed at now.
func ClosedBars(bars []types.Bar, interval time.Duration, now time.Time) []types.Bar {
	end := len(bars)
	for end > 0 && bars[end-1].Timestamp.Add(interval).After(now) {
		end--
	}

	return bars[:end]
}

// BarSeries is an append-only, time-ordered bar sequence. A bar whose
// timestamp already exists is merged into the existing bucket.
type BarSeries struct {
	bars []types.Bar
}

// Append adds bar, merging it into an existing bucket with the same timestamp.
func (s *BarSeries) Append(bar types.Bar) {
	n := len(s.bars)
	if n == 0 || bar.Timestamp.After(s.bars[n-1].Timestamp) {
		s.bars = append(s.bars, bar)

		return
	}

	idx := sort.Search(n, func(i int) bool {
		return !s.bars[i].Timestamp.Before(bar.Timestamp)
	})

	if idx < n && s.bars[idx].Timestamp.Equal(bar.Timestamp) {
		s.bars[idx] = mergeBar(s.bars[idx], bar)

		return
	}

	s.bars = append(s.bars, types.Bar{}) //nolint:exhaustruct // placeholder for slice expansion
	copy(s.bars[idx+1:], s.bars[idx:])
	s.bars[idx] = bar
}

// Bars returns a copy of the series.
func (s *BarSeries) Bars() []types.Bar {
	out := make([]types.Bar, len(s.bars))
	copy(out, s.bars)

	return out
}

// Len returns the number of bars.
func (s *BarSeries) Len() int {
	return len(s.bars)
}

// MergeBars combines two bar slices into one ordered series without duplicate buckets.
func MergeBars(base []types.Bar, extra []types.Bar) []types.Bar {
	var series BarSeries
	for _, b := range base {
		series.Append(b)
	}

	for _, b := range extra {
		series.Append(b)
	}

	return series.Bars()
}

// mergeBar folds later into earlier: open is kept, close is replaced.
func mergeBar(earlier types.Bar, later types.Bar) types.Bar {
	merged := earlier
	if later.High > merged.High {
		merged.High = later.High
	}

	if later.Low < merged.Low {
		merged.Low = later.Low
	}

	merged.Close = later.Close
	merged.Volume += later.Volume

	return merged
}
