package indicator

import (
	"math"

	"github.com/rxtech-lab/argo-algo/pkg/errors"
)

// Bands holds aligned Bollinger band series.
type Bands struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
}

// BollingerBands returns mean ± stdDev×σ over period, where σ is the sample
// standard deviation of the window.
func BollingerBands(values []float64, period int, stdDev float64) (Bands, error) {
	if err := checkPeriod(period); err != nil {
		return Bands{}, err
	}

	if period < 2 {
		return Bands{}, errors.New(errors.ErrCodeInvalidPeriod, "bollinger period must be at least 2")
	}

	if stdDev <= 0 {
		return Bands{}, errors.Newf(errors.ErrCodeInvalidParameter, "stdDev must be a positive number, got %f", stdDev)
	}

	bands := Bands{
		Middle: nanSeries(len(values)),
		Upper:  nanSeries(len(values)),
		Lower:  nanSeries(len(values)),
	}

	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]

		mean := 0.0
		for _, v := range window {
			mean += v
		}

		mean /= float64(period)

		squaredDiffSum := 0.0
		for _, v := range window {
			squaredDiffSum += (v - mean) * (v - mean)
		}

		sigma := math.Sqrt(squaredDiffSum / float64(period-1))

		bands.Middle[i] = mean
		bands.Upper[i] = mean + stdDev*sigma
		bands.Lower[i] = mean - stdDev*sigma
	}

	return bands, nil
}

// Width returns (upper-lower)/middle at index i.
func (b Bands) Width(i int) float64 {
	if b.Middle[i] == 0 {
		return math.NaN()
	}

	return (b.Upper[i] - b.Lower[i]) / b.Middle[i]
}

// Position returns where price sits inside the band at index i, 0 at the
// lower band and 1 at the upper band.
func (b Bands) Position(i int, price float64) float64 {
	span := b.Upper[i] - b.Lower[i]
	if span == 0 {
		return 0.5
	}

	return (price - b.Lower[i]) / span
}
