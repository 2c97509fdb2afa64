package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/suite"
)

type IndicatorTestSuite struct {
	suite.Suite
}

func TestIndicatorSuite(t *testing.T) {
	suite.Run(t, new(IndicatorTestSuite))
}

func (suite *IndicatorTestSuite) TestSMA() {
	sma, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	suite.Require().NoError(err)
	suite.False(Valid(sma[1]))
	suite.InDelta(2.0, sma[2], 1e-9)
	suite.InDelta(3.0, sma[3], 1e-9)
	suite.InDelta(4.0, sma[4], 1e-9)

	_, err = SMA([]float64{1}, 0)
	suite.Error(err)
}

func (suite *IndicatorTestSuite) TestEMA() {
	ema, err := EMA([]float64{2, 4, 6, 8}, 3)
	suite.Require().NoError(err)
	suite.False(Valid(ema[1]))
	suite.InDelta(4.0, ema[2], 1e-9)
	// (8-4)*0.5+4
	suite.InDelta(6.0, ema[3], 1e-9)
}

func (suite *IndicatorTestSuite) TestRSIWilder() {
	values := []float64{44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00}

	rsi, err := RSI(values, 14)
	suite.Require().NoError(err)
	suite.False(Valid(rsi[13]))
	suite.InDelta(70.46, rsi[14], 0.1)
	suite.True(rsi[15] < rsi[14])
}

func (suite *IndicatorTestSuite) TestRSIFlatSeries() {
	rsi, err := RSI([]float64{10, 10, 10, 10}, 2)
	suite.Require().NoError(err)
	suite.Equal(50.0, rsi[3])

	rsi, err = RSI([]float64{1, 2, 3, 4}, 2)
	suite.Require().NoError(err)
	suite.Equal(100.0, rsi[3])
}

func (suite *IndicatorTestSuite) TestBollingerBandsSampleStd() {
	bands, err := BollingerBands([]float64{1, 2, 3, 4, 5}, 5, 2)
	suite.Require().NoError(err)

	// sample std of 1..5 is sqrt(2.5)
	sigma := math.Sqrt(2.5)
	suite.InDelta(3.0, bands.Middle[4], 1e-9)
	suite.InDelta(3+2*sigma, bands.Upper[4], 1e-9)
	suite.InDelta(3-2*sigma, bands.Lower[4], 1e-9)
	suite.InDelta(4*sigma/3, bands.Width(4), 1e-9)
	suite.InDelta(0.5, bands.Position(4, 3), 1e-9)
	suite.False(Valid(bands.Middle[3]))

	_, err = BollingerBands([]float64{1, 2}, 1, 2)
	suite.Error(err)

	_, err = BollingerBands([]float64{1, 2}, 2, 0)
	suite.Error(err)
}

func (suite *IndicatorTestSuite) TestCPRLevels() {
	levels := ComputeCPR(24783.70, 24650.00, 24707.80)

	pivot := (24783.70 + 24650.00 + 24707.80) / 3
	suite.InDelta(pivot, levels.Pivot, 1e-9)
	suite.InDelta((24783.70+24650.00)/2, levels.BC, 1e-9)
	suite.InDelta(2*pivot-levels.BC, levels.TC, 1e-9)
	suite.InDelta(2*pivot-24650.00, levels.R1, 1e-9)
	suite.InDelta(2*pivot-24783.70, levels.S1, 1e-9)
	suite.InDelta(math.Abs(levels.TC-levels.BC), levels.Width, 1e-9)

	ordered := levels.Ordered()
	suite.Require().Len(ordered, 10)
	suite.Equal("s4", ordered[0].Name)
	suite.Equal("r4", ordered[9].Name)

	// close below the midpoint puts bc above tc; the support and resistance ladders stay ordered
	for i := 1; i < 4; i++ {
		suite.Less(ordered[i-1].Value, ordered[i].Value)
	}

	for i := 7; i < 10; i++ {
		suite.Less(ordered[i-1].Value, ordered[i].Value)
	}
}

func (suite *IndicatorTestSuite) TestLastTwo() {
	_, _, ok := LastTwo([]float64{1})
	suite.False(ok)

	_, _, ok = LastTwo([]float64{math.NaN(), 1})
	suite.False(ok)

	prev, curr, ok := LastTwo([]float64{1, 2, 3})
	suite.True(ok)
	suite.Equal(2.0, prev)
	suite.Equal(3.0, curr)
}
