package strategy

import (
	"github.com/rxtech-lab/argo-algo/internal/indicator"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
)

// BollingerMode selects how band interaction is traded.
type BollingerMode string

const (
	BollingerBreakout  BollingerMode = "BREAKOUT"
	BollingerReversion BollingerMode = "REVERSION"
)

const (
	// breakoutMinWidth is the band width below which a band cross is noise.
	breakoutMinWidth = 0.02
	// reversionMaxWidth is the band width above which fading the band is unsafe.
	reversionMaxWidth = 0.05
	reversionEdge     = 0.1
)

// BollingerConfig configures the Bollinger band strategy.
type BollingerConfig struct {
	Symbols  []string      `yaml:"symbols" json:"symbols" validate:"required,min=1"`
	Period   int           `yaml:"period" json:"period" validate:"gt=1"`
	StdDev   float64       `yaml:"std_dev" json:"std_dev" validate:"gt=0"`
	Mode     BollingerMode `yaml:"mode" json:"mode" validate:"oneof=BREAKOUT REVERSION"`
	Quantity float64       `yaml:"quantity" json:"quantity" validate:"gt=0"`
}

// DefaultBollingerConfig returns the stock configuration.
func DefaultBollingerConfig() BollingerConfig {
	return BollingerConfig{
		Symbols:  []string{"ICICIBANK"},
		Period:   20,
		StdDev:   2,
		Mode:     BollingerBreakout,
		Quantity: 10,
	}
}

// BollingerBandStrategy trades band breakouts or reversion from the band edges.
type BollingerBandStrategy struct {
	*core
	config BollingerConfig
}

// NewBollingerBandStrategy creates the strategy. It starts enabled.
func NewBollingerBandStrategy(name string, config BollingerConfig, log *logger.Logger) (*BollingerBandStrategy, error) {
	if config.Mode == "" {
		config.Mode = BollingerBreakout
	}

	if config.Mode != BollingerBreakout && config.Mode != BollingerReversion {
		return nil, errors.Newf(errors.ErrCodeStrategyConfigError, "unknown bollinger mode %q", config.Mode)
	}

	if config.Period < 2 || config.StdDev <= 0 {
		return nil, errors.Newf(errors.ErrCodeStrategyConfigError,
			"bollinger needs period >= 2 and std_dev > 0, got %d/%.2f", config.Period, config.StdDev)
	}

	s := &BollingerBandStrategy{
		core:   newCore(name, config.Symbols, log),
		config: config,
	}
	s.Enable()

	return s, nil
}

// Requirements asks for the band period plus a margin.
func (s *BollingerBandStrategy) Requirements() Requirements {
	return Requirements{
		MinDataPoints: s.config.Period + 5,
		BarInterval:   0,
	}
}

// GenerateSignals evaluates the configured mode for every symbol.
func (s *BollingerBandStrategy) GenerateSignals(history map[string][]types.Bar) ([]types.Signal, error) {
	var signals []types.Signal

	for _, symbol := range s.symbols {
		bars := history[symbol]
		if len(bars) < s.Requirements().MinDataPoints {
			continue
		}

		closes := types.Closes(bars)

		bands, err := indicator.BollingerBands(closes, s.config.Period, s.config.StdDev)
		if err != nil {
			return nil, err
		}

		last := len(closes) - 1
		if !indicator.Valid(bands.Upper[last]) || !indicator.Valid(bands.Upper[last-1]) {
			continue
		}

		var (
			side       types.Side
			signalType string
			confidence float64
			ok         bool
		)

		if s.config.Mode == BollingerBreakout {
			side, signalType, confidence, ok = breakout(closes, bands, last)
		} else {
			side, signalType, confidence, ok = reversion(closes[last], bands, last)
		}

		if !ok || !s.claim(symbol, side) {
			continue
		}

		sig := s.signal(symbol, side, bars[last], s.config.Quantity, signalType, confidence)
		sig.Metadata.Values["upper"] = bands.Upper[last]
		sig.Metadata.Values["middle"] = bands.Middle[last]
		sig.Metadata.Values["lower"] = bands.Lower[last]
		sig.Metadata.Values["width"] = bands.Width(last)
		signals = append(signals, sig)
	}

	return signals, nil
}

func breakout(closes []float64, bands indicator.Bands, i int) (types.Side, string, float64, bool) {
	price, prevPrice := closes[i], closes[i-1]
	upper, lower := bands.Upper[i], bands.Lower[i]

	if bands.Width(i) <= breakoutMinWidth {
		return "", "", 0, false
	}

	switch {
	case prevPrice <= bands.Upper[i-1] && price > upper:
		return types.SideBuy, "BB_UPPER_BREAKOUT", clamp((price-upper)/upper*10+0.7, 0.5, 1), true
	case prevPrice >= bands.Lower[i-1] && price < lower:
		return types.SideSell, "BB_LOWER_BREAKOUT", clamp((lower-price)/lower*10+0.7, 0.5, 1), true
	}

	return "", "", 0, false
}

func reversion(price float64, bands indicator.Bands, i int) (types.Side, string, float64, bool) {
	if bands.Width(i) >= reversionMaxWidth {
		return "", "", 0, false
	}

	pos := bands.Position(i, price)
	if !indicator.Valid(pos) {
		return "", "", 0, false
	}

	switch {
	case pos <= reversionEdge:
		return types.SideBuy, "BB_MEAN_REVERSION_BUY", clamp(1-pos, 0, 1), true
	case pos >= 1-reversionEdge:
		return types.SideSell, "BB_MEAN_REVERSION_SELL", clamp(pos, 0, 1), true
	}

	return "", "", 0, false
}
