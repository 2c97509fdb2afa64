package strategy

import (
	"github.com/rxtech-lab/argo-algo/internal/indicator"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
)

// RSIConfig configures the RSI mean-reversion strategy.
type RSIConfig struct {
	Symbols    []string `yaml:"symbols" json:"symbols" validate:"required,min=1"`
	Period     int      `yaml:"period" json:"period" validate:"gt=1"`
	Oversold   float64  `yaml:"oversold" json:"oversold" validate:"gt=0,lt=100"`
	Overbought float64  `yaml:"overbought" json:"overbought" validate:"gtfield=Oversold,lt=100"`
	Quantity   float64  `yaml:"quantity" json:"quantity" validate:"gt=0"`
}

// DefaultRSIConfig returns the stock configuration.
func DefaultRSIConfig() RSIConfig {
	return RSIConfig{
		Symbols:    []string{"HDFCBANK", "INFY"},
		Period:     14,
		Oversold:   30,
		Overbought: 70,
		Quantity:   10,
	}
}

// RSIMeanReversion buys when RSI climbs back out of the oversold zone and sells
// when it falls back out of the overbought zone.
type RSIMeanReversion struct {
	*core
	config RSIConfig
}

// NewRSIMeanReversion creates the strategy. It starts enabled.
func NewRSIMeanReversion(name string, config RSIConfig, log *logger.Logger) (*RSIMeanReversion, error) {
	if config.Period <= 1 {
		return nil, errors.Newf(errors.ErrCodeStrategyConfigError, "rsi period must be > 1, got %d", config.Period)
	}

	if config.Oversold >= config.Overbought {
		return nil, errors.Newf(errors.ErrCodeStrategyConfigError,
			"rsi oversold %.2f must be below overbought %.2f", config.Oversold, config.Overbought)
	}

	s := &RSIMeanReversion{
		core:   newCore(name, config.Symbols, log),
		config: config,
	}
	s.Enable()

	return s, nil
}

// Requirements asks for the warm-up period plus a margin.
func (s *RSIMeanReversion) Requirements() Requirements {
	return Requirements{
		MinDataPoints: s.config.Period + 5,
		BarInterval:   0,
	}
}

// GenerateSignals fires only on a strict threshold cross.
func (s *RSIMeanReversion) GenerateSignals(history map[string][]types.Bar) ([]types.Signal, error) {
	var signals []types.Signal

	for _, symbol := range s.symbols {
		bars := history[symbol]
		if len(bars) < s.Requirements().MinDataPoints {
			continue
		}

		series, err := indicator.RSI(types.Closes(bars), s.config.Period)
		if err != nil {
			return nil, err
		}

		prev, curr, ok := indicator.LastTwo(series)
		if !ok {
			continue
		}

		var (
			side       types.Side
			signalType string
			confidence float64
		)

		switch {
		case prev <= s.config.Oversold && curr > s.config.Oversold:
			side, signalType = types.SideBuy, "OVERSOLD_BOUNCE"
			confidence = clamp((s.config.Oversold-curr)/20+0.5, 0.5, 1)
		case prev >= s.config.Overbought && curr < s.config.Overbought:
			side, signalType = types.SideSell, "OVERBOUGHT_REVERSAL"
			confidence = clamp((curr-s.config.Overbought)/20+0.5, 0.5, 1)
		default:
			continue
		}

		if !s.claim(symbol, side) {
			continue
		}

		sig := s.signal(symbol, side, bars[len(bars)-1], s.config.Quantity, signalType, confidence)
		sig.Metadata.Values["rsi"] = curr
		sig.Metadata.Values["prev_rsi"] = prev
		signals = append(signals, sig)
	}

	return signals, nil
}
